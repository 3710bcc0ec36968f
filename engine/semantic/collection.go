package semantic

import "strings"

// collectionPrefix namespaces every collection this engine owns.
const collectionPrefix = "chunk_embeddings__"

// CollectionName derives the collection for an embedding model. Vectors
// from different models are never comparable, so each model gets its own
// collection and switching models can never mix spaces. The org part of the
// model id is dropped: "intfloat/multilingual-e5-small" becomes
// "chunk_embeddings__multilingual_e5_small".
func CollectionName(model string) string {
	slug := model
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	slug = strings.NewReplacer("-", "_", ".", "_").Replace(slug)
	return collectionPrefix + slug
}
