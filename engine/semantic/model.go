package semantic

// Hit is a single vector search result.
type Hit struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	SourceRef  string  `json:"source_ref"`
	ProfileID  string  `json:"chunk_profile_id"`
	ChunkIndex int     `json:"chunk_index"`
}

// Record is a single vector to store, with the payload retrieval needs to
// answer from a single query.
type Record struct {
	ID         string
	Embedding  []float32
	Content    string
	DocumentID string
	SourceRef  string
	ProfileID  string
	ChunkIndex int
}
