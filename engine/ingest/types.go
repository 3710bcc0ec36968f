package ingest

import (
	"fmt"

	"github.com/knowledgebench/bench/engine/domain"
)

// Kind discriminates ingest envelopes. Dispatch is always on Kind, never on
// which fields happen to be set.
type Kind string

const (
	// KindIngest processes a document for the first time under a profile.
	KindIngest Kind = "ingest"
	// KindReindex drops a document's existing chunks and vectors under the
	// profile before processing.
	KindReindex Kind = "reindex"
)

// Envelope is the message that triggers ingestion of one document under
// one chunk profile.
type Envelope struct {
	Kind           Kind   `json:"kind"`
	DocumentID     string `json:"document_id"`
	ChunkProfileID string `json:"chunk_profile_id"`
}

// Validate rejects unknown kinds and missing ids before any work starts.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindIngest, KindReindex:
	default:
		return fmt.Errorf("ingest: unknown envelope kind %q", e.Kind)
	}
	if e.DocumentID == "" {
		return fmt.Errorf("ingest: envelope missing document_id")
	}
	if e.ChunkProfileID == "" {
		return fmt.Errorf("ingest: envelope missing chunk_profile_id")
	}
	return nil
}

// LoadedDoc is an envelope resolved against the metadata store.
type LoadedDoc struct {
	Envelope
	Document domain.Document
	Profile  domain.ChunkProfile
	Sections []domain.Section
}

// ChunkedDoc is a loaded document split into chunks.
type ChunkedDoc struct {
	LoadedDoc
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked document with one vector per chunk.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}
