// Package domain defines core domain types, constants, and validation for
// the Knowledge Bench engine. It acts as the validation gate at pipeline
// entry points.
package domain

import "time"

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusIngesting DocumentStatus = "ingesting"
	StatusReady     DocumentStatus = "ready"
	StatusFailed    DocumentStatus = "failed"
)

// Document is a source document registered for ingestion.
type Document struct {
	ID           string         `json:"id" db:"id"`
	Filename     string         `json:"filename" db:"filename"`
	Status       DocumentStatus `json:"status" db:"status"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Section is a named span of a source document, produced once per parse and
// immutable thereafter. SourceRef is a stable locator such as "page=5" or
// "sheet=Summary".
type Section struct {
	ID         string            `json:"id" db:"id"`
	DocumentID string            `json:"document_id" db:"document_id"`
	SourceRef  string            `json:"source_ref" db:"source_ref"`
	Content    string            `json:"content" db:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ChunkProfile is a named chunking policy. At most one profile is active
// process-wide; profiles are effectively immutable once chunks exist for
// them, since changing size/overlap would orphan prior chunk semantics.
type ChunkProfile struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	ChunkSize    int       `json:"chunk_size" db:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap" db:"chunk_overlap"`
	Active       bool      `json:"active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is the unit of embedding and retrieval. Index is 0-based and
// strictly increasing within a (document, profile) pair.
type Chunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	SectionID  string `json:"section_id" db:"section_id"`
	ProfileID  string `json:"chunk_profile_id" db:"chunk_profile_id"`
	Content    string `json:"content" db:"content"`
	SourceRef  string `json:"source_ref" db:"source_ref"`
	Index      int    `json:"chunk_index" db:"chunk_index"`
}

// RetrievalResult is an ephemeral per-query hit. Score is cosine
// similarity in [-1, 1].
type RetrievalResult struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	SourceRef  string            `json:"source_ref"`
	Content    string            `json:"content"`
	Score      float32           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SourceKey identifies a ground-truth source location for evaluation.
// Matching is exact on both fields, never similarity-based.
type SourceKey struct {
	DocumentID string `json:"document_id"`
	SourceRef  string `json:"source_ref"`
}

// EvaluationItem is one labelled question from a golden set.
type EvaluationItem struct {
	ID              string      `json:"id"`
	Question        string      `json:"question"`
	ExpectedAnswer  string      `json:"expected_answer"`
	ExpectedSources []SourceKey `json:"expected_sources"`
}

// Citation is the caller-facing form of a retrieval hit.
type Citation struct {
	DocumentID string  `json:"document_id"`
	SourceRef  string  `json:"source_ref"`
	ChunkID    string  `json:"chunk_id"`
	Score      float32 `json:"score"`
	Snippet    string  `json:"snippet"`
}
