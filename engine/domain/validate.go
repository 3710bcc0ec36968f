package domain

import (
	"fmt"
	"strings"
)

// ValidateProfile validates a chunk profile before it is persisted.
func ValidateProfile(p ChunkProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", p.Name, ErrInvalidProfile)
	}
	if p.ChunkSize <= 0 {
		return NewValidationError("chunk_size", fmt.Sprintf("%d", p.ChunkSize), ErrChunkSizeNotPositive)
	}
	if p.ChunkOverlap < 0 {
		return NewValidationError("chunk_overlap", fmt.Sprintf("%d", p.ChunkOverlap), ErrNegativeOverlap)
	}
	return nil
}

// ValidateSection validates a parsed section before ingestion.
func ValidateSection(s Section) error {
	if s.DocumentID == "" {
		return NewValidationError("document_id", s.DocumentID, ErrInvalidSection)
	}
	if s.SourceRef == "" {
		return NewValidationError("source_ref", s.SourceRef, ErrInvalidSection)
	}
	if strings.TrimSpace(s.Content) == "" {
		return NewValidationError("content", "", ErrInvalidSection)
	}
	return nil
}

// ValidateEvaluationItem validates one golden-set record. Bad test data must
// fail at load time rather than surface later as a zero score.
func ValidateEvaluationItem(item EvaluationItem) error {
	if item.ID == "" {
		return NewValidationError("id", item.ID, ErrInvalidEvalItem)
	}
	if strings.TrimSpace(item.Question) == "" {
		return NewValidationError("question", item.Question, ErrInvalidEvalItem)
	}
	if strings.TrimSpace(item.ExpectedAnswer) == "" {
		return NewValidationError("expected_answer", item.ExpectedAnswer, ErrInvalidEvalItem)
	}
	if len(item.ExpectedSources) == 0 {
		return NewValidationError("expected_sources", "", ErrInvalidEvalItem)
	}
	for i, src := range item.ExpectedSources {
		if src.DocumentID == "" || src.SourceRef == "" {
			return NewValidationError(fmt.Sprintf("expected_sources[%d]", i), src.DocumentID+"/"+src.SourceRef, ErrInvalidEvalItem)
		}
	}
	return nil
}
