// Package retrieval turns a question into ranked, threshold-filtered chunk
// hits, citations, and a bounded prompt context.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knowledgebench/bench/engine/domain"
	"github.com/knowledgebench/bench/engine/semantic"
	"github.com/knowledgebench/bench/pkg/fn"
)

const (
	// DefaultTopK is the number of candidates fetched per query.
	DefaultTopK = 5
	// DefaultThreshold is the minimum cosine similarity a hit must reach
	// to be returned.
	DefaultThreshold = 0.7
	// snippetLen bounds citation snippets.
	snippetLen = 200
)

// QueryEncoder embeds query-side text.
type QueryEncoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs profile-scoped vector search.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, profileID string) ([]semantic.Hit, error)
}

// Options tunes a single retrieval call. Zero values fall back to package
// defaults.
type Options struct {
	TopK      int
	Threshold float32
}

// Retriever answers questions against one chunk profile's vector space.
type Retriever struct {
	encoder QueryEncoder
	search  Searcher
	log     *slog.Logger
}

// New creates a Retriever.
func New(encoder QueryEncoder, search Searcher, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{encoder: encoder, search: search, log: log}
}

// Retrieve embeds the query, searches the profile's space, and returns hits
// at or above the similarity threshold in descending score order. An empty
// result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query, profileID string, opts Options) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}

	vec, err := r.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: encode query: %w", err)
	}

	hits, err := r.search.Search(ctx, vec, opts.TopK, profileID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	kept := fn.Filter(hits, func(h semantic.Hit) bool { return h.Score >= opts.Threshold })
	results := fn.Map(kept, func(h semantic.Hit) domain.RetrievalResult {
		return domain.RetrievalResult{
			ChunkID:    h.ID,
			DocumentID: h.DocumentID,
			SourceRef:  h.SourceRef,
			Content:    h.Content,
			Score:      h.Score,
		}
	})

	r.log.Info("retrieved chunks",
		"count", len(results),
		"top_k", opts.TopK,
		"threshold", opts.Threshold)
	return results, nil
}

// FormatCitations converts hits to caller-facing citations. Snippets longer
// than 200 characters are truncated with a trailing ellipsis.
func FormatCitations(results []domain.RetrievalResult) []domain.Citation {
	citations := make([]domain.Citation, len(results))
	for i, res := range results {
		snippet := res.Content
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen] + "..."
		}
		citations[i] = domain.Citation{
			DocumentID: res.DocumentID,
			SourceRef:  res.SourceRef,
			ChunkID:    res.ChunkID,
			Score:      res.Score,
			Snippet:    snippet,
		}
	}
	return citations
}

// BuildContext assembles the prompt context from hits in rank order. Each
// hit becomes a "[Source i: ref]" block; blocks are included whole until the
// approximate token budget (4 chars per token) would be exceeded.
func BuildContext(results []domain.RetrievalResult, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	maxChars := maxTokens * 4

	parts := make([]string, 0, len(results))
	length := 0
	for i, res := range results {
		block := fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, res.SourceRef, res.Content)
		if length+len(block) > maxChars {
			break
		}
		parts = append(parts, block)
		length += len(block)
	}
	return strings.Join(parts, "\n")
}
