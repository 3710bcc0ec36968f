package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowledgebench/bench/engine/domain"
	"github.com/knowledgebench/bench/engine/embed"
	"github.com/knowledgebench/bench/engine/retrieval"
)

// ErrNoValidResults signals that every question errored, so no aggregate
// metrics exist.
var ErrNoValidResults = errors.New("evaluation: no valid results")

// DefaultSemanticThreshold marks an answer semantically correct.
const DefaultSemanticThreshold = 0.75

// DefaultQuestionTimeout bounds a single question end to end.
const DefaultQuestionTimeout = 2 * time.Minute

// Retriever is the slice of retrieval the harness needs.
type Retriever interface {
	Retrieve(ctx context.Context, query, profileID string, opts retrieval.Options) ([]domain.RetrievalResult, error)
}

// Generator produces a grounded answer from retrieved context.
type Generator interface {
	Chat(ctx context.Context, question, ragContext string) (string, error)
}

// QuestionResult is the per-question outcome. Err is set when the question
// failed; failed rows carry zero metrics and are excluded from aggregates.
type QuestionResult struct {
	QuestionID         string             `json:"question_id"`
	Question           string             `json:"question,omitempty"`
	ExpectedAnswer     string             `json:"expected_answer,omitempty"`
	GeneratedAnswer    string             `json:"generated_answer,omitempty"`
	ExpectedSources    []domain.SourceKey `json:"expected_sources,omitempty"`
	RetrievedSources   []domain.SourceKey `json:"retrieved_sources,omitempty"`
	RecallAtK          float64            `json:"recall_at_k"`
	MRR                float64            `json:"mrr"`
	SemanticSimilarity float64            `json:"semantic_similarity"`
	CitationHit        float64            `json:"citation_hit_rate"`
	NumExpected        int                `json:"num_expected_sources"`
	NumRetrieved       int                `json:"num_retrieved_sources"`
	Err                string             `json:"error,omitempty"`
}

// Valid reports whether the row contributes to aggregates.
func (r QuestionResult) Valid() bool { return r.Err == "" }

// Metrics is the aggregate over valid rows.
type Metrics struct {
	Dataset             string    `json:"dataset"`
	ProfileID           string    `json:"chunk_profile_id"`
	EmbeddingModel      string    `json:"embedding_model"`
	LLMModel            string    `json:"llm_model"`
	TopK                int       `json:"top_k"`
	NumQuestions        int       `json:"num_questions"`
	NumValid            int       `json:"num_valid_results"`
	EmbeddingCoverage   float64   `json:"embedding_coverage"`
	AvgRecallAtK        float64   `json:"avg_recall_at_k"`
	AvgMRR              float64   `json:"avg_mrr"`
	AvgSemanticSim      float64   `json:"avg_semantic_similarity"`
	SemanticCorrectRate float64   `json:"semantic_correct_rate"`
	CitationHitRate     float64   `json:"citation_hit_rate"`
	CompositeScore      float64   `json:"composite_score"`
	Timestamp           time.Time `json:"timestamp"`
}

// Opts configures a harness run.
type Opts struct {
	Dataset           string
	ProfileID         string
	TopK              int
	SemanticThreshold float64
	QuestionTimeout   time.Duration
	LLMModel          string
}

// Harness runs a golden set through retrieve, generate, and score.
type Harness struct {
	retriever Retriever
	encoder   embed.Encoder
	generator Generator
	log       *slog.Logger
}

// NewHarness wires the harness dependencies.
func NewHarness(retriever Retriever, encoder embed.Encoder, generator Generator, log *slog.Logger) *Harness {
	if log == nil {
		log = slog.Default()
	}
	return &Harness{retriever: retriever, encoder: encoder, generator: generator, log: log}
}

// Run evaluates every item. A failing question never aborts the run; its
// row carries the error and aggregation skips it. Run fails only when the
// whole set produced no valid rows.
func (h *Harness) Run(ctx context.Context, items []domain.EvaluationItem, opts Opts) (Metrics, []QuestionResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.SemanticThreshold == 0 {
		opts.SemanticThreshold = DefaultSemanticThreshold
	}
	if opts.QuestionTimeout <= 0 {
		opts.QuestionTimeout = DefaultQuestionTimeout
	}

	results := make([]QuestionResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return Metrics{}, results, fmt.Errorf("evaluation: run cancelled: %w", err)
		}
		qctx, cancel := context.WithTimeout(ctx, opts.QuestionTimeout)
		res := h.evaluateQuestion(qctx, item, opts)
		cancel()
		if res.Err != "" {
			h.log.Error("question failed", "question_id", item.ID, "error", res.Err)
		}
		results = append(results, res)
	}

	metrics, err := h.aggregate(results, opts)
	if err != nil {
		return Metrics{}, results, err
	}
	return metrics, results, nil
}

func (h *Harness) evaluateQuestion(ctx context.Context, item domain.EvaluationItem, opts Opts) QuestionResult {
	h.log.Info("evaluating question", "question_id", item.ID)

	res := QuestionResult{
		QuestionID:      item.ID,
		Question:        item.Question,
		ExpectedAnswer:  item.ExpectedAnswer,
		ExpectedSources: item.ExpectedSources,
		NumExpected:     len(item.ExpectedSources),
	}

	hits, err := h.retriever.Retrieve(ctx, item.Question, opts.ProfileID, retrieval.Options{TopK: opts.TopK})
	if err != nil {
		res.Err = err.Error()
		return res
	}

	retrieved := make([]domain.SourceKey, len(hits))
	for i, hit := range hits {
		retrieved[i] = domain.SourceKey{DocumentID: hit.DocumentID, SourceRef: hit.SourceRef}
	}
	res.RetrievedSources = retrieved
	res.NumRetrieved = len(retrieved)

	res.RecallAtK = RecallAtK(item.ExpectedSources, retrieved, opts.TopK)
	res.MRR = MRR(item.ExpectedSources, retrieved)
	if matched, _ := StrictSourceMatch(item.ExpectedSources, retrieved); matched > 0 {
		res.CitationHit = 1.0
	}

	// Answer generation and semantic scoring only make sense with context.
	// Generation failure degrades the row, it does not invalidate it.
	if len(hits) > 0 {
		answer, err := h.generator.Chat(ctx, item.Question, retrieval.BuildContext(hits, 2000))
		if err != nil {
			res.GeneratedAnswer = "ERROR: " + err.Error()
			return res
		}
		res.GeneratedAnswer = answer

		sim, err := h.semanticSimilarity(ctx, item.ExpectedAnswer, answer)
		if err != nil {
			res.GeneratedAnswer = "ERROR: " + err.Error()
			return res
		}
		res.SemanticSimilarity = sim
	}
	return res
}

func (h *Harness) semanticSimilarity(ctx context.Context, expected, generated string) (float64, error) {
	vecs, err := h.encoder.Encode(ctx, []string{expected, generated})
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	return float64(embed.Dot(vecs[0], vecs[1])), nil
}

func (h *Harness) aggregate(results []QuestionResult, opts Opts) (Metrics, error) {
	valid := make([]QuestionResult, 0, len(results))
	for _, r := range results {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return Metrics{}, ErrNoValidResults
	}

	var recall, mrr, sim, citation, correct, retrievedCapped float64
	for _, r := range valid {
		recall += r.RecallAtK
		mrr += r.MRR
		sim += r.SemanticSimilarity
		citation += r.CitationHit
		if r.SemanticSimilarity >= opts.SemanticThreshold {
			correct++
		}
		capped := r.NumRetrieved
		if capped > opts.TopK {
			capped = opts.TopK
		}
		retrievedCapped += float64(capped)
	}
	n := float64(len(valid))

	m := Metrics{
		Dataset:             opts.Dataset,
		ProfileID:           opts.ProfileID,
		EmbeddingModel:      h.encoder.Model(),
		LLMModel:            opts.LLMModel,
		TopK:                opts.TopK,
		NumQuestions:        len(results),
		NumValid:            len(valid),
		EmbeddingCoverage:   retrievedCapped / (n * float64(opts.TopK)),
		AvgRecallAtK:        recall / n,
		AvgMRR:              mrr / n,
		AvgSemanticSim:      sim / n,
		SemanticCorrectRate: correct / n,
		CitationHitRate:     citation / n,
		Timestamp:           time.Now().UTC(),
	}
	m.CompositeScore = WeightRecall*m.AvgRecallAtK +
		WeightMRR*m.AvgMRR +
		WeightSemanticSim*m.AvgSemanticSim +
		WeightCitation*m.CitationHitRate
	return m, nil
}
