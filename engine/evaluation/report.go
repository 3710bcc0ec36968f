package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Report bundles the aggregate metrics with every per-question row,
// including failed ones.
type Report struct {
	Metrics Metrics          `json:"metrics"`
	Results []QuestionResult `json:"results"`
}

// Write saves the JSON and CSV reports under dir, named
// eval_report_<timestamp>.{json,csv}. It returns the JSON path.
func (r Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("evaluation: create report dir: %w", err)
	}
	stamp := r.Metrics.Timestamp
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	base := "eval_report_" + stamp.Format("20060102_150405")

	jsonPath := filepath.Join(dir, base+".json")
	jf, err := os.Create(jsonPath)
	if err != nil {
		return "", fmt.Errorf("evaluation: create json report: %w", err)
	}
	defer jf.Close()
	enc := json.NewEncoder(jf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("evaluation: write json report: %w", err)
	}

	cf, err := os.Create(filepath.Join(dir, base+".csv"))
	if err != nil {
		return "", fmt.Errorf("evaluation: create csv report: %w", err)
	}
	defer cf.Close()
	if err := r.writeCSV(cf); err != nil {
		return "", err
	}
	return jsonPath, nil
}

// writeCSV emits one row per valid result.
func (r Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"question_id", "recall_at_k", "mrr", "semantic_similarity",
		"citation_hit_rate", "num_expected_sources", "num_retrieved_sources",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("evaluation: write csv header: %w", err)
	}
	for _, res := range r.Results {
		if !res.Valid() {
			continue
		}
		row := []string{
			res.QuestionID,
			formatFloat(res.RecallAtK),
			formatFloat(res.MRR),
			formatFloat(res.SemanticSimilarity),
			formatFloat(res.CitationHit),
			strconv.Itoa(res.NumExpected),
			strconv.Itoa(res.NumRetrieved),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("evaluation: write csv row %s: %w", res.QuestionID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("evaluation: flush csv: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Summary renders the human-readable run summary.
func (r Report) Summary(semanticThreshold float64) string {
	m := r.Metrics
	line := "================================================================================\n"
	dash := "--------------------------------------------------------------------------------\n"

	out := "\n" + line
	out += "EVALUATION SUMMARY\n"
	out += line
	out += fmt.Sprintf("Dataset: %s\n", m.Dataset)
	out += fmt.Sprintf("Questions: %d (%d valid)\n", m.NumQuestions, m.NumValid)
	out += fmt.Sprintf("Top-K: %d\n", m.TopK)
	out += fmt.Sprintf("Embedding Model: %s\n", m.EmbeddingModel)
	out += fmt.Sprintf("LLM Model: %s\n", m.LLMModel)
	out += dash
	out += fmt.Sprintf("Embedding Coverage:        %.3f (should be close to 1.0)\n", m.EmbeddingCoverage)
	if m.EmbeddingCoverage < 0.99 {
		out += "  WARNING: Low embedding coverage detected!\n"
	}
	out += fmt.Sprintf("Avg Recall@%d:              %.3f\n", m.TopK, m.AvgRecallAtK)
	out += fmt.Sprintf("Avg MRR:                   %.3f\n", m.AvgMRR)
	out += fmt.Sprintf("Avg Semantic Similarity:   %.3f\n", m.AvgSemanticSim)
	out += fmt.Sprintf("Semantic Correct Rate:     %.3f (threshold=%g)\n", m.SemanticCorrectRate, semanticThreshold)
	out += fmt.Sprintf("Citation Hit Rate:         %.3f\n", m.CitationHitRate)
	out += fmt.Sprintf("Composite Score:           %.3f\n", m.CompositeScore)
	out += line
	return out
}
