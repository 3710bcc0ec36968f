// Command eval scores a chunking configuration against a golden question
// set and writes JSON and CSV reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/knowledgebench/bench/engine/embed"
	"github.com/knowledgebench/bench/engine/evaluation"
	"github.com/knowledgebench/bench/engine/llm"
	"github.com/knowledgebench/bench/engine/retrieval"
	"github.com/knowledgebench/bench/engine/semantic"
	"github.com/knowledgebench/bench/pkg/fn"
)

var (
	flagDataset    string
	flagProfile    string
	flagTopK       int
	flagThreshold  float64
	flagEmbedURL   string
	flagEmbedModel string
	flagEmbedDim   int
	flagLLMURL     string
	flagLLMModel   string
	flagLLMKey     string
	flagQdrant     string
	flagOutput     string
)

var rootCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate retrieval quality against a golden question set",
	Long: `Runs every question in a JSONL golden set through retrieval and
generation, scores recall@k, MRR, semantic similarity, and citation
accuracy, and writes a JSON report plus a CSV of per-question rows.`,
	RunE: runEval,
}

func init() {
	rootCmd.Flags().StringVar(&flagDataset, "dataset", "", "path to the JSONL golden set (required)")
	rootCmd.Flags().StringVar(&flagProfile, "profile", "", "chunk profile ID to evaluate (required)")
	rootCmd.Flags().IntVar(&flagTopK, "topk", retrieval.DefaultTopK, "retrieval depth per question")
	rootCmd.Flags().Float64Var(&flagThreshold, "semantic-threshold", evaluation.DefaultSemanticThreshold, "similarity cutoff for a semantically correct answer")
	rootCmd.Flags().StringVar(&flagEmbedURL, "embed-url", envOr("EMBED_URL", "http://localhost:8001"), "embedding endpoint base URL")
	rootCmd.Flags().StringVar(&flagEmbedModel, "embedding", envOr("EMBED_MODEL", embed.DefaultModel), "embedding model name")
	rootCmd.Flags().IntVar(&flagEmbedDim, "embed-dim", embed.DefaultDimension, "embedding vector dimension")
	rootCmd.Flags().StringVar(&flagLLMURL, "llm-url", envOr("LLM_URL", "http://localhost:8000/v1"), "OpenAI-compatible LLM base URL")
	rootCmd.Flags().StringVar(&flagLLMModel, "llm", envOr("LLM_MODEL", "Qwen/Qwen2.5-7B-Instruct"), "generation model name")
	rootCmd.Flags().StringVar(&flagLLMKey, "llm-key", envOr("LLM_API_KEY", "EMPTY"), "LLM API key")
	rootCmd.Flags().StringVar(&flagQdrant, "qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
	rootCmd.Flags().StringVar(&flagOutput, "output", "reports", "directory for report files")
	rootCmd.MarkFlagRequired("dataset")
	rootCmd.MarkFlagRequired("profile")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// generator adapts the chat client to the harness by building the RAG
// prompt from raw question and context strings. Transient LLM failures are
// retried so a long evaluation run does not lose rows to a blip.
type generator struct {
	chat *llm.Client
}

func (g generator) Chat(ctx context.Context, question, ragContext string) (string, error) {
	res := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(g.chat.Chat(ctx, llm.BuildMessages(question, ragContext), llm.GenParams{}))
	})
	return res.Unwrap()
}

func runEval(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := evaluation.LoadGoldenSet(flagDataset)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("golden set %s has no questions", flagDataset)
	}
	logger.Info("loaded golden set", "path", flagDataset, "questions", len(items))

	vectors, err := semantic.New(flagQdrant, flagEmbedModel)
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer vectors.Close()

	encoder := embed.NewClient(embed.ClientOpts{
		BaseURL:   flagEmbedURL,
		Model:     flagEmbedModel,
		Dimension: flagEmbedDim,
	})
	retriever := retrieval.New(encoder, vectors, logger)
	chat := llm.New(llm.Opts{BaseURL: flagLLMURL, APIKey: flagLLMKey, Model: flagLLMModel})

	harness := evaluation.NewHarness(retriever, encoder, generator{chat: chat}, logger)
	metrics, results, err := harness.Run(ctx, items, evaluation.Opts{
		Dataset:           flagDataset,
		ProfileID:         flagProfile,
		TopK:              flagTopK,
		SemanticThreshold: flagThreshold,
		LLMModel:          flagLLMModel,
	})
	if err != nil {
		return fmt.Errorf("evaluation run: %w", err)
	}

	report := evaluation.Report{Metrics: metrics, Results: results}
	path, err := report.Write(flagOutput)
	if err != nil {
		return err
	}

	fmt.Print(report.Summary(flagThreshold))
	fmt.Printf("\nReport written to %s\n", path)
	return nil
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
