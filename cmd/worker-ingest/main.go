// Command worker-ingest consumes ingestion envelopes from NATS and runs
// them through the chunk/embed/store pipeline into SQLite and Qdrant.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/knowledgebench/bench/engine/embed"
	"github.com/knowledgebench/bench/engine/ingest"
	"github.com/knowledgebench/bench/engine/semantic"
	"github.com/knowledgebench/bench/engine/store"
	"github.com/knowledgebench/bench/pkg/metrics"
)

type config struct {
	DBPath      string
	NATSURL     string
	QdrantURL   string
	EmbedURL    string
	EmbedModel  string
	EmbedDim    int
	MetricsAddr string
}

func loadConfig() config {
	_ = godotenv.Load()
	return config{
		DBPath:      envOr("DB_PATH", "bench.db"),
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		EmbedURL:    envOr("EMBED_URL", "http://localhost:8001"),
		EmbedModel:  envOr("EMBED_MODEL", embed.DefaultModel),
		EmbedDim:    envIntOr("EMBED_DIM", embed.DefaultDimension),
		MetricsAddr: envOr("METRICS_ADDR", ":9092"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer meta.Close()

	vectors, err := semantic.New(cfg.QdrantURL, cfg.EmbedModel)
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx, cfg.EmbedDim); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	logger.Info("connected to qdrant", "collection", semantic.CollectionName(cfg.EmbedModel), "dims", cfg.EmbedDim)

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("bench-worker-ingest"))
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	encoder := embed.NewClient(embed.ClientOpts{
		BaseURL:   cfg.EmbedURL,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDim,
	})
	logger.Info("using embedding endpoint", "url", cfg.EmbedURL, "model", cfg.EmbedModel)

	reg := metrics.New()
	reg.ServeAsync(cfg.MetricsAddr, func(err error) {
		logger.Error("metrics server", "err", err)
	})

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Meta:    meta,
		Vectors: vectors,
		Encoder: encoder,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("worker ready", "subject", ingest.Subject)
	<-ctx.Done()

	logger.Info("shutting down")
	if err := nc.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
