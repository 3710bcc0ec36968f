// Package main implements the Knowledge Bench API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/knowledgebench/bench/engine/embed"
	"github.com/knowledgebench/bench/engine/llm"
	"github.com/knowledgebench/bench/engine/retrieval"
	"github.com/knowledgebench/bench/engine/semantic"
	"github.com/knowledgebench/bench/engine/store"
	"github.com/knowledgebench/bench/pkg/metrics"
	"github.com/knowledgebench/bench/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	DBPath         string
	NATSURL        string
	QdrantURL      string
	EmbedURL       string
	EmbedModel     string
	EmbedDim       int
	LLMURL         string
	LLMModel       string
	LLMKey         string
	CORSOrigin     string
	MetricsAddr    string
	DefaultSize    int
	DefaultOverlap int
}

func loadConfig() Config {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()
	return Config{
		Port:           envOr("PORT", "8080"),
		DBPath:         envOr("DB_PATH", "bench.db"),
		NATSURL:        envOr("NATS_URL", nats.DefaultURL),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		EmbedURL:       envOr("EMBED_URL", "http://localhost:8001"),
		EmbedModel:     envOr("EMBED_MODEL", embed.DefaultModel),
		EmbedDim:       envIntOr("EMBED_DIM", embed.DefaultDimension),
		LLMURL:         envOr("LLM_URL", "http://localhost:8000/v1"),
		LLMModel:       envOr("LLM_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
		LLMKey:         envOr("LLM_API_KEY", "EMPTY"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		MetricsAddr:    envOr("METRICS_ADDR", ":9090"),
		DefaultSize:    envIntOr("CHUNK_SIZE", 512),
		DefaultOverlap: envIntOr("CHUNK_OVERLAP", 128),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer meta.Close()

	if _, err := meta.EnsureDefaultProfile(ctx, cfg.DefaultSize, cfg.DefaultOverlap); err != nil {
		return fmt.Errorf("ensure default profile: %w", err)
	}

	vectors, err := semantic.New(cfg.QdrantURL, cfg.EmbedModel)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	encoder := embed.NewProvider(func() (embed.Encoder, error) {
		return embed.NewClient(embed.ClientOpts{
			BaseURL:   cfg.EmbedURL,
			Model:     cfg.EmbedModel,
			Dimension: cfg.EmbedDim,
		}), nil
	})

	retriever := retrieval.New(encoder, vectors, logger)
	chat := llm.New(llm.Opts{BaseURL: cfg.LLMURL, APIKey: cfg.LLMKey, Model: cfg.LLMModel})

	reg := metrics.New()
	reg.ServeAsync(cfg.MetricsAddr, func(err error) {
		logger.Error("metrics server", "err", err)
	})

	srv := &server{
		meta:      meta,
		retriever: retriever,
		chat:      chat,
		nc:        nc,
		logger:    logger,
		metrics:   reg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("POST /api/chat", srv.handleChat)
	mux.HandleFunc("GET /api/profiles", srv.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", srv.handleCreateProfile)
	mux.HandleFunc("POST /api/profiles/{id}/activate", srv.handleActivateProfile)
	mux.HandleFunc("GET /api/documents", srv.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", srv.handleGetDocument)
	mux.HandleFunc("POST /api/documents", srv.handleCreateDocument)
	mux.HandleFunc("POST /api/documents/{id}/reindex", srv.handleReindex)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("bench-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
