// Package ingest runs documents through load, chunk, embed, and store
// stages, driven by NATS envelopes with retry and DLQ support.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/knowledgebench/bench/engine/chunk"
	"github.com/knowledgebench/bench/engine/domain"
	"github.com/knowledgebench/bench/engine/embed"
	"github.com/knowledgebench/bench/engine/semantic"
	"github.com/knowledgebench/bench/pkg/fn"
	"github.com/knowledgebench/bench/pkg/natsutil"
)

const (
	// Subject is the NATS subject for ingest envelopes.
	Subject = "bench.ingest"
	// DLQSubject receives envelopes that exhausted their retries.
	DLQSubject = "bench.ingest.dlq"
	// MaxRetries before an envelope goes to the DLQ.
	MaxRetries = 3
	// retryHeader carries the attempt count across republishes.
	retryHeader = "X-Retry-Count"
)

// MetaStore is the slice of the metadata store the pipeline needs.
type MetaStore interface {
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	GetProfile(ctx context.Context, id string) (domain.ChunkProfile, error)
	SectionsByDocument(ctx context.Context, documentID string) ([]domain.Section, error)
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteChunks(ctx context.Context, documentID, profileID string) error
	SetDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
}

// VectorStore is the slice of the vector store the pipeline needs.
type VectorStore interface {
	Upsert(ctx context.Context, records []semantic.Record) error
	DeleteByDocument(ctx context.Context, documentID, profileID string) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Meta    MetaStore
	Vectors VectorStore
	Encoder embed.Encoder
	Logger  *slog.Logger
}

// --- Pipeline stages ---

// NewLoad resolves an envelope against the metadata store and marks the
// document ingesting.
func NewLoad(meta MetaStore) fn.Stage[Envelope, LoadedDoc] {
	return func(ctx context.Context, env Envelope) fn.Result[LoadedDoc] {
		if err := env.Validate(); err != nil {
			return fn.Err[LoadedDoc](err)
		}
		doc, err := meta.GetDocument(ctx, env.DocumentID)
		if err != nil {
			return fn.Err[LoadedDoc](fmt.Errorf("load document: %w", err))
		}
		profile, err := meta.GetProfile(ctx, env.ChunkProfileID)
		if err != nil {
			return fn.Err[LoadedDoc](fmt.Errorf("load profile: %w", err))
		}
		sections, err := meta.SectionsByDocument(ctx, env.DocumentID)
		if err != nil {
			return fn.Err[LoadedDoc](fmt.Errorf("load sections: %w", err))
		}
		if len(sections) == 0 {
			return fn.Errf[LoadedDoc]("document %s has no sections", env.DocumentID)
		}
		if err := meta.SetDocumentStatus(ctx, env.DocumentID, domain.StatusIngesting, ""); err != nil {
			return fn.Err[LoadedDoc](err)
		}
		return fn.Ok(LoadedDoc{Envelope: env, Document: doc, Profile: profile, Sections: sections})
	}
}

// ChunkSections splits every section under the profile's policy. The chunk
// index runs across the whole document so ordering survives retrieval.
var ChunkSections fn.Stage[LoadedDoc, ChunkedDoc] = func(_ context.Context, doc LoadedDoc) fn.Result[ChunkedDoc] {
	var chunks []domain.Chunk
	index := 0
	for _, sec := range doc.Sections {
		pieces := chunk.Split(sec.Content, doc.Profile.ChunkSize, doc.Profile.ChunkOverlap, sec.SourceRef)
		for _, p := range pieces {
			chunks = append(chunks, domain.Chunk{
				ID:         chunkID(doc.DocumentID, doc.Profile.ID, index),
				DocumentID: doc.DocumentID,
				SectionID:  sec.ID,
				ProfileID:  doc.Profile.ID,
				Content:    p.Content,
				SourceRef:  sec.SourceRef,
				Index:      index,
			})
			index++
		}
	}
	if len(chunks) == 0 {
		return fn.Errf[ChunkedDoc]("document %s produced no chunks", doc.DocumentID)
	}
	return fn.Ok(ChunkedDoc{LoadedDoc: doc, Chunks: chunks})
}

// NewEmbed encodes chunk contents. Batching happens inside the encoder.
func NewEmbed(encoder embed.Encoder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Content })
		vecs, err := encoder.Encode(ctx, texts)
		if err != nil {
			return fn.Err[EmbeddedDoc](fmt.Errorf("embed chunks: %w", err))
		}
		if len(vecs) != len(doc.Chunks) {
			return fn.Errf[EmbeddedDoc]("embed chunks: got %d vectors for %d chunks", len(vecs), len(doc.Chunks))
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: vecs})
	}
}

// NewStore persists vectors and chunk rows. Prior chunk rows for the
// (document, profile) pair are always cleared first so the stage stays
// idempotent across consumer retries; vector points share deterministic IDs
// and are overwritten by the upsert, so only reindex clears them explicitly.
func NewStore(meta MetaStore, vectors VectorStore) fn.Stage[EmbeddedDoc, string] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		if doc.Kind == KindReindex {
			if err := vectors.DeleteByDocument(ctx, doc.DocumentID, doc.Profile.ID); err != nil {
				return fn.Err[string](fmt.Errorf("clear vectors: %w", err))
			}
		}
		if err := meta.DeleteChunks(ctx, doc.DocumentID, doc.Profile.ID); err != nil {
			return fn.Err[string](fmt.Errorf("clear chunks: %w", err))
		}

		records := make([]semantic.Record, len(doc.Chunks))
		for i, c := range doc.Chunks {
			records[i] = semantic.Record{
				ID:         c.ID,
				Embedding:  doc.Embeddings[i],
				Content:    c.Content,
				DocumentID: c.DocumentID,
				SourceRef:  c.SourceRef,
				ProfileID:  c.ProfileID,
				ChunkIndex: c.Index,
			}
		}
		if err := vectors.Upsert(ctx, records); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}
		if err := meta.InsertChunks(ctx, doc.Chunks); err != nil {
			return fn.Err[string](fmt.Errorf("chunk insert: %w", err))
		}
		if err := meta.SetDocumentStatus(ctx, doc.DocumentID, domain.StatusReady, ""); err != nil {
			return fn.Err[string](err)
		}
		return fn.Ok(doc.DocumentID)
	}
}

// chunkID derives a stable UUID so re-running ingestion overwrites points
// instead of duplicating them.
func chunkID(documentID, profileID string, index int) string {
	key := fmt.Sprintf("%s-%s-%d", documentID, profileID, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// embedRetry retries transient embedding failures within one pipeline run,
// before the consumer-level republish kicks in.
var embedRetry = fn.RetryOpts{MaxAttempts: 2, InitialWait: 500 * time.Millisecond, MaxWait: 2 * time.Second}

// NewPipeline composes load, chunk, embed, and store with tracing.
func NewPipeline(deps Deps) fn.Stage[Envelope, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	loaded := fn.Traced("ingest.load", NewLoad(deps.Meta))
	chunked := fn.Then(loaded, fn.Traced("ingest.chunk", ChunkSections))
	counted := fn.Then(chunked, fn.Tap(func(_ context.Context, d ChunkedDoc) {
		log.Info("ingest: chunked", "document_id", d.Document.ID, "chunks", len(d.Chunks))
	}))
	embedded := fn.Then(counted, fn.Traced("ingest.embed", fn.RetryStage(embedRetry, NewEmbed(deps.Encoder))))
	return fn.Then(embedded, fn.Traced("ingest.store", NewStore(deps.Meta, deps.Vectors)))
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Envelope Envelope `json:"envelope"`
	Error    string   `json:"error"`
	Retries  int      `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs envelopes through
// the pipeline. Failed envelopes are republished with an incremented retry
// header until MaxRetries, then land on the DLQ. The document is marked
// failed on every pipeline error.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := natsutil.Extract(context.Background(), msg)

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		result := pipeline(ctx, env)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"document_id", env.DocumentID,
				"retry", retries,
			)
			if env.DocumentID != "" {
				if serr := deps.Meta.SetDocumentStatus(ctx, env.DocumentID, domain.StatusFailed, pipeErr.Error()); serr != nil {
					log.Error("ingest: mark failed", "error", serr, "document_id", env.DocumentID)
				}
			}

			if retries >= MaxRetries {
				dlq := dlqMessage{Envelope: env, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(Subject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set(retryHeader, strconv.Itoa(retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			docID, _ := result.Unwrap()
			log.Info("ingest: success", "document_id", docID, "kind", env.Kind)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
