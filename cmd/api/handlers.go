package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go"

	"github.com/knowledgebench/bench/engine/domain"
	"github.com/knowledgebench/bench/engine/ingest"
	"github.com/knowledgebench/bench/engine/llm"
	"github.com/knowledgebench/bench/engine/retrieval"
	"github.com/knowledgebench/bench/engine/store"
	"github.com/knowledgebench/bench/pkg/metrics"
	"github.com/knowledgebench/bench/pkg/natsutil"
)

type server struct {
	meta      *store.Store
	retriever *retrieval.Retriever
	chat      *llm.Client
	nc        *nats.Conn
	logger    *slog.Logger
	metrics   *metrics.Registry
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Chat ---

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Stream   bool   `json:"stream,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
	Model     string            `json:"model"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	profile, err := s.meta.ActiveProfile(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveProfile) {
			writeError(w, http.StatusConflict, "no active chunk profile")
			return
		}
		s.internalError(w, "active profile", err)
		return
	}

	results, err := s.retriever.Retrieve(r.Context(), req.Question, profile.ID, retrieval.Options{TopK: req.TopK})
	if err != nil {
		s.internalError(w, "retrieve", err)
		return
	}
	s.metrics.Counter("bench_chat_requests_total", "Total chat requests").Inc()

	citations := retrieval.FormatCitations(results)
	messages := llm.BuildMessages(req.Question, retrieval.BuildContext(results, 2000))

	if req.Stream {
		s.streamChat(w, r, messages, citations)
		return
	}

	answer, err := s.chat.Chat(r.Context(), messages, llm.GenParams{})
	if err != nil {
		s.internalError(w, "chat completion", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:    answer,
		Citations: citations,
		Model:     s.chat.Model(),
	})
}

// streamChat answers over SSE: citation events first, then token deltas,
// then a done event.
func (s *server) streamChat(w http.ResponseWriter, r *http.Request, messages []openai.ChatCompletionMessageParamUnion, citations []domain.Citation) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent := func(event string, v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	sendEvent("citations", citations)

	err := s.chat.ChatStream(r.Context(), messages, llm.GenParams{}, func(delta string) error {
		sendEvent("token", map[string]string{"delta": delta})
		return nil
	})
	if err != nil {
		s.logger.Error("chat stream", "err", err)
		sendEvent("error", map[string]string{"error": "generation failed"})
		return
	}
	sendEvent("done", map[string]string{"model": s.chat.Model()})
}

// --- Profiles ---

// CreateProfileRequest is the JSON body for POST /api/profiles.
type CreateProfileRequest struct {
	Name         string `json:"name"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

func (s *server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.meta.ListProfiles(r.Context())
	if err != nil {
		s.internalError(w, "list profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.meta.CreateProfile(r.Context(), domain.ChunkProfile{
		Name:         req.Name,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.internalError(w, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.meta.ActivateProfile(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.internalError(w, "activate profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": id})
}

// --- Documents ---

// CreateDocumentRequest registers a document with its parsed sections and
// queues it for ingestion under the active profile.
type CreateDocumentRequest struct {
	Filename string           `json:"filename"`
	Sections []domain.Section `json:"sections"`
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.meta.ListDocuments(r.Context())
	if err != nil {
		s.internalError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.meta.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.internalError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if len(req.Sections) == 0 {
		writeError(w, http.StatusBadRequest, "at least one section is required")
		return
	}

	profile, err := s.meta.ActiveProfile(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveProfile) {
			writeError(w, http.StatusConflict, "no active chunk profile")
			return
		}
		s.internalError(w, "active profile", err)
		return
	}

	doc, err := s.meta.CreateDocument(r.Context(), req.Filename)
	if err != nil {
		s.internalError(w, "create document", err)
		return
	}
	if err := s.meta.ReplaceSections(r.Context(), doc.ID, req.Sections); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.internalError(w, "store sections", err)
		return
	}

	env := ingest.Envelope{Kind: ingest.KindIngest, DocumentID: doc.ID, ChunkProfileID: profile.ID}
	if err := natsutil.Publish(r.Context(), s.nc, ingest.Subject, env); err != nil {
		s.internalError(w, "queue ingest", err)
		return
	}
	s.metrics.Counter(metrics.WithLabels("bench_ingest_queued_total", "kind", "ingest"), "Envelopes queued").Inc()

	writeJSON(w, http.StatusAccepted, doc)
}

func (s *server) handleReindex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.meta.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.internalError(w, "get document", err)
		return
	}

	profile, err := s.meta.ActiveProfile(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveProfile) {
			writeError(w, http.StatusConflict, "no active chunk profile")
			return
		}
		s.internalError(w, "active profile", err)
		return
	}

	env := ingest.Envelope{Kind: ingest.KindReindex, DocumentID: doc.ID, ChunkProfileID: profile.ID}
	if err := natsutil.Publish(r.Context(), s.nc, ingest.Subject, env); err != nil {
		s.internalError(w, "queue reindex", err)
		return
	}
	s.metrics.Counter(metrics.WithLabels("bench_ingest_queued_total", "kind", "reindex"), "Envelopes queued").Inc()

	writeJSON(w, http.StatusAccepted, doc)
}

func (s *server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
