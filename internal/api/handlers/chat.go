package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/parley-labs/parley/internal/api"
	"github.com/parley-labs/parley/internal/api/middleware"
	"github.com/parley-labs/parley/internal/service"
)

type ConversationService interface {
	Ask(ctx context.Context, input service.AskInput, sink service.TokenSink) (*service.AskOutput, error)
}

type ChatHandler struct {
	svc ConversationService
}

func NewChatHandler(svc ConversationService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	K         int    `json:"k,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
}

type ChatSource struct {
	Text      string  `json:"text"`
	SourceRef string  `json:"source_ref,omitempty"`
	Score     float64 `json:"score"`
}

type ChatResponse struct {
	SessionID string       `json:"session_id"`
	Answer    string       `json:"answer"`
	Sources   []ChatSource `json:"sources"`
}

type tokenEvent struct {
	Delta string `json:"delta"`
}

type errorEvent struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Ask answers one question over the tenant's corpus. By default the
// answer is delivered as server-sent events (token deltas followed by a
// done event); with "stream": false the full answer comes back in the
// regular JSON envelope.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	input := service.AskInput{
		Tenant:    tenant.Key,
		SessionID: req.SessionID,
		Question:  req.Question,
		K:         req.K,
	}

	if req.Stream != nil && !*req.Stream {
		out, err := h.svc.Ask(r.Context(), input, nil)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, chatResponseOf(out))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := func(delta string) error {
		return writeSSE(w, flusher, "token", tokenEvent{Delta: delta})
	}

	out, err := h.svc.Ask(r.Context(), input, sink)
	if err != nil {
		// headers are already sent; the failure has to travel in-band
		_ = writeSSE(w, flusher, "error", errorEvent{Error: err.Error(), Code: api.ErrorCode(err)})
		return
	}

	_ = writeSSE(w, flusher, "done", chatResponseOf(out))
}

func chatResponseOf(out *service.AskOutput) ChatResponse {
	sources := make([]ChatSource, len(out.Matches))
	for i, m := range out.Matches {
		sources[i] = ChatSource{
			Text:      m.Text,
			SourceRef: m.SourceRef,
			Score:     m.Score,
		}
	}
	return ChatResponse{
		SessionID: out.SessionID,
		Answer:    out.Answer,
		Sources:   sources,
	}
}

// writeSSE emits one server-sent event with a JSON payload. The payload
// is a single marshalled line, so no data framing can be broken by
// newlines in model output.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
