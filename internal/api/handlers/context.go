package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/parley-labs/parley/internal/api"
	"github.com/parley-labs/parley/internal/api/middleware"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/session"
)

type ContextService interface {
	ClearContext(ctx context.Context, tenant *domain.Tenant) (int, error)
	ContextSize(ctx context.Context, tenant *domain.Tenant) (int, error)
}

// SessionDirectory is the subset of the session manager the handler
// needs to read transcripts.
type SessionDirectory interface {
	Get(tenant domain.TenantKey, id string) (*session.Session, bool)
}

type ContextHandler struct {
	svc      ContextService
	sessions SessionDirectory
}

func NewContextHandler(svc ContextService, sessions SessionDirectory) *ContextHandler {
	return &ContextHandler{svc: svc, sessions: sessions}
}

type ContextSizeResponse struct {
	Chunks int `json:"chunks"`
}

type ClearContextResponse struct {
	Status        string `json:"status"`
	SessionsReset int    `json:"sessions_reset"`
}

type TranscriptMessageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type TranscriptResponse struct {
	SessionID string                       `json:"session_id"`
	Messages  []*TranscriptMessageResponse `json:"messages"`
}

// Size reports how many chunks the tenant currently has stored.
func (h *ContextHandler) Size(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chunks, err := h.svc.ContextSize(r.Context(), tenant)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ContextSizeResponse{Chunks: chunks})
}

// Clear wholesale-drops the tenant's corpus and resets its live sessions.
func (h *ContextHandler) Clear(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reset, err := h.svc.ClearContext(r.Context(), tenant)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ClearContextResponse{
		Status:        "cleared",
		SessionsReset: reset,
	})
}

// Transcript returns the full display history of one session. An unknown
// session id yields an empty transcript rather than an error; the session
// simply has not said anything yet.
func (h *ContextHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	resp := TranscriptResponse{
		SessionID: sessionID,
		Messages:  []*TranscriptMessageResponse{},
	}

	if sess, ok := h.sessions.Get(tenant.Key, sessionID); ok {
		for _, m := range sess.Transcript() {
			resp.Messages = append(resp.Messages, &TranscriptMessageResponse{
				Role:      string(m.Role),
				Content:   m.Content,
				CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
		}
	}

	api.Success(w, http.StatusOK, resp)
}
