package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parley-labs/parley/internal/api"
	"github.com/parley-labs/parley/internal/api/middleware"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/service"
)

const maxMultipartMemory = 8 << 20

type IngestionService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	ListUploads(ctx context.Context, input service.ListUploadsInput) (*service.ListUploadsOutput, error)
	DownloadURL(ctx context.Context, tenant *domain.Tenant, uploadID string) (string, error)
}

type DocumentsHandler struct {
	svc IngestionService
}

func NewDocumentsHandler(svc IngestionService) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

type UploadTextRequest struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

type UploadResponse struct {
	UploadID   string `json:"upload_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
	Archived   bool   `json:"archived"`
}

type UploadItemResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Archived    bool   `json:"archived"`
	CreatedAt   string `json:"created_at"`
}

type UploadListResponse struct {
	Uploads []*UploadItemResponse `json:"uploads"`
	Cursor  string                `json:"cursor,omitempty"`
	HasMore bool                  `json:"has_more"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

// Upload ingests one document into the tenant's corpus. Accepts either a
// multipart form with a "file" part or a JSON body with inline text.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input := service.IngestInput{Tenant: tenant}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			api.Error(w, http.StatusBadRequest, "missing file part")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to read file")
			return
		}

		input.Filename = header.Filename
		input.ContentType = header.Header.Get("Content-Type")
		input.Data = data
	} else {
		var req UploadTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			api.Error(w, http.StatusBadRequest, "name is required")
			return
		}
		input.Filename = req.Name
		input.ContentType = "text/plain; charset=utf-8"
		input.Data = []byte(req.Text)
	}

	result, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UploadResponse{
		UploadID:   result.Upload.ID,
		Filename:   result.Upload.Filename,
		Chunks:     result.Chunks,
		Characters: result.Characters,
		Archived:   result.Upload.StorageKey != "",
	})
}

// List returns the tenant's ingestion log, newest first.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListUploads(r.Context(), service.ListUploadsInput{
		Tenant: tenant,
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*UploadItemResponse, len(out.Uploads))
	for i, u := range out.Uploads {
		items[i] = &UploadItemResponse{
			ID:          u.ID,
			Filename:    u.Filename,
			ContentType: u.ContentType,
			SizeBytes:   u.SizeBytes,
			ChunkCount:  u.ChunkCount,
			Status:      string(u.Status),
			Error:       u.Error,
			Archived:    u.StorageKey != "",
			CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	api.Success(w, http.StatusOK, UploadListResponse{
		Uploads: items,
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

// Download returns a presigned URL for the archived original document.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	uploadID := chi.URLParam(r, "id")
	url, err := h.svc.DownloadURL(r.Context(), tenant, uploadID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{URL: url})
}
