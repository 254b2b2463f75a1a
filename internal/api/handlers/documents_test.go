package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parley-labs/parley/internal/api/middleware"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/service"
)

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestionService) ListUploads(ctx context.Context, input service.ListUploadsInput) (*service.ListUploadsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListUploadsOutput), args.Error(1)
}

func (m *MockIngestionService) DownloadURL(ctx context.Context, tenant *domain.Tenant, uploadID string) (string, error) {
	args := m.Called(ctx, tenant, uploadID)
	return args.String(0), args.Error(1)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestDocumentsHandler_Upload_Multipart(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	svc.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.Filename == "notes.txt" && string(input.Data) == "hello world"
	})).Return(&service.IngestResult{
		Upload: &domain.Upload{
			ID:       "u-1",
			Filename: "notes.txt",
		},
		Chunks:     1,
		Characters: 11,
	}, nil)

	body, contentType := multipartBody(t, "notes.txt", "hello world")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	ctx := context.WithValue(req.Context(), middleware.TenantContextKey, chatTenant())
	w := httptest.NewRecorder()

	handler.Upload(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data UploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u-1", resp.Data.UploadID)
	assert.Equal(t, 1, resp.Data.Chunks)
	assert.Equal(t, 11, resp.Data.Characters)
	assert.False(t, resp.Data.Archived)

	svc.AssertExpectations(t)
}

func TestDocumentsHandler_Upload_InlineText(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	svc.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.Filename == "snippet" &&
			input.ContentType == "text/plain; charset=utf-8" &&
			string(input.Data) == "inline content"
	})).Return(&service.IngestResult{
		Upload: &domain.Upload{
			ID:         "u-2",
			Filename:   "snippet",
			StorageKey: "acme/u-2/snippet",
		},
		Chunks:     1,
		Characters: 14,
	}, nil)

	req := authedRequest(http.MethodPost, "/v1/documents",
		`{"text":"inline content","name":"snippet"}`, chatTenant())
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data UploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Archived)

	svc.AssertExpectations(t)
}

func TestDocumentsHandler_Upload_MissingName(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	req := authedRequest(http.MethodPost, "/v1/documents", `{"text":"content"}`, chatTenant())
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Ingest")
}

func TestDocumentsHandler_Upload_ServiceError(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFileType)

	req := authedRequest(http.MethodPost, "/v1/documents",
		`{"text":"zzz","name":"weird.bin"}`, chatTenant())
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["code"])
}

func TestDocumentsHandler_List(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.On("ListUploads", mock.Anything, mock.MatchedBy(func(input service.ListUploadsInput) bool {
		return input.Limit == 10 && input.Cursor == "abc"
	})).Return(&service.ListUploadsOutput{
		Uploads: []*domain.Upload{
			{
				ID:         "u-1",
				Filename:   "notes.txt",
				SizeBytes:  11,
				ChunkCount: 1,
				Status:     domain.UploadStatusCompleted,
				CreatedAt:  created,
			},
		},
		Cursor:  "next",
		HasMore: true,
	}, nil)

	req := authedRequest(http.MethodGet, "/v1/documents?limit=10&cursor=abc", "", chatTenant())
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data UploadListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Uploads, 1)
	assert.Equal(t, "notes.txt", resp.Data.Uploads[0].Filename)
	assert.Equal(t, "completed", resp.Data.Uploads[0].Status)
	assert.Equal(t, "next", resp.Data.Cursor)
	assert.True(t, resp.Data.HasMore)

	svc.AssertExpectations(t)
}

func TestDocumentsHandler_List_InvalidLimit(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	req := authedRequest(http.MethodGet, "/v1/documents?limit=zero", "", chatTenant())
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListUploads")
}

func TestDocumentsHandler_Download(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	svc.On("DownloadURL", mock.Anything, mock.Anything, "u-1").
		Return("https://archive.example/u-1?sig=abc", nil)

	router := chi.NewRouter()
	router.Get("/v1/documents/{id}/download", handler.Download)

	req := authedRequest(http.MethodGet, "/v1/documents/u-1/download", "", chatTenant())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data DownloadURLResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://archive.example/u-1?sig=abc", resp.Data.URL)

	svc.AssertExpectations(t)
}

func TestDocumentsHandler_Download_NotFound(t *testing.T) {
	svc := new(MockIngestionService)
	handler := NewDocumentsHandler(svc)

	svc.On("DownloadURL", mock.Anything, mock.Anything, "missing").
		Return("", domain.ErrUploadNotFound)

	router := chi.NewRouter()
	router.Get("/v1/documents/{id}/download", handler.Download)

	req := authedRequest(http.MethodGet, "/v1/documents/missing/download", "", chatTenant())
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
