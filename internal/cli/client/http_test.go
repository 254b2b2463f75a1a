package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := NewAPIClientWithConfig("ply_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", server.URL)
	require.NoError(t, err)
	return api
}

func TestAPIClient_Get_ParsesEnvelope(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/v1/context", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ply_")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"chunks":42}}`))
	})

	resp, err := api.Get("/v1/context")
	require.NoError(t, err)

	var data struct {
		Chunks int `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 42, data.Chunks)
}

func TestAPIClient_Get_ErrorEnvelope(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"upload not found","code":"NOT_FOUND"}`))
	})

	_, err := api.Get("/v1/documents/nope/download")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "upload not found", apiErr.Message)
}

func TestAPIClient_Get_NonJSONError(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	})

	_, err := api.Get("/v1/context")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestAPIClient_Post_SendsJSONBody(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"question":"hello"}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"data":{"ok":true}}`))
	})

	_, err := api.Post("/v1/chat", map[string]string{"question": "hello"})
	require.NoError(t, err)
}

func TestAPIClient_PostMultipart_SendsFilePart(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/notes.txt"
	require.NoError(t, os.WriteFile(path, []byte("some document text"), 0644))

	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "notes.txt", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "some document text", string(content))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"upload_id":"u1","filename":"notes.txt","chunks":1,"characters":18}}`))
	})

	resp, err := api.PostMultipart("/v1/documents", path, "")
	require.NoError(t, err)

	var result uploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "u1", result.UploadID)
	assert.Equal(t, 1, result.Chunks)
}

func TestAPIClient_Stream_ConsumesEvents(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: token\ndata: {\"delta\":\"Hel\"}\n\n"))
		w.Write([]byte("event: token\ndata: {\"delta\":\"lo\"}\n\n"))
		w.Write([]byte("event: done\ndata: {\"session_id\":\"s1\",\"answer\":\"Hello\",\"sources\":[]}\n\n"))
	})

	var events []string
	var answer string
	err := api.Stream("/v1/chat", map[string]string{"question": "hi"}, func(ev StreamEvent) error {
		events = append(events, ev.Event)
		if ev.Event == "token" {
			var tok struct {
				Delta string `json:"delta"`
			}
			require.NoError(t, json.Unmarshal(ev.Data, &tok))
			answer += tok.Delta
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"token", "token", "done"}, events)
	assert.Equal(t, "Hello", answer)
}

func TestAPIClient_Stream_ValidationErrorBeforeStream(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"question is required"}`))
	})

	err := api.Stream("/v1/chat", map[string]string{"question": ""}, func(ev StreamEvent) error {
		t.Fatal("no events expected")
		return nil
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestAPIClient_Stream_HandlerErrorStopsStream(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: error\ndata: {\"error\":\"generation failed\",\"code\":\"GENERATION_ERROR\"}\n\n"))
	})

	err := api.Stream("/v1/chat", map[string]string{"question": "hi"}, func(ev StreamEvent) error {
		assert.Equal(t, "error", ev.Event)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
}
