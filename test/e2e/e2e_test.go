//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatPayload struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	K         int    `json:"k,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
}

type chatData struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Sources   []struct {
		Text      string  `json:"text"`
		SourceRef string  `json:"source_ref"`
		Score     float64 `json:"score"`
	} `json:"sources"`
}

type uploadData struct {
	UploadID   string `json:"upload_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
	Archived   bool   `json:"archived"`
}

type listData struct {
	Uploads []struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Status   string `json:"status"`
		Archived bool   `json:"archived"`
	} `json:"uploads"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

type contextSizeData struct {
	Chunks int `json:"chunks"`
}

func noStream() *bool {
	v := false
	return &v
}

func TestE2E_HealthAndAuth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health is public", func(t *testing.T) {
		resp := env.Get("/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var health struct {
			Status  string `json:"status"`
			Backend string `json:"backend"`
		}
		resp.DecodeData(t, &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "pgvector", health.Backend)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		resp := env.Get("/v1/context", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", resp.Code)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		bogus := "ply_" + strings.Repeat("0", 64)
		resp := env.Get("/v1/context", bogus)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token passes", func(t *testing.T) {
		resp := env.Get("/v1/context", env.Token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	content := "Parley is a retrieval-augmented chat backend. " +
		"Documents are chunked, embedded and stored per tenant. " +
		"Questions retrieve the closest chunks before generation."

	var uploadID string

	t.Run("multipart upload", func(t *testing.T) {
		resp := env.UploadFile(env.Token, "readme.txt", content)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.RawBody))

		var upload uploadData
		resp.DecodeData(t, &upload)
		assert.NotEmpty(t, upload.UploadID)
		assert.Equal(t, "readme.txt", upload.Filename)
		assert.Greater(t, upload.Chunks, 0)
		assert.Equal(t, len(content), upload.Characters)
		assert.True(t, upload.Archived)
		uploadID = upload.UploadID
	})

	t.Run("inline text upload", func(t *testing.T) {
		resp := env.Post("/v1/documents", env.Token, map[string]string{
			"text": "A short inline note about deployment.",
			"name": "note",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.RawBody))

		var upload uploadData
		resp.DecodeData(t, &upload)
		assert.Equal(t, "note", upload.Filename)
	})

	t.Run("inline text requires a name", func(t *testing.T) {
		resp := env.Post("/v1/documents", env.Token, map[string]string{"text": "orphan"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	})

	t.Run("context size reflects ingestion", func(t *testing.T) {
		resp := env.Get("/v1/context", env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var size contextSizeData
		resp.DecodeData(t, &size)
		assert.Greater(t, size.Chunks, 0)
	})

	t.Run("list uploads", func(t *testing.T) {
		resp := env.Get("/v1/documents", env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list listData
		resp.DecodeData(t, &list)
		require.Len(t, list.Uploads, 2)
		// newest first
		assert.Equal(t, "note", list.Uploads[0].Filename)
		assert.Equal(t, "readme.txt", list.Uploads[1].Filename)
		assert.Equal(t, "completed", list.Uploads[0].Status)
		assert.False(t, list.HasMore)
	})

	t.Run("cursor pagination", func(t *testing.T) {
		resp := env.Get("/v1/documents?limit=1", env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var first listData
		resp.DecodeData(t, &first)
		require.Len(t, first.Uploads, 1)
		require.True(t, first.HasMore)
		require.NotEmpty(t, first.Cursor)

		resp = env.Get("/v1/documents?limit=1&cursor="+first.Cursor, env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var second listData
		resp.DecodeData(t, &second)
		require.Len(t, second.Uploads, 1)
		assert.NotEqual(t, first.Uploads[0].ID, second.Uploads[0].ID)
	})

	t.Run("download url serves the original", func(t *testing.T) {
		resp := env.Get(fmt.Sprintf("/v1/documents/%s/download", uploadID), env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.RawBody))

		var dl struct {
			URL string `json:"url"`
		}
		resp.DecodeData(t, &dl)
		require.NotEmpty(t, dl.URL)

		fetched, err := http.Get(dl.URL)
		require.NoError(t, err)
		defer fetched.Body.Close()
		assert.Equal(t, http.StatusOK, fetched.StatusCode)
	})

	t.Run("download of unknown upload is 404", func(t *testing.T) {
		resp := env.Get("/v1/documents/00000000-0000-0000-0000-000000000000/download", env.Token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})
}

func TestE2E_Chat(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp := env.UploadFile(env.Token, "kb.txt", "Parley answers questions over uploaded documents.")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.RawBody))

	var sessionID string

	t.Run("non-streaming answer with sources", func(t *testing.T) {
		resp := env.Post("/v1/chat", env.Token, chatPayload{
			Question: "what is parley?",
			Stream:   noStream(),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.RawBody))

		var chat chatData
		resp.DecodeData(t, &chat)
		assert.Equal(t, testAnswer, chat.Answer)
		assert.NotEmpty(t, chat.SessionID)
		require.NotEmpty(t, chat.Sources)
		assert.Equal(t, "kb.txt", chat.Sources[0].SourceRef)
		sessionID = chat.SessionID
	})

	t.Run("session id is stable across turns", func(t *testing.T) {
		resp := env.Post("/v1/chat", env.Token, chatPayload{
			Question:  "tell me more",
			SessionID: sessionID,
			Stream:    noStream(),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var chat chatData
		resp.DecodeData(t, &chat)
		assert.Equal(t, sessionID, chat.SessionID)
	})

	t.Run("streaming emits tokens then done", func(t *testing.T) {
		events := env.PostSSE("/v1/chat", env.Token, chatPayload{Question: "stream it"})
		require.NotEmpty(t, events)

		var assembled strings.Builder
		var done chatData
		sawDone := false
		for _, ev := range events {
			switch ev.Event {
			case "token":
				var tok struct {
					Delta string `json:"delta"`
				}
				require.NoError(t, json.Unmarshal(ev.Data, &tok))
				assembled.WriteString(tok.Delta)
			case "done":
				sawDone = true
				require.NoError(t, json.Unmarshal(ev.Data, &done))
			case "error":
				t.Fatalf("unexpected error event: %s", string(ev.Data))
			}
		}
		require.True(t, sawDone)
		assert.Equal(t, testAnswer, assembled.String())
		assert.Equal(t, testAnswer, done.Answer)
		assert.NotEmpty(t, done.SessionID)
	})

	t.Run("empty question fails before the stream opens", func(t *testing.T) {
		resp := env.Post("/v1/chat", env.Token, chatPayload{Question: "   "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	})

	t.Run("transcript replays the session", func(t *testing.T) {
		resp := env.Get("/v1/transcript?session_id="+sessionID, env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var transcript struct {
			SessionID string `json:"session_id"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		resp.DecodeData(t, &transcript)
		assert.Equal(t, sessionID, transcript.SessionID)
		// welcome plus two full turns
		require.Len(t, transcript.Messages, 5)
		assert.Equal(t, "assistant", transcript.Messages[0].Role)
		assert.Equal(t, "user", transcript.Messages[1].Role)
		assert.Equal(t, "what is parley?", transcript.Messages[1].Content)
		assert.Equal(t, testAnswer, transcript.Messages[2].Content)
	})

	t.Run("transcript requires a session id", func(t *testing.T) {
		resp := env.Get("/v1/transcript", env.Token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestE2E_ClearContext(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp := env.UploadFile(env.Token, "doomed.txt", "This context will be wiped.")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	chat := env.Post("/v1/chat", env.Token, chatPayload{Question: "hello?", Stream: noStream()})
	require.Equal(t, http.StatusOK, chat.StatusCode)

	t.Run("clear wipes chunks and resets sessions", func(t *testing.T) {
		resp := env.Delete("/v1/context", env.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.RawBody))

		var cleared struct {
			Status        string `json:"status"`
			SessionsReset int    `json:"sessions_reset"`
		}
		resp.DecodeData(t, &cleared)
		assert.Equal(t, "cleared", cleared.Status)
		assert.Equal(t, 1, cleared.SessionsReset)

		size := env.Get("/v1/context", env.Token)
		require.Equal(t, http.StatusOK, size.StatusCode)
		var sizeData contextSizeData
		size.DecodeData(t, &sizeData)
		assert.Equal(t, 0, sizeData.Chunks)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		resp := env.Delete("/v1/context", env.Token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestE2E_TenantIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, globexToken := env.CreateTenant("globex", "Globex Corp")

	resp := env.UploadFile(env.Token, "acme.txt", "Acme's private playbook.")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("second tenant sees no context", func(t *testing.T) {
		size := env.Get("/v1/context", globexToken)
		require.Equal(t, http.StatusOK, size.StatusCode)

		var sizeData contextSizeData
		size.DecodeData(t, &sizeData)
		assert.Equal(t, 0, sizeData.Chunks)
	})

	t.Run("second tenant sees no uploads", func(t *testing.T) {
		list := env.Get("/v1/documents", globexToken)
		require.Equal(t, http.StatusOK, list.StatusCode)

		var listData listData
		list.DecodeData(t, &listData)
		assert.Empty(t, listData.Uploads)
	})

	t.Run("clearing one tenant leaves the other intact", func(t *testing.T) {
		resp := env.Delete("/v1/context", globexToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		size := env.Get("/v1/context", env.Token)
		require.Equal(t, http.StatusOK, size.StatusCode)
		var sizeData contextSizeData
		size.DecodeData(t, &sizeData)
		assert.Greater(t, sizeData.Chunks, 0)
	})
}
