//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-labs/parley/internal/api/handlers"
	"github.com/parley-labs/parley/internal/chunker"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/openai"
	"github.com/parley-labs/parley/internal/prompt"
	"github.com/parley-labs/parley/internal/repository"
	"github.com/parley-labs/parley/internal/server"
	"github.com/parley-labs/parley/internal/service"
	"github.com/parley-labs/parley/internal/session"
	"github.com/parley-labs/parley/internal/storage"
	"github.com/parley-labs/parley/internal/testutil"
	vspostgres "github.com/parley-labs/parley/internal/vectorstore/postgres"
)

const (
	testEmbeddingDims = 8
	testAnswer        = "Based on the provided context, parley is a retrieval-augmented chat backend."
)

// hashEmbedder produces deterministic embeddings from a sha256 of the
// text. Identical text always lands on the same vector, which is all
// retrieval needs to behave consistently in these tests.
type hashEmbedder struct{}

func (hashEmbedder) embed(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, testEmbeddingDims)
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
		vec[i] = float32(bits%1000)/1000.0 + 0.001
	}
	return vec
}

func (h hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h hashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

// scriptedChatAPI streams a fixed answer word by word, standing in for
// the completion backend so the suite runs without external credentials.
type scriptedChatAPI struct {
	answer string
}

func (a scriptedChatAPI) CreateChatStream(ctx context.Context, messages []openai.Message) (openai.TokenStream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages")
	}
	return &wordStream{words: strings.SplitAfter(a.answer, " ")}, nil
}

type wordStream struct {
	words []string
	pos   int
}

func (s *wordStream) Recv() (string, bool, error) {
	if s.pos >= len(s.words) {
		return "", true, nil
	}
	delta := s.words[s.pos]
	s.pos++
	return delta, false, nil
}

func (s *wordStream) Close() error { return nil }

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	AuthSvc      *service.AuthService
	TenantID     string
	Token        string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS containers, runs migrations,
// wires the full service stack behind an in-process HTTP server and
// bootstraps a tenant with one API key.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "parley-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	authSvc := newAuthService(pool)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	serverURL, serverCloser := startServer(t, pool, s3Client, authSvc, port)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		AuthSvc:      authSvc,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	env.TenantID, env.Token = env.CreateTenant("acme", "Acme Corp")
	return env
}

// CreateTenant provisions a tenant with a fresh API key and returns
// both the tenant ID and the plaintext token.
func (e *E2ETestEnv) CreateTenant(key, name string) (string, string) {
	result, err := e.AuthSvc.CreateTenantWithKey(e.Ctx, domain.TenantKey(key), name, "e2e")
	if err != nil {
		e.T.Fatalf("failed to create tenant %s: %v", key, err)
	}
	return result.Tenant.ID, result.Token
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	tenantRepo := repository.NewTenantRepository(pool)
	keyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	return service.NewAuthServiceWithTx(tenantRepo, keyRepo, txRunner, &service.DefaultUUIDGenerator{})
}

// startServer wires the full stack the way serve does, with the OpenAI
// clients replaced by deterministic fakes.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, authSvc *service.AuthService, port int) (string, func()) {
	store := vspostgres.New(pool, nil, testEmbeddingDims)
	sessions := session.NewManager(3, "Hi! Ask me anything about your documents.", time.Hour)

	splitter, err := chunker.New(chunker.Config{ChunkSize: 200, Overlap: 40})
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	embedder := hashEmbedder{}
	chatClient := openai.NewChatClientWithAPI(scriptedChatAPI{answer: testAnswer})

	uploadRepo := repository.NewUploadRepository(pool)
	ingestionSvc := service.NewIngestionServiceWithArchive(splitter, embedder, store, uploadRepo, sessions, s3Client)
	conversationSvc := service.NewConversationServiceWithConfig(sessions, embedder, store, chatClient, service.ConversationServiceConfig{
		TopK:     4,
		Template: prompt.Default(),
	})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    authSvc,
		ChatHandler:      handlers.NewChatHandler(conversationSvc),
		DocumentsHandler: handlers.NewDocumentsHandler(ingestionSvc),
		ContextHandler:   handlers.NewContextHandler(ingestionSvc, sessions),
		VectorBackend:    "pgvector",
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForServer(serverURL + "/health"); err != nil {
		t.Fatalf("server did not become ready: %v", err)
	}

	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return serverURL, closer
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(url string) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", url)
}

// APIResponse is the parsed envelope plus transport details.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage
	Error      string
	Code       string
	RawBody    []byte
}

// DecodeData unmarshals the data payload into out.
func (r *APIResponse) DecodeData(t *testing.T, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Data, out); err != nil {
		t.Fatalf("failed to decode data %s: %v", string(r.RawBody), err)
	}
}

func (e *E2ETestEnv) do(method, path, token string, body io.Reader, contentType string) *APIResponse {
	e.T.Helper()

	req, err := http.NewRequest(method, e.ServerURL+path, body)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response body: %v", err)
	}

	out := &APIResponse{StatusCode: resp.StatusCode, RawBody: raw}
	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
		Code  string          `json:"code"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		out.Data = envelope.Data
		out.Error = envelope.Error
		out.Code = envelope.Code
	}
	return out
}

// Get performs an authenticated GET.
func (e *E2ETestEnv) Get(path, token string) *APIResponse {
	return e.do(http.MethodGet, path, token, nil, "")
}

// Post performs an authenticated JSON POST.
func (e *E2ETestEnv) Post(path, token string, payload interface{}) *APIResponse {
	e.T.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		e.T.Fatalf("failed to marshal payload: %v", err)
	}
	return e.do(http.MethodPost, path, token, bytes.NewReader(body), "application/json")
}

// Delete performs an authenticated DELETE.
func (e *E2ETestEnv) Delete(path, token string) *APIResponse {
	return e.do(http.MethodDelete, path, token, nil, "")
}

// UploadFile posts a document as multipart form data.
func (e *E2ETestEnv) UploadFile(token, filename, content string) *APIResponse {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		e.T.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		e.T.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		e.T.Fatalf("failed to close multipart writer: %v", err)
	}

	return e.do(http.MethodPost, "/v1/documents", token, &buf, writer.FormDataContentType())
}

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Event string
	Data  json.RawMessage
}

// PostSSE performs a streaming chat request and collects every event.
func (e *E2ETestEnv) PostSSE(path, token string, payload interface{}) []SSEEvent {
	e.T.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		e.T.Fatalf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, bytes.NewReader(body))
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("streaming request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		raw, _ := io.ReadAll(resp.Body)
		e.T.Fatalf("expected event stream, got %s: %s", ct, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read stream: %v", err)
	}

	var events []SSEEvent
	var current SSEEvent
	for _, line := range strings.Split(string(raw), "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "":
			if current.Event != "" {
				events = append(events, current)
				current = SSEEvent{}
			}
		}
	}
	return events
}
