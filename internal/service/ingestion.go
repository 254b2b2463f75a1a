package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-labs/parley/internal/chunker"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/extract"
	"github.com/parley-labs/parley/internal/pagination"
	"github.com/parley-labs/parley/internal/session"
	"github.com/parley-labs/parley/internal/telemetry"
	"github.com/parley-labs/parley/internal/vectorstore"
)

// TextEmbedder defines the interface for batch chunk embedding
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ContextStore defines the vector store operations ingestion needs
type ContextStore interface {
	Upsert(ctx context.Context, tenant domain.TenantKey, docs []vectorstore.Document) error
	Clear(ctx context.Context, tenant domain.TenantKey) error
	Count(ctx context.Context, tenant domain.TenantKey) (int, error)
}

// UploadRepositoryInterface defines the repository interface for the
// per-tenant ingestion log
type UploadRepositoryInterface interface {
	Create(ctx context.Context, u *domain.Upload) error
	GetByID(ctx context.Context, id string) (*domain.Upload, error)
	ListByTenant(ctx context.Context, tenantID string, limit int, beforeCreatedAt *time.Time, beforeID string) ([]*domain.Upload, error)
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// DocumentArchiver defines the interface for archiving raw uploads and
// handing out download links to the archived originals
type DocumentArchiver interface {
	PutObject(ctx context.Context, key string, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// IngestionService turns raw documents into searchable tenant context:
// extract, chunk, embed, upsert, and record the upload.
type IngestionService struct {
	splitter *chunker.Splitter
	embedder TextEmbedder
	store    ContextStore
	uploads  UploadRepositoryInterface
	sessions *session.Manager
	archive  DocumentArchiver
	uuidGen  UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	splitter *chunker.Splitter,
	embedder TextEmbedder,
	store ContextStore,
	uploads UploadRepositoryInterface,
	sessions *session.Manager,
) *IngestionService {
	return &IngestionService{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		uploads:  uploads,
		sessions: sessions,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewIngestionServiceWithArchive creates an IngestionService that also
// archives raw documents to object storage.
func NewIngestionServiceWithArchive(
	splitter *chunker.Splitter,
	embedder TextEmbedder,
	store ContextStore,
	uploads UploadRepositoryInterface,
	sessions *session.Manager,
	archive DocumentArchiver,
) *IngestionService {
	svc := NewIngestionService(splitter, embedder, store, uploads, sessions)
	svc.archive = archive
	return svc
}

// IngestInput represents one document submitted for ingestion
type IngestInput struct {
	Tenant      *domain.Tenant
	Filename    string
	ContentType string
	Data        []byte
}

// IngestResult represents a completed ingestion
type IngestResult struct {
	Upload     *domain.Upload
	Chunks     int
	Characters int
}

// Ingest extracts text from the document, splits it into chunks, embeds
// them and stores them in the tenant's corpus. Every attempt leaves a
// row in the ingestion log, failed ones included.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		Tenant:    tenantKeyOf(input.Tenant),
		Operation: "ingest",
	})
	defer span.End()

	started := time.Now()

	if input.Tenant == nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant is required")
	}
	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document is empty")
	}

	upload := domain.NewUpload(s.uuidGen.NewString(), input.Tenant.ID, input.Filename, input.ContentType, int64(len(input.Data)), time.Now().UTC())

	sections, err := extract.Document(input.Filename, input.Data)
	if err != nil {
		span.SetError(err)
		return nil, s.failUpload(ctx, upload, err)
	}

	var chunks []domain.Chunk
	characters := 0
	for _, section := range sections {
		characters += len([]rune(section.Text))
		chunks = append(chunks, s.splitter.Split(section.Text, section.Ref)...)
	}
	for i := range chunks {
		chunks[i].Seq = i
	}
	upload.ChunkCount = len(chunks)

	if len(chunks) > 0 {
		if err := s.embedAndStore(ctx, input.Tenant.Key, chunks); err != nil {
			span.SetError(err)
			return nil, s.failUpload(ctx, upload, err)
		}
	}

	if s.archive != nil {
		key := buildArchiveKey(input.Tenant.Key, upload.ID, input.Filename)
		if err := s.archive.PutObject(ctx, key, input.ContentType, input.Data); err != nil {
			// chunks are already searchable; losing the archive copy is
			// not worth failing the upload over
			log.Warn().Err(err).
				Str("tenant", string(input.Tenant.Key)).
				Str("upload_id", upload.ID).
				Msg("failed to archive document")
		} else {
			upload.StorageKey = key
		}
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	log.Info().
		Str("tenant", string(input.Tenant.Key)).
		Str("upload_id", upload.ID).
		Str("filename", upload.Filename).
		Int("chunks", len(chunks)).
		Int("characters", characters).
		Dur("duration", time.Since(started)).
		Msg("document ingested")

	return &IngestResult{
		Upload:     upload,
		Chunks:     len(chunks),
		Characters: characters,
	}, nil
}

func (s *IngestionService) embedAndStore(ctx context.Context, tenant domain.TenantKey, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to embed chunks", err)
	}
	if len(embeddings) != len(chunks) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to embed chunks",
			fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(chunks)))
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			ID:        s.uuidGen.NewString(),
			Text:      c.Text,
			SourceRef: c.SourceRef,
			Seq:       c.Seq,
			Embedding: embeddings[i],
		}
	}
	return s.store.Upsert(ctx, tenant, docs)
}

// failUpload records the failed attempt in the ingestion log and returns
// the original error.
func (s *IngestionService) failUpload(ctx context.Context, upload *domain.Upload, cause error) error {
	upload.Status = domain.UploadStatusFailed
	upload.Error = cause.Error()
	if err := s.uploads.Create(ctx, upload); err != nil {
		log.Error().Err(err).
			Str("upload_id", upload.ID).
			Msg("failed to record failed upload")
	}
	return cause
}

// ListUploadsInput represents a page request for the ingestion log
type ListUploadsInput struct {
	Tenant *domain.Tenant
	Limit  int
	Cursor string
}

// ListUploadsOutput represents one page of the ingestion log
type ListUploadsOutput struct {
	Uploads []*domain.Upload
	Cursor  string
	HasMore bool
}

const defaultUploadsPageSize = 20

// ListUploads returns the tenant's ingestion log, newest first,
// keyset-paginated by (created_at, id).
func (s *IngestionService) ListUploads(ctx context.Context, input ListUploadsInput) (*ListUploadsOutput, error) {
	if input.Tenant == nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultUploadsPageSize
	}

	var beforeCreatedAt *time.Time
	beforeID := ""
	if input.Cursor != "" {
		cursor, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
		}
		if cursor != nil {
			beforeCreatedAt = &cursor.Timestamp
			beforeID = cursor.LastID
		}
	}

	uploads, err := s.uploads.ListByTenant(ctx, input.Tenant.ID, limit+1, beforeCreatedAt, beforeID)
	if err != nil {
		return nil, err
	}

	hasMore := len(uploads) > limit
	if hasMore {
		uploads = uploads[:limit]
	}

	var cursor string
	if hasMore && len(uploads) > 0 {
		last := uploads[len(uploads)-1]
		cursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &ListUploadsOutput{
		Uploads: uploads,
		Cursor:  cursor,
		HasMore: hasMore,
	}, nil
}

// ClearContext wholesale-drops the tenant's vector corpus, deletes its
// ingestion log and resets every live session so stale history cannot
// answer over the wiped corpus.
func (s *IngestionService) ClearContext(ctx context.Context, tenant *domain.Tenant) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ClearContext", telemetry.SpanAttributes{
		Tenant:    tenantKeyOf(tenant),
		Operation: "clear_context",
	})
	defer span.End()

	if tenant == nil {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "tenant is required")
	}

	if err := s.store.Clear(ctx, tenant.Key); err != nil {
		span.SetError(err)
		return 0, err
	}

	if err := s.uploads.DeleteByTenant(ctx, tenant.ID); err != nil {
		span.SetError(err)
		return 0, fmt.Errorf("failed to clear ingestion log: %w", err)
	}

	reset := 0
	if s.sessions != nil {
		reset = s.sessions.ResetTenant(tenant.Key)
	}

	log.Info().
		Str("tenant", string(tenant.Key)).
		Int("sessions_reset", reset).
		Msg("tenant context cleared")

	return reset, nil
}

// DownloadURL returns a presigned link to the archived original of an
// upload. Uploads belonging to other tenants are indistinguishable from
// missing ones.
func (s *IngestionService) DownloadURL(ctx context.Context, tenant *domain.Tenant, uploadID string) (string, error) {
	if tenant == nil {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "tenant is required")
	}
	if uploadID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "upload ID is required")
	}

	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return "", err
	}
	if upload.TenantID != tenant.ID {
		return "", domain.ErrUploadNotFound
	}
	if upload.StorageKey == "" || s.archive == nil {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "no archived copy for this upload")
	}

	return s.archive.GenerateDownloadURL(ctx, upload.StorageKey)
}

// ContextSize reports how many chunks the tenant currently has stored.
func (s *IngestionService) ContextSize(ctx context.Context, tenant *domain.Tenant) (int, error) {
	if tenant == nil {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "tenant is required")
	}
	return s.store.Count(ctx, tenant.Key)
}

func buildArchiveKey(tenant domain.TenantKey, uploadID, filename string) string {
	return fmt.Sprintf("tenants/%s/uploads/%s/%s", tenant, uploadID, filename)
}

func tenantKeyOf(t *domain.Tenant) string {
	if t == nil {
		return ""
	}
	return string(t.Key)
}
