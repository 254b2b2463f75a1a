package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-labs/parley/internal/domain"
)

// UploadRepository persists the per-tenant ingestion log.
type UploadRepository struct {
	db dbtx
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{db: pool}
}

func NewUploadRepositoryWithTx(tx pgx.Tx) *UploadRepository {
	return &UploadRepository{db: tx}
}

func (r *UploadRepository) Create(ctx context.Context, u *domain.Upload) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO uploads (id, tenant_id, filename, content_type, size_bytes, chunk_count, status, error, storage_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.TenantID, u.Filename, u.ContentType, u.SizeBytes, u.ChunkCount, u.Status, nullableString(u.Error), nullableString(u.StorageKey), u.CreatedAt,
	)
	return err
}

func (r *UploadRepository) GetByID(ctx context.Context, id string) (*domain.Upload, error) {
	var u domain.Upload
	var errMsg, storageKey *string
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, filename, content_type, size_bytes, chunk_count, status, error, storage_key, created_at
		 FROM uploads WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.TenantID, &u.Filename, &u.ContentType, &u.SizeBytes, &u.ChunkCount, &u.Status, &errMsg, &storageKey, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUploadNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		u.Error = *errMsg
	}
	if storageKey != nil {
		u.StorageKey = *storageKey
	}
	return &u, nil
}

// ListByTenant returns uploads newest first. When beforeCreatedAt is set the
// listing resumes strictly after that (created_at, id) position.
func (r *UploadRepository) ListByTenant(ctx context.Context, tenantID string, limit int, beforeCreatedAt *time.Time, beforeID string) ([]*domain.Upload, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if beforeCreatedAt != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, filename, content_type, size_bytes, chunk_count, status, error, storage_key, created_at
			 FROM uploads
			 WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			tenantID, *beforeCreatedAt, beforeID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, filename, content_type, size_bytes, chunk_count, status, error, storage_key, created_at
			 FROM uploads
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			tenantID, limit,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUploadRows(rows)
}

func (r *UploadRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM uploads WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}

func (r *UploadRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM uploads WHERE tenant_id = $1`,
		tenantID,
	)
	return err
}

func scanUploadRows(rows pgx.Rows) ([]*domain.Upload, error) {
	var uploads []*domain.Upload
	for rows.Next() {
		var u domain.Upload
		var errMsg, storageKey *string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Filename, &u.ContentType, &u.SizeBytes, &u.ChunkCount, &u.Status, &errMsg, &storageKey, &u.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			u.Error = *errMsg
		}
		if storageKey != nil {
			u.StorageKey = *storageKey
		}
		uploads = append(uploads, &u)
	}
	return uploads, rows.Err()
}
