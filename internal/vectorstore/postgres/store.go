// Package postgres implements the vector store on Postgres with pgvector.
// Each tenant gets its own table, created lazily on first upsert and
// dropped wholesale on Clear, mirroring the tenant lifecycle exactly.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/vectorstore"
)

const (
	defaultTopK = 4

	// undefined_table: the tenant has never ingested anything
	pgCodeUndefinedTable = "42P01"
)

// Store is a tenant-scoped vector store backed by pgvector.
type Store struct {
	pool       *pgxpool.Pool
	namer      vectorstore.Namer
	dimensions int
}

func New(pool *pgxpool.Pool, namer vectorstore.Namer, dimensions int) *Store {
	if namer == nil {
		namer = vectorstore.DefaultNamer
	}
	return &Store{
		pool:       pool,
		namer:      namer,
		dimensions: dimensions,
	}
}

// Upsert writes docs into the tenant's table, creating it if needed.
func (s *Store) Upsert(ctx context.Context, tenant domain.TenantKey, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	table, err := s.namer(tenant)
	if err != nil {
		return err
	}

	for i, doc := range docs {
		if len(doc.Embedding) != s.dimensions {
			return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
				"embedding has wrong dimensions",
				fmt.Errorf("document %d has %d dimensions, expected %d", i, len(doc.Embedding), s.dimensions))
		}
	}

	if err := s.ensureTable(ctx, table); err != nil {
		return storageErr("failed to create tenant collection", err)
	}

	batch := &pgx.Batch{}
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, content, source_ref, seq, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    source_ref = EXCLUDED.source_ref,
		    seq = EXCLUDED.seq,
		    embedding = EXCLUDED.embedding`, table)
	for _, doc := range docs {
		batch.Queue(insert, doc.ID, doc.Text, nullableString(doc.SourceRef), doc.Seq, pgvector.NewVector(doc.Embedding))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return storageErr("failed to store chunks", err)
		}
	}
	return nil
}

// Search returns the top-k documents by cosine similarity, best first. A
// tenant that has never ingested yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, tenant domain.TenantKey, embedding []float32, k int) ([]vectorstore.Match, error) {
	table, err := s.namer(tenant)
	if err != nil {
		return nil, err
	}

	if len(embedding) != s.dimensions {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			"embedding has wrong dimensions",
			fmt.Errorf("query has %d dimensions, expected %d", len(embedding), s.dimensions))
	}

	if k <= 0 {
		k = defaultTopK
	}

	query := fmt.Sprintf(`
		SELECT id, content, source_ref, seq, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		if isUndefinedTable(err) {
			return []vectorstore.Match{}, nil
		}
		return nil, storageErr("vector search failed", err)
	}
	defer rows.Close()

	matches := make([]vectorstore.Match, 0, k)
	for rows.Next() {
		var m vectorstore.Match
		var sourceRef *string
		if err := rows.Scan(&m.ID, &m.Text, &sourceRef, &m.Seq, &m.Score); err != nil {
			return nil, storageErr("vector search failed", err)
		}
		if sourceRef != nil {
			m.SourceRef = *sourceRef
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return []vectorstore.Match{}, nil
		}
		return nil, storageErr("vector search failed", err)
	}

	return matches, nil
}

// Clear drops the tenant's table. Clearing a tenant that has never
// ingested is a no-op.
func (s *Store) Clear(ctx context.Context, tenant domain.TenantKey) error {
	table, err := s.namer(tenant)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return storageErr("failed to clear tenant collection", err)
	}
	return nil
}

// Count returns the number of stored chunks for the tenant.
func (s *Store) Count(ctx context.Context, tenant domain.TenantKey) (int, error) {
	table, err := s.namer(tenant)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&count)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, storageErr("failed to count chunks", err)
	}
	return count, nil
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			content text NOT NULL,
			source_ref text,
			seq int NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, table, s.dimensions))
	return err
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUndefinedTable
}

func storageErr(message string, err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStorageUnavailable, message, err)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
