// Package embedded implements the vector store on chromem-go, an
// in-process vector database. It serves deployments that want a single
// binary with no Postgres, at the cost of durability guarantees.
package embedded

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/vectorstore"
)

const defaultTopK = 4

// Store is a tenant-scoped vector store backed by chromem-go. Each
// tenant maps to one collection.
type Store struct {
	db         *chromem.DB
	namer      vectorstore.Namer
	dimensions int
}

// New wraps an in-memory chromem database.
func New(namer vectorstore.Namer, dimensions int) *Store {
	return newStore(chromem.NewDB(), namer, dimensions)
}

// NewPersistent opens a chromem database that persists collections
// under dataDir, surviving process restarts.
func NewPersistent(dataDir string, namer vectorstore.Namer, dimensions int) (*Store, error) {
	db, err := chromem.NewPersistentDB(dataDir, false)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorageUnavailable,
			"failed to open embedded vector database", err)
	}
	return newStore(db, namer, dimensions), nil
}

func newStore(db *chromem.DB, namer vectorstore.Namer, dimensions int) *Store {
	if namer == nil {
		namer = vectorstore.DefaultNamer
	}
	return &Store{
		db:         db,
		namer:      namer,
		dimensions: dimensions,
	}
}

// Upsert writes docs into the tenant's collection, creating it if needed.
func (s *Store) Upsert(ctx context.Context, tenant domain.TenantKey, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	name, err := s.namer(tenant)
	if err != nil {
		return err
	}

	records := make([]chromem.Document, 0, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != s.dimensions {
			return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
				"embedding has wrong dimensions",
				fmt.Errorf("document %d has %d dimensions, expected %d", i, len(doc.Embedding), s.dimensions))
		}
		records = append(records, chromem.Document{
			ID:      doc.ID,
			Content: doc.Text,
			Metadata: map[string]string{
				"source_ref": doc.SourceRef,
				"seq":        strconv.Itoa(doc.Seq),
			},
			Embedding: doc.Embedding,
		})
	}

	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return storageErr("failed to create tenant collection", err)
	}
	if err := col.AddDocuments(ctx, records, runtime.NumCPU()); err != nil {
		return storageErr("failed to store chunks", err)
	}
	return nil
}

// Search returns the top-k documents by cosine similarity, best first.
// k is capped at the collection size because chromem rejects oversized
// result requests.
func (s *Store) Search(ctx context.Context, tenant domain.TenantKey, embedding []float32, k int) ([]vectorstore.Match, error) {
	name, err := s.namer(tenant)
	if err != nil {
		return nil, err
	}

	if len(embedding) != s.dimensions {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			"embedding has wrong dimensions",
			fmt.Errorf("query has %d dimensions, expected %d", len(embedding), s.dimensions))
	}

	col := s.db.GetCollection(name, nil)
	if col == nil {
		return []vectorstore.Match{}, nil
	}

	if k <= 0 {
		k = defaultTopK
	}
	if count := col.Count(); count == 0 {
		return []vectorstore.Match{}, nil
	} else if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, storageErr("vector search failed", err)
	}

	matches := make([]vectorstore.Match, 0, len(results))
	for _, res := range results {
		seq, _ := strconv.Atoi(res.Metadata["seq"])
		matches = append(matches, vectorstore.Match{
			Document: vectorstore.Document{
				ID:        res.ID,
				Text:      res.Content,
				SourceRef: res.Metadata["source_ref"],
				Seq:       seq,
			},
			Score: float64(res.Similarity),
		})
	}
	return matches, nil
}

// Clear drops the tenant's collection. Clearing a tenant that has never
// ingested is a no-op.
func (s *Store) Clear(ctx context.Context, tenant domain.TenantKey) error {
	name, err := s.namer(tenant)
	if err != nil {
		return err
	}

	if err := s.db.DeleteCollection(name); err != nil {
		return storageErr("failed to clear tenant collection", err)
	}
	return nil
}

// Count returns the number of stored chunks for the tenant.
func (s *Store) Count(ctx context.Context, tenant domain.TenantKey) (int, error) {
	name, err := s.namer(tenant)
	if err != nil {
		return 0, err
	}

	col := s.db.GetCollection(name, nil)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func storageErr(message string, err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStorageUnavailable, message, err)
}
