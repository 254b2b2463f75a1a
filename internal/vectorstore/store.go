// Package vectorstore defines the tenant-scoped vector storage contract.
// Tenant isolation is enforced here by construction: every operation takes
// the tenant key and backends key their storage on it, so one tenant's
// chunks can never appear in another tenant's results.
package vectorstore

import (
	"context"

	"github.com/parley-labs/parley/internal/domain"
)

// Document is a chunk with its embedding as stored in a tenant collection.
type Document struct {
	ID        string
	Text      string
	SourceRef string
	Seq       int
	Embedding []float32
}

// Match is a document returned from a similarity search. Score is cosine
// similarity computed as 1 - cosine distance; higher is better.
type Match struct {
	Document
	Score float64
}

// Store is a tenant-scoped vector store. Implementations create a tenant's
// collection lazily on first upsert, treat searches on never-ingested
// tenants as empty results, and destroy collections wholesale on Clear.
type Store interface {
	Upsert(ctx context.Context, tenant domain.TenantKey, docs []Document) error
	Search(ctx context.Context, tenant domain.TenantKey, embedding []float32, k int) ([]Match, error)
	Clear(ctx context.Context, tenant domain.TenantKey) error
	Count(ctx context.Context, tenant domain.TenantKey) (int, error)
}

// Namer maps a tenant key to the backend storage location (table or
// collection name). It is the single place identifiers are built from
// tenant keys, and it rejects keys that fail validation.
type Namer func(tenant domain.TenantKey) (string, error)

// PrefixNamer returns a Namer that prepends prefix to validated tenant keys.
func PrefixNamer(prefix string) Namer {
	return func(tenant domain.TenantKey) (string, error) {
		if !domain.ValidTenantKey(tenant) {
			return "", domain.ErrInvalidTenantKey
		}
		return prefix + string(tenant), nil
	}
}

// DefaultNamer names tenant collections vector_context_<key>.
var DefaultNamer = PrefixNamer("vector_context_")
