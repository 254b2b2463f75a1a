//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/testutil"
	"github.com/parley-labs/parley/internal/vectorstore"
)

const testDimensions = 3

func newTestStore(ctx context.Context, t *testing.T) (*Store, func()) {
	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../../migrations")

	store := New(pool, vectorstore.DefaultNamer, testDimensions)
	cleanup := func() {
		pool.Close()
		pc.Terminate(ctx)
	}
	return store, cleanup
}

func doc(text string, seq int, embedding []float32) vectorstore.Document {
	return vectorstore.Document{
		ID:        uuid.NewString(),
		Text:      text,
		SourceRef: "notes.txt",
		Seq:       seq,
		Embedding: embedding,
	}
}

func TestStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	tenant := domain.TenantKey("acme")
	docs := []vectorstore.Document{
		doc("alpha", 0, []float32{1, 0, 0}),
		doc("beta", 1, []float32{0.8, 0.6, 0}),
		doc("gamma", 2, []float32{0, 1, 0}),
	}
	require.NoError(t, store.Upsert(ctx, tenant, docs))

	matches, err := store.Search(ctx, tenant, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "alpha", matches[0].Text)
	assert.Equal(t, "beta", matches[1].Text)
	assert.Equal(t, "notes.txt", matches[0].SourceRef)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_Search_NeverIngested(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	matches, err := store.Search(ctx, domain.TenantKey("ghost"), []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	require.NoError(t, store.Upsert(ctx, domain.TenantKey("acme"), []vectorstore.Document{
		doc("acme secrets", 0, []float32{1, 0, 0}),
	}))
	require.NoError(t, store.Upsert(ctx, domain.TenantKey("globex"), []vectorstore.Document{
		doc("globex secrets", 0, []float32{1, 0, 0}),
	}))

	matches, err := store.Search(ctx, domain.TenantKey("acme"), []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "acme secrets", matches[0].Text)

	count, err := store.Count(ctx, domain.TenantKey("globex"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	tenant := domain.TenantKey("acme")
	require.NoError(t, store.Upsert(ctx, tenant, []vectorstore.Document{
		doc("alpha", 0, []float32{1, 0, 0}),
		doc("beta", 1, []float32{0, 1, 0}),
	}))

	require.NoError(t, store.Clear(ctx, tenant))

	matches, err := store.Search(ctx, tenant, []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, matches)

	count, err := store.Count(ctx, tenant)
	require.NoError(t, err)
	assert.Zero(t, count)

	// clearing again is a no-op
	require.NoError(t, store.Clear(ctx, tenant))
}

func TestStore_Count_NeverIngested(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	count, err := store.Count(ctx, domain.TenantKey("ghost"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_Upsert_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	tenant := domain.TenantKey("acme")
	d := doc("first draft", 0, []float32{1, 0, 0})
	require.NoError(t, store.Upsert(ctx, tenant, []vectorstore.Document{d}))

	d.Text = "second draft"
	require.NoError(t, store.Upsert(ctx, tenant, []vectorstore.Document{d}))

	count, err := store.Count(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := store.Search(ctx, tenant, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second draft", matches[0].Text)
}

func TestStore_Upsert_WrongDimensions(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	err := store.Upsert(ctx, domain.TenantKey("acme"), []vectorstore.Document{
		doc("alpha", 0, []float32{1, 0}),
	})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEmbedding, domainErr.Code)
}

func TestStore_RejectsInvalidTenantKey(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newTestStore(ctx, t)
	defer cleanup()

	_, err := store.Search(ctx, domain.TenantKey("acme; DROP TABLE tenants"), []float32{1, 0, 0}, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidTenantKey)

	err = store.Upsert(ctx, domain.TenantKey("UPPER"), []vectorstore.Document{
		doc("alpha", 0, []float32{1, 0, 0}),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTenantKey)
}
