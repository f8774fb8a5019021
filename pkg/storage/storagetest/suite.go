// Package storagetest holds the behavioral checks every storage.VectorStore
// backend must pass. Backend packages run them from their own tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

// Factory opens an empty store with the given embedding dimensions.
// The store is closed by the suite.
type Factory func(t *testing.T, dims int) storage.VectorStore

// Dims is the embedding size used by the suite.
const Dims = 4

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func vec(xs ...float64) []float64 {
	out := make([]float64, Dims)
	copy(out, xs)
	return out
}

func strPtr(s string) *string { return &s }

func newMemory(tenant, id string, embedding []float64) *storage.Memory {
	return &storage.Memory{
		ID:         id,
		TenantID:   tenant,
		Content:    "memory " + id,
		Embedding:  embedding,
		Type:       "fact",
		Importance: 0.5,
		Confidence: 1,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, open) })
	t.Run("TenantRequired", func(t *testing.T) { testTenantRequired(t, open) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, open) })
	t.Run("SearchOrderAndIsolation", func(t *testing.T) { testSearch(t, open) })
	t.Run("SearchExcludesExpired", func(t *testing.T) { testExpiry(t, open) })
	t.Run("RecordAccess", func(t *testing.T) { testRecordAccess(t, open) })
	t.Run("DeleteAndGetAll", func(t *testing.T) { testDelete(t, open) })
}

func openStore(t *testing.T, open Factory) storage.VectorStore {
	t.Helper()
	store := open(t, Dims)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRoundTrip(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	weight := -0.4
	accessed := base.Add(time.Hour)
	expires := base.Add(365 * 24 * time.Hour)
	m := newMemory("t1", "m1", vec(1, 0.5, 0, 0.25))
	m.AgentID = strPtr("planner")
	m.Tags = []string{"work", "lang"}
	m.EmotionalWeight = &weight
	m.AccessCount = 3
	m.Metadata = map[string]interface{}{"source": "chat"}
	m.LastAccessedAt = &accessed
	m.ExpiresAt = &expires
	require.NoError(t, store.Insert(ctx, m))

	got, err := store.Get(ctx, "m1", &storage.GetOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID)
	require.NotNil(t, got.AgentID)
	assert.Equal(t, "planner", *got.AgentID)
	assert.Equal(t, "memory m1", got.Content)
	assert.InDeltaSlice(t, m.Embedding, got.Embedding, 1e-6)
	assert.Equal(t, "fact", got.Type)
	assert.ElementsMatch(t, m.Tags, got.Tags)
	assert.InDelta(t, 0.5, got.Importance, 1e-9)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
	require.NotNil(t, got.EmotionalWeight)
	assert.InDelta(t, weight, *got.EmotionalWeight, 1e-9)
	assert.Equal(t, 3, got.AccessCount)
	assert.Equal(t, "chat", got.Metadata["source"])
	assert.True(t, base.Equal(got.CreatedAt), "created_at %s", got.CreatedAt)
	require.NotNil(t, got.LastAccessedAt)
	assert.True(t, accessed.Equal(*got.LastAccessedAt))
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	_, err = store.Get(ctx, "m1", &storage.GetOptions{TenantID: "other"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Get(ctx, "missing", &storage.GetOptions{TenantID: "t1"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testTenantRequired(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, newMemory("", "x", vec(1))), storage.ErrTenantRequired)
	_, err := store.Search(ctx, vec(1), &storage.SearchOptions{})
	assert.ErrorIs(t, err, storage.ErrTenantRequired)
	_, err = store.Search(ctx, vec(1), nil)
	assert.ErrorIs(t, err, storage.ErrTenantRequired)
	_, err = store.Get(ctx, "x", &storage.GetOptions{})
	assert.ErrorIs(t, err, storage.ErrTenantRequired)
	assert.ErrorIs(t, store.Delete(ctx, "x", &storage.DeleteOptions{}), storage.ErrTenantRequired)
	_, err = store.GetAll(ctx, &storage.GetAllOptions{})
	assert.ErrorIs(t, err, storage.ErrTenantRequired)
	assert.ErrorIs(t, store.DeleteAll(ctx, &storage.DeleteAllOptions{}), storage.ErrTenantRequired)
	assert.ErrorIs(t, store.RecordAccess(ctx, "", []string{"x"}, base), storage.ErrTenantRequired)
}

func testDimensionMismatch(t *testing.T, open Factory) {
	store := openStore(t, open)
	err := store.Insert(context.Background(), newMemory("t1", "short", []float64{1, 2}))
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
}

func testSearch(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	fixtures := []*storage.Memory{
		newMemory("t1", "exact", vec(1, 0, 0, 0)),
		newMemory("t1", "close", vec(1, 0.2, 0, 0)),
		newMemory("t1", "far", vec(0, 0, 1, 0)),
		newMemory("t2", "foreign", vec(1, 0, 0, 0)),
	}
	fixtures[1].AgentID = strPtr("planner")
	for _, m := range fixtures {
		require.NoError(t, store.Insert(ctx, m))
	}

	results, err := store.Search(ctx, vec(1, 0, 0, 0), &storage.SearchOptions{TenantID: "t1", Now: base})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "close", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Greater(t, results[1].Score, results[2].Score)

	limited, err := store.Search(ctx, vec(1, 0, 0, 0), &storage.SearchOptions{TenantID: "t1", Limit: 1, Now: base})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "exact", limited[0].ID)

	agent, err := store.Search(ctx, vec(1, 0, 0, 0), &storage.SearchOptions{TenantID: "t1", AgentID: "planner", Now: base})
	require.NoError(t, err)
	require.Len(t, agent, 1)
	assert.Equal(t, "close", agent[0].ID)

	filtered, err := store.Search(ctx, vec(1, 0, 0, 0), &storage.SearchOptions{TenantID: "t1", MinScore: 0.5, Now: base})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func testExpiry(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	past := base.Add(-time.Hour)
	future := base.Add(time.Hour)
	expired := newMemory("t1", "expired", vec(1))
	expired.ExpiresAt = &past
	live := newMemory("t1", "live", vec(1))
	live.ExpiresAt = &future
	for _, m := range []*storage.Memory{expired, live, newMemory("t1", "forever", vec(1))} {
		require.NoError(t, store.Insert(ctx, m))
	}

	results, err := store.Search(ctx, vec(1), &storage.SearchOptions{TenantID: "t1", Now: base})
	require.NoError(t, err)
	var ids []string
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"live", "forever"}, ids)

	all, err := store.Search(ctx, vec(1), &storage.SearchOptions{TenantID: "t1", Now: base, IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testRecordAccess(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newMemory("t1", "a", vec(1))))
	require.NoError(t, store.Insert(ctx, newMemory("t1", "b", vec(0, 1))))
	require.NoError(t, store.Insert(ctx, newMemory("t2", "c", vec(1))))

	at := base.Add(2 * time.Hour)
	require.NoError(t, store.RecordAccess(ctx, "t1", []string{"a", "c", "unknown"}, at))
	require.NoError(t, store.RecordAccess(ctx, "t1", []string{"a"}, at))
	require.NoError(t, store.RecordAccess(ctx, "t1", nil, at))

	a, err := store.Get(ctx, "a", &storage.GetOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.AccessCount)
	require.NotNil(t, a.LastAccessedAt)
	assert.True(t, at.Equal(*a.LastAccessedAt))

	b, err := store.Get(ctx, "b", &storage.GetOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 0, b.AccessCount)
	assert.Nil(t, b.LastAccessedAt)

	c, err := store.Get(ctx, "c", &storage.GetOptions{TenantID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.AccessCount, "other tenants are untouched")
}

func testDelete(t *testing.T, open Factory) {
	store := openStore(t, open)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := newMemory("t1", fmt.Sprintf("m%d", i), vec(1, float64(i)))
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			m.AgentID = strPtr("planner")
		}
		require.NoError(t, store.Insert(ctx, m))
	}

	page, err := store.GetAll(ctx, &storage.GetAllOptions{TenantID: "t1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m4", page[0].ID)
	assert.Equal(t, "m3", page[1].ID)

	next, err := store.GetAll(ctx, &storage.GetAllOptions{TenantID: "t1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "m2", next[0].ID)

	require.NoError(t, store.Delete(ctx, "m4", &storage.DeleteOptions{TenantID: "t1"}))
	assert.ErrorIs(t, store.Delete(ctx, "m4", &storage.DeleteOptions{TenantID: "t1"}), storage.ErrNotFound)

	require.NoError(t, store.DeleteAll(ctx, &storage.DeleteAllOptions{TenantID: "t1", AgentID: "planner"}))
	rest, err := store.GetAll(ctx, &storage.GetAllOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	require.NoError(t, store.DeleteAll(ctx, &storage.DeleteAllOptions{TenantID: "t1"}))
	rest, err = store.GetAll(ctx, &storage.GetAllOptions{TenantID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, rest)
}
