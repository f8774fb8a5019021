package core_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/core"
	"github.com/oceanbase/powermem-recall/pkg/embedder"
	"github.com/oceanbase/powermem-recall/pkg/storage"
	sqliteStore "github.com/oceanbase/powermem-recall/pkg/storage/sqlite"
)

var refNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// topics are the axes of the keyword embedder.
var topics = []string{"typescript", "python", "coffee"}

// keywordEmbedder embeds text as topic counts plus a small bias, so texts
// sharing a topic point the same way.
type keywordEmbedder struct {
	mu    sync.Mutex
	texts []string
	calls atomic.Int64
	err   error
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int { return len(topics) }

func (e *keywordEmbedder) Close() error { return nil }

func (e *keywordEmbedder) embedded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func keywordVector(text string) []float64 {
	lower := strings.ToLower(text)
	vec := make([]float64, len(topics))
	for i, topic := range topics {
		vec[i] = 0.05 + float64(strings.Count(lower, topic))
	}
	return vec
}

func candidate(id, content string, t core.MemoryType, importance float64) *core.Memory {
	return &core.Memory{
		ID:         id,
		TenantID:   "user_001",
		Content:    content,
		Embedding:  keywordVector(content),
		Type:       t,
		Importance: importance,
		Confidence: 1,
		CreatedAt:  refNow.Add(-time.Hour),
	}
}

func sampleCandidates() []*core.Memory {
	return []*core.Memory{
		candidate("py", "Writes Python scripts for data cleanup", core.MemoryTypeFact, 0.5),
		candidate("ts", "User prefers TypeScript over JavaScript", core.MemoryTypePreference, 0.8),
		candidate("coffee", "Drinks coffee every morning", core.MemoryTypeFact, 0.3),
	}
}

// newSearchClient returns a client without a store.
func newSearchClient(t *testing.T, emb *keywordEmbedder, opts ...core.ClientOption) *core.Client {
	t.Helper()
	client, err := core.NewClientWithProviders(nil, emb, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newStoreClient returns a client backed by a fresh SQLite database.
func newStoreClient(t *testing.T, emb *keywordEmbedder, opts ...core.ClientOption) (*core.Client, storage.VectorStore) {
	t.Helper()
	return newStoreClientWith(t, emb, opts...)
}

func newStoreClientWith(t *testing.T, emb embedder.Provider, opts ...core.ClientOption) (*core.Client, storage.VectorStore) {
	t.Helper()
	store, err := sqliteStore.NewClient(&sqliteStore.Config{
		DBPath:             filepath.Join(t.TempDir(), "recall.db"),
		EmbeddingModelDims: len(topics),
	})
	require.NoError(t, err)

	cfg := &core.Config{Retrieval: core.DefaultRetrievalConfig()}
	client, err := core.NewClientWithProviders(cfg, emb, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

func resultIDs(results []*core.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	return ids
}
