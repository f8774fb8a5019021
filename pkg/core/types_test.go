package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/core"
)

func TestMemoryUnmarshalJSON(t *testing.T) {
	var m core.Memory
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "42",
		"tenant_id": "user_001",
		"content": "User prefers TypeScript",
		"type": "preference",
		"importance": 0.8,
		"created_at": "2026-03-09 09:30:00",
		"last_accessed_at": "2026-03-10T08:00:00Z"
	}`), &m))

	assert.Equal(t, "42", m.ID)
	assert.Equal(t, core.MemoryTypePreference, m.Type)
	assert.Equal(t, 1.0, m.Confidence, "missing confidence defaults to 1")
	assert.True(t, time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC).Equal(m.CreatedAt))
	require.NotNil(t, m.LastAccessedAt)
	assert.Nil(t, m.ExpiresAt)
}

func TestMemoryUnmarshalJSONMalformedTimestamp(t *testing.T) {
	var m core.Memory
	err := json.Unmarshal([]byte(`{"id": "1", "created_at": "last week"}`), &m)
	assert.ErrorIs(t, err, core.ErrMalformedTimestamp)
	assert.ErrorContains(t, err, "created_at")
}

func TestMemoryJSONRoundTripKeepsTimestamps(t *testing.T) {
	created := time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)
	in := core.Memory{ID: "1", TenantID: "t", Content: "c", Confidence: 0.5, CreatedAt: created, UpdatedAt: created}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out core.Memory
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, created.Equal(out.CreatedAt))
	assert.Equal(t, 0.5, out.Confidence)
}

func TestMemoryErrorFormatting(t *testing.T) {
	err := core.NewMemoryError("Search", core.ErrEmbeddingFailed)
	assert.Equal(t, "powermem: Search: embedding generation failed", err.Error())
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)

	assert.Nil(t, core.NewMemoryError("Search", nil))

	var memErr *core.MemoryError
	wrapped := fmt.Errorf("outer: %w", err)
	require.True(t, errors.As(wrapped, &memErr))
	assert.Equal(t, "Search", memErr.Op)
}

func TestAsyncClient(t *testing.T) {
	client, _ := newStoreClient(t, &keywordEmbedder{})
	async := core.NewAsyncClientFrom(client)
	ctx := context.Background()

	remembered := <-async.RememberAsync(ctx, "User prefers TypeScript",
		core.WithTenantID("user_001"),
		core.WithCreatedAt(refNow.Add(-time.Hour)),
	)
	require.NoError(t, remembered.Error)

	searchChan := async.SearchAsync(ctx, "typescript", sampleCandidates(), core.WithLimit(1))
	recallChan := async.RecallAsync(ctx, "typescript", core.WithTenantIDForSearch("user_001"), core.WithNow(refNow))
	async.Wait()

	searched := <-searchChan
	require.NoError(t, searched.Error)
	require.Len(t, searched.Results, 1)
	assert.Equal(t, "ts", searched.Results[0].Memory.ID)

	recalled := <-recallChan
	require.NoError(t, recalled.Error)
	require.Len(t, recalled.Results, 1)
	assert.Equal(t, remembered.Memory.ID, recalled.Results[0].Memory.ID)

	forgotten := <-async.ForgetAsync(ctx, "user_001", remembered.Memory.ID)
	assert.NoError(t, forgotten.Error)

	missing := <-async.ForgetAsync(ctx, "user_001", remembered.Memory.ID)
	assert.ErrorIs(t, missing.Error, core.ErrNotFound)

	_, ok := <-searchChan
	assert.False(t, ok, "result channels are closed after one value")

	assert.NoError(t, async.Close())
}
