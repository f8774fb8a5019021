package embedder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/embedder"
	"github.com/oceanbase/powermem-recall/pkg/embedder/hash"
)

func TestNewFallbackValidation(t *testing.T) {
	_, err := embedder.NewFallback()
	assert.ErrorIs(t, err, embedder.ErrNoProviders)

	_, err = embedder.NewFallback(nil, nil)
	assert.ErrorIs(t, err, embedder.ErrNoProviders)

	_, err = embedder.NewFallback(&countingProvider{}, hash.NewClient(&hash.Config{Dimensions: 8}))
	assert.Error(t, err, "tiers with different dimensions")
}

func TestFallbackUsesFirstHealthyTier(t *testing.T) {
	down := &countingProvider{err: errors.New("remote down")}
	healthy := &countingProvider{}

	f, err := embedder.NewFallback(down, healthy)
	require.NoError(t, err)

	vec, err := f.Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1}, vec)
	assert.Equal(t, int64(1), down.calls.Load())
	assert.Equal(t, int64(1), healthy.calls.Load())

	vecs, err := f.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 1}}, vecs)
	assert.Equal(t, 2, f.Dimensions())
}

func TestFallbackJoinsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	f, err := embedder.NewFallback(&countingProvider{err: first}, &countingProvider{err: second})
	require.NoError(t, err)

	_, err = f.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestFallbackStopsOnCancelledContext(t *testing.T) {
	down := &countingProvider{err: errors.New("remote down")}
	healthy := &countingProvider{}
	f, err := embedder.NewFallback(down, healthy)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Embed(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), healthy.calls.Load())
}

func TestFallbackClosesEveryTier(t *testing.T) {
	a, b := &countingProvider{}, &countingProvider{}
	f, err := embedder.NewFallback(a, b)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
}

func TestFallbackReportsAnsweringTier(t *testing.T) {
	remote := &countingProvider{}
	f, err := embedder.NewFallback(remote, &fixedProvider{vec: []float64{0, 1}})
	require.NoError(t, err)
	ctx := context.Background()

	_, tier, err := f.EmbedTier(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 0, tier)

	remote.err = errors.New("remote down")
	vec, tier, err := embedder.EmbedWithTier(ctx, f, "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, vec)
	assert.Equal(t, 1, tier)

	_, tier, err = embedder.EmbedBatchWithTier(ctx, f, []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, 1, tier)

	_, tier, err = embedder.EmbedWithTier(ctx, &countingProvider{}, "q")
	require.NoError(t, err)
	assert.Equal(t, 0, tier, "providers without tiers answer from tier 0")
}
