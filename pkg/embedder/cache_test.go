package embedder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/embedder"
	"github.com/oceanbase/powermem-recall/pkg/metrics"
)

// countingProvider embeds a text as [len(text), 1] and counts provider calls.
type countingProvider struct {
	calls      atomic.Int64
	batchCalls atomic.Int64
	delay      time.Duration
	err        error
	closed     atomic.Bool
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return []float64{float64(len(text)), 1}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	p.batchCalls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1}
	}
	return out, nil
}

func (p *countingProvider) Dimensions() int { return 2 }

func (p *countingProvider) Close() error {
	p.closed.Store(true)
	return nil
}

func TestCacheHit(t *testing.T) {
	provider := &countingProvider{}
	cache := embedder.NewCache(provider, embedder.CacheConfig{MaxEntries: 10})
	ctx := context.Background()

	first, err := cache.GetOrEmbed(ctx, "typescript")
	require.NoError(t, err)
	second, err := cache.GetOrEmbed(ctx, "typescript")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := embedder.NewCache(&countingProvider{}, embedder.CacheConfig{})
	ctx := context.Background()

	vec, err := cache.GetOrEmbed(ctx, "abc")
	require.NoError(t, err)
	vec[0] = 999

	again, err := cache.GetOrEmbed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, again)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	provider := &countingProvider{}
	cache := embedder.NewCache(provider, embedder.CacheConfig{MaxEntries: 2})
	ctx := context.Background()

	for _, q := range []string{"a", "b", "a", "c"} {
		_, err := cache.GetOrEmbed(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, int64(3), provider.calls.Load())

	// "a" was used more recently than "b", so "b" went first.
	_, err := cache.GetOrEmbed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), provider.calls.Load())

	_, err = cache.GetOrEmbed(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(4), provider.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	boom := errors.New("provider down")
	provider := &countingProvider{err: boom}
	cache := embedder.NewCache(provider, embedder.CacheConfig{})
	ctx := context.Background()

	_, err := cache.GetOrEmbed(ctx, "q")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())

	provider.err = nil
	vec, err := cache.GetOrEmbed(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, vec)
	assert.Equal(t, int64(2), provider.calls.Load())
}

func TestCacheConcurrentMissesShareOneCall(t *testing.T) {
	provider := &countingProvider{delay: 50 * time.Millisecond}
	cache := embedder.NewCache(provider, embedder.CacheConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := cache.GetOrEmbed(context.Background(), "shared")
			assert.NoError(t, err)
			assert.Equal(t, []float64{6, 1}, vec)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheEmbedBatch(t *testing.T) {
	provider := &countingProvider{}
	cache := embedder.NewCache(provider, embedder.CacheConfig{})
	ctx := context.Background()

	_, err := cache.GetOrEmbed(ctx, "ab")
	require.NoError(t, err)

	vecs, err := cache.EmbedBatch(ctx, []string{"ab", "xyz"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1}, {3, 1}}, vecs)
	assert.Equal(t, int64(1), provider.batchCalls.Load())
	assert.Equal(t, 2, cache.Len())

	_, err = cache.EmbedBatch(ctx, []string{"ab", "xyz"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), provider.batchCalls.Load(), "fully cached batch skips the provider")
}

func TestCachePurgeAndClose(t *testing.T) {
	provider := &countingProvider{}
	cache := embedder.NewCache(provider, embedder.CacheConfig{})

	_, err := cache.GetOrEmbed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Dimensions())

	require.NoError(t, cache.Close())
	assert.Equal(t, 0, cache.Len())
	assert.True(t, provider.closed.Load())
}

func TestCacheRecordsMetrics(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())
	cache := embedder.NewCache(&countingProvider{}, embedder.CacheConfig{MaxEntries: 1, Metrics: m})
	ctx := context.Background()

	for _, q := range []string{"a", "a", "b"} {
		_, err := cache.GetOrEmbed(ctx, q)
		require.NoError(t, err)
	}

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["powermem_embedding_cache_hits_total"])
	assert.Equal(t, 2.0, values["powermem_embedding_cache_misses_total"])
	assert.Equal(t, 1.0, values["powermem_embedding_cache_evictions_total"])
	assert.Equal(t, 1.0, values["powermem_embedding_cache_entries"])
}

// gatedProvider blocks every Embed until release is closed.
type gatedProvider struct {
	countingProvider
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.countingProvider.Embed(ctx, text)
}

func TestCacheCancelledCallerDoesNotFailOthers(t *testing.T) {
	provider := newGatedProvider()
	cache := embedder.NewCache(provider, embedder.CacheConfig{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.GetOrEmbed(ctxA, "shared")
		errA <- err
	}()
	<-provider.started

	type result struct {
		vec []float64
		err error
	}
	resB := make(chan result, 1)
	go func() {
		vec, err := cache.GetOrEmbed(context.Background(), "shared")
		resB <- result{vec, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(provider.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, []float64{6, 1}, b.vec)
	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheSkipsSecondaryTierAnswers(t *testing.T) {
	remote := &countingProvider{err: errors.New("remote down")}
	local := &fixedProvider{vec: []float64{0, 1}}
	chain, err := embedder.NewFallback(remote, local)
	require.NoError(t, err)
	cache := embedder.NewCache(chain, embedder.CacheConfig{})
	ctx := context.Background()

	vec, tier, err := cache.GetOrEmbedTier(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, vec)
	assert.Equal(t, 1, tier)
	assert.Equal(t, 0, cache.Len())

	remote.err = nil
	vec, tier, err = cache.GetOrEmbedTier(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, vec, "recovered remote answers again")
	assert.Equal(t, 0, tier)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheBatchSkipsSecondaryTierAnswers(t *testing.T) {
	remote := &countingProvider{err: errors.New("remote down")}
	chain, err := embedder.NewFallback(remote, &fixedProvider{vec: []float64{0, 1}})
	require.NoError(t, err)
	cache := embedder.NewCache(chain, embedder.CacheConfig{})

	vecs, tier, err := cache.EmbedBatchTier(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {0, 1}}, vecs)
	assert.Equal(t, 1, tier)
	assert.Equal(t, 0, cache.Len())
}

// fixedProvider answers every text with vec.
type fixedProvider struct {
	vec []float64
}

func (p *fixedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return append([]float64(nil), p.vec...), nil
}

func (p *fixedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = append([]float64(nil), p.vec...)
	}
	return out, nil
}

func (p *fixedProvider) Dimensions() int { return len(p.vec) }

func (p *fixedProvider) Close() error { return nil }
