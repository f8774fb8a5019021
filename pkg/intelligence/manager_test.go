package intelligence_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

func candidate(id string, score float64, emb ...float64) *intelligence.ScoredCandidate {
	return &intelligence.ScoredCandidate{
		Memory:      &intelligence.Memory{ID: id, Embedding: emb},
		SearchScore: score,
	}
}

func ids(cs []*intelligence.ScoredCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Memory.ID
	}
	return out
}

func TestDiversifyValidation(t *testing.T) {
	ranked := []*intelligence.ScoredCandidate{candidate("a", 1, 1, 0)}

	_, err := intelligence.Diversify(ranked, -1, 0.5)
	assert.ErrorIs(t, err, intelligence.ErrInvalidInput)

	_, err = intelligence.Diversify(ranked, 1, -0.1)
	assert.ErrorIs(t, err, intelligence.ErrInvalidInput)

	_, err = intelligence.Diversify(ranked, 1, math.NaN())
	assert.ErrorIs(t, err, intelligence.ErrInvalidInput)
}

func TestDiversifyEmptyAndZeroLimit(t *testing.T) {
	out, err := intelligence.Diversify(nil, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = intelligence.Diversify([]*intelligence.ScoredCandidate{candidate("a", 1, 1)}, 0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDiversifyZeroFactorIsTruncation(t *testing.T) {
	ranked := []*intelligence.ScoredCandidate{
		candidate("a", 0.9, 1, 0),
		candidate("b", 0.8, 1, 0),
		candidate("c", 0.7, 0, 1),
	}
	out, err := intelligence.Diversify(ranked, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))

	out[0] = nil
	assert.NotNil(t, ranked[0], "result must not alias the input")
}

func TestDiversifyPromotesDistinctCandidate(t *testing.T) {
	ranked := []*intelligence.ScoredCandidate{
		candidate("a", 0.90, 1, 0),
		candidate("a-dup", 0.89, 1, 0),
		candidate("other", 0.70, 0, 1),
	}

	out, err := intelligence.Diversify(ranked, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "other"}, ids(out))
}

func TestDiversifyKeepsDuplicatesWhenNothingElse(t *testing.T) {
	ranked := []*intelligence.ScoredCandidate{
		candidate("a", 0.9, 1, 0),
		candidate("b", 0.8, 1, 0),
	}
	out, err := intelligence.Diversify(ranked, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

func TestDiversifyNoDuplicatesAndBounded(t *testing.T) {
	var ranked []*intelligence.ScoredCandidate
	for i := 0; i < 20; i++ {
		angle := float64(i) * 0.1
		ranked = append(ranked, candidate(fmt.Sprintf("m%02d", i), 1-float64(i)*0.01, math.Cos(angle), math.Sin(angle)))
	}

	for _, limit := range []int{1, 5, 20, 50} {
		out, err := intelligence.Diversify(ranked, limit, 0.7)
		require.NoError(t, err)

		want := limit
		if want > len(ranked) {
			want = len(ranked)
		}
		assert.Len(t, out, want)

		seen := map[string]bool{}
		for _, c := range out {
			assert.False(t, seen[c.Memory.ID], "duplicate %s", c.Memory.ID)
			seen[c.Memory.ID] = true
		}
	}
}

func TestDiversifyDimensionMismatch(t *testing.T) {
	ranked := []*intelligence.ScoredCandidate{
		candidate("a", 0.9, 1, 0),
		candidate("b", 0.8, 1, 0, 0),
	}
	_, err := intelligence.Diversify(ranked, 2, 0.5)
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
}

func TestRecallManagerRank(t *testing.T) {
	manager := intelligence.NewRecallManager(nil)
	assert.Equal(t, intelligence.DefaultDecayRate, manager.Decay().DecayRate())

	expired := refNow.Add(-time.Minute)
	candidates := []*intelligence.Memory{
		{ID: "ts", Content: "User prefers TypeScript", Embedding: []float64{1, 0}, Importance: 0.8, CreatedAt: refNow},
		{ID: "ts", Content: "repeated id", Embedding: []float64{1, 0}, Importance: 1, CreatedAt: refNow},
		{ID: "gone", Content: "TypeScript notes", Embedding: []float64{1, 0}, Importance: 1, ExpiresAt: &expired},
		{ID: "py", Content: "User writes Python scripts", Embedding: []float64{0, 1}, Importance: 0.5, CreatedAt: refNow},
		nil,
	}

	results, err := manager.Rank(&intelligence.RankRequest{
		Query:               "typescript",
		QueryEmbedding:      []float64{1, 0},
		Candidates:          candidates,
		Limit:               10,
		DiversityFactor:     0.3,
		Weights:             intelligence.DefaultWeights(),
		EnableFuzzyMatching: true,
		FuzzyThreshold:      0.3,
		Now:                 refNow,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ts", results[0].Memory.ID)
	assert.Equal(t, "User prefers TypeScript", results[0].Memory.Content)
	assert.Equal(t, "py", results[1].Memory.ID)
}

func TestRecallManagerRankEdgeCases(t *testing.T) {
	manager := intelligence.NewRecallManager(intelligence.NewTimeDecay(0.1))
	base := intelligence.RankRequest{
		Query:          "q",
		QueryEmbedding: []float64{1, 0},
		Candidates:     []*intelligence.Memory{{ID: "a", Embedding: []float64{1, 0}}},
		Limit:          5,
		Weights:        intelligence.DefaultWeights(),
		Now:            refNow,
	}

	t.Run("negative limit", func(t *testing.T) {
		req := base
		req.Limit = -1
		_, err := manager.Rank(&req)
		assert.ErrorIs(t, err, intelligence.ErrInvalidInput)
	})
	t.Run("negative diversity", func(t *testing.T) {
		req := base
		req.DiversityFactor = -1
		_, err := manager.Rank(&req)
		assert.ErrorIs(t, err, intelligence.ErrInvalidInput)
	})
	t.Run("negative weight", func(t *testing.T) {
		req := base
		req.Weights.Importance = -0.5
		_, err := manager.Rank(&req)
		assert.ErrorIs(t, err, intelligence.ErrInvalidInput)
	})
	t.Run("empty candidates", func(t *testing.T) {
		req := base
		req.Candidates = nil
		out, err := manager.Rank(&req)
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
	t.Run("zero limit", func(t *testing.T) {
		req := base
		req.Limit = 0
		out, err := manager.Rank(&req)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
	t.Run("dimension mismatch", func(t *testing.T) {
		req := base
		req.QueryEmbedding = []float64{1, 0, 0}
		_, err := manager.Rank(&req)
		assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
	})
}

func TestRecallManagerIsDeterministic(t *testing.T) {
	manager := intelligence.NewRecallManager(nil)
	var candidates []*intelligence.Memory
	for i := 0; i < 30; i++ {
		angle := float64(i%7) * 0.3
		candidates = append(candidates, &intelligence.Memory{
			ID:          fmt.Sprintf("m%02d", i),
			Content:     fmt.Sprintf("note %d about typescript", i),
			Embedding:   []float64{math.Cos(angle), math.Sin(angle)},
			Importance:  float64(i%5) / 5,
			AccessCount: i,
			CreatedAt:   refNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	req := &intelligence.RankRequest{
		Query:               "typescript",
		QueryEmbedding:      []float64{1, 0},
		Candidates:          candidates,
		Limit:               10,
		DiversityFactor:     0.4,
		Weights:             intelligence.DefaultWeights(),
		EnableFuzzyMatching: true,
		FuzzyThreshold:      0.3,
		Now:                 refNow,
	}

	first, err := manager.Rank(req)
	require.NoError(t, err)
	second, err := manager.Rank(req)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
	assert.Len(t, first, 10)
}
