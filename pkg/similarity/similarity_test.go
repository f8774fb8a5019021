package similarity_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 2}, b: []float64{-1, -2}, want: -1},
		{name: "scaled", a: []float64{1, 1}, b: []float64{3, 3}, want: 1},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "both empty", a: []float64{}, b: []float64{}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := similarity.Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := similarity.Cosine([]float64{1, 2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
}

func TestCosineStaysInRange(t *testing.T) {
	a := []float64{1e-3, 0.3333333333, 7}
	b := []float64{1e-3, 0.3333333333, 7}
	got, err := similarity.Cosine(a, b)
	require.NoError(t, err)
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, -1.0)
}

func TestFuzzy(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 1.0, similarity.Fuzzy("", ""))
	})
	t.Run("one empty", func(t *testing.T) {
		assert.Equal(t, 0.0, similarity.Fuzzy("", "abc"))
		assert.Equal(t, 0.0, similarity.Fuzzy("abc", "  "))
	})
	t.Run("case insensitive exact", func(t *testing.T) {
		assert.Equal(t, 1.0, similarity.Fuzzy("TypeScript", "typescript"))
	})
	t.Run("typo tolerant", func(t *testing.T) {
		score := similarity.Fuzzy("typscript", "typescript")
		assert.Greater(t, score, 0.8)
		assert.Less(t, score, 1.0)
	})
	t.Run("token match inside longer text", func(t *testing.T) {
		score := similarity.Fuzzy("typescript", "User prefers TypeScript over JavaScript")
		assert.Equal(t, 1.0, score)
	})
	t.Run("unrelated", func(t *testing.T) {
		assert.Less(t, similarity.Fuzzy("python", "quarterly tax filing"), 0.5)
	})
	t.Run("symmetric for whole strings", func(t *testing.T) {
		assert.InDelta(t, similarity.Fuzzy("kitten", "sitting"), similarity.Fuzzy("sitting", "kitten"), 1e-9)
	})
}

func TestFuzzyRange(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"héllo wörld", "hello world"},
		{"123", "1234"},
		{"!!!", "???"},
	}
	for _, p := range pairs {
		s := similarity.Fuzzy(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, p)
		assert.LessOrEqual(t, s, 1.0, p)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"user", "likes", "go", "1", "22"}, similarity.Tokenize("User likes Go-1.22!"))
	assert.Empty(t, similarity.Tokenize(" ,.; "))
}

func TestNormalize(t *testing.T) {
	v := similarity.Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	zero := []float64{0, 0}
	out := similarity.Normalize(zero)
	assert.Equal(t, zero, out)
	out[0] = 1
	assert.Equal(t, 0.0, zero[0], "input must not be aliased")
}

func TestBlend(t *testing.T) {
	out, err := similarity.Blend([]float64{1, 0}, []float64{0, 1}, 0.7)
	require.NoError(t, err)

	norm := math.Hypot(out[0], out[1])
	assert.InDelta(t, 1.0, norm, 1e-9)
	assert.Greater(t, out[0], out[1])

	_, err = similarity.Blend([]float64{1}, []float64{1, 2}, 0.5)
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, similarity.IsStopWord("the"))
	assert.True(t, similarity.IsStopWord("very"))
	assert.False(t, similarity.IsStopWord("typescript"))
}
