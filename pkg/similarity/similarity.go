// Package similarity provides the pure similarity primitives used by the recall pipeline.
//
// All functions are stateless and safe for concurrent use.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// ErrDimensionMismatch indicates that two vectors of different length were compared.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine calculates the cosine similarity between two vectors.
//
// Cosine similarity measures the cosine of the angle between two vectors,
// ranging from -1 (opposite) to 1 (identical direction).
//
// Parameters:
//   - a: First vector
//   - b: Second vector
//
// Returns the similarity in [-1, 1]. If either vector has zero magnitude the
// similarity is defined as 0. Vectors of different length return ErrDimensionMismatch.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, nil
	}
	return clamp(sim, -1, 1), nil
}

// Fuzzy returns a case-insensitive lexical similarity between two strings in [0, 1].
//
// The score is the larger of two normalized Levenshtein similarities:
//   - the similarity of the two whole strings
//   - the mean, over the tokens of a, of the best similarity against any token of b
//
// The token form keeps a short query from being penalized only for being shorter
// than the memory it is matched against. Two empty strings score 1; exactly one
// empty string scores 0.
func Fuzzy(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	whole := normalizedSimilarity(a, b)

	tokensA := Tokenize(a)
	tokensB := Tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return whole
	}

	var total float64
	for _, ta := range tokensA {
		best := 0.0
		for _, tb := range tokensB {
			if s := normalizedSimilarity(ta, tb); s > best {
				best = s
				if best == 1 {
					break
				}
			}
		}
		total += best
	}
	tokenScore := total / float64(len(tokensA))

	return clamp(math.Max(whole, tokenScore), 0, 1)
}

// Tokenize splits text into lowercase word tokens made of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Normalize returns v scaled to unit length. A zero vector is returned as a copy.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Blend returns normalize(weight*a + (1-weight)*b).
//
// Parameters:
//   - a: Primary vector
//   - b: Secondary vector, must have the same length as a
//   - weight: Share of a in the result, in [0, 1]
func Blend(a, b []float64, weight float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	weight = clamp(weight, 0, 1)
	out := make([]float64, len(a))
	for i := range a {
		out[i] = weight*a[i] + (1-weight)*b[i]
	}
	return Normalize(out), nil
}

func normalizedSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
