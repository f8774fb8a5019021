package intelligence

import (
	"fmt"
	"math"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

// Diversify selects at most limit candidates, trading raw relevance for variety
// using maximal marginal relevance (MMR).
//
// Each round picks the remaining candidate that maximizes:
//
//	score - diversityFactor * maxSimilarityToSelected
//
// where similarity is the cosine of the candidates' embeddings, floored at 0.
//
// Parameters:
//   - ranked: Candidates sorted by descending SearchScore
//   - limit: Maximum number of results (must be >= 0)
//   - diversityFactor: Penalty weight (must be >= 0); 0 means plain truncation
//
// Returns the selected candidates in selection order. The result is a subset of
// ranked without duplicates and never longer than limit.
func Diversify(ranked []*ScoredCandidate, limit int, diversityFactor float64) ([]*ScoredCandidate, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, limit)
	}
	if diversityFactor < 0 || math.IsNaN(diversityFactor) {
		return nil, fmt.Errorf("%w: diversity factor %v must be >= 0", ErrInvalidInput, diversityFactor)
	}

	n := limit
	if len(ranked) < n {
		n = len(ranked)
	}
	if n == 0 {
		return []*ScoredCandidate{}, nil
	}

	if diversityFactor == 0 {
		out := make([]*ScoredCandidate, n)
		copy(out, ranked[:n])
		return out, nil
	}

	remaining := make([]int, len(ranked))
	for i := range remaining {
		remaining[i] = i
	}
	// maxSim[i] is the highest similarity of ranked[i] to anything selected so far.
	maxSim := make([]float64, len(ranked))
	selected := make([]*ScoredCandidate, 0, n)

	for iter := 0; iter < n && len(remaining) > 0; iter++ {
		bestPos := 0
		bestMMR := math.Inf(-1)
		for pos, idx := range remaining {
			mmr := ranked[idx].SearchScore - diversityFactor*maxSim[idx]
			if mmr > bestMMR {
				bestMMR = mmr
				bestPos = pos
			}
		}

		chosenIdx := remaining[bestPos]
		chosen := ranked[chosenIdx]
		selected = append(selected, chosen)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)

		for _, idx := range remaining {
			sim, err := similarity.Cosine(chosen.Memory.Embedding, ranked[idx].Memory.Embedding)
			if err != nil {
				return nil, fmt.Errorf("diversify %s/%s: %w", chosen.Memory.ID, ranked[idx].Memory.ID, err)
			}
			if sim > maxSim[idx] {
				maxSim[idx] = sim
			}
		}
	}

	return selected, nil
}
