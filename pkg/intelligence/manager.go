package intelligence

import (
	"fmt"
	"time"
)

// RankRequest is one secondary ranking pass over a candidate set.
type RankRequest struct {
	// Query is the raw query text.
	Query string

	// QueryEmbedding is the (possibly expanded) query embedding.
	QueryEmbedding []float64

	// Candidates are the tenant-scoped memories to rank.
	Candidates []*Memory

	// Limit caps the number of results. Must be >= 0.
	Limit int

	// DiversityFactor is the MMR penalty weight. Must be >= 0.
	DiversityFactor float64

	// Weights are the composite score coefficients.
	Weights Weights

	// EnableFuzzyMatching turns on the lexical sub-score.
	EnableFuzzyMatching bool

	// FuzzyThreshold zeroes fuzzy scores below it.
	FuzzyThreshold float64

	// ContextBoost multiplies the context relevance term.
	ContextBoost float64

	// Context is the optional session context.
	Context *SearchContext

	// Now is the evaluation instant. Zero means time.Now().
	Now time.Time
}

// RecallManager runs the ranking pipeline:
//  1. Drop expired and duplicate candidates
//  2. Score every candidate (semantic, fuzzy, recency, frequency, importance, context)
//  3. Sort by composite score
//  4. Diversify down to the requested limit
//
// Example usage:
//
//	manager := NewRecallManager(NewTimeDecay(0.1))
//	results, err := manager.Rank(&RankRequest{Query: q, QueryEmbedding: emb, Candidates: items, Limit: 10})
type RecallManager struct {
	decay *TimeDecay
}

// NewRecallManager creates a new ranking pipeline.
//
// Parameters:
//   - decay: Decay curve for the recency sub-score (nil uses the default rate)
func NewRecallManager(decay *TimeDecay) *RecallManager {
	if decay == nil {
		decay = NewTimeDecay(DefaultDecayRate)
	}
	return &RecallManager{decay: decay}
}

// Decay returns the decay curve used for recency.
func (m *RecallManager) Decay() *TimeDecay {
	return m.decay
}

// Rank scores, sorts and diversifies the candidates of req.
//
// Returns ErrInvalidInput for a negative limit, a negative diversity factor or
// negative weights, and an error wrapping similarity.ErrDimensionMismatch when a
// candidate embedding does not match the query embedding. An empty candidate
// set returns an empty result.
func (m *RecallManager) Rank(req *RankRequest) ([]*ScoredCandidate, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, req.Limit)
	}
	if req.DiversityFactor < 0 {
		return nil, fmt.Errorf("%w: diversity factor %v must be >= 0", ErrInvalidInput, req.DiversityFactor)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	scorer, err := NewScorer(ScorerConfig{
		Weights:             req.Weights,
		EnableFuzzyMatching: req.EnableFuzzyMatching,
		FuzzyThreshold:      req.FuzzyThreshold,
		ContextBoost:        req.ContextBoost,
		Decay:               m.decay,
		Now:                 now,
	})
	if err != nil {
		return nil, err
	}

	live := liveCandidates(req.Candidates, now)
	if len(live) == 0 || req.Limit == 0 {
		return []*ScoredCandidate{}, nil
	}

	scored, err := scorer.ScoreAll(req.Query, req.QueryEmbedding, live, req.Context)
	if err != nil {
		return nil, err
	}

	return Diversify(scored, req.Limit, req.DiversityFactor)
}

// liveCandidates drops nil, expired and repeated candidates, keeping the first
// occurrence of each ID.
func liveCandidates(candidates []*Memory, now time.Time) []*Memory {
	seen := make(map[string]struct{}, len(candidates))
	live := make([]*Memory, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.Expired(now) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		live = append(live, c)
	}
	return live
}
