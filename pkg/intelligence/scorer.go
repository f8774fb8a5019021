package intelligence

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

const (
	// DefaultFrequencySaturation is K in min(1, ln(1+n)/ln(K)); frequency saturates at n = K-1.
	DefaultFrequencySaturation = 101.0

	// DefaultContextBoost scales the context relevance term added on top of the weighted sum.
	DefaultContextBoost = 0.2

	// DefaultFuzzyThreshold is the lowest fuzzy score still counted as a lexical match.
	DefaultFuzzyThreshold = 0.3
)

// Context relevance increments. Each signal counts once.
const (
	recentQueryBoost    = 0.3
	sessionContextBoost = 0.2
	preferenceBoost     = 0.3
	timeOfDayBoost      = 0.1
	dayOfWeekBoost      = 0.05
	seasonBoost         = 0.05
)

// minOverlapTokenLen drops short tokens from context overlap tests.
const minOverlapTokenLen = 3

// ScorerConfig contains configuration for the multi-factor scorer.
type ScorerConfig struct {
	// Weights are the linear coefficients of the five sub-scores.
	Weights Weights

	// EnableFuzzyMatching turns on the lexical sub-score.
	EnableFuzzyMatching bool

	// FuzzyThreshold zeroes fuzzy scores below it.
	FuzzyThreshold float64

	// ContextBoost multiplies the context relevance term. Zero uses DefaultContextBoost.
	ContextBoost float64

	// FrequencySaturation is the constant K of min(1, ln(1+n)/ln(K)).
	// Values <= 1 use DefaultFrequencySaturation.
	FrequencySaturation float64

	// Decay computes the recency sub-score. Nil uses NewTimeDecay(DefaultDecayRate).
	Decay *TimeDecay

	// Now is the evaluation instant. Zero means time.Now() at construction.
	Now time.Time
}

// Scorer computes the composite relevance of memories against one query.
//
// A Scorer holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights        Weights
	fuzzyEnabled   bool
	fuzzyThreshold float64
	contextBoost   float64
	logK           float64
	decay          *TimeDecay
	now            time.Time
}

// NewScorer creates a new scorer.
//
// Returns ErrInvalidInput if any weight is negative.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("%w: fuzzy threshold %v out of [0,1]", ErrInvalidInput, cfg.FuzzyThreshold)
	}
	if cfg.ContextBoost < 0 {
		return nil, fmt.Errorf("%w: negative context boost", ErrInvalidInput)
	}
	if cfg.ContextBoost == 0 {
		cfg.ContextBoost = DefaultContextBoost
	}
	if cfg.FrequencySaturation <= 1 {
		cfg.FrequencySaturation = DefaultFrequencySaturation
	}
	if cfg.Decay == nil {
		cfg.Decay = NewTimeDecay(DefaultDecayRate)
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	return &Scorer{
		weights:        cfg.Weights,
		fuzzyEnabled:   cfg.EnableFuzzyMatching,
		fuzzyThreshold: cfg.FuzzyThreshold,
		contextBoost:   cfg.ContextBoost,
		logK:           math.Log(cfg.FrequencySaturation),
		decay:          cfg.Decay,
		now:            cfg.Now,
	}, nil
}

// Score computes every sub-score of item and their composite.
//
// Parameters:
//   - query: Raw query text, used for fuzzy and context matching
//   - queryEmbedding: Embedding of the query
//   - item: Candidate memory
//   - sctx: Optional session context (nil disables the context term)
//
// Returns a ScoredCandidate, or an error wrapping similarity.ErrDimensionMismatch
// when the embeddings have different lengths.
func (s *Scorer) Score(query string, queryEmbedding []float64, item *Memory, sctx *SearchContext) (*ScoredCandidate, error) {
	cos, err := similarity.Cosine(queryEmbedding, item.Embedding)
	if err != nil {
		return nil, fmt.Errorf("memory %s: %w", item.ID, err)
	}

	c := &ScoredCandidate{
		Memory:     item,
		Semantic:   clamp01(cos),
		Recency:    s.decay.DecayForItem(item, s.now),
		Frequency:  s.Frequency(item.AccessCount),
		Importance: item.Importance,
	}

	if s.fuzzyEnabled {
		if f := similarity.Fuzzy(query, item.Content); f >= s.fuzzyThreshold {
			c.Fuzzy = f
		}
	}

	if sctx != nil {
		c.ContextRelevance = ContextRelevance(item, sctx)
	}

	w := s.weights
	c.SearchScore = w.Semantic*c.Semantic +
		w.Fuzzy*c.Fuzzy +
		w.Recency*c.Recency +
		w.Frequency*c.Frequency +
		w.Importance*c.Importance +
		s.contextBoost*c.ContextRelevance

	return c, nil
}

// ScoreAll scores items and returns them sorted by descending SearchScore.
//
// Ties are broken by memory ID so the order is deterministic.
func (s *Scorer) ScoreAll(query string, queryEmbedding []float64, items []*Memory, sctx *SearchContext) ([]*ScoredCandidate, error) {
	scored := make([]*ScoredCandidate, 0, len(items))
	for _, item := range items {
		c, err := s.Score(query, queryEmbedding, item, sctx)
		if err != nil {
			return nil, err
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].SearchScore != scored[j].SearchScore {
			return scored[i].SearchScore > scored[j].SearchScore
		}
		return scored[i].Memory.ID < scored[j].Memory.ID
	})
	return scored, nil
}

// Frequency maps an access count onto [0, 1] with a logarithmic saturation.
func (s *Scorer) Frequency(accessCount int) float64 {
	if accessCount <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(float64(accessCount))/s.logK)
}

// ContextRelevance scores how well item matches the session signals in sctx.
//
// Each matching signal adds a fixed increment and the total is clamped to
// [0, 1]. A nil context scores 0.
func ContextRelevance(item *Memory, sctx *SearchContext) float64 {
	if sctx == nil {
		return 0
	}

	content := strings.ToLower(item.Content)
	contentTokens := tokenSet(similarity.Tokenize(content))
	for _, tag := range item.Tags {
		for _, tok := range similarity.Tokenize(tag) {
			contentTokens[tok] = struct{}{}
		}
	}

	var score float64

	for _, q := range sctx.RecentQueries {
		if overlaps(q, contentTokens) {
			score += recentQueryBoost
			break
		}
	}

	for _, fragment := range sctx.SessionContext {
		f := strings.ToLower(strings.TrimSpace(fragment))
		if f == "" {
			continue
		}
		if strings.Contains(content, f) || overlaps(f, contentTokens) {
			score += sessionContextBoost
			break
		}
	}

	for _, value := range sctx.UserPreferences {
		v := strings.ToLower(strings.TrimSpace(value))
		if v == "" {
			continue
		}
		if strings.Contains(content, v) || hasTag(item.Tags, v) {
			score += preferenceBoost
			break
		}
	}

	if tc := sctx.TimeContext; tc != nil {
		if tc.TimeOfDay != "" && hasToken(contentTokens, tc.TimeOfDay) {
			score += timeOfDayBoost
		}
		if tc.DayOfWeek != "" && hasToken(contentTokens, tc.DayOfWeek) {
			score += dayOfWeekBoost
		}
		if tc.Season != "" && hasToken(contentTokens, tc.Season) {
			score += seasonBoost
		}
	}

	return clamp01(score)
}

func overlaps(text string, tokens map[string]struct{}) bool {
	for _, tok := range similarity.Tokenize(text) {
		if len(tok) < minOverlapTokenLen || similarity.IsStopWord(tok) {
			continue
		}
		if _, ok := tokens[tok]; ok {
			return true
		}
	}
	return false
}

func hasToken(tokens map[string]struct{}, word string) bool {
	_, ok := tokens[strings.ToLower(word)]
	return ok
}

func hasTag(tags []string, value string) bool {
	for _, tag := range tags {
		if strings.EqualFold(strings.TrimSpace(tag), value) {
			return true
		}
	}
	return false
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
