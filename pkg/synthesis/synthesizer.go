// Package synthesis reduces a ranked list of memories into agent-facing
// context: a length-bounded text summary, keyword themes, emotional and
// temporal distributions, and a context bundle with a confidence score.
//
// All operations are synchronous and hold no shared state.
package synthesis

import (
	"time"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

// Config configures a Synthesizer.
type Config struct {
	// Decay computes recency for contextual filtering (nil uses the default rate).
	Decay *intelligence.TimeDecay

	// Now returns the reference instant (nil uses time.Now).
	Now func() time.Time
}

// Synthesizer builds context summaries and bundles.
//
// Example usage:
//
//	s := synthesis.New(synthesis.Config{})
//	text := s.Summarize(memories, synthesis.SummaryOptions{MaxLength: 1000})
//	bundle := s.BuildContextBundle(memories, synthesis.BundleOptions{})
type Synthesizer struct {
	decay *intelligence.TimeDecay
	now   func() time.Time
}

// New creates a new Synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.Decay == nil {
		cfg.Decay = intelligence.NewTimeDecay(intelligence.DefaultDecayRate)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Synthesizer{decay: cfg.Decay, now: cfg.Now}
}

// Summarize renders memories as grouped text. See the package-level Summarize.
func (s *Synthesizer) Summarize(memories []*intelligence.Memory, opts SummaryOptions) string {
	return Summarize(memories, opts)
}

// ExtractThemes returns the top keyword themes. See the package-level ExtractThemes.
func (s *Synthesizer) ExtractThemes(memories []*intelligence.Memory) []Theme {
	return ExtractThemes(memories)
}

// AnalyzeEmotionalContext summarizes emotional valence. See the package-level function.
func (s *Synthesizer) AnalyzeEmotionalContext(memories []*intelligence.Memory) EmotionalContext {
	return AnalyzeEmotionalContext(memories)
}

// AnalyzeTemporalContext buckets memories by age relative to the synthesizer clock.
func (s *Synthesizer) AnalyzeTemporalContext(memories []*intelligence.Memory) TemporalContext {
	return AnalyzeTemporalContext(memories, s.now())
}

// FilterContextualMemories selects up to maxCount memories by importance and
// recency while keeping type diversity. See filterContextual.
func (s *Synthesizer) FilterContextualMemories(memories []*intelligence.Memory, maxCount int, minImportance float64) []*intelligence.Memory {
	return filterContextual(memories, maxCount, minImportance, s.decay, s.now())
}
