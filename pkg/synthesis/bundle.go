package synthesis

import (
	"math"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

// DefaultBundleSize is the number of memories a bundle keeps when
// BundleOptions.MaxMemories is not set.
const DefaultBundleSize = 10

// confidenceScale controls how quickly confidence saturates with the number of memories.
const confidenceScale = 3.0

// BundleOptions controls BuildContextBundle.
type BundleOptions struct {
	// MaxMemories caps the memories in the bundle. Default: 10
	MaxMemories int

	// MinImportance drops memories below it.
	MinImportance float64

	// Summary controls the rendered text.
	Summary SummaryOptions
}

// ContextBundle is the structured context handed to an agent.
type ContextBundle struct {
	Memories   []*intelligence.Memory `json:"memories"`
	Text       string                 `json:"text"`
	Themes     []Theme                `json:"themes"`
	Emotional  EmotionalContext       `json:"emotional"`
	Temporal   TemporalContext        `json:"temporal"`
	Confidence float64                `json:"confidence"`
}

// BuildContextBundle filters memories for context, renders them and attaches
// themes, emotional and temporal analysis and a confidence score.
//
// Confidence is mean relevance times 1 - e^(-n/3), where n is the number of
// selected memories and relevance is a memory's Score, or its Importance when
// it was never scored. More and better memories raise confidence. An empty
// selection yields confidence 0 and empty text.
func (s *Synthesizer) BuildContextBundle(memories []*intelligence.Memory, opts BundleOptions) *ContextBundle {
	if opts.MaxMemories <= 0 {
		opts.MaxMemories = DefaultBundleSize
	}

	selected := s.FilterContextualMemories(memories, opts.MaxMemories, opts.MinImportance)
	bundle := &ContextBundle{
		Memories:  selected,
		Themes:    ExtractThemes(selected),
		Emotional: AnalyzeEmotionalContext(selected),
		Temporal:  s.AnalyzeTemporalContext(selected),
	}
	if len(selected) == 0 {
		return bundle
	}

	bundle.Text = Summarize(selected, opts.Summary)
	bundle.Confidence = Confidence(selected)
	return bundle
}

// Confidence scores how much an agent can rely on a memory set, in [0, 1].
func Confidence(memories []*intelligence.Memory) float64 {
	var sum float64
	var n int
	for _, m := range memories {
		if m == nil {
			continue
		}
		sum += relevance(m)
		n++
	}
	if n == 0 {
		return 0
	}
	mean := math.Min(1, math.Max(0, sum/float64(n)))
	return mean * (1 - math.Exp(-float64(n)/confidenceScale))
}

func relevance(m *intelligence.Memory) float64 {
	if m.Score > 0 {
		return m.Score
	}
	return m.Importance
}
