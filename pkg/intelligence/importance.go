package intelligence

import (
	"math"
	"strings"
)

// baseImportance is the score of content with no importance signals.
const baseImportance = 0.3

// ImportanceEvaluator estimates the importance of memory content with keyword
// and metadata rules. It is used when a memory is stored without an explicit
// importance.
//
// Example usage:
//
//	evaluator := NewImportanceEvaluator()
//	score := evaluator.EvaluateImportance("Remember: deploy freeze on Friday!", MemoryTypeTask, nil, nil)
type ImportanceEvaluator struct {
	importantKeywords []string
	typeBonus         map[MemoryType]float64
}

// NewImportanceEvaluator creates a new rule-based importance evaluator.
func NewImportanceEvaluator() *ImportanceEvaluator {
	return &ImportanceEvaluator{
		importantKeywords: []string{
			"important", "critical", "urgent", "remember", "note",
			"preference", "like", "dislike", "hate", "love",
			"password", "secret", "private", "confidential",
			"always", "never", "deadline",
		},
		typeBonus: map[MemoryType]float64{
			MemoryTypePreference:  0.1,
			MemoryTypePersonality: 0.1,
			MemoryTypeProcedure:   0.1,
			MemoryTypeTask:        0.05,
		},
	}
}

// EvaluateImportance scores content in [0, 1].
//
// Parameters:
//   - content: Memory text
//   - memoryType: Kind of memory (empty is allowed)
//   - tags: Free-form labels
//   - metadata: Optional metadata; "priority" of "high" or "medium" raises the score
//
// Returns the importance score.
func (e *ImportanceEvaluator) EvaluateImportance(
	content string,
	memoryType MemoryType,
	tags []string,
	metadata map[string]interface{},
) float64 {
	score := baseImportance
	contentLower := strings.ToLower(content)

	if len(content) > 100 {
		score += 0.1
	} else if len(content) > 50 {
		score += 0.05
	}

	for _, keyword := range e.importantKeywords {
		if strings.Contains(contentLower, keyword) {
			score += 0.1
		}
	}

	if strings.Contains(content, "!") {
		score += 0.05
	}

	score += e.typeBonus[memoryType]

	if len(tags) > 0 {
		score += 0.05
	}

	if metadata != nil {
		if priority, ok := metadata["priority"].(string); ok {
			switch priority {
			case "high":
				score += 0.2
			case "medium":
				score += 0.1
			}
		}
	}

	return math.Min(score, 1.0)
}
