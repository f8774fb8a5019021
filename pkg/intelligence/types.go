// Package intelligence provides the ranking side of recall: time decay,
// multi-factor scoring, semantic query expansion and result diversification.
package intelligence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidInput indicates an argument outside its documented domain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedTimestamp indicates a timestamp string that could not be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// MemoryType is the closed set of kinds a memory can have.
type MemoryType string

const (
	MemoryTypeFact        MemoryType = "fact"
	MemoryTypePreference  MemoryType = "preference"
	MemoryTypePersonality MemoryType = "personality"
	MemoryTypeEmotion     MemoryType = "emotion"
	MemoryTypeTask        MemoryType = "task"
	MemoryTypeThread      MemoryType = "thread"
	MemoryTypeProcedure   MemoryType = "procedure"
)

// MemoryTypes lists every valid MemoryType in declaration order.
var MemoryTypes = []MemoryType{
	MemoryTypeFact,
	MemoryTypePreference,
	MemoryTypePersonality,
	MemoryTypeEmotion,
	MemoryTypeTask,
	MemoryTypeThread,
	MemoryTypeProcedure,
}

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	for _, known := range MemoryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMemoryType converts a string into a MemoryType.
func ParseMemoryType(s string) (MemoryType, error) {
	t := MemoryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown memory type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// Memory represents a memory in the intelligence package.
//
// This type is used to avoid circular dependencies between the intelligence
// package and the core package. It mirrors the core.Memory structure but
// is defined locally to prevent import cycles.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID string

	// TenantID is the isolation key every query is scoped to.
	TenantID string

	// AgentID optionally narrows the memory to one agent. Nil means unset.
	AgentID *string

	// Content is the text content of the memory.
	Content string

	// Embedding is the vector embedding of the memory content.
	Embedding []float64

	// Type is the kind of memory.
	Type MemoryType

	// Tags are free-form labels.
	Tags []string

	// Importance is the stated importance in [0, 1].
	Importance float64

	// Confidence is the confidence in the memory in [0, 1].
	Confidence float64

	// EmotionalWeight is the optional valence in [-1, 1]. Nil means unset.
	EmotionalWeight *float64

	// AccessCount is incremented every time the memory is surfaced by a recall.
	AccessCount int

	// Metadata contains additional metadata about the memory.
	Metadata map[string]interface{}

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last updated.
	UpdatedAt time.Time

	// LastAccessedAt is when the memory was last accessed (nil if never accessed).
	LastAccessedAt *time.Time

	// ExpiresAt is the optional expiry instant. Nil means the memory never expires.
	ExpiresAt *time.Time

	// Score is the relevance score attached by the last ranking pass.
	Score float64
}

// Expired reports whether the memory has an expiry at or before now.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Validate checks the field invariants of a memory.
//
// Parameters:
//   - dims: Expected embedding dimensionality, or 0 to skip the check
func (m *Memory) Validate(dims int) error {
	if m.Importance < 0 || m.Importance > 1 {
		return fmt.Errorf("%w: importance %v out of [0,1]", ErrInvalidInput, m.Importance)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of [0,1]", ErrInvalidInput, m.Confidence)
	}
	if m.EmotionalWeight != nil && (*m.EmotionalWeight < -1 || *m.EmotionalWeight > 1) {
		return fmt.Errorf("%w: emotional weight %v out of [-1,1]", ErrInvalidInput, *m.EmotionalWeight)
	}
	if m.AccessCount < 0 {
		return fmt.Errorf("%w: negative access count", ErrInvalidInput)
	}
	if m.LastAccessedAt != nil && !m.CreatedAt.IsZero() && m.LastAccessedAt.Before(m.CreatedAt) {
		return fmt.Errorf("%w: last accessed before creation", ErrInvalidInput)
	}
	if dims > 0 && len(m.Embedding) != dims {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrInvalidInput, len(m.Embedding), dims)
	}
	if m.Type != "" && !m.Type.Valid() {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidInput, m.Type)
	}
	return nil
}

// ScoredCandidate is a memory with every sub-score of one ranking pass.
type ScoredCandidate struct {
	Memory *Memory

	Semantic         float64
	Fuzzy            float64
	Recency          float64
	Frequency        float64
	Importance       float64
	ContextRelevance float64

	// SearchScore is the composite score used for ordering.
	SearchScore float64
}

// TimeContext describes when a query is being made.
type TimeContext struct {
	// TimeOfDay is one of morning, afternoon, evening, night.
	TimeOfDay string
	// DayOfWeek is the lowercase English weekday name.
	DayOfWeek string
	// Season is one of spring, summer, autumn, winter.
	Season string
}

// NewTimeContext derives a TimeContext from t (northern hemisphere seasons).
func NewTimeContext(t time.Time) *TimeContext {
	var timeOfDay string
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		timeOfDay = "morning"
	case h >= 12 && h < 17:
		timeOfDay = "afternoon"
	case h >= 17 && h < 21:
		timeOfDay = "evening"
	default:
		timeOfDay = "night"
	}

	var season string
	switch t.Month() {
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	case time.September, time.October, time.November:
		season = "autumn"
	default:
		season = "winter"
	}

	return &TimeContext{
		TimeOfDay: timeOfDay,
		DayOfWeek: strings.ToLower(t.Weekday().String()),
		Season:    season,
	}
}

// SearchContext carries per-call session signals used for context relevance.
type SearchContext struct {
	RecentQueries   []string
	UserPreferences map[string]string
	SessionContext  []string
	TimeContext     *TimeContext
}

// Weights are the linear coefficients of the composite score.
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Fuzzy      float64 `json:"fuzzy"`
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Importance float64 `json:"importance"`
}

// DefaultWeights returns the weights used when the caller supplies none.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.4,
		Fuzzy:      0.15,
		Recency:    0.15,
		Frequency:  0.1,
		Importance: 0.2,
	}
}

// Validate rejects negative coefficients.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"semantic":   w.Semantic,
		"fuzzy":      w.Fuzzy,
		"recency":    w.Recency,
		"frequency":  w.Frequency,
		"importance": w.Importance,
	} {
		if v < 0 {
			return fmt.Errorf("%w: negative %s weight %v", ErrInvalidInput, name, v)
		}
	}
	return nil
}

// IsZero reports whether every coefficient is zero.
func (w Weights) IsZero() bool {
	return w == Weights{}
}
