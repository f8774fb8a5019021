package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/synthesis"
)

// MemoryType classifies a memory. See the MemoryType constants.
type MemoryType = intelligence.MemoryType

const (
	MemoryTypeFact        = intelligence.MemoryTypeFact
	MemoryTypePreference  = intelligence.MemoryTypePreference
	MemoryTypePersonality = intelligence.MemoryTypePersonality
	MemoryTypeEmotion     = intelligence.MemoryTypeEmotion
	MemoryTypeTask        = intelligence.MemoryTypeTask
	MemoryTypeThread      = intelligence.MemoryTypeThread
	MemoryTypeProcedure   = intelligence.MemoryTypeProcedure
)

// ParseMemoryType converts a name such as "fact" into a MemoryType.
func ParseMemoryType(s string) (MemoryType, error) {
	return intelligence.ParseMemoryType(s)
}

// MetadataEmbeddingTier marks a memory whose embedding was answered by a
// fallback embedding tier. Its value is the tier number.
const MetadataEmbeddingTier = "embedding_tier"

// DegradedTier returns the fallback tier that embedded m, or 0 when m was
// embedded by the primary provider.
func DegradedTier(m *Memory) int {
	if m == nil {
		return 0
	}
	switch v := m.Metadata[MetadataEmbeddingTier].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

// markDegraded returns a copy of metadata carrying the embedding tier.
func markDegraded(metadata map[string]interface{}, tier int) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[MetadataEmbeddingTier] = tier
	return out
}

// Weights are the five composite score coefficients.
type Weights = intelligence.Weights

// DefaultWeights returns semantic 0.4, fuzzy 0.15, recency 0.15,
// frequency 0.1, importance 0.2.
func DefaultWeights() Weights {
	return intelligence.DefaultWeights()
}

// SearchContext carries the optional session context of a query.
type SearchContext = intelligence.SearchContext

// TimeContext describes when a query is being made.
type TimeContext = intelligence.TimeContext

// NewTimeContext derives the time of day, weekday and season of t.
func NewTimeContext(t time.Time) *TimeContext {
	return intelligence.NewTimeContext(t)
}

// Memory represents a single memory item.
//
// Example:
//
//	memory := &core.Memory{
//	    ID:         "1790000000000000000",
//	    TenantID:   "user_001",
//	    Content:    "User prefers TypeScript over JavaScript",
//	    Type:       core.MemoryTypePreference,
//	    Importance: 0.8,
//	}
type Memory struct {
	// ID is the unique identifier of the memory.
	ID string `json:"id"`

	// TenantID is the isolation key every query is scoped to.
	TenantID string `json:"tenant_id"`

	// AgentID identifies the agent associated with this memory (optional).
	AgentID *string `json:"agent_id,omitempty"`

	// Content is the text content of the memory.
	Content string `json:"content"`

	// Embedding is the vector embedding for similarity search.
	Embedding []float64 `json:"embedding,omitempty"`

	// Type is the kind of memory.
	Type MemoryType `json:"type,omitempty"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// Importance is the stated importance in [0, 1].
	Importance float64 `json:"importance"`

	// Confidence is the confidence in the memory in [0, 1].
	Confidence float64 `json:"confidence"`

	// EmotionalWeight is the optional valence in [-1, 1].
	EmotionalWeight *float64 `json:"emotional_weight,omitempty"`

	// AccessCount is the number of recalls that surfaced this memory.
	AccessCount int `json:"access_count"`

	// Metadata contains additional structured information about the memory.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the memory was last updated.
	UpdatedAt time.Time `json:"updated_at"`

	// LastAccessedAt is when the memory was last surfaced (nil if never).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// ExpiresAt is the optional expiry instant.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Score is the composite score of the last ranking pass, or the raw
	// vector similarity when the memory came straight from the store.
	Score float64 `json:"score,omitempty"`
}

// memoryJSON is the wire shape of Memory with timestamps kept as text.
type memoryJSON struct {
	ID              string                 `json:"id"`
	TenantID        string                 `json:"tenant_id"`
	AgentID         *string                `json:"agent_id,omitempty"`
	Content         string                 `json:"content"`
	Embedding       []float64              `json:"embedding,omitempty"`
	Type            MemoryType             `json:"type,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Importance      float64                `json:"importance"`
	Confidence      *float64               `json:"confidence,omitempty"`
	EmotionalWeight *float64               `json:"emotional_weight,omitempty"`
	AccessCount     int                    `json:"access_count"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	LastAccessedAt  string                 `json:"last_accessed_at,omitempty"`
	ExpiresAt       string                 `json:"expires_at,omitempty"`
	Score           float64                `json:"score,omitempty"`
}

// UnmarshalJSON accepts RFC 3339 and the other layouts understood by
// intelligence.ParseTimestamp. A malformed timestamp fails with
// ErrMalformedTimestamp; a missing confidence defaults to 1.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var raw memoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Memory{
		ID:              raw.ID,
		TenantID:        raw.TenantID,
		AgentID:         raw.AgentID,
		Content:         raw.Content,
		Embedding:       raw.Embedding,
		Type:            raw.Type,
		Tags:            raw.Tags,
		Importance:      raw.Importance,
		Confidence:      1,
		EmotionalWeight: raw.EmotionalWeight,
		AccessCount:     raw.AccessCount,
		Metadata:        raw.Metadata,
		Score:           raw.Score,
	}
	if raw.Confidence != nil {
		out.Confidence = *raw.Confidence
	}

	var err error
	if out.CreatedAt, err = parseOptionalTime("created_at", raw.CreatedAt); err != nil {
		return err
	}
	if out.UpdatedAt, err = parseOptionalTime("updated_at", raw.UpdatedAt); err != nil {
		return err
	}
	if out.LastAccessedAt, err = parseTimePtr("last_accessed_at", raw.LastAccessedAt); err != nil {
		return err
	}
	if out.ExpiresAt, err = parseTimePtr("expires_at", raw.ExpiresAt); err != nil {
		return err
	}

	*m = out
	return nil
}

func parseOptionalTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := intelligence.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func parseTimePtr(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseOptionalTime(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ScoreBreakdown holds the sub-scores behind a composite score.
type ScoreBreakdown struct {
	Semantic         float64 `json:"semantic"`
	Fuzzy            float64 `json:"fuzzy"`
	Recency          float64 `json:"recency"`
	Frequency        float64 `json:"frequency"`
	Importance       float64 `json:"importance"`
	ContextRelevance float64 `json:"context_relevance"`
}

// SearchResult is one ranked memory.
type SearchResult struct {
	// Memory is the ranked memory; Memory.Score equals Score.
	Memory *Memory `json:"memory"`

	// Score is the composite search score.
	Score float64 `json:"score"`

	// Breakdown holds the sub-scores of Score.
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ContextBundle is the structured context handed to an agent.
type ContextBundle struct {
	Memories   []*Memory                  `json:"memories"`
	Text       string                     `json:"text"`
	Themes     []synthesis.Theme          `json:"themes"`
	Emotional  synthesis.EmotionalContext `json:"emotional"`
	Temporal   synthesis.TemporalContext  `json:"temporal"`
	Confidence float64                    `json:"confidence"`
}

// MemoryResult is the outcome of an asynchronous single-memory operation.
type MemoryResult struct {
	Memory *Memory
	Error  error
}

// SearchResultsResult is the outcome of an asynchronous ranking operation.
type SearchResultsResult struct {
	Results []*SearchResult
	Error   error
}

// ErrorResult is the outcome of an asynchronous operation with no value.
type ErrorResult struct {
	Error error
}
