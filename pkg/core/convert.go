package core

import (
	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

// toStorageMemory converts a core.Memory to storage.Memory.
func toStorageMemory(m *Memory) *storage.Memory {
	return &storage.Memory{
		ID:              m.ID,
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Type:            string(m.Type),
		Tags:            m.Tags,
		Importance:      m.Importance,
		Confidence:      m.Confidence,
		EmotionalWeight: m.EmotionalWeight,
		AccessCount:     m.AccessCount,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
		ExpiresAt:       m.ExpiresAt,
		Score:           m.Score,
	}
}

// fromStorageMemory converts a storage.Memory to core.Memory.
func fromStorageMemory(m *storage.Memory) *Memory {
	return &Memory{
		ID:              m.ID,
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Type:            MemoryType(m.Type),
		Tags:            m.Tags,
		Importance:      m.Importance,
		Confidence:      m.Confidence,
		EmotionalWeight: m.EmotionalWeight,
		AccessCount:     m.AccessCount,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
		ExpiresAt:       m.ExpiresAt,
		Score:           m.Score,
	}
}

// fromStorageMemories converts a slice of storage.Memory to a slice of core.Memory.
func fromStorageMemories(memories []*storage.Memory) []*Memory {
	result := make([]*Memory, len(memories))
	for i, m := range memories {
		result[i] = fromStorageMemory(m)
	}
	return result
}

// toIntelligenceMemory converts a core.Memory to intelligence.Memory.
func toIntelligenceMemory(m *Memory) *intelligence.Memory {
	return &intelligence.Memory{
		ID:              m.ID,
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Type:            m.Type,
		Tags:            m.Tags,
		Importance:      m.Importance,
		Confidence:      m.Confidence,
		EmotionalWeight: m.EmotionalWeight,
		AccessCount:     m.AccessCount,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
		ExpiresAt:       m.ExpiresAt,
		Score:           m.Score,
	}
}

// toIntelligenceMemories converts core memories, skipping nil entries.
func toIntelligenceMemories(memories []*Memory) []*intelligence.Memory {
	result := make([]*intelligence.Memory, 0, len(memories))
	for _, m := range memories {
		if m == nil {
			continue
		}
		result = append(result, toIntelligenceMemory(m))
	}
	return result
}

// fromIntelligenceMemory converts an intelligence.Memory to core.Memory.
func fromIntelligenceMemory(m *intelligence.Memory) *Memory {
	return &Memory{
		ID:              m.ID,
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Content:         m.Content,
		Embedding:       m.Embedding,
		Type:            m.Type,
		Tags:            m.Tags,
		Importance:      m.Importance,
		Confidence:      m.Confidence,
		EmotionalWeight: m.EmotionalWeight,
		AccessCount:     m.AccessCount,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
		ExpiresAt:       m.ExpiresAt,
		Score:           m.Score,
	}
}

// fromIntelligenceMemories converts a slice of intelligence.Memory.
func fromIntelligenceMemories(memories []*intelligence.Memory) []*Memory {
	result := make([]*Memory, len(memories))
	for i, m := range memories {
		result[i] = fromIntelligenceMemory(m)
	}
	return result
}

// toSearchResult converts a ranked candidate, stamping the composite score on
// the returned memory.
func toSearchResult(c *intelligence.ScoredCandidate) *SearchResult {
	memory := fromIntelligenceMemory(c.Memory)
	memory.Score = c.SearchScore
	return &SearchResult{
		Memory: memory,
		Score:  c.SearchScore,
		Breakdown: ScoreBreakdown{
			Semantic:         c.Semantic,
			Fuzzy:            c.Fuzzy,
			Recency:          c.Recency,
			Frequency:        c.Frequency,
			Importance:       c.Importance,
			ContextRelevance: c.ContextRelevance,
		},
	}
}
