package synthesis

import (
	"sort"
	"time"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

// Composite weights of contextual filtering.
const (
	filterImportanceWeight = 0.6
	filterRecencyWeight    = 0.4
)

// FilterContextualMemories is filterContextual with the default decay curve.
//
// Parameters:
//   - memories: Candidate memories
//   - maxCount: Maximum number of memories to keep; <= 0 yields an empty result
//   - minImportance: Memories with lower importance are dropped
//   - now: Reference instant for recency
func FilterContextualMemories(memories []*intelligence.Memory, maxCount int, minImportance float64, now time.Time) []*intelligence.Memory {
	return filterContextual(memories, maxCount, minImportance, intelligence.NewTimeDecay(intelligence.DefaultDecayRate), now)
}

// filterContextual ranks eligible memories by 0.6*importance + 0.4*recency and
// keeps the best maxCount of them.
//
// When the eligible pool has more than one type, a first pass admits at most
// ceil(maxCount/2) memories of any one type; a second pass fills the
// remaining slots in rank order. The result is ordered by rank.
func filterContextual(
	memories []*intelligence.Memory,
	maxCount int,
	minImportance float64,
	decay *intelligence.TimeDecay,
	now time.Time,
) []*intelligence.Memory {
	if maxCount <= 0 {
		return []*intelligence.Memory{}
	}

	type ranked struct {
		memory *intelligence.Memory
		score  float64
	}
	eligible := make([]ranked, 0, len(memories))
	types := make(map[intelligence.MemoryType]struct{})
	for _, m := range memories {
		if m == nil || m.Importance < minImportance {
			continue
		}
		eligible = append(eligible, ranked{
			memory: m,
			score:  filterImportanceWeight*m.Importance + filterRecencyWeight*decay.DecayForItem(m, now),
		})
		types[m.Type] = struct{}{}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		return eligible[i].memory.ID < eligible[j].memory.ID
	})

	if len(eligible) <= maxCount {
		out := make([]*intelligence.Memory, len(eligible))
		for i, r := range eligible {
			out[i] = r.memory
		}
		return out
	}

	perTypeCap := maxCount
	if len(types) > 1 {
		perTypeCap = (maxCount + 1) / 2
	}

	taken := make([]bool, len(eligible))
	perType := make(map[intelligence.MemoryType]int)
	n := 0
	for i, r := range eligible {
		if n == maxCount {
			break
		}
		if perType[r.memory.Type] >= perTypeCap {
			continue
		}
		taken[i] = true
		perType[r.memory.Type]++
		n++
	}
	for i := range eligible {
		if n == maxCount {
			break
		}
		if !taken[i] {
			taken[i] = true
			n++
		}
	}

	out := make([]*intelligence.Memory, 0, maxCount)
	for i, r := range eligible {
		if taken[i] {
			out = append(out, r.memory)
		}
	}
	return out
}
