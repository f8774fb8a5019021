package synthesis

import (
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

const (
	// MaxThemes caps the themes returned by ExtractThemes.
	MaxThemes = 10

	// minThemeLength is the shortest token, in characters, kept as a theme.
	minThemeLength = 4

	// sentimentThreshold separates positive and negative from neutral valence.
	sentimentThreshold = 0.2
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Theme is a recurring keyword across a memory set.
type Theme struct {
	Theme      string  `json:"theme"`
	Frequency  int     `json:"frequency"`
	Importance float64 `json:"importance"`
}

// ExtractThemes returns up to MaxThemes keywords ordered by frequency times
// the mean importance of the memories that contain them.
//
// Tokens are lowercased words; stop words, numbers and tokens shorter than four
// characters are dropped. Ties are broken by frequency, then alphabetically.
func ExtractThemes(memories []*intelligence.Memory) []Theme {
	type stat struct {
		freq          int
		importanceSum float64
		memories      int
	}
	stats := make(map[string]*stat)

	for _, m := range memories {
		if m == nil {
			continue
		}
		seen := make(map[string]struct{})
		for _, tok := range similarity.Tokenize(m.Content) {
			if !isThemeToken(tok) {
				continue
			}
			st, ok := stats[tok]
			if !ok {
				st = &stat{}
				stats[tok] = st
			}
			st.freq++
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				st.importanceSum += m.Importance
				st.memories++
			}
		}
	}

	themes := make([]Theme, 0, len(stats))
	for tok, st := range stats {
		themes = append(themes, Theme{
			Theme:      tok,
			Frequency:  st.freq,
			Importance: st.importanceSum / float64(st.memories),
		})
	}

	sort.Slice(themes, func(i, j int) bool {
		si := float64(themes[i].Frequency) * themes[i].Importance
		sj := float64(themes[j].Frequency) * themes[j].Importance
		if si != sj {
			return si > sj
		}
		if themes[i].Frequency != themes[j].Frequency {
			return themes[i].Frequency > themes[j].Frequency
		}
		return themes[i].Theme < themes[j].Theme
	})

	if len(themes) > MaxThemes {
		themes = themes[:MaxThemes]
	}
	return themes
}

func isThemeToken(tok string) bool {
	if utf8.RuneCountInString(tok) < minThemeLength || similarity.IsStopWord(tok) {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// EmotionalContext is the aggregate valence of a memory set.
type EmotionalContext struct {
	OverallSentiment string         `json:"overall_sentiment"`
	EmotionalWeight  float64        `json:"emotional_weight"`
	Distribution     map[string]int `json:"distribution"`
}

// AnalyzeEmotionalContext averages EmotionalWeight over the memories that set it.
//
// Memories without a weight are excluded rather than counted as 0. The mean
// is positive above 0.2, negative below -0.2 and neutral otherwise; the
// distribution counts memories per bucket of their own weight. When no memory
// has a weight the result is neutral with weight 0 and an empty distribution.
func AnalyzeEmotionalContext(memories []*intelligence.Memory) EmotionalContext {
	out := EmotionalContext{
		OverallSentiment: SentimentNeutral,
		Distribution:     map[string]int{},
	}

	var sum float64
	var n int
	for _, m := range memories {
		if m == nil || m.EmotionalWeight == nil {
			continue
		}
		w := *m.EmotionalWeight
		sum += w
		n++
		out.Distribution[classifySentiment(w)]++
	}
	if n == 0 {
		return out
	}

	out.EmotionalWeight = sum / float64(n)
	out.OverallSentiment = classifySentiment(out.EmotionalWeight)
	return out
}

func classifySentiment(w float64) string {
	switch {
	case w > sentimentThreshold:
		return SentimentPositive
	case w < -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Temporal periods, in timeline order.
const (
	PeriodLastHour  = "last_hour"
	PeriodToday     = "today"
	PeriodThisWeek  = "this_week"
	PeriodThisMonth = "this_month"
	PeriodThisYear  = "this_year"
	PeriodOlder     = "older"
)

var periods = []struct {
	name   string
	maxAge time.Duration
}{
	{PeriodLastHour, time.Hour},
	{PeriodToday, 24 * time.Hour},
	{PeriodThisWeek, 7 * 24 * time.Hour},
	{PeriodThisMonth, 30 * 24 * time.Hour},
	{PeriodThisYear, 365 * 24 * time.Hour},
}

// TimelineEntry describes one non-empty temporal bucket.
type TimelineEntry struct {
	Period            string  `json:"period"`
	Count             int     `json:"count"`
	AverageImportance float64 `json:"average_importance"`
}

// TemporalContext is the age distribution of a memory set.
type TemporalContext struct {
	Timeline            []TimelineEntry `json:"timeline"`
	RecencyDistribution map[string]int  `json:"recency_distribution"`
}

// PeriodOf returns the bucket for a memory created at createdAt.
// Instants in the future count as last_hour.
func PeriodOf(createdAt, now time.Time) string {
	age := now.Sub(createdAt)
	for _, p := range periods {
		if age < p.maxAge {
			return p.name
		}
	}
	return PeriodOlder
}

// AnalyzeTemporalContext buckets memories by CreatedAt relative to now.
//
// The timeline lists non-empty buckets in the fixed order last_hour, today,
// this_week, this_month, this_year, older with the count and mean importance
// of each. Empty buckets are omitted from both the timeline and the distribution.
func AnalyzeTemporalContext(memories []*intelligence.Memory, now time.Time) TemporalContext {
	counts := make(map[string]int)
	importance := make(map[string]float64)
	for _, m := range memories {
		if m == nil {
			continue
		}
		p := PeriodOf(m.CreatedAt, now)
		counts[p]++
		importance[p] += m.Importance
	}

	out := TemporalContext{
		Timeline:            []TimelineEntry{},
		RecencyDistribution: counts,
	}
	for _, name := range periodOrder() {
		c := counts[name]
		if c == 0 {
			continue
		}
		out.Timeline = append(out.Timeline, TimelineEntry{
			Period:            name,
			Count:             c,
			AverageImportance: importance[name] / float64(c),
		})
	}
	return out
}

func periodOrder() []string {
	names := make([]string, 0, len(periods)+1)
	for _, p := range periods {
		names = append(names, p.name)
	}
	return append(names, PeriodOlder)
}
