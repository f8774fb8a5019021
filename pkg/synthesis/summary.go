package synthesis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

const (
	// NoContextSentinel is returned by Summarize for an empty input.
	NoContextSentinel = "No relevant context available."

	// TruncationMarker is appended when a summary is cut to MaxLength.
	TruncationMarker = "\n...[truncated]"

	// DefaultMaxLength is the summary length bound used when none is given.
	DefaultMaxLength = 2000

	// DefaultMaxPerType caps the snippets rendered per memory type.
	DefaultMaxPerType = 5
)

// SummaryOptions controls Summarize.
type SummaryOptions struct {
	// MaxLength bounds the summary in characters. Default: 2000
	MaxLength int

	// MaxPerType caps the snippets per type. Default: 5
	MaxPerType int

	// IncludeScores prefixes each snippet with its relevance score.
	IncludeScores bool

	// IncludeTimestamps prefixes each snippet with its creation date.
	IncludeTimestamps bool
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.MaxPerType <= 0 {
		o.MaxPerType = DefaultMaxPerType
	}
	return o
}

var typeHeadings = map[intelligence.MemoryType]string{
	intelligence.MemoryTypeFact:        "Facts",
	intelligence.MemoryTypePreference:  "Preferences",
	intelligence.MemoryTypePersonality: "Personality",
	intelligence.MemoryTypeEmotion:     "Emotions",
	intelligence.MemoryTypeTask:        "Tasks",
	intelligence.MemoryTypeThread:      "Conversation Threads",
	intelligence.MemoryTypeProcedure:   "Procedures",
}

func heading(t intelligence.MemoryType) string {
	if h, ok := typeHeadings[t]; ok {
		return h
	}
	if t == "" {
		return "Other"
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Summarize renders memories grouped by type.
//
// Groups appear in the order their type first occurs in memories, so the
// best-ranked type comes first. Each group has a "## Heading" line followed by
// at most MaxPerType "- snippet" lines. When the text exceeds MaxLength it is
// cut and TruncationMarker appended; the result is never longer than
// max(MaxLength, len(TruncationMarker)).
//
// An empty input returns NoContextSentinel.
func Summarize(memories []*intelligence.Memory, opts SummaryOptions) string {
	opts = opts.withDefaults()

	var order []intelligence.MemoryType
	groups := make(map[intelligence.MemoryType][]*intelligence.Memory)
	for _, m := range memories {
		if m == nil {
			continue
		}
		if _, ok := groups[m.Type]; !ok {
			order = append(order, m.Type)
			groups[m.Type] = nil
		}
		if len(groups[m.Type]) < opts.MaxPerType {
			groups[m.Type] = append(groups[m.Type], m)
		}
	}
	if len(order) == 0 {
		return NoContextSentinel
	}

	var b strings.Builder
	for i, t := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(heading(t))
		b.WriteString("\n")
		for _, m := range groups[t] {
			b.WriteString("- ")
			if opts.IncludeScores {
				fmt.Fprintf(&b, "[%.2f] ", m.Score)
			}
			if opts.IncludeTimestamps && !m.CreatedAt.IsZero() {
				fmt.Fprintf(&b, "[%s] ", m.CreatedAt.UTC().Format("2006-01-02"))
			}
			b.WriteString(strings.TrimSpace(m.Content))
			b.WriteString("\n")
		}
	}

	return truncate(strings.TrimRight(b.String(), "\n"), opts.MaxLength)
}

// truncate cuts s so that the result including TruncationMarker fits maxLen
// characters. Strings already within maxLen are returned unchanged.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	keep := maxLen - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:keep]), " \n") + TruncationMarker
}
