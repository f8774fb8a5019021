package intelligence

import (
	"sort"
	"strings"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

// ExpansionWeight is the share of the raw query embedding when it is blended
// with the embedding of its expansion terms.
const ExpansionWeight = 0.7

// synonyms maps a lowercase term to related terms used for semantic expansion.
var synonyms = map[string][]string{
	"typescript": {"javascript", "ts", "node"},
	"javascript": {"typescript", "js", "node"},
	"golang":     {"go"},
	"python":     {"py", "pip"},
	"project":    {"repository", "codebase", "app"},
	"projects":   {"repositories", "codebases", "apps"},
	"code":       {"source", "program", "implementation"},
	"bug":        {"defect", "issue", "error"},
	"error":      {"failure", "exception", "bug"},
	"meeting":    {"call", "sync", "standup"},
	"schedule":   {"calendar", "agenda", "plan"},
	"task":       {"todo", "assignment", "job"},
	"deadline":   {"due", "cutoff"},
	"like":       {"prefer", "enjoy", "favorite"},
	"prefer":     {"like", "favor", "favorite"},
	"favorite":   {"preferred", "best", "like"},
	"dislike":    {"hate", "avoid"},
	"happy":      {"glad", "pleased", "joyful"},
	"sad":        {"unhappy", "upset", "down"},
	"angry":      {"upset", "frustrated", "annoyed"},
	"food":       {"meal", "dish", "cuisine"},
	"coffee":     {"espresso", "latte", "caffeine"},
	"work":       {"job", "office", "career"},
	"home":       {"house", "apartment"},
	"travel":     {"trip", "journey", "vacation"},
	"learn":      {"study", "practice"},
	"remember":   {"recall", "memorize"},
	"friend":     {"buddy", "pal", "colleague"},
	"family":     {"parents", "siblings", "relatives"},
	"exercise":   {"workout", "training", "gym"},
	"morning":    {"breakfast", "dawn"},
	"evening":    {"dinner", "night"},
}

// ExpandQuery returns the expansion terms for query.
//
// Terms already present in the query are skipped and the result is sorted
// and free of duplicates. A query with no known terms returns nil.
func ExpandQuery(query string) []string {
	tokens := similarity.Tokenize(query)
	present := tokenSet(tokens)

	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range tokens {
		for _, syn := range synonyms[tok] {
			if _, ok := present[syn]; ok {
				continue
			}
			if _, ok := seen[syn]; ok {
				continue
			}
			seen[syn] = struct{}{}
			terms = append(terms, syn)
		}
	}
	sort.Strings(terms)
	return terms
}

// ExpansionText joins expansion terms into the text that gets embedded.
func ExpansionText(terms []string) string {
	return strings.Join(terms, " ")
}

// BlendExpansion mixes the query embedding with the expansion embedding.
//
// The result is normalize(ExpansionWeight*query + (1-ExpansionWeight)*expansion).
func BlendExpansion(query, expansion []float64) ([]float64, error) {
	return similarity.Blend(query, expansion, ExpansionWeight)
}
