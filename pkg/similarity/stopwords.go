package similarity

// stopWords are common English function words with no topical value.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
		"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
		"between", "both", "but", "by", "can", "could", "did", "does", "doing", "done",
		"down", "during", "each", "even", "ever", "every", "few", "for", "from", "further",
		"get", "gets", "got", "had", "has", "have", "having", "he", "her", "here", "hers",
		"herself", "him", "himself", "his", "how", "however", "i", "if", "in", "into", "is",
		"it", "its", "itself", "just", "like", "made", "make", "many", "may", "me", "might",
		"more", "most", "much", "must", "my", "myself", "never", "no", "nor", "not", "now",
		"of", "off", "often", "on", "once", "only", "or", "other", "ought", "our", "ours",
		"ourselves", "out", "over", "own", "quite", "rather", "really", "same", "she",
		"should", "since", "so", "some", "still", "such", "than", "that", "the", "their",
		"theirs", "them", "themselves", "then", "there", "these", "they", "thing", "things",
		"this", "those", "through", "thus", "to", "too", "under", "until", "up", "upon",
		"us", "use", "used", "uses", "using", "very", "was", "we", "well", "were", "what",
		"when", "where", "whether", "which", "while", "who", "whom", "why", "will", "with",
		"within", "without", "would", "yet", "you", "your", "yours", "yourself",
		"yourselves",
	} {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether the lowercase token w is a stop word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
