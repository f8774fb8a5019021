package core

import "time"

// SearchOption is a function type for configuring Search and Recall operations.
//
// Options are applied on top of the client's RetrievalConfig defaults.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search and Recall operations.
type SearchOptions struct {
	// TenantID scopes Recall to one tenant (required for Recall).
	TenantID string

	// AgentID narrows Recall to one agent.
	AgentID string

	// Limit is the maximum number of results. Must be >= 0. Default: 10
	Limit int

	// CandidatePool is the number of store candidates Recall ranks. Default: 50
	CandidatePool int

	// MinScore drops store candidates below this raw similarity (Recall only).
	MinScore float64

	// EnableFuzzyMatching turns on the lexical sub-score. Default: true
	EnableFuzzyMatching bool

	// FuzzyThreshold zeroes fuzzy scores below it. Default: 0.3
	FuzzyThreshold float64

	// Weights are the composite score coefficients.
	Weights Weights

	// DiversityFactor is the MMR penalty weight; 0 disables diversification. Default: 0.3
	DiversityFactor float64

	// EnableSemanticExpansion blends synonym terms into the query embedding.
	EnableSemanticExpansion bool

	// Context is the optional session context.
	Context *SearchContext

	// ContextBoost multiplies the context relevance term. Default: 0.2
	ContextBoost float64

	// Now is the evaluation instant. Zero means time.Now().
	Now time.Time
}

// WithTenantIDForSearch sets the tenant for Recall operations.
//
// Example:
//
//	results, _ := client.Recall(ctx, "query", core.WithTenantIDForSearch("user_001"))
func WithTenantIDForSearch(tenantID string) SearchOption {
	return func(opts *SearchOptions) {
		opts.TenantID = tenantID
	}
}

// WithAgentIDForSearch sets the agent for Recall operations.
func WithAgentIDForSearch(agentID string) SearchOption {
	return func(opts *SearchOptions) {
		opts.AgentID = agentID
	}
}

// WithLimit sets the maximum number of results.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", candidates, core.WithLimit(5))
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithCandidatePool sets how many store candidates Recall ranks.
func WithCandidatePool(n int) SearchOption {
	return func(opts *SearchOptions) {
		opts.CandidatePool = n
	}
}

// WithMinScore sets the minimum raw similarity of store candidates.
func WithMinScore(minScore float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.MinScore = minScore
	}
}

// WithFuzzyMatching enables or disables the fuzzy sub-score.
func WithFuzzyMatching(enabled bool) SearchOption {
	return func(opts *SearchOptions) {
		opts.EnableFuzzyMatching = enabled
	}
}

// WithFuzzyThreshold sets the minimum fuzzy score that counts.
func WithFuzzyThreshold(threshold float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.FuzzyThreshold = threshold
	}
}

// WithWeights sets the composite score coefficients.
//
// Example:
//
//	w := core.DefaultWeights()
//	w.Recency = 0.4
//	results, _ := client.Search(ctx, "query", candidates, core.WithWeights(w))
func WithWeights(weights Weights) SearchOption {
	return func(opts *SearchOptions) {
		opts.Weights = weights
	}
}

// WithDiversityFactor sets the MMR redundancy penalty.
func WithDiversityFactor(factor float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.DiversityFactor = factor
	}
}

// WithSemanticExpansion enables or disables synonym expansion of the query.
func WithSemanticExpansion(enabled bool) SearchOption {
	return func(opts *SearchOptions) {
		opts.EnableSemanticExpansion = enabled
	}
}

// WithSearchContext attaches session context to the query.
//
// Example:
//
//	results, _ := client.Search(ctx, "query", candidates, core.WithSearchContext(&core.SearchContext{
//	    RecentQueries: []string{"typescript generics"},
//	    TimeContext:   core.NewTimeContext(time.Now()),
//	}))
func WithSearchContext(sctx *SearchContext) SearchOption {
	return func(opts *SearchOptions) {
		opts.Context = sctx
	}
}

// WithContextBoost sets the multiplier of the context relevance term.
func WithContextBoost(boost float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.ContextBoost = boost
	}
}

// WithNow fixes the evaluation instant for recency and expiry.
func WithNow(now time.Time) SearchOption {
	return func(opts *SearchOptions) {
		opts.Now = now
	}
}

// applySearchOptions applies opts over the retrieval defaults.
func applySearchOptions(defaults RetrievalConfig, opts []SearchOption) *SearchOptions {
	searchOpts := &SearchOptions{
		Limit:                   defaults.Limit,
		CandidatePool:           defaults.CandidatePool,
		EnableFuzzyMatching:     defaults.EnableFuzzyMatching,
		FuzzyThreshold:          defaults.FuzzyThreshold,
		Weights:                 defaults.Weights,
		DiversityFactor:         defaults.DiversityFactor,
		EnableSemanticExpansion: defaults.EnableSemanticExpansion,
		ContextBoost:            defaults.ContextBoost,
	}
	for _, opt := range opts {
		opt(searchOpts)
	}
	return searchOpts
}

// RememberOption is a function type for configuring Remember operations.
type RememberOption func(*RememberOptions)

// RememberOptions contains configuration options for Remember operations.
type RememberOptions struct {
	// TenantID identifies the owner of the memory (required).
	TenantID string

	// AgentID identifies the agent associated with this memory.
	AgentID string

	// MemoryType is the kind of memory.
	MemoryType MemoryType

	// Importance is the stated importance. Nil lets the importance evaluator decide.
	Importance *float64

	// Confidence in [0, 1]. Default: 1
	Confidence float64

	// EmotionalWeight is the optional valence in [-1, 1].
	EmotionalWeight *float64

	// Tags are free-form labels.
	Tags []string

	// Metadata contains additional metadata about the memory.
	Metadata map[string]interface{}

	// TTL sets ExpiresAt relative to the creation time. 0 means never.
	TTL time.Duration

	// Now is the creation instant. Zero means time.Now().
	Now time.Time
}

// WithTenantID sets the tenant for Remember operations.
//
// Example:
//
//	memory, _ := client.Remember(ctx, "content", core.WithTenantID("user_001"))
func WithTenantID(tenantID string) RememberOption {
	return func(opts *RememberOptions) {
		opts.TenantID = tenantID
	}
}

// WithAgentID sets the agent for Remember operations.
func WithAgentID(agentID string) RememberOption {
	return func(opts *RememberOptions) {
		opts.AgentID = agentID
	}
}

// WithMemoryType sets the memory type.
func WithMemoryType(memoryType MemoryType) RememberOption {
	return func(opts *RememberOptions) {
		opts.MemoryType = memoryType
	}
}

// WithImportance sets an explicit importance.
func WithImportance(importance float64) RememberOption {
	return func(opts *RememberOptions) {
		opts.Importance = &importance
	}
}

// WithConfidence sets the confidence.
func WithConfidence(confidence float64) RememberOption {
	return func(opts *RememberOptions) {
		opts.Confidence = confidence
	}
}

// WithEmotionalWeight sets the emotional valence.
func WithEmotionalWeight(weight float64) RememberOption {
	return func(opts *RememberOptions) {
		opts.EmotionalWeight = &weight
	}
}

// WithTags sets the tags.
func WithTags(tags ...string) RememberOption {
	return func(opts *RememberOptions) {
		opts.Tags = append([]string(nil), tags...)
	}
}

// WithMetadata sets the metadata.
//
// Example:
//
//	memory, _ := client.Remember(ctx, "content",
//	    core.WithTenantID("user_001"),
//	    core.WithMetadata(map[string]interface{}{"source": "chat"}),
//	)
func WithMetadata(metadata map[string]interface{}) RememberOption {
	return func(opts *RememberOptions) {
		opts.Metadata = metadata
	}
}

// WithTTL makes the memory expire ttl after creation.
func WithTTL(ttl time.Duration) RememberOption {
	return func(opts *RememberOptions) {
		opts.TTL = ttl
	}
}

// WithCreatedAt fixes the creation instant.
func WithCreatedAt(now time.Time) RememberOption {
	return func(opts *RememberOptions) {
		opts.Now = now
	}
}

// applyRememberOptions applies Remember options and returns the configured options.
func applyRememberOptions(opts []RememberOption) *RememberOptions {
	rememberOpts := &RememberOptions{Confidence: 1}
	for _, opt := range opts {
		opt(rememberOpts)
	}
	return rememberOpts
}

// ForgetOption is a function type for configuring Forget operations.
type ForgetOption func(*ForgetOptions)

// ForgetOptions contains configuration options for Forget operations.
type ForgetOptions struct {
	// AgentID restricts the delete to one agent's memory.
	AgentID string
}

// WithAgentIDForForget restricts Forget to one agent.
func WithAgentIDForForget(agentID string) ForgetOption {
	return func(opts *ForgetOptions) {
		opts.AgentID = agentID
	}
}

func applyForgetOptions(opts []ForgetOption) *ForgetOptions {
	forgetOpts := &ForgetOptions{}
	for _, opt := range opts {
		opt(forgetOpts)
	}
	return forgetOpts
}

// ContextOption is a function type for configuring SummarizeContext and
// BuildContextBundle.
type ContextOption func(*ContextOptions)

// ContextOptions controls context synthesis.
type ContextOptions struct {
	// MaxLength caps the summary text in runes. Default: 2000
	MaxLength int

	// MaxPerType caps the memories listed under one heading. Default: 5
	MaxPerType int

	// IncludeScores prefixes each line with the memory score.
	IncludeScores bool

	// IncludeTimestamps prefixes each line with the creation date.
	IncludeTimestamps bool

	// MaxMemories caps the memories kept in a bundle. Default: 10
	MaxMemories int

	// MinImportance drops bundle memories below it.
	MinImportance float64
}

// WithMaxLength caps the summary length.
func WithMaxLength(n int) ContextOption {
	return func(opts *ContextOptions) {
		opts.MaxLength = n
	}
}

// WithMaxPerType caps the memories per type heading.
func WithMaxPerType(n int) ContextOption {
	return func(opts *ContextOptions) {
		opts.MaxPerType = n
	}
}

// WithScores includes memory scores in the summary.
func WithScores(enabled bool) ContextOption {
	return func(opts *ContextOptions) {
		opts.IncludeScores = enabled
	}
}

// WithTimestamps includes creation dates in the summary.
func WithTimestamps(enabled bool) ContextOption {
	return func(opts *ContextOptions) {
		opts.IncludeTimestamps = enabled
	}
}

// WithMaxMemories caps the memories in a context bundle.
func WithMaxMemories(n int) ContextOption {
	return func(opts *ContextOptions) {
		opts.MaxMemories = n
	}
}

// WithMinImportance drops bundle memories below the given importance.
func WithMinImportance(min float64) ContextOption {
	return func(opts *ContextOptions) {
		opts.MinImportance = min
	}
}

func applyContextOptions(opts []ContextOption) *ContextOptions {
	contextOpts := &ContextOptions{}
	for _, opt := range opts {
		opt(contextOpts)
	}
	return contextOpts
}
