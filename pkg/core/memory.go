package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/oceanbase/powermem-recall/internal/logger"
	"github.com/oceanbase/powermem-recall/pkg/embedder"
	hashEmbedder "github.com/oceanbase/powermem-recall/pkg/embedder/hash"
	openaiEmbedder "github.com/oceanbase/powermem-recall/pkg/embedder/openai"
	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/metrics"
	"github.com/oceanbase/powermem-recall/pkg/storage"
	"github.com/oceanbase/powermem-recall/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/powermem-recall/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/powermem-recall/pkg/storage/sqlite"
	"github.com/oceanbase/powermem-recall/pkg/synthesis"
)

// Client is the recall client.
//
// It provides:
//   - Search: rank and diversify a caller-supplied candidate set
//   - Recall: fetch tenant candidates from the vector store, then Search them
//   - Remember / Forget: persist and delete memories
//   - SummarizeContext / BuildContextBundle: reduce ranked memories to context
//
// The client is safe for concurrent use from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	results, _ := client.Recall(ctx, "typescript generics",
//	    core.WithTenantIDForSearch("user_001"),
//	    core.WithLimit(5),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// storage is the candidate source and access recorder (nil for Search-only clients).
	storage storage.VectorStore

	// embedder generates memory embeddings.
	embedder embedder.Provider

	// cache serves query embeddings.
	cache *embedder.Cache

	// recall runs scoring and diversification.
	recall *intelligence.RecallManager

	// importance estimates importance for memories stored without one.
	importance *intelligence.ImportanceEvaluator

	// synthesizer builds context summaries and bundles.
	synthesizer *synthesis.Synthesizer

	// snowflakeNode generates unique IDs for memories.
	snowflakeNode *snowflake.Node

	metrics *metrics.Metrics
	logger  *slog.Logger

	// ownedLogger is closed with the client when NewClient built it.
	ownedLogger *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// ClientOption configures optional collaborators of a Client.
type ClientOption func(*Client)

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors. Default: none.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new recall client from configuration.
//
// The client is initialized with:
//   - Vector store (SQLite, OceanBase, or PostgreSQL)
//   - Embedding provider (OpenAI-compatible, hash, or both as a fallback chain)
//   - Structured logger from cfg.Logging
//
// Parameters:
//   - cfg: Configuration containing storage, embedding and retrieval settings
//   - opts: Optional collaborators (metrics, logger override)
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	store, err := initStorage(cfg.VectorStore)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	embedderProvider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		_ = store.Close()
		_ = log.Close()
		return nil, err
	}

	opts = append([]ClientOption{WithLogger(log.Logger)}, opts...)
	client, err := NewClientWithProviders(cfg, embedderProvider, store, opts...)
	if err != nil {
		_ = store.Close()
		_ = embedderProvider.Close()
		_ = log.Close()
		return nil, err
	}
	client.ownedLogger = log

	return client, nil
}

// NewClientWithProviders creates a client from already constructed collaborators.
//
// Parameters:
//   - cfg: Configuration; only Retrieval is read. Nil uses DefaultRetrievalConfig
//   - emb: Embedding provider (required)
//   - store: Vector store; nil restricts the client to Search and synthesis
//   - opts: Optional collaborators (logger, metrics)
//
// The client takes ownership of emb and store and closes them in Close.
func NewClientWithProviders(cfg *Config, emb embedder.Provider, store storage.VectorStore, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &Config{Retrieval: DefaultRetrievalConfig()}
	}
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig))
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	client := &Client{
		config:        cfg,
		storage:       store,
		embedder:      emb,
		importance:    intelligence.NewImportanceEvaluator(),
		snowflakeNode: node,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}

	decay := intelligence.NewTimeDecay(cfg.Retrieval.DecayRate)
	client.recall = intelligence.NewRecallManager(decay)
	client.synthesizer = synthesis.New(synthesis.Config{Decay: decay})
	client.cache = embedder.NewCache(emb, embedder.CacheConfig{
		MaxEntries: cfg.Retrieval.CacheSize,
		Metrics:    client.metrics,
	})

	return client, nil
}

// Search ranks caller-supplied candidates against query.
//
// The method:
//  1. Embeds the query through the cache (optionally blended with expansion terms)
//  2. Scores every live candidate (semantic, fuzzy, recency, frequency, importance, context)
//  3. Sorts by composite score and diversifies down to the limit
//  4. Records an access for every returned memory when a store is configured
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Search query
//   - candidates: Memories to rank; expired and repeated IDs are ignored
//   - opts: Ranking options (limit, weights, fuzzy, diversity, context, ...)
//
// Returns the ranked results (highest score first). An empty candidate set
// returns an empty slice without embedding the query. Errors: ErrInvalidInput
// for a negative limit or negative weights, ErrDimensionMismatch when a
// candidate embedding has the wrong length, ErrEmbeddingFailed when the
// provider fails.
//
// Example:
//
//	results, err := client.Search(ctx, "typescript", candidates,
//	    core.WithLimit(5),
//	    core.WithDiversityFactor(0.5),
//	)
func (c *Client) Search(ctx context.Context, query string, candidates []*Memory, opts ...SearchOption) ([]*SearchResult, error) {
	start := time.Now()
	searchOpts := applySearchOptions(c.config.Retrieval, opts)

	results, err := c.search(ctx, query, toIntelligenceMemories(candidates), searchOpts, nil)
	c.metrics.ObserveSearch("search", start, len(candidates), len(results), err)
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	c.recordAccess(ctx, results, searchOpts.Now)
	return results, nil
}

// Recall retrieves tenant candidates from the vector store and ranks them.
//
// The query is embedded once; the same embedding drives the store lookup of
// CandidatePool candidates (at least Limit) and the ranking pass.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Search query
//   - opts: Ranking options; WithTenantIDForSearch is required
//
// Returns the ranked results, or an error. ErrTenantRequired when no tenant is
// given, ErrInvalidConfig when the client has no store.
func (c *Client) Recall(ctx context.Context, query string, opts ...SearchOption) ([]*SearchResult, error) {
	start := time.Now()
	searchOpts := applySearchOptions(c.config.Retrieval, opts)

	candidates, results, err := c.recallFromStore(ctx, query, searchOpts)
	c.metrics.ObserveSearch("recall", start, candidates, len(results), err)
	if err != nil {
		return nil, NewMemoryError("Recall", err)
	}

	c.recordAccess(ctx, results, searchOpts.Now)
	return results, nil
}

func (c *Client) recallFromStore(ctx context.Context, query string, opts *SearchOptions) (int, []*SearchResult, error) {
	if opts.TenantID == "" {
		return 0, nil, ErrTenantRequired
	}
	if c.storage == nil {
		return 0, nil, fmt.Errorf("%w: no vector store configured", ErrInvalidConfig)
	}
	if opts.Limit < 0 {
		return 0, nil, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, opts.Limit)
	}

	queryEmbedding, err := c.queryEmbedding(ctx, query, opts.EnableSemanticExpansion)
	if err != nil {
		return 0, nil, err
	}

	pool := opts.CandidatePool
	if pool < opts.Limit {
		pool = opts.Limit
	}
	stored, err := c.storage.Search(ctx, queryEmbedding, &storage.SearchOptions{
		TenantID: opts.TenantID,
		AgentID:  opts.AgentID,
		Limit:    pool,
		MinScore: opts.MinScore,
		Now:      opts.Now,
	})
	if err != nil {
		return 0, nil, storageError(err)
	}

	memories := fromStorageMemories(stored)
	if err := c.reembedDegraded(ctx, memories); err != nil {
		return 0, nil, err
	}

	candidates := toIntelligenceMemories(memories)
	results, err := c.search(ctx, query, candidates, opts, queryEmbedding)
	return len(candidates), results, err
}

// reembedDegraded replaces, for this ranking pass only, the embeddings of
// memories stored while the primary embedding tier was down. The stored rows
// keep their marker.
func (c *Client) reembedDegraded(ctx context.Context, memories []*Memory) error {
	var pending []*Memory
	var texts []string
	for _, m := range memories {
		if DegradedTier(m) > 0 {
			pending = append(pending, m)
			texts = append(texts, m.Content)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	embeddings, tier, err := embedder.EmbedBatchWithTier(ctx, c.embedder, texts)
	if err != nil {
		return embeddingError(err)
	}
	if tier > 0 {
		return degradedError(tier)
	}
	for i, m := range pending {
		m.Embedding = embeddings[i]
	}
	c.logger.Debug("re-embedded degraded memories", "memories", len(pending))
	return nil
}

// search runs the ranking pass. A nil queryEmbedding is computed on demand.
func (c *Client) search(
	ctx context.Context,
	query string,
	candidates []*intelligence.Memory,
	opts *SearchOptions,
	queryEmbedding []float64,
) ([]*SearchResult, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, opts.Limit)
	}
	if len(candidates) == 0 || opts.Limit == 0 {
		return []*SearchResult{}, nil
	}

	if queryEmbedding == nil {
		var err error
		queryEmbedding, err = c.queryEmbedding(ctx, query, opts.EnableSemanticExpansion)
		if err != nil {
			return nil, err
		}
	}

	weights := opts.Weights
	if weights.IsZero() {
		weights = DefaultWeights()
	}

	ranked, err := c.recall.Rank(&intelligence.RankRequest{
		Query:               query,
		QueryEmbedding:      queryEmbedding,
		Candidates:          candidates,
		Limit:               opts.Limit,
		DiversityFactor:     opts.DiversityFactor,
		Weights:             weights,
		EnableFuzzyMatching: opts.EnableFuzzyMatching,
		FuzzyThreshold:      opts.FuzzyThreshold,
		ContextBoost:        opts.ContextBoost,
		Context:             opts.Context,
		Now:                 opts.Now,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, len(ranked))
	for i, candidate := range ranked {
		results[i] = toSearchResult(candidate)
	}

	c.logger.Debug("ranked candidates",
		"query_len", len(query),
		"candidates", len(candidates),
		"results", len(results),
		"diversity", opts.DiversityFactor,
		"expansion", opts.EnableSemanticExpansion,
	)
	return results, nil
}

// queryEmbedding embeds query through the cache. With expansion enabled and
// synonyms found, the expansion embedding is blended in.
//
// A vector answered by a fallback tier fails the call with ErrDegraded: it
// is not comparable with primary-tier memory embeddings.
func (c *Client) queryEmbedding(ctx context.Context, query string, expand bool) ([]float64, error) {
	embedding, err := c.primaryQueryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	if !expand {
		return embedding, nil
	}

	terms := intelligence.ExpandQuery(query)
	if len(terms) == 0 {
		return embedding, nil
	}
	expansion, err := c.primaryQueryEmbedding(ctx, intelligence.ExpansionText(terms))
	if err != nil {
		return nil, err
	}
	return intelligence.BlendExpansion(embedding, expansion)
}

func (c *Client) primaryQueryEmbedding(ctx context.Context, text string) ([]float64, error) {
	embedding, tier, err := c.cache.GetOrEmbedTier(ctx, text)
	if err != nil {
		return nil, embeddingError(err)
	}
	if tier > 0 {
		c.logger.Warn("query embedding degraded", "tier", tier)
		return nil, degradedError(tier)
	}
	return embedding, nil
}

// recordAccess bumps the access count of returned memories, one call per
// tenant. Failures are logged and never change the returned ranking.
func (c *Client) recordAccess(ctx context.Context, results []*SearchResult, now time.Time) {
	if c.storage == nil || len(results) == 0 {
		return
	}
	at := storage.ReferenceNow(now)

	byTenant := make(map[string][]string)
	var tenants []string
	for _, r := range results {
		tenant := r.Memory.TenantID
		if tenant == "" {
			continue
		}
		if _, ok := byTenant[tenant]; !ok {
			tenants = append(tenants, tenant)
		}
		byTenant[tenant] = append(byTenant[tenant], r.Memory.ID)
	}

	for _, tenant := range tenants {
		if err := c.storage.RecordAccess(ctx, tenant, byTenant[tenant], at); err != nil {
			c.metrics.AccessUpdateFailed()
			c.logger.Warn("access update failed",
				"tenant", tenant,
				"memories", len(byTenant[tenant]),
				"error", err,
			)
		}
	}
}

// Remember stores a new memory.
//
// The method:
//  1. Generates an embedding vector for the content
//  2. Evaluates importance when none is given
//  3. Stores the memory with a snowflake ID
//
// Parameters:
//   - ctx: Context for cancellation
//   - content: Memory content
//   - opts: WithTenantID (required), WithMemoryType, WithImportance, WithTags, WithTTL, ...
//
// Returns the stored Memory, or an error if the operation fails.
//
// Example:
//
//	memory, err := client.Remember(ctx, "User prefers TypeScript",
//	    core.WithTenantID("user_001"),
//	    core.WithMemoryType(core.MemoryTypePreference),
//	    core.WithTags("language"),
//	)
func (c *Client) Remember(ctx context.Context, content string, opts ...RememberOption) (*Memory, error) {
	rememberOpts := applyRememberOptions(opts)

	if rememberOpts.TenantID == "" {
		return nil, NewMemoryError("Remember", ErrTenantRequired)
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Remember", fmt.Errorf("%w: empty content", ErrInvalidInput))
	}
	if c.storage == nil {
		return nil, NewMemoryError("Remember", fmt.Errorf("%w: no vector store configured", ErrInvalidConfig))
	}

	embedding, tier, err := embedder.EmbedWithTier(ctx, c.embedder, content)
	if err != nil {
		return nil, NewMemoryError("Remember", embeddingError(err))
	}

	now := storage.ReferenceNow(rememberOpts.Now)
	memory := &Memory{
		ID:              c.snowflakeNode.Generate().String(),
		TenantID:        rememberOpts.TenantID,
		Content:         content,
		Embedding:       embedding,
		Type:            rememberOpts.MemoryType,
		Tags:            rememberOpts.Tags,
		Confidence:      rememberOpts.Confidence,
		EmotionalWeight: rememberOpts.EmotionalWeight,
		Metadata:        rememberOpts.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rememberOpts.AgentID != "" {
		agentID := rememberOpts.AgentID
		memory.AgentID = &agentID
	}
	if rememberOpts.TTL > 0 {
		expiresAt := now.Add(rememberOpts.TTL)
		memory.ExpiresAt = &expiresAt
	}
	if rememberOpts.Importance != nil {
		memory.Importance = *rememberOpts.Importance
	} else {
		memory.Importance = c.importance.EvaluateImportance(content, memory.Type, memory.Tags, memory.Metadata)
	}
	if tier > 0 {
		memory.Metadata = markDegraded(memory.Metadata, tier)
	}

	if err := toIntelligenceMemory(memory).Validate(0); err != nil {
		return nil, NewMemoryError("Remember", err)
	}

	if err := c.storage.Insert(ctx, toStorageMemory(memory)); err != nil {
		return nil, NewMemoryError("Remember", storageError(err))
	}

	if tier > 0 {
		c.logger.Warn("memory stored with fallback embedding", "tenant", memory.TenantID, "id", memory.ID, "tier", tier)
	}
	c.logger.Debug("memory stored", "tenant", memory.TenantID, "id", memory.ID, "type", memory.Type)
	return memory, nil
}

// EmbedMissing fills the embedding of every candidate that has none with one
// batch call to the embedding provider. Candidates that already carry an
// embedding are left untouched. An answer from a fallback tier fails with
// ErrDegraded and leaves every candidate unchanged.
func (c *Client) EmbedMissing(ctx context.Context, candidates []*Memory) error {
	var pending []*Memory
	var texts []string
	for _, m := range candidates {
		if m != nil && len(m.Embedding) == 0 {
			pending = append(pending, m)
			texts = append(texts, m.Content)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	embeddings, tier, err := embedder.EmbedBatchWithTier(ctx, c.embedder, texts)
	if err != nil {
		return NewMemoryError("EmbedMissing", embeddingError(err))
	}
	if tier > 0 {
		return NewMemoryError("EmbedMissing", degradedError(tier))
	}
	for i, m := range pending {
		m.Embedding = embeddings[i]
	}
	return nil
}

// Get retrieves a memory of a tenant by ID.
func (c *Client) Get(ctx context.Context, tenantID, id string) (*Memory, error) {
	if tenantID == "" {
		return nil, NewMemoryError("Get", ErrTenantRequired)
	}
	if c.storage == nil {
		return nil, NewMemoryError("Get", fmt.Errorf("%w: no vector store configured", ErrInvalidConfig))
	}

	memory, err := c.storage.Get(ctx, id, &storage.GetOptions{TenantID: tenantID})
	if err != nil {
		return nil, NewMemoryError("Get", storageError(err))
	}
	return fromStorageMemory(memory), nil
}

// Forget deletes a memory of a tenant by ID.
//
// Returns an error matching ErrNotFound when no such memory exists.
func (c *Client) Forget(ctx context.Context, tenantID, id string, opts ...ForgetOption) error {
	if tenantID == "" {
		return NewMemoryError("Forget", ErrTenantRequired)
	}
	if c.storage == nil {
		return NewMemoryError("Forget", fmt.Errorf("%w: no vector store configured", ErrInvalidConfig))
	}

	forgetOpts := applyForgetOptions(opts)
	err := c.storage.Delete(ctx, id, &storage.DeleteOptions{
		TenantID: tenantID,
		AgentID:  forgetOpts.AgentID,
	})
	if err != nil {
		return NewMemoryError("Forget", storageError(err))
	}
	return nil
}

// SummarizeContext renders memories as grouped, length-bounded text.
//
// Memories are grouped by type in order of first appearance. An empty input
// yields "No relevant context available."; text over MaxLength is cut and
// ends with the truncation marker.
func (c *Client) SummarizeContext(memories []*Memory, opts ...ContextOption) string {
	contextOpts := applyContextOptions(opts)
	return c.synthesizer.Summarize(toIntelligenceMemories(memories), summaryOptions(contextOpts))
}

// BuildContextBundle selects the most useful memories for context and
// attaches summary text, themes, emotional and temporal analysis and a
// confidence score.
func (c *Client) BuildContextBundle(memories []*Memory, opts ...ContextOption) *ContextBundle {
	contextOpts := applyContextOptions(opts)
	bundle := c.synthesizer.BuildContextBundle(toIntelligenceMemories(memories), synthesis.BundleOptions{
		MaxMemories:   contextOpts.MaxMemories,
		MinImportance: contextOpts.MinImportance,
		Summary:       summaryOptions(contextOpts),
	})

	return &ContextBundle{
		Memories:   fromIntelligenceMemories(bundle.Memories),
		Text:       bundle.Text,
		Themes:     bundle.Themes,
		Emotional:  bundle.Emotional,
		Temporal:   bundle.Temporal,
		Confidence: bundle.Confidence,
	}
}

func summaryOptions(opts *ContextOptions) synthesis.SummaryOptions {
	return synthesis.SummaryOptions{
		MaxLength:         opts.MaxLength,
		MaxPerType:        opts.MaxPerType,
		IncludeScores:     opts.IncludeScores,
		IncludeTimestamps: opts.IncludeTimestamps,
	}
}

// CacheLen returns the number of cached query embeddings.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}

// Close releases the embedding provider, the store and the log file.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.cache.Close(); err != nil {
			errs = append(errs, err)
		}
		if c.storage != nil {
			if err := c.storage.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.ownedLogger.Close(); err != nil {
			errs = append(errs, err)
		}
		c.closeErr = NewMemoryError("Close", errors.Join(errs...))
	})
	return c.closeErr
}

// initStorage initializes the vector store from configuration.
func initStorage(cfg VectorStoreConfig) (storage.VectorStore, error) {
	switch cfg.Provider {
	case "oceanbase":
		store, err := oceanbase.NewClient(&oceanbase.Config{
			Host:               stringValue(cfg.Config, "host"),
			Port:               intValue(cfg.Config, "port"),
			User:               stringValue(cfg.Config, "user"),
			Password:           stringValue(cfg.Config, "password"),
			DBName:             stringValue(cfg.Config, "db_name"),
			CollectionName:     stringValue(cfg.Config, "collection_name"),
			EmbeddingModelDims: intValue(cfg.Config, "embedding_model_dims"),
		})
		if err != nil {
			return nil, NewMemoryError("initStorage", storageError(err))
		}
		return store, nil
	case "sqlite":
		store, err := sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:             stringValue(cfg.Config, "db_path"),
			CollectionName:     stringValue(cfg.Config, "collection_name"),
			EmbeddingModelDims: intValue(cfg.Config, "embedding_model_dims"),
		})
		if err != nil {
			return nil, NewMemoryError("initStorage", storageError(err))
		}
		return store, nil
	case "postgres":
		store, err := postgresStore.NewClient(&postgresStore.Config{
			Host:               stringValue(cfg.Config, "host"),
			Port:               intValue(cfg.Config, "port"),
			User:               stringValue(cfg.Config, "user"),
			Password:           stringValue(cfg.Config, "password"),
			DBName:             stringValue(cfg.Config, "db_name"),
			CollectionName:     stringValue(cfg.Config, "collection_name"),
			EmbeddingModelDims: intValue(cfg.Config, "embedding_model_dims"),
			SSLMode:            stringValue(cfg.Config, "ssl_mode"),
		})
		if err != nil {
			return nil, NewMemoryError("initStorage", storageError(err))
		}
		return store, nil
	default:
		return nil, NewMemoryError("initStorage", fmt.Errorf("%w: unsupported vector store provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider from configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		primary, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, NewMemoryError("initEmbedder", err)
		}
		if !cfg.Fallback {
			return primary, nil
		}
		chain, err := embedder.NewFallback(primary, hashEmbedder.NewClient(&hashEmbedder.Config{
			Dimensions: primary.Dimensions(),
		}))
		if err != nil {
			return nil, NewMemoryError("initEmbedder", err)
		}
		return chain, nil
	case "hash":
		return hashEmbedder.NewClient(&hashEmbedder.Config{Dimensions: cfg.Dimensions}), nil
	default:
		return nil, NewMemoryError("initEmbedder", fmt.Errorf("%w: unsupported embedder provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// stringValue reads a string from a provider config map.
func stringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// intValue reads an int from a provider config map. JSON numbers arrive as float64.
func intValue(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
