package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/core"
)

// clearEnv pins every variable LoadConfigFromEnv reads so that .env files
// found on disk cannot leak into the test.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_BASE_URL",
		"OPENAI_EMBEDDING_BASE_URL", "EMBEDDING_DIMS", "EMBEDDING_FALLBACK",
		"DATABASE_PROVIDER", "SQLITE_PATH", "SQLITE_COLLECTION", "SQLITE_EMBEDDING_MODEL_DIMS",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
		"POSTGRES_DATABASE", "POSTGRES_COLLECTION", "POSTGRES_EMBEDDING_MODEL_DIMS", "POSTGRES_SSLMODE",
		"OCEANBASE_HOST", "OCEANBASE_PORT", "OCEANBASE_USER", "OCEANBASE_PASSWORD",
		"OCEANBASE_DATABASE", "OCEANBASE_COLLECTION", "OCEANBASE_EMBEDDING_MODEL_DIMS",
		"RECALL_LIMIT", "RECALL_CANDIDATE_POOL", "RECALL_FUZZY", "RECALL_FUZZY_THRESHOLD",
		"RECALL_DIVERSITY", "RECALL_EXPANSION", "RECALL_CONTEXT_BOOST", "RECALL_DECAY_RATE",
		"RECALL_CACHE_SIZE", "RECALL_WEIGHTS",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.False(t, cfg.Embedder.Fallback)

	assert.Equal(t, "sqlite", cfg.VectorStore.Provider)
	assert.Equal(t, "./powermem.db", cfg.VectorStore.Config["db_path"])
	assert.Equal(t, 1536, cfg.VectorStore.Config["embedding_model_dims"])

	assert.Equal(t, core.DefaultRetrievalConfig(), cfg.Retrieval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "hash")
	t.Setenv("EMBEDDING_FALLBACK", "true")
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("RECALL_LIMIT", "5")
	t.Setenv("RECALL_DIVERSITY", "0.7")
	t.Setenv("RECALL_FUZZY", "false")
	t.Setenv("RECALL_EXPANSION", "true")
	t.Setenv("RECALL_WEIGHTS", "0.5, 0.1, 0.1, 0.1, 0.2")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.Embedder.Provider)
	assert.Equal(t, 256, cfg.Embedder.Dimensions)
	assert.True(t, cfg.Embedder.Fallback)

	assert.Equal(t, "postgres", cfg.VectorStore.Provider)
	assert.Equal(t, 6543, cfg.VectorStore.Config["port"])
	assert.Equal(t, 256, cfg.VectorStore.Config["embedding_model_dims"])
	assert.Equal(t, "disable", cfg.VectorStore.Config["ssl_mode"])

	assert.Equal(t, 5, cfg.Retrieval.Limit)
	assert.Equal(t, 0.7, cfg.Retrieval.DiversityFactor)
	assert.False(t, cfg.Retrieval.EnableFuzzyMatching)
	assert.True(t, cfg.Retrieval.EnableSemanticExpansion)
	assert.Equal(t, core.Weights{Semantic: 0.5, Fuzzy: 0.1, Recency: 0.1, Frequency: 0.1, Importance: 0.2}, cfg.Retrieval.Weights)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigFromEnvMalformedNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECALL_CANDIDATE_POOL", "lots")

	_, err := core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	clearEnv(t)
	t.Setenv("RECALL_WEIGHTS", "1,2,3")
	_, err = core.LoadConfigFromEnv()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RECALL_LIMIT=3\n"), 0o600))

	// Variables pinned by clearEnv are kept, so unset the one the file provides.
	require.NoError(t, os.Unsetenv("RECALL_LIMIT"))
	t.Cleanup(func() { _ = os.Unsetenv("RECALL_LIMIT") })

	cfg, err := core.LoadConfigFromEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retrieval.Limit)

	_, err = core.LoadConfigFromEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"embedder": {"provider": "hash", "dimensions": 64},
		"vector_store": {"provider": "sqlite", "config": {"db_path": "x.db", "embedding_model_dims": 64}},
		"retrieval": {"limit": 4, "diversity_factor": 0.5}
	}`), 0o600))

	cfg, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Embedder.Provider)
	assert.Equal(t, 4, cfg.Retrieval.Limit)
	assert.Equal(t, 0.5, cfg.Retrieval.DiversityFactor)
	assert.Equal(t, 50, cfg.Retrieval.CandidatePool, "absent fields keep defaults")
	assert.Equal(t, core.DefaultWeights(), cfg.Retrieval.Weights)
	assert.NoError(t, cfg.Validate())

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *core.Config {
		return &core.Config{
			Embedder:    core.EmbedderConfig{Provider: "hash"},
			VectorStore: core.VectorStoreConfig{Provider: "sqlite"},
			Retrieval:   core.DefaultRetrievalConfig(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*core.Config)
	}{
		{name: "missing embedder", mutate: func(c *core.Config) { c.Embedder.Provider = "" }},
		{name: "missing store", mutate: func(c *core.Config) { c.VectorStore.Provider = "" }},
		{name: "negative limit", mutate: func(c *core.Config) { c.Retrieval.Limit = -1 }},
		{name: "negative diversity", mutate: func(c *core.Config) { c.Retrieval.DiversityFactor = -0.1 }},
		{name: "negative weight", mutate: func(c *core.Config) { c.Retrieval.Weights.Semantic = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestParseWeights(t *testing.T) {
	w, err := core.ParseWeights("0.4,0.15,0.15,0.1,0.2")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultWeights(), w)

	_, err = core.ParseWeights("0.4,x,0.15,0.1,0.2")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestNewClientFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &core.Config{
		Embedder: core.EmbedderConfig{Provider: "hash", Dimensions: 64},
		VectorStore: core.VectorStoreConfig{
			Provider: "sqlite",
			Config: map[string]interface{}{
				"db_path":              filepath.Join(dir, "recall.db"),
				"embedding_model_dims": 64,
			},
		},
		Retrieval: core.DefaultRetrievalConfig(),
		Logging:   core.LoggingConfig{Level: "debug", Format: "json", Output: filepath.Join(dir, "logs", "recall.log")},
	}

	client, err := core.NewClient(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	m, err := client.Remember(ctx, "User prefers TypeScript for frontend work", core.WithTenantID("user_001"))
	require.NoError(t, err)

	results, err := client.Recall(ctx, "typescript frontend", core.WithTenantIDForSearch("user_001"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, m.ID, results[0].Memory.ID)

	require.NoError(t, client.Close())

	logged, err := os.ReadFile(filepath.Join(dir, "logs", "recall.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "memory stored")
}

func TestNewClientRejectsUnknownProviders(t *testing.T) {
	cfg := &core.Config{
		Embedder:    core.EmbedderConfig{Provider: "hash"},
		VectorStore: core.VectorStoreConfig{Provider: "redis"},
		Retrieval:   core.DefaultRetrievalConfig(),
	}
	_, err := core.NewClient(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	cfg.VectorStore = core.VectorStoreConfig{
		Provider: "sqlite",
		Config:   map[string]interface{}{"db_path": filepath.Join(t.TempDir(), "x.db")},
	}
	cfg.Embedder.Provider = "word2vec"
	_, err = core.NewClient(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
