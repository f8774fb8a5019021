package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

// Config contains the complete configuration for a recall client.
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    VectorStore: core.VectorStoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./memories.db",
//	        },
//	    },
//	    Retrieval: core.DefaultRetrievalConfig(),
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// VectorStore contains vector store configuration.
	VectorStore VectorStoreConfig `json:"vector_store"`

	// Retrieval contains ranking defaults.
	Retrieval RetrievalConfig `json:"retrieval"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `json:"logging"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, hash
//
// With Fallback set, the openai provider is followed by the offline hash
// provider of the same dimensionality, which answers when the remote API fails.
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, hash).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional). Any OpenAI-compatible
	// embeddings endpoint works.
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536, 256).
	Dimensions int `json:"dimensions,omitempty"`

	// Fallback adds the hash provider as a second tier.
	Fallback bool `json:"fallback,omitempty"`
}

// VectorStoreConfig contains configuration for the vector store.
//
// Supported providers: oceanbase, sqlite, postgres
type VectorStoreConfig struct {
	// Provider is the vector store provider name (oceanbase, sqlite, postgres).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, collection_name, embedding_model_dims
	// For OceanBase: host, port, user, password, db_name, collection_name, embedding_model_dims
	// For PostgreSQL: host, port, user, password, db_name, collection_name, embedding_model_dims, ssl_mode
	Config map[string]interface{} `json:"config"`
}

// RetrievalConfig holds the ranking defaults applied to every Search and Recall.
type RetrievalConfig struct {
	// Limit is the default result cap. Default: 10
	Limit int `json:"limit"`

	// CandidatePool is the number of store candidates Recall ranks. Default: 50
	CandidatePool int `json:"candidate_pool"`

	// EnableFuzzyMatching turns on the lexical sub-score. Default: true
	EnableFuzzyMatching bool `json:"enable_fuzzy_matching"`

	// FuzzyThreshold zeroes fuzzy scores below it. Default: 0.3
	FuzzyThreshold float64 `json:"fuzzy_threshold"`

	// Weights are the composite score coefficients.
	Weights Weights `json:"weights"`

	// DiversityFactor is the MMR penalty weight. Default: 0.3
	DiversityFactor float64 `json:"diversity_factor"`

	// EnableSemanticExpansion blends synonym terms into the query embedding.
	EnableSemanticExpansion bool `json:"enable_semantic_expansion"`

	// ContextBoost multiplies the context relevance term. Default: 0.2
	ContextBoost float64 `json:"context_boost"`

	// DecayRate is the Ebbinghaus decay rate per day. Default: 0.1
	DecayRate float64 `json:"decay_rate"`

	// CacheSize bounds the query embedding cache. Default: 1000
	CacheSize int `json:"cache_size"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `json:"level"`

	// Format is json or text. Default: text
	Format string `json:"format"`

	// Output is stdout, stderr or a file path. Default: stderr
	Output string `json:"output,omitempty"`
}

// DefaultRetrievalConfig returns the ranking defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Limit:               10,
		CandidatePool:       50,
		EnableFuzzyMatching: true,
		FuzzyThreshold:      intelligence.DefaultFuzzyThreshold,
		Weights:             DefaultWeights(),
		DiversityFactor:     0.3,
		ContextBoost:        intelligence.DefaultContextBoost,
		DecayRate:           intelligence.DefaultDecayRate,
		CacheSize:           1000,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, oceanbase, postgres)
//   - SQLITE_PATH, SQLITE_COLLECTION, SQLITE_EMBEDDING_MODEL_DIMS
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, etc.
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL,
//     EMBEDDING_DIMS, EMBEDDING_FALLBACK
//   - RECALL_LIMIT, RECALL_CANDIDATE_POOL, RECALL_FUZZY, RECALL_FUZZY_THRESHOLD,
//     RECALL_DIVERSITY, RECALL_EXPANSION, RECALL_CONTEXT_BOOST, RECALL_DECAY_RATE,
//     RECALL_CACHE_SIZE, RECALL_WEIGHTS (semantic,fuzzy,recency,frequency,importance)
//   - LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT
//
// Returns a Config instance, or an error if a numeric variable is malformed.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	dims, err := getEnvInt("EMBEDDING_DIMS", 0)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromEnv", err)
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderModel := os.Getenv("EMBEDDING_MODEL")
	embedderBaseURL := os.Getenv("EMBEDDING_BASE_URL")
	switch embedderProvider {
	case "openai":
		if embedderBaseURL == "" {
			embedderBaseURL = os.Getenv("OPENAI_EMBEDDING_BASE_URL")
		}
		if embedderModel == "" {
			embedderModel = "text-embedding-3-small"
		}
		if dims == 0 {
			dims = 1536
		}
	case "hash":
		if dims == 0 {
			dims = 256
		}
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	vectorStoreConfig := make(map[string]interface{})

	switch provider {
	case "oceanbase":
		port, err := getEnvInt("OCEANBASE_PORT", 2881)
		if err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
		storeDims, err := getEnvInt("OCEANBASE_EMBEDDING_MODEL_DIMS", dims)
		if err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":                 port,
			"user":                 getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password":             os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":              getEnvOrDefault("OCEANBASE_DATABASE", "powermem"),
			"collection_name":      getEnvOrDefault("OCEANBASE_COLLECTION", "memories"),
			"embedding_model_dims": storeDims,
		}
	case "sqlite":
		storeDims, err := getEnvInt("SQLITE_EMBEDDING_MODEL_DIMS", dims)
		if err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
		vectorStoreConfig = map[string]interface{}{
			"db_path":              getEnvOrDefault("SQLITE_PATH", "./powermem.db"),
			"collection_name":      getEnvOrDefault("SQLITE_COLLECTION", "memories"),
			"embedding_model_dims": storeDims,
		}
	case "postgres":
		port, err := getEnvInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
		storeDims, err := getEnvInt("POSTGRES_EMBEDDING_MODEL_DIMS", dims)
		if err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":                 port,
			"user":                 getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":             os.Getenv("POSTGRES_PASSWORD"),
			"db_name":              getEnvOrDefault("POSTGRES_DATABASE", "powermem"),
			"collection_name":      getEnvOrDefault("POSTGRES_COLLECTION", "memories"),
			"embedding_model_dims": storeDims,
			"ssl_mode":             getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	}

	retrieval, err := loadRetrievalFromEnv()
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromEnv", err)
	}

	config := &Config{
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    embedderBaseURL,
			Dimensions: dims,
			Fallback:   os.Getenv("EMBEDDING_FALLBACK") == "true",
		},
		VectorStore: VectorStoreConfig{
			Provider: provider,
			Config:   vectorStoreConfig,
		},
		Retrieval: retrieval,
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
			Output: os.Getenv("LOG_OUTPUT"),
		},
	}

	return config, nil
}

// loadRetrievalFromEnv overlays RECALL_* variables on the defaults.
func loadRetrievalFromEnv() (RetrievalConfig, error) {
	r := DefaultRetrievalConfig()
	var err error

	if r.Limit, err = getEnvInt("RECALL_LIMIT", r.Limit); err != nil {
		return r, err
	}
	if r.CandidatePool, err = getEnvInt("RECALL_CANDIDATE_POOL", r.CandidatePool); err != nil {
		return r, err
	}
	if r.CacheSize, err = getEnvInt("RECALL_CACHE_SIZE", r.CacheSize); err != nil {
		return r, err
	}
	if r.FuzzyThreshold, err = getEnvFloat("RECALL_FUZZY_THRESHOLD", r.FuzzyThreshold); err != nil {
		return r, err
	}
	if r.DiversityFactor, err = getEnvFloat("RECALL_DIVERSITY", r.DiversityFactor); err != nil {
		return r, err
	}
	if r.ContextBoost, err = getEnvFloat("RECALL_CONTEXT_BOOST", r.ContextBoost); err != nil {
		return r, err
	}
	if r.DecayRate, err = getEnvFloat("RECALL_DECAY_RATE", r.DecayRate); err != nil {
		return r, err
	}
	if v := os.Getenv("RECALL_FUZZY"); v != "" {
		r.EnableFuzzyMatching = v == "true"
	}
	if v := os.Getenv("RECALL_EXPANSION"); v != "" {
		r.EnableSemanticExpansion = v == "true"
	}
	if v := os.Getenv("RECALL_WEIGHTS"); v != "" {
		if r.Weights, err = ParseWeights(v); err != nil {
			return r, err
		}
	}
	return r, nil
}

// ParseWeights parses "semantic,fuzzy,recency,frequency,importance".
func ParseWeights(s string) (Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return Weights{}, fmt.Errorf("%w: weights need 5 comma-separated values, got %d", ErrInvalidConfig, len(parts))
	}
	values := make([]float64, 5)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("%w: weight %q: %v", ErrInvalidConfig, p, err)
		}
		values[i] = v
	}
	return Weights{
		Semantic:   values[0],
		Fuzzy:      values[1],
		Recency:    values[2],
		Frequency:  values[3],
		Importance: values[4],
	}, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Fields absent from the file keep the retrieval defaults.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	config := Config{Retrieval: DefaultRetrievalConfig()}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - Embedder and vector store providers are specified
//   - Retrieval limits are non-negative and weights are non-negative
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Embedder.Provider == "" {
		return NewMemoryError("Validate", fmt.Errorf("%w: embedder provider is required", ErrInvalidConfig))
	}
	if c.VectorStore.Provider == "" {
		return NewMemoryError("Validate", fmt.Errorf("%w: vector store provider is required", ErrInvalidConfig))
	}
	return c.Retrieval.Validate()
}

// Validate checks the retrieval defaults.
func (r RetrievalConfig) Validate() error {
	if r.Limit < 0 || r.CandidatePool < 0 || r.CacheSize < 0 {
		return NewMemoryError("Validate", fmt.Errorf("%w: negative limit, candidate pool or cache size", ErrInvalidConfig))
	}
	if r.DiversityFactor < 0 || r.ContextBoost < 0 || r.DecayRate < 0 {
		return NewMemoryError("Validate", fmt.Errorf("%w: negative diversity factor, context boost or decay rate", ErrInvalidConfig))
	}
	if err := r.Weights.Validate(); err != nil {
		return NewMemoryError("Validate", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value)
	}
	return f, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
