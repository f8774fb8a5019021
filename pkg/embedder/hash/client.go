// Package hash provides an offline keyword embedding provider.
//
// Texts are embedded by feature hashing their word tokens and character
// trigrams into a fixed number of buckets. The vectors carry lexical overlap
// only, which makes the provider usable as the last tier of a fallback chain
// and for tests and local development without an API key.
package hash

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
)

// DefaultDimensions is used when Config.Dimensions is not set.
const DefaultDimensions = 256

// Config is the configuration for the hashing provider.
type Config struct {
	// Dimensions is the number of hash buckets. Default: 256
	Dimensions int

	// SkipStopWords drops stop words before hashing. Default: false
	SkipStopWords bool
}

// Client is a deterministic hashing embedder.
// It implements the embedder.Provider interface.
type Client struct {
	dimensions    int
	skipStopWords bool
}

// NewClient creates a new hashing embedder.
func NewClient(cfg *Config) *Client {
	c := &Client{dimensions: DefaultDimensions}
	if cfg != nil {
		if cfg.Dimensions > 0 {
			c.dimensions = cfg.Dimensions
		}
		c.skipStopWords = cfg.SkipStopWords
	}
	return c
}

// Embed converts a single text to a unit vector. Empty text yields a zero vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, c.dimensions)
	for _, tok := range similarity.Tokenize(text) {
		if c.skipStopWords && similarity.IsStopWord(tok) {
			continue
		}
		c.add(vec, "w:"+tok, 1.0)

		runes := []rune(tok)
		for i := 0; i+3 <= len(runes); i++ {
			c.add(vec, "g:"+string(runes[i:i+3]), 0.5)
		}
	}
	return similarity.Normalize(vec), nil
}

// EmbedBatch converts multiple texts to vectors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

// add hashes feature into a bucket with a sign bit so collisions cancel out on average.
func (c *Client) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)

	bucket := int(sum % uint64(c.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}
