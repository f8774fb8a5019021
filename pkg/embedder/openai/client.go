package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse indicates the API returned no embedding data.
var ErrEmptyResponse = errors.New("no data returned from embeddings API")

// Client is an OpenAI Embedder client.
// It implements the embedder.Provider interface on top of the Embeddings API.
// Any OpenAI-compatible server (for example a locally hosted model) can be
// used by setting BaseURL.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	// sendDimensions asks the API to shorten vectors (text-embedding-3 models only).
	sendDimensions bool
}

// Config is the configuration for OpenAI Embedder.
// APIKey: API key (required for api.openai.com)
// Model: Model name, defaults to text-embedding-3-small
// BaseURL: API base URL, defaults to OpenAI official address
// Dimensions: Vector dimensions, defaults to 1536
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient creates a new OpenAI Embedder client.
//
// Args:
//   - cfg: OpenAI Embedder configuration containing APIKey, Model, BaseURL, Dimensions
//
// Returns:
//   - *Client: OpenAI Embedder client instance
//   - error: Returns an error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("openai embedder: nil config")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	return &Client{
		client:         openai.NewClientWithConfig(config),
		model:          model,
		dimensions:     dimensions,
		sendDimensions: cfg.Dimensions > 0 && strings.HasPrefix(string(model), "text-embedding-3"),
	}, nil
}

// Embed converts a single text to a vector.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - text: Text content to vectorize
//
// Returns:
//   - []float64: Vector representation of the text
//   - error: The API error, unchanged apart from wrapping
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts multiple texts to vectors in batch.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - texts: List of texts to vectorize
//
// Returns:
//   - [][]float64: Vector representation for each text (order matches input texts)
//   - error: Returns an error if vectorization fails or the number of returned results doesn't match
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	}
	if c.sendDimensions {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d results, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: result index %d out of range", data.Index)
		}
		embedding64 := make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			embedding64[j] = float64(v)
		}
		embeddings[data.Index] = embedding64
	}

	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
