// Package embedder provides the embedding provider contract and the
// components layered on top of it: a bounded query embedding cache and a
// tiered fallback provider.
package embedder

import "context"

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI-compatible APIs, the hashing
// provider, Cache and Fallback) implement this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings,
	// in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

// TierReporter is implemented by providers that may answer from a secondary
// tier. Tier 0 is the primary provider; vectors from other tiers live in a
// different embedding space.
type TierReporter interface {
	// EmbedTier embeds text and reports which tier answered.
	EmbedTier(ctx context.Context, text string) ([]float64, int, error)

	// EmbedBatchTier embeds texts with a single tier and reports which one.
	EmbedBatchTier(ctx context.Context, texts []string) ([][]float64, int, error)
}

// EmbedWithTier embeds text with p and reports the answering tier.
// Providers without tiers always answer from tier 0.
func EmbedWithTier(ctx context.Context, p Provider, text string) ([]float64, int, error) {
	if tr, ok := p.(TierReporter); ok {
		return tr.EmbedTier(ctx, text)
	}
	vec, err := p.Embed(ctx, text)
	return vec, 0, err
}

// EmbedBatchWithTier is the batch form of EmbedWithTier.
func EmbedBatchWithTier(ctx context.Context, p Provider, texts []string) ([][]float64, int, error) {
	if tr, ok := p.(TierReporter); ok {
		return tr.EmbedBatchTier(ctx, texts)
	}
	vecs, err := p.EmbedBatch(ctx, texts)
	return vecs, 0, err
}
