package embedder

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoProviders indicates a Fallback built without any tier.
	ErrNoProviders = errors.New("no embedding providers configured")

	// ErrDegraded indicates a vector answered by a secondary tier where a
	// primary-tier vector is required.
	ErrDegraded = errors.New("embedding answered by a fallback tier")
)

// Fallback tries embedding tiers in order and returns the first success.
//
// A typical chain is a remote API, then a locally hosted model, then the
// keyword hashing provider. All tiers must produce the same dimensionality.
// When every tier fails the joined errors of all tiers are returned, so
// errors.Is still matches any tier's error.
//
// Fallback implements TierReporter: answers from tiers other than the first
// are in a different embedding space, and Cache does not keep them.
type Fallback struct {
	tiers []Provider
}

// NewFallback creates a tiered provider. Nil providers are skipped.
func NewFallback(tiers ...Provider) (*Fallback, error) {
	f := &Fallback{}
	for _, p := range tiers {
		if p != nil {
			f.tiers = append(f.tiers, p)
		}
	}
	if len(f.tiers) == 0 {
		return nil, ErrNoProviders
	}
	dims := f.tiers[0].Dimensions()
	for i, p := range f.tiers[1:] {
		if p.Dimensions() != dims {
			return nil, fmt.Errorf("embedding tier %d has %d dimensions, want %d", i+1, p.Dimensions(), dims)
		}
	}
	return f, nil
}

// Embed implements Provider.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, _, err := f.EmbedTier(ctx, text)
	return vec, err
}

// EmbedTier implements TierReporter.
func (f *Fallback) EmbedTier(ctx context.Context, text string) ([]float64, int, error) {
	var errs []error
	for i, p := range f.tiers {
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, i, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("tier %d: %w", i, err))
	}
	return nil, 0, errors.Join(errs...)
}

// EmbedBatch implements Provider.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, _, err := f.EmbedBatchTier(ctx, texts)
	return vecs, err
}

// EmbedBatchTier implements TierReporter.
func (f *Fallback) EmbedBatchTier(ctx context.Context, texts []string) ([][]float64, int, error) {
	var errs []error
	for i, p := range f.tiers {
		vecs, err := p.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, i, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("tier %d: %w", i, err))
	}
	return nil, 0, errors.Join(errs...)
}

// Dimensions implements Provider.
func (f *Fallback) Dimensions() int {
	return f.tiers[0].Dimensions()
}

// Close closes every tier.
func (f *Fallback) Close() error {
	var errs []error
	for _, p := range f.tiers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
