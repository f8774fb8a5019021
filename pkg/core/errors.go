// Package core provides the recall client: ranking, diversification and
// context synthesis over tenant-scoped memories.
package core

import (
	"errors"
	"fmt"

	"github.com/oceanbase/powermem-recall/pkg/embedder"
	"github.com/oceanbase/powermem-recall/pkg/intelligence"
	"github.com/oceanbase/powermem-recall/pkg/similarity"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

// Predefined errors for common failure scenarios.
//
// Several of them alias the sentinels of lower packages so errors.Is matches
// regardless of which layer produced the error.
var (
	// ErrNotFound indicates that a requested memory was not found.
	ErrNotFound = storage.ErrNotFound

	// ErrTenantRequired indicates an operation issued without a tenant.
	ErrTenantRequired = storage.ErrTenantRequired

	// ErrInvalidInput indicates that the provided input is invalid
	// (negative limit, negative weights, out-of-range fields).
	ErrInvalidInput = intelligence.ErrInvalidInput

	// ErrDimensionMismatch indicates vectors of different lengths were compared.
	ErrDimensionMismatch = similarity.ErrDimensionMismatch

	// ErrMalformedTimestamp indicates a timestamp that could not be parsed.
	ErrMalformedTimestamp = intelligence.ErrMalformedTimestamp

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrDegraded indicates a query or candidate vector answered by a
	// fallback embedding tier. It always comes wrapped in ErrEmbeddingFailed.
	ErrDegraded = embedder.ErrDegraded
)

// MemoryError wraps errors with operation context.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Search",
//	    Err: ErrEmbeddingFailed,
//	}
//	// Error() returns: "powermem: Search: embedding generation failed"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "powermem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("powermem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Recall", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Search", "Recall", "Remember")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// embeddingError marks err as an embedding failure while keeping the
// provider's own error matchable.
func embeddingError(err error) error {
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}

// degradedError reports a vector answered by a fallback tier.
func degradedError(tier int) error {
	return embeddingError(fmt.Errorf("%w: tier %d answered", ErrDegraded, tier))
}

// storageError marks err as a storage failure while keeping the store's own
// error matchable.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageOperation, err)
}
