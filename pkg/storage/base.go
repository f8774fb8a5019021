// Package storage defines the memory candidate source used by recall and the
// access-count update it signals after each result set.
//
// Implementations live in the sqlite, postgres and oceanbase subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that no memory matched the id within the tenant.
	ErrNotFound = errors.New("memory not found")

	// ErrTenantRequired indicates an operation issued without a tenant.
	ErrTenantRequired = errors.New("tenant id is required")
)

// Memory is the storage representation of a memory item.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID string

	// TenantID is the isolation key of the memory.
	TenantID string

	// AgentID optionally narrows the memory to one agent.
	AgentID *string

	// Content is the text content of the memory.
	Content string

	// Embedding is the vector embedding of the memory content.
	Embedding []float64

	// Type is the memory type (fact, preference, ...).
	Type string

	// Tags are free-form labels.
	Tags []string

	// Importance is the stated importance in [0, 1].
	Importance float64

	// Confidence is the confidence in [0, 1].
	Confidence float64

	// EmotionalWeight is the optional valence in [-1, 1].
	EmotionalWeight *float64

	// AccessCount is the number of recalls that surfaced this memory.
	AccessCount int

	// Metadata contains additional metadata about the memory.
	Metadata map[string]interface{}

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last updated.
	UpdatedAt time.Time

	// LastAccessedAt is when the memory was last surfaced (nil if never).
	LastAccessedAt *time.Time

	// ExpiresAt is the optional expiry instant.
	ExpiresAt *time.Time

	// Score is the raw vector similarity from Search.
	Score float64
}

// VectorIndexType represents the type of vector index.
type VectorIndexType string

const (
	// IndexTypeHNSW represents Hierarchical Navigable Small World index.
	IndexTypeHNSW VectorIndexType = "HNSW"

	// IndexTypeIVFFlat represents Inverted File with Flat compression index.
	IndexTypeIVFFlat VectorIndexType = "IVF_FLAT"
)

// VectorIndexConfig contains configuration for creating a vector index.
type VectorIndexConfig struct {
	// IndexName is the name of the index. Default: <collection>_embedding_idx
	IndexName string

	// IndexType is the type of index to create.
	IndexType VectorIndexType

	// M is the HNSW graph degree (HNSW only).
	M int

	// EfConstruction is the HNSW build-time candidate list size (HNSW only).
	EfConstruction int

	// Lists is the number of IVF clusters (IVF only).
	Lists int
}

// VectorStore is the candidate source and persistence collaborator of recall.
//
// Every read and write is scoped to a tenant; an empty TenantID is rejected
// with ErrTenantRequired.
type VectorStore interface {
	// Insert stores a new memory.
	Insert(ctx context.Context, memory *Memory) error

	// Search returns the tenant's memories nearest to embedding, ordered by
	// descending similarity (stored in Memory.Score). Expired memories are
	// excluded unless opts.IncludeExpired is set.
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Memory, error)

	// Get retrieves a memory by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string, opts *GetOptions) (*Memory, error)

	// Delete removes a memory by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string, opts *DeleteOptions) error

	// GetAll lists memories, most recent first.
	GetAll(ctx context.Context, opts *GetAllOptions) ([]*Memory, error)

	// DeleteAll removes every memory of a tenant (optionally one agent).
	DeleteAll(ctx context.Context, opts *DeleteAllOptions) error

	AccessRecorder

	// CreateIndex creates a vector index. Backends without index support return nil.
	CreateIndex(ctx context.Context, config *VectorIndexConfig) error

	// Close releases the connection.
	Close() error
}

// AccessRecorder persists the access bump of memories surfaced by a recall.
type AccessRecorder interface {
	// RecordAccess increments access_count and sets last_accessed_at = at
	// for the given ids within the tenant. Unknown ids are ignored.
	RecordAccess(ctx context.Context, tenantID string, ids []string, at time.Time) error
}

// SearchOptions contains options for vector search.
type SearchOptions struct {
	// TenantID scopes the search (required).
	TenantID string

	// AgentID narrows the search to one agent (optional).
	AgentID string

	// Limit caps the number of candidates. 0 means no limit.
	Limit int

	// MinScore drops candidates with a lower similarity.
	MinScore float64

	// IncludeExpired keeps memories whose ExpiresAt has passed.
	IncludeExpired bool

	// Now is the reference instant for expiry. Zero means time.Now().
	Now time.Time
}

// GetOptions contains options for retrieving a memory.
type GetOptions struct {
	TenantID string
	AgentID  string
}

// DeleteOptions contains options for deleting a memory.
type DeleteOptions struct {
	TenantID string
	AgentID  string
}

// GetAllOptions contains options for listing memories.
type GetAllOptions struct {
	TenantID string
	AgentID  string

	// Limit caps the result. Default: 100
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// DeleteAllOptions contains options for deleting a tenant's memories.
type DeleteAllOptions struct {
	TenantID string
	AgentID  string
}

// ReferenceNow returns now, or time.Now() when now is zero.
func ReferenceNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now()
	}
	return now
}
