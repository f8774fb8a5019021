// Package sqlite provides SQLite implementation for vector storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale applications. Vectors are stored as JSON strings in TEXT fields,
// timestamps as RFC 3339 text, and similarity search uses in-memory cosine
// similarity calculation over the tenant's rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

const selectColumns = `id, tenant_id, agent_id, content, embedding, memory_type, tags,
	importance, confidence, emotional_weight, access_count, metadata,
	created_at, updated_at, last_accessed_at, expires_at`

// Client implements VectorStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// collectionName is the name of the table storing memories.
	collectionName string

	// dimensions is the dimension of embedding vectors (0 disables the check).
	dimensions int
}

// Config contains configuration for creating a SQLite VectorStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CollectionName is the name of the table to use. Default: memories
	CollectionName string

	// EmbeddingModelDims is the dimension of embedding vectors.
	EmbeddingModelDims int
}

// NewClient creates a new SQLite VectorStore client.
//
// Parameters:
//   - cfg: Configuration containing database path, table name, and embedding dimensions
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "memories"
	}
	if err := storage.ValidateIdentifier(cfg.CollectionName); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		dimensions:     cfg.EmbeddingModelDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			agent_id TEXT,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			memory_type TEXT NOT NULL DEFAULT '',
			tags TEXT,
			importance REAL NOT NULL DEFAULT 0.5,
			confidence REAL NOT NULL DEFAULT 1.0,
			emotional_weight REAL,
			access_count INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_accessed_at TEXT,
			expires_at TEXT
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_tenant_agent ON %s(tenant_id, agent_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory into the SQLite database.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	if memory.TenantID == "" {
		return fmt.Errorf("Insert: %w", storage.ErrTenantRequired)
	}
	if c.dimensions > 0 && len(memory.Embedding) != c.dimensions {
		return fmt.Errorf("Insert: %w: got %d, want %d", similarity.ErrDimensionMismatch, len(memory.Embedding), c.dimensions)
	}

	embeddingJSON, err := storage.EncodeJSON(memory.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	tagsJSON, err := storage.EncodeJSON(memory.Tags)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	metadataJSON, err := storage.EncodeJSON(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	now := time.Now()
	createdAt := memory.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := memory.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName, selectColumns)

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.TenantID,
		storage.NullString(memory.AgentID),
		memory.Content,
		embeddingJSON,
		memory.Type,
		tagsJSON,
		memory.Importance,
		memory.Confidence,
		storage.NullFloat(memory.EmotionalWeight),
		memory.AccessCount,
		metadataJSON,
		storage.EncodeTime(createdAt),
		storage.EncodeTime(updatedAt),
		storage.EncodeNullTime(memory.LastAccessedAt),
		storage.EncodeNullTime(memory.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading the tenant's records.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Search: %w", storage.ErrTenantRequired)
	}
	now := storage.ReferenceNow(opts.Now)

	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	query := fmt.Sprintf(`SELECT %s FROM %s %s`, selectColumns, c.collectionName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		if !opts.IncludeExpired && memory.ExpiresAt != nil && !memory.ExpiresAt.After(now) {
			continue
		}

		score, err := similarity.Cosine(embedding, memory.Embedding)
		if err != nil {
			return nil, fmt.Errorf("Search: memory %s: %w", memory.ID, err)
		}
		memory.Score = score

		if score >= opts.MinScore {
			memories = append(memories, memory)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return storage.SortByScore(memories, opts.Limit), nil
}

// Get retrieves a memory by ID within a tenant.
func (c *Client) Get(ctx context.Context, id string, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Get: %w", storage.ErrTenantRequired)
	}

	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	whereClause += " AND id = ?"
	args = append(args, id)

	query := fmt.Sprintf(`SELECT %s FROM %s %s`, selectColumns, c.collectionName, whereClause)

	memory, err := scanMemory(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return memory, nil
}

// Delete deletes a memory by ID within a tenant.
func (c *Client) Delete(ctx context.Context, id string, opts *storage.DeleteOptions) error {
	if opts == nil || opts.TenantID == "" {
		return fmt.Errorf("Delete: %w", storage.ErrTenantRequired)
	}

	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	whereClause += " AND id = ?"
	args = append(args, id)

	query := fmt.Sprintf("DELETE FROM %s %s", c.collectionName, whereClause)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Delete: %w", storage.ErrNotFound)
	}
	return nil
}

// GetAll retrieves memories with pagination, most recently created first.
func (c *Client) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("GetAll: %w", storage.ErrTenantRequired)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	query := fmt.Sprintf(`
		SELECT %s FROM %s %s
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, selectColumns, c.collectionName, whereClause)
	args = append(args, limit, opts.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("GetAll: %w", err)
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	return memories, nil
}

// DeleteAll deletes every memory of a tenant, optionally one agent only.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	if opts == nil || opts.TenantID == "" {
		return fmt.Errorf("DeleteAll: %w", storage.ErrTenantRequired)
	}
	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)

	query := fmt.Sprintf("DELETE FROM %s %s", c.collectionName, whereClause)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}
	return nil
}

// RecordAccess bumps access_count and last_accessed_at of the given memories.
func (c *Client) RecordAccess(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	if tenantID == "" {
		return fmt.Errorf("RecordAccess: %w", storage.ErrTenantRequired)
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE tenant_id = ? AND id IN (%s)
	`, c.collectionName, placeholders)

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, storage.EncodeTime(at), tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("RecordAccess: %w", err)
	}
	return nil
}

// CreateIndex creates a vector index.
//
// SQLite does not support vector indexes, so this method is a no-op.
func (c *Client) CreateIndex(ctx context.Context, config *storage.VectorIndexConfig) error {
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory scans a memory from a *sql.Row or *sql.Rows.
func scanMemory(scanner rowScanner) (*storage.Memory, error) {
	var memory storage.Memory
	var (
		agentID         sql.NullString
		embeddingStr    string
		tagsStr         sql.NullString
		emotionalWeight sql.NullFloat64
		metadataStr     sql.NullString
		createdAt       string
		updatedAt       string
		lastAccessedAt  sql.NullString
		expiresAt       sql.NullString
	)

	if err := scanner.Scan(
		&memory.ID,
		&memory.TenantID,
		&agentID,
		&memory.Content,
		&embeddingStr,
		&memory.Type,
		&tagsStr,
		&memory.Importance,
		&memory.Confidence,
		&emotionalWeight,
		&memory.AccessCount,
		&metadataStr,
		&createdAt,
		&updatedAt,
		&lastAccessedAt,
		&expiresAt,
	); err != nil {
		return nil, err
	}

	memory.AgentID = storage.StringPtr(agentID)
	memory.EmotionalWeight = storage.FloatPtr(emotionalWeight)

	if err := json.Unmarshal([]byte(embeddingStr), &memory.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if tagsStr.Valid && tagsStr.String != "" {
		if err := json.Unmarshal([]byte(tagsStr.String), &memory.Tags); err != nil {
			return nil, fmt.Errorf("parse tags: %w", err)
		}
	}
	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &memory.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	var err error
	if memory.CreatedAt, err = storage.DecodeTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if memory.UpdatedAt, err = storage.DecodeTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	if memory.LastAccessedAt, err = storage.DecodeNullTime("last_accessed_at", lastAccessedAt); err != nil {
		return nil, err
	}
	if memory.ExpiresAt, err = storage.DecodeNullTime("expires_at", expiresAt); err != nil {
		return nil, err
	}

	return &memory, nil
}
