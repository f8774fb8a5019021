// Package postgres provides a PostgreSQL + pgvector implementation of the vector store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

const selectColumns = `id, tenant_id, agent_id, content, embedding, memory_type, tags,
	importance, confidence, emotional_weight, access_count, metadata,
	created_at, updated_at, last_accessed_at, expires_at`

// Client is a PostgreSQL + pgvector client.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
	SSLMode            string
}

// DSN returns the lib/pq connection string for cfg.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "memories"
	}
	if err := storage.ValidateIdentifier(cfg.CollectionName); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewPostgresClient: embedding dimensions must be positive")
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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

// initTables enables pgvector and creates the table.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(255) NOT NULL,
			agent_id VARCHAR(255),
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			memory_type VARCHAR(32) NOT NULL DEFAULT '',
			tags TEXT[],
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			emotional_weight DOUBLE PRECISION,
			access_count INTEGER NOT NULL DEFAULT 0,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_accessed_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ
		)
	`, c.collectionName, c.dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_tenant_agent ON %s(tenant_id, agent_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Insert inserts a memory.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	if memory.TenantID == "" {
		return fmt.Errorf("Insert: %w", storage.ErrTenantRequired)
	}
	if len(memory.Embedding) != c.dimensions {
		return fmt.Errorf("Insert: %w: got %d, want %d", similarity.ErrDimensionMismatch, len(memory.Embedding), c.dimensions)
	}

	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := memory.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := memory.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.collectionName, selectColumns)

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.TenantID,
		storage.NullString(memory.AgentID),
		memory.Content,
		pgvector.NewVector(toFloat32(memory.Embedding)),
		memory.Type,
		pq.Array(memory.Tags),
		memory.Importance,
		memory.Confidence,
		storage.NullFloat(memory.EmotionalWeight),
		memory.AccessCount,
		string(metadataJSON),
		createdAt,
		updatedAt,
		nullTime(memory.LastAccessedAt),
		nullTime(memory.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search performs cosine similarity search with the pgvector <=> operator.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Search: %w", storage.ErrTenantRequired)
	}
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("Search: %w: got %d, want %d", similarity.ErrDimensionMismatch, len(embedding), c.dimensions)
	}

	args := []interface{}{pgvector.NewVector(toFloat32(embedding))}
	whereClause, whereArgs := buildWhereClauseWithOffset(opts.TenantID, opts.AgentID, 2)
	args = append(args, whereArgs...)

	if !opts.IncludeExpired {
		args = append(args, storage.ReferenceNow(opts.Now))
		whereClause += fmt.Sprintf(" AND (expires_at IS NULL OR expires_at > $%d)", len(args))
	}
	if opts.MinScore > 0 {
		args = append(args, opts.MinScore)
		whereClause += fmt.Sprintf(" AND 1 - (embedding <=> $1) >= $%d", len(args))
	}

	limitClause := ""
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		limitClause = fmt.Sprintf("LIMIT $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS score
		FROM %s
		%s
		ORDER BY embedding <=> $1, id
		%s
	`, selectColumns, c.collectionName, whereClause, limitClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows, true)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	return memories, nil
}

// Get retrieves a memory by ID within a tenant.
func (c *Client) Get(ctx context.Context, id string, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Get: %w", storage.ErrTenantRequired)
	}
	whereClause, args := buildWhereClauseWithOffset(opts.TenantID, opts.AgentID, 1)
	args = append(args, id)
	whereClause += fmt.Sprintf(" AND id = $%d", len(args))

	query := fmt.Sprintf("SELECT %s FROM %s %s", selectColumns, c.collectionName, whereClause)

	memory, err := scanMemory(c.db.QueryRowContext(ctx, query, args...), false)
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
	whereClause, args := buildWhereClauseWithOffset(opts.TenantID, opts.AgentID, 1)
	args = append(args, id)
	whereClause += fmt.Sprintf(" AND id = $%d", len(args))

	result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s %s", c.collectionName, whereClause), args...)
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
	whereClause, args := buildWhereClauseWithOffset(opts.TenantID, opts.AgentID, 1)
	args = append(args, limit, opts.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, selectColumns, c.collectionName, whereClause, len(args)-1, len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows, false)
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
	whereClause, args := buildWhereClauseWithOffset(opts.TenantID, opts.AgentID, 1)
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s %s", c.collectionName, whereClause), args...); err != nil {
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
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = $1
		WHERE tenant_id = $2 AND id = ANY($3)
	`, c.collectionName)
	if _, err := c.db.ExecContext(ctx, query, at, tenantID, pq.Array(ids)); err != nil {
		return fmt.Errorf("RecordAccess: %w", err)
	}
	return nil
}

// CreateIndex creates an HNSW or IVFFlat cosine index on the embedding column.
func (c *Client) CreateIndex(ctx context.Context, config *storage.VectorIndexConfig) error {
	name := config.IndexName
	if name == "" {
		name = c.collectionName + "_embedding_idx"
	}
	if err := storage.ValidateIdentifier(name); err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}

	var query string
	switch config.IndexType {
	case storage.IndexTypeHNSW:
		m, ef := config.M, config.EfConstruction
		if m <= 0 {
			m = 16
		}
		if ef <= 0 {
			ef = 64
		}
		query = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s
			USING hnsw (embedding vector_cosine_ops)
			WITH (m = %d, ef_construction = %d)
		`, name, c.collectionName, m, ef)
	case storage.IndexTypeIVFFlat:
		lists := config.Lists
		if lists <= 0 {
			lists = 100
		}
		query = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = %d)
		`, name, c.collectionName, lists)
	default:
		return fmt.Errorf("CreateIndex: unsupported index type: %s", config.IndexType)
	}

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}
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

// scanMemory scans a memory row, optionally followed by a score column.
func scanMemory(scanner rowScanner, withScore bool) (*storage.Memory, error) {
	var memory storage.Memory
	var (
		agentID         sql.NullString
		embedding       pgvector.Vector
		tags            []string
		emotionalWeight sql.NullFloat64
		metadataBytes   []byte
		lastAccessedAt  sql.NullTime
		expiresAt       sql.NullTime
	)

	dest := []interface{}{
		&memory.ID,
		&memory.TenantID,
		&agentID,
		&memory.Content,
		&embedding,
		&memory.Type,
		pq.Array(&tags),
		&memory.Importance,
		&memory.Confidence,
		&emotionalWeight,
		&memory.AccessCount,
		&metadataBytes,
		&memory.CreatedAt,
		&memory.UpdatedAt,
		&lastAccessedAt,
		&expiresAt,
	}
	if withScore {
		dest = append(dest, &memory.Score)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	memory.AgentID = storage.StringPtr(agentID)
	memory.EmotionalWeight = storage.FloatPtr(emotionalWeight)
	memory.Embedding = toFloat64(embedding.Slice())
	memory.Tags = tags
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		memory.LastAccessedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		memory.ExpiresAt = &t
	}
	if len(metadataBytes) > 0 && !strings.EqualFold(string(metadataBytes), "null") {
		if err := json.Unmarshal(metadataBytes, &memory.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &memory, nil
}
