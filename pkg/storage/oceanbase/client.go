// Package oceanbase provides an OceanBase (MySQL protocol) implementation of the vector store.
package oceanbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/oceanbase/powermem-recall/pkg/similarity"
	"github.com/oceanbase/powermem-recall/pkg/storage"
)

const selectColumns = `id, tenant_id, agent_id, document, embedding, memory_type, tags,
	importance, confidence, emotional_weight, access_count, metadata,
	created_at, updated_at, last_accessed_at, expires_at`

// Client is an OceanBase client.
type Client struct {
	db             *sql.DB
	config         *Config
	collectionName string
}

// Config contains OceanBase configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
}

// DSN returns the go-sql-driver/mysql connection string for cfg.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "memories"
	}
	if err := storage.ValidateIdentifier(cfg.CollectionName); err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewOceanBaseClient: embedding dimensions must be positive")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	client := &Client{
		db:             db,
		config:         cfg,
		collectionName: cfg.CollectionName,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(128) NOT NULL,
			agent_id VARCHAR(128),
			document LONGTEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			memory_type VARCHAR(32) NOT NULL DEFAULT '',
			tags JSON,
			importance DOUBLE NOT NULL DEFAULT 0.5,
			confidence DOUBLE NOT NULL DEFAULT 1.0,
			emotional_weight DOUBLE,
			access_count INT NOT NULL DEFAULT 0,
			metadata JSON,
			hash VARCHAR(32),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			last_accessed_at DATETIME(6),
			expires_at DATETIME(6),
			INDEX idx_tenant_agent (tenant_id, agent_id)
		)
	`, c.collectionName, c.config.EmbeddingModelDims)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert inserts a memory. The content hash is stored alongside the document.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	if memory.TenantID == "" {
		return fmt.Errorf("Insert: %w", storage.ErrTenantRequired)
	}
	if len(memory.Embedding) != c.config.EmbeddingModelDims {
		return fmt.Errorf("Insert: %w: got %d, want %d",
			similarity.ErrDimensionMismatch, len(memory.Embedding), c.config.EmbeddingModelDims)
	}

	tagsJSON, err := storage.EncodeJSON(memory.Tags)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	metadataJSON, err := storage.EncodeJSON(memory.Metadata)
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
		INSERT INTO %s (%s, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName, selectColumns)

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.TenantID,
		storage.NullString(memory.AgentID),
		memory.Content,
		vectorToString(memory.Embedding),
		memory.Type,
		tagsJSON,
		memory.Importance,
		memory.Confidence,
		storage.NullFloat(memory.EmotionalWeight),
		memory.AccessCount,
		metadataJSON,
		createdAt.UTC(),
		updatedAt.UTC(),
		nullTime(memory.LastAccessedAt),
		nullTime(memory.ExpiresAt),
		generateHash(memory.Content),
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Search performs vector search ordered by cosine_distance.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Search: %w", storage.ErrTenantRequired)
	}
	if len(embedding) != c.config.EmbeddingModelDims {
		return nil, fmt.Errorf("Search: %w: got %d, want %d",
			similarity.ErrDimensionMismatch, len(embedding), c.config.EmbeddingModelDims)
	}

	queryVectorStr := vectorToString(embedding)
	whereClause, whereArgs := buildWhereClause(opts.TenantID, opts.AgentID)

	args := []interface{}{queryVectorStr}
	args = append(args, whereArgs...)
	if !opts.IncludeExpired {
		whereClause += " AND (expires_at IS NULL OR expires_at > ?)"
		args = append(args, storage.ReferenceNow(opts.Now).UTC())
	}

	havingClause := ""
	if opts.MinScore > 0 {
		havingClause = "HAVING distance <= ?"
		args = append(args, 1-opts.MinScore)
	}

	limitClause := ""
	if opts.Limit > 0 {
		limitClause = "LIMIT ?"
		args = append(args, opts.Limit)
	}

	query := fmt.Sprintf(`
		SELECT %s, cosine_distance(embedding, ?) AS distance
		FROM %s
		%s
		%s
		ORDER BY distance ASC, id
		%s
	`, selectColumns, c.collectionName, whereClause, havingClause, limitClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, true)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	return memories, nil
}

// Get retrieves a memory by ID.
func (c *Client) Get(ctx context.Context, id string, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("Get: %w", storage.ErrTenantRequired)
	}
	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	whereClause += " AND id = ?"
	args = append(args, id)

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

// Delete deletes a memory.
func (c *Client) Delete(ctx context.Context, id string, opts *storage.DeleteOptions) error {
	if opts == nil || opts.TenantID == "" {
		return fmt.Errorf("Delete: %w", storage.ErrTenantRequired)
	}
	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	whereClause += " AND id = ?"
	args = append(args, id)

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

// GetAll retrieves memories, most recently created first.
func (c *Client) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Memory, error) {
	if opts == nil || opts.TenantID == "" {
		return nil, fmt.Errorf("GetAll: %w", storage.ErrTenantRequired)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
	args = append(args, limit, opts.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, selectColumns, c.collectionName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, false)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	return memories, nil
}

// DeleteAll deletes all memories of a tenant.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	if opts == nil || opts.TenantID == "" {
		return fmt.Errorf("DeleteAll: %w", storage.ErrTenantRequired)
	}
	whereClause, args := buildWhereClause(opts.TenantID, opts.AgentID)
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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE tenant_id = ? AND id IN (%s)
	`, c.collectionName, placeholders)

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, at.UTC(), tenantID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("RecordAccess: %w", err)
	}
	return nil
}

// CreateIndex creates a vector index.
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
			ef = 200
		}
		query = fmt.Sprintf(`
			CREATE VECTOR INDEX %s ON %s (embedding) WITH (
				distance = cosine,
				type = hnsw,
				lib = vsag,
				m = %d,
				ef_construction = %d
			)`, name, c.collectionName, m, ef)
	case storage.IndexTypeIVFFlat:
		lists := config.Lists
		if lists <= 0 {
			lists = 128
		}
		query = fmt.Sprintf(`
			CREATE VECTOR INDEX %s ON %s (embedding) WITH (
				distance = cosine,
				type = ivf_flat,
				nlist = %d
			)`, name, c.collectionName, lists)
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

func scanMemories(rows *sql.Rows, withDistance bool) ([]*storage.Memory, error) {
	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows, withDistance)
		if err != nil {
			return nil, err
		}
		memories = append(memories, memory)
	}
	return memories, rows.Err()
}

// scanMemory scans one row. When withDistance is set the trailing
// cosine_distance column is converted to a similarity score.
func scanMemory(scanner rowScanner, withDistance bool) (*storage.Memory, error) {
	var memory storage.Memory
	var (
		agentID         sql.NullString
		embeddingStr    string
		tagsJSON        []byte
		emotionalWeight sql.NullFloat64
		metadataJSON    []byte
		lastAccessedAt  sql.NullTime
		expiresAt       sql.NullTime
		distance        float64
	)

	dest := []interface{}{
		&memory.ID,
		&memory.TenantID,
		&agentID,
		&memory.Content,
		&embeddingStr,
		&memory.Type,
		&tagsJSON,
		&memory.Importance,
		&memory.Confidence,
		&emotionalWeight,
		&memory.AccessCount,
		&metadataJSON,
		&memory.CreatedAt,
		&memory.UpdatedAt,
		&lastAccessedAt,
		&expiresAt,
	}
	if withDistance {
		dest = append(dest, &distance)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	memory.AgentID = storage.StringPtr(agentID)
	memory.EmotionalWeight = storage.FloatPtr(emotionalWeight)
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		memory.LastAccessedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		memory.ExpiresAt = &t
	}
	if withDistance {
		memory.Score = 1 - distance
	}

	embedding, err := stringToVector(embeddingStr)
	if err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	memory.Embedding = embedding

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &memory.Tags); err != nil {
			return nil, fmt.Errorf("parse tags: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &memory.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &memory, nil
}
