package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/oceanbase/powermem-recall/pkg/intelligence"
)

// EncodeTime formats t for TEXT timestamp columns.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// EncodeNullTime formats an optional timestamp; nil becomes SQL NULL.
func EncodeNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: EncodeTime(*t), Valid: true}
}

// DecodeTime parses a TEXT timestamp column. Malformed values are an error.
func DecodeTime(column, s string) (time.Time, error) {
	t, err := intelligence.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", column, err)
	}
	return t, nil
}

// DecodeNullTime parses an optional TEXT timestamp column.
func DecodeNullTime(column string, s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := DecodeTime(column, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EncodeJSON marshals v for a JSON/TEXT column. Nil maps and slices become "null".
func EncodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NullString converts an optional string for a nullable column.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr converts a nullable column back into an optional string.
func StringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// NullFloat converts an optional float for a nullable column.
func NullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// FloatPtr converts a nullable column back into an optional float.
func FloatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// SortByScore sorts memories by descending score (ties by ID) and applies limit.
func SortByScore(memories []*Memory, limit int) []*Memory {
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Score != memories[j].Score {
			return memories[i].Score > memories[j].Score
		}
		return memories[i].ID < memories[j].ID
	})
	if limit > 0 && len(memories) > limit {
		return memories[:limit]
	}
	return memories
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier checks that a table name can be interpolated into SQL.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}
