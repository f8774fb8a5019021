package oceanbase

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// vectorToString converts a float64 slice to an OceanBase VECTOR literal.
// Example: [0.1, 0.2, 0.3] -> "[0.1,0.2,0.3]"
func vectorToString(vector []float64) string {
	if len(vector) == 0 {
		return "[]"
	}

	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// stringToVector parses an OceanBase VECTOR literal.
func stringToVector(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		result[i] = val
	}
	return result, nil
}

// buildWhereClause builds the tenant/agent WHERE clause.
func buildWhereClause(tenantID, agentID string) (string, []interface{}) {
	clause := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if agentID != "" {
		clause += " AND agent_id = ?"
		args = append(args, agentID)
	}
	return clause, args
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// generateHash generates an MD5 hash of content.
func generateHash(content string) string {
	hash := md5.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
