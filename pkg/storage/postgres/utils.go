package postgres

import (
	"database/sql"
	"fmt"
	"time"
)

// buildWhereClauseWithOffset builds the tenant/agent WHERE clause starting
// from parameter $startIndex.
func buildWhereClauseWithOffset(tenantID, agentID string, startIndex int) (string, []interface{}) {
	clause := fmt.Sprintf("WHERE tenant_id = $%d", startIndex)
	args := []interface{}{tenantID}

	if agentID != "" {
		clause += fmt.Sprintf(" AND agent_id = $%d", startIndex+1)
		args = append(args, agentID)
	}
	return clause, args
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
