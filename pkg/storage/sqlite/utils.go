package sqlite

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
