package mymcp

import (
	"context"
	"fmt"
	"time"

	"github.com/fersoftware/mysql-mcp-server-sse/internal/risk"
)

// systemSchemas are excluded from the databases listing when the caller
// asks for user schemas only.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// sensitiveInfoKinds expose server internals (configuration, sessions) and
// are locked down in production unless allow_sensitive_info is set.
var sensitiveInfoKinds = map[string]bool{
	"variables":   true,
	"status":      true,
	"processlist": true,
}

// ServerInfo answers database/server introspection requests: database
// listing, table status, server variables, status counters, and the
// process list. Variable and status values whose names look
// credential-related are masked before they leave the server.
func (m *MysqlMcp) ServerInfo(ctx context.Context, input ServerInfoInput) (*ServerInfoOutput, error) {
	startTime := time.Now()

	if sensitiveInfoKinds[input.Kind] &&
		m.policy.Environment == risk.EnvProduction &&
		!m.config.Security.AllowSensitiveInfo {
		return nil, fmt.Errorf("server info kind %q is not permitted in production without allow_sensitive_info", input.Kind)
	}
	if input.Pattern != "" {
		if err := validateLikePattern(input.Pattern); err != nil {
			return nil, err
		}
	}
	if input.Database != "" {
		if err := validateIdentifier("database", input.Database); err != nil {
			return nil, err
		}
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	// Acquire semaphore
	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("ServerInfo: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(m.semaphore), ctx.Err())
	}
	defer func() { <-m.semaphore }()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.Query.ServerInfoTimeoutSeconds)*time.Second)
	defer cancel()

	var query string
	switch input.Kind {
	case "databases":
		query = "SHOW DATABASES"
	case "tables":
		query = showTableStatusQuery(input.Database, input.Pattern)
	case "variables":
		query = showScopedQuery("VARIABLES", input.Global, input.Pattern)
	case "status":
		query = showScopedQuery("STATUS", input.Global, input.Pattern)
	case "processlist":
		query = "SHOW PROCESSLIST"
	default:
		return nil, fmt.Errorf("unknown server info kind %q: expected databases, tables, variables, status, or processlist", input.Kind)
	}

	rows, err := m.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("ServerInfo query failed: %w", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("ServerInfo scan failed: %w", err)
	}

	filtered := result.Rows
	if input.Kind == "databases" {
		filtered = filterDatabases(filtered, input.Pattern, input.ExcludeSystem)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	// Hide credential-looking variable values. Process list rows carry no
	// variable names; databases carry no values.
	if input.Kind == "variables" || input.Kind == "status" {
		filtered = m.masker.HideSensitive(filtered, "Variable_name", "Value")
	}

	m.logger.Info().
		Str("kind", input.Kind).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(filtered)).
		Msg("ServerInfo executed")

	return &ServerInfoOutput{Kind: input.Kind, Rows: filtered}, nil
}

// showTableStatusQuery builds SHOW TABLE STATUS [FROM db] [LIKE '...'].
// The database name has passed the strict identifier allowlist and the
// pattern the LIKE-pattern allowlist, so inlining both is safe.
func showTableStatusQuery(database, pattern string) string {
	query := "SHOW TABLE STATUS"
	if database != "" {
		query += fmt.Sprintf(" FROM `%s`", database)
	}
	if pattern != "" {
		query += fmt.Sprintf(" LIKE '%s'", pattern)
	}
	return query
}

// showScopedQuery builds SHOW [GLOBAL] VARIABLES/STATUS [LIKE '...'].
// SHOW statements accept no placeholders; the pattern has already passed
// the strict LIKE-pattern allowlist, so inlining it is safe.
func showScopedQuery(what string, global bool, pattern string) string {
	query := "SHOW "
	if global {
		query += "GLOBAL "
	}
	query += what
	if pattern != "" {
		query += fmt.Sprintf(" LIKE '%s'", pattern)
	}
	return query
}

// filterDatabases applies the LIKE-style pattern and the system-schema
// exclusion to SHOW DATABASES output.
func filterDatabases(rows []map[string]interface{}, pattern string, excludeSystem bool) []map[string]interface{} {
	filtered := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		name, ok := row["Database"].(string)
		if !ok {
			continue
		}
		if excludeSystem && systemSchemas[name] {
			continue
		}
		if pattern != "" && !likeMatch(pattern, name) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// likeMatch evaluates a SQL LIKE pattern (% and _ wildcards) against a
// name, case-insensitively, without touching the database.
func likeMatch(pattern, name string) bool {
	return likeMatchFold(pattern, name, 0, 0)
}

func likeMatchFold(pattern, name string, pi, ni int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '%':
			// Try every suffix, including the empty one.
			for i := ni; i <= len(name); i++ {
				if likeMatchFold(pattern, name, pi+1, i) {
					return true
				}
			}
			return false
		case '_':
			if ni >= len(name) {
				return false
			}
			pi++
			ni++
		default:
			if ni >= len(name) || lowerByte(pattern[pi]) != lowerByte(name[ni]) {
				return false
			}
			pi++
			ni++
		}
	}
	return ni == len(name)
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
