package mymcp

import (
	"context"
	"fmt"
	"time"
)

const defaultListLimit = 100

// ListTables returns tables and views from INFORMATION_SCHEMA. The listing
// does NOT go through the hook/gate pipeline — it runs a fixed,
// parameterized statement the caller cannot influence beyond validated
// name filters.
func (m *MysqlMcp) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	startTime := time.Now()

	if input.Database != "" {
		if err := validateIdentifier("database", input.Database); err != nil {
			return nil, err
		}
	}
	if input.Pattern != "" {
		if err := validateLikePattern(input.Pattern); err != nil {
			return nil, err
		}
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	// 1. Acquire semaphore
	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("ListTables: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(m.semaphore), ctx.Err())
	}
	defer func() { <-m.semaphore }()

	// 2. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	// 3. Build and execute the fixed statement
	query := `SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE `
	var args []interface{}
	if input.Database == "" {
		query += "TABLE_SCHEMA = DATABASE()"
	} else {
		query += "TABLE_SCHEMA = ?"
		args = append(args, input.Database)
	}
	if input.ExcludeViews {
		query += " AND TABLE_TYPE = 'BASE TABLE'"
	} else {
		query += " AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')"
	}
	if input.Pattern != "" {
		query += " AND TABLE_NAME LIKE ?"
		args = append(args, input.Pattern)
	}
	query += " ORDER BY TABLE_SCHEMA, TABLE_NAME LIMIT ?"
	args = append(args, limit)

	rows, err := m.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTables query failed: %w", err)
	}
	defer rows.Close()

	tables := []TableEntry{}
	for rows.Next() {
		var entry TableEntry
		var tableType string
		if err := rows.Scan(&entry.Database, &entry.Name, &tableType); err != nil {
			return nil, fmt.Errorf("ListTables scan failed: %w", err)
		}
		if tableType == "VIEW" {
			entry.Type = "view"
		} else {
			entry.Type = "table"
		}
		tables = append(tables, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTables rows error: %w", err)
	}

	m.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")

	return &ListTablesOutput{Tables: tables}, nil
}
