package mymcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const describeColumnsSQL = `
SELECT
    COLUMN_NAME,
    COLUMN_TYPE,
    IS_NULLABLE,
    COLUMN_KEY,
    COLUMN_DEFAULT,
    EXTRA,
    COLUMN_COMMENT
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

const describeForeignKeysSQL = `
SELECT
    kcu.CONSTRAINT_NAME,
    kcu.COLUMN_NAME,
    kcu.REFERENCED_TABLE_NAME,
    kcu.REFERENCED_COLUMN_NAME,
    rc.UPDATE_RULE,
    rc.DELETE_RULE
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
    ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
    AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
WHERE kcu.TABLE_SCHEMA = ?
    AND kcu.TABLE_NAME = ?
    AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

// DescribeTable returns the columns, indexes, and CREATE TABLE statement of
// a single table. Table and database names are validated against a strict
// identifier allowlist before they are interpolated into the SHOW
// statements (SHOW INDEX and SHOW CREATE TABLE take no placeholders).
func (m *MysqlMcp) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()

	if err := validateIdentifier("table", input.Table); err != nil {
		return nil, err
	}
	if input.Database != "" {
		if err := validateIdentifier("database", input.Database); err != nil {
			return nil, err
		}
	}

	// 1. Acquire semaphore
	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("DescribeTable: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(m.semaphore), ctx.Err())
	}
	defer func() { <-m.semaphore }()

	// 2. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.Query.DescribeTableTimeoutSeconds)*time.Second)
	defer cancel()

	// 3. Resolve the database
	database := input.Database
	if database == "" {
		if err := m.db.QueryRowContext(queryCtx, "SELECT DATABASE()").Scan(&database); err != nil {
			return nil, fmt.Errorf("DescribeTable: failed to resolve current database: %w", err)
		}
	}

	output := &DescribeTableOutput{Database: database, Name: input.Table}

	// 4. Columns
	columns, err := m.describeColumns(queryCtx, database, input.Table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s does not exist or is not accessible", database, input.Table)
	}
	output.Columns = columns

	// 5. Indexes
	indexes, err := m.describeIndexes(queryCtx, database, input.Table)
	if err != nil {
		return nil, err
	}
	output.Indexes = indexes

	// 6. Foreign keys
	foreignKeys, err := m.describeForeignKeys(queryCtx, database, input.Table)
	if err != nil {
		return nil, err
	}
	output.ForeignKeys = foreignKeys

	// 7. CREATE TABLE statement
	createStmt, err := m.showCreateTable(queryCtx, database, input.Table)
	if err != nil {
		// SHOW CREATE TABLE needs more privileges than the column listing;
		// a failure here degrades the output instead of failing it.
		m.logger.Warn().Err(err).
			Str("table", input.Table).
			Msg("SHOW CREATE TABLE failed, omitting create statement")
	} else {
		output.CreateStatement = createStmt
	}

	m.logger.Info().
		Dur("duration", time.Since(startTime)).
		Str("table", input.Table).
		Int("column_count", len(output.Columns)).
		Int("index_count", len(output.Indexes)).
		Int("foreign_key_count", len(output.ForeignKeys)).
		Msg("DescribeTable executed")

	return output, nil
}

func (m *MysqlMcp) describeColumns(ctx context.Context, database, table string) ([]ColumnInfo, error) {
	rows, err := m.db.QueryContext(ctx, describeColumnsSQL, database, table)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable columns query failed: %w", err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		var defaultValue sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Key, &defaultValue, &col.Extra, &col.Comment); err != nil {
			return nil, fmt.Errorf("DescribeTable columns scan failed: %w", err)
		}
		col.Nullable = nullable == "YES"
		if defaultValue.Valid {
			col.Default = defaultValue.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DescribeTable columns rows error: %w", err)
	}
	return columns, nil
}

// describeIndexes aggregates SHOW INDEX output into one entry per index,
// columns in sequence order.
func (m *MysqlMcp) describeIndexes(ctx context.Context, database, table string) ([]IndexInfo, error) {
	// Identifiers are validated, backtick quoting is safe.
	query := fmt.Sprintf("SHOW INDEX FROM `%s`.`%s`", database, table)
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable index query failed: %w", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable index scan failed: %w", err)
	}

	// SHOW INDEX returns one row per column; rows arrive ordered by index
	// name and Seq_in_index.
	indexes := []IndexInfo{}
	byName := map[string]int{}
	for _, row := range result.Rows {
		name, _ := row["Key_name"].(string)
		column, _ := row["Column_name"].(string)
		if name == "" || column == "" {
			continue
		}
		if i, ok := byName[name]; ok {
			indexes[i].Columns = append(indexes[i].Columns, column)
			continue
		}
		// The text protocol surfaces Non_unique as a string, the binary
		// protocol as an integer.
		unique := false
		switch v := row["Non_unique"].(type) {
		case string:
			unique = v == "0"
		case int64:
			unique = v == 0
		}
		indexType, _ := row["Index_type"].(string)
		byName[name] = len(indexes)
		indexes = append(indexes, IndexInfo{
			Name:    name,
			Columns: []string{column},
			Unique:  unique,
			Type:    indexType,
		})
	}
	return indexes, nil
}

// foreignKeyRow is one row of the KEY_COLUMN_USAGE join, a single column
// pair of a possibly multi-column constraint.
type foreignKeyRow struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         string
	OnDelete         string
}

func (m *MysqlMcp) describeForeignKeys(ctx context.Context, database, table string) ([]ForeignKeyInfo, error) {
	rows, err := m.db.QueryContext(ctx, describeForeignKeysSQL, database, table)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable foreign key query failed: %w", err)
	}
	defer rows.Close()

	fkRows := []foreignKeyRow{}
	for rows.Next() {
		var row foreignKeyRow
		if err := rows.Scan(&row.Name, &row.Column, &row.ReferencedTable, &row.ReferencedColumn, &row.OnUpdate, &row.OnDelete); err != nil {
			return nil, fmt.Errorf("DescribeTable foreign key scan failed: %w", err)
		}
		fkRows = append(fkRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DescribeTable foreign key rows error: %w", err)
	}
	return groupForeignKeys(fkRows), nil
}

// groupForeignKeys aggregates the per-column rows into one entry per
// constraint, columns in ordinal position order.
func groupForeignKeys(fkRows []foreignKeyRow) []ForeignKeyInfo {
	foreignKeys := []ForeignKeyInfo{}
	byName := map[string]int{}
	for _, row := range fkRows {
		if i, ok := byName[row.Name]; ok {
			foreignKeys[i].Columns = append(foreignKeys[i].Columns, row.Column)
			foreignKeys[i].ReferencedColumns = append(foreignKeys[i].ReferencedColumns, row.ReferencedColumn)
			continue
		}
		byName[row.Name] = len(foreignKeys)
		foreignKeys = append(foreignKeys, ForeignKeyInfo{
			Name:              row.Name,
			Columns:           []string{row.Column},
			ReferencedTable:   row.ReferencedTable,
			ReferencedColumns: []string{row.ReferencedColumn},
			OnUpdate:          row.OnUpdate,
			OnDelete:          row.OnDelete,
		})
	}
	return foreignKeys
}

func (m *MysqlMcp) showCreateTable(ctx context.Context, database, table string) (string, error) {
	query := fmt.Sprintf("SHOW CREATE TABLE `%s`.`%s`", database, table)
	var name, createStmt string
	if err := m.db.QueryRowContext(ctx, query).Scan(&name, &createStmt); err != nil {
		return "", err
	}
	return createStmt, nil
}
