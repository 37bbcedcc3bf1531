package mymcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fersoftware/mysql-mcp-server-sse/internal/intercept"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/risk"
)

// Query executes the full query pipeline and returns only QueryOutput.
// All errors (MySQL errors, gate denials, hook rejections, Go errors) are
// converted to output.Error. The error message is then evaluated against
// error_prompts patterns — any matching prompt messages are appended.
// This means callers only need to check output.Error, never a Go error.
//
// The security gate runs to completion before the statement is submitted;
// a denied statement never reaches the database. The WHERE-clause guard and
// the interceptor are both invoked unconditionally — the guard's missing-
// WHERE rule overlaps with the classifier's own WHERE-aware scoring on
// purpose, so neither check depends on the other being wired in.
func (m *MysqlMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sqlText := input.SQL

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		return m.handleError(fmt.Errorf("failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(m.semaphore), ctx.Err()))
	}
	defer func() { <-m.semaphore }()

	// --- Pipeline tracking ---
	var beforeHooks, afterHooks []string
	timeoutRule := ""

	// 2. Run BeforeQuery hooks (middleware chain). The gate judges the
	// rewritten statement, so hooks cannot smuggle SQL past it.
	var err error
	if len(m.goBeforeHooks) > 0 {
		sqlText, err = m.runGoBeforeHooks(ctx, sqlText)
		for _, entry := range m.goBeforeHooks {
			beforeHooks = append(beforeHooks, entry.Name)
		}
	} else if m.cmdHooks != nil {
		sqlText, beforeHooks, err = m.cmdHooks.RunBeforeQuery(ctx, sqlText)
	}
	if err != nil {
		return m.handleError(err)
	}

	// 3. WHERE-clause guard (always runs, independent of the classifier)
	if ok, reason := m.whereGuard.Check(sqlText); !ok {
		return m.handleError(&intercept.Denial{
			Rule:      intercept.RuleMissingWhere,
			Operation: leadingKeyword(sqlText),
			Reason:    reason,
		})
	}

	// 4. Risk gate: structural checks, classification, policy decision
	analysis, err := m.interceptor.Check(sqlText)
	if err != nil {
		return m.handleError(err)
	}

	// 5. Determine timeout
	var queryTimeout time.Duration
	queryTimeout, timeoutRule = m.timeoutMgr.GetTimeoutWithPattern(sqlText)
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// 6. Execute. Mutating statements run in a transaction that commits
	// only after the AfterQuery hooks have approved the result.
	var result *QueryOutput
	var commit func() error
	var rollback func()
	if isMutating(analysis.Operation) {
		result, commit, rollback, err = m.executeMutation(queryCtx, sqlText, input.Params)
	} else {
		result, err = m.executeRead(queryCtx, sqlText, input.Params, analysis)
	}
	if err != nil {
		return m.handleError(err)
	}
	if rollback != nil {
		defer rollback()
	}

	// 7. AfterQuery hooks — run BEFORE commit for mutating statements.
	finalResult := result
	if len(m.goAfterHooks) > 0 {
		finalResult, err = m.runGoAfterHooks(ctx, result)
		if err != nil {
			return m.handleError(err)
		}
		for _, entry := range m.goAfterHooks {
			afterHooks = append(afterHooks, entry.Name)
		}
	} else if m.cmdHooks != nil && m.cmdHooks.HasAfterQueryHooks() {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return m.handleError(err)
		}

		modifiedJSON, executed, err := m.cmdHooks.RunAfterQuery(ctx, string(resultJSON))
		if err != nil {
			return m.handleError(err)
		}
		afterHooks = executed

		finalResult = &QueryOutput{}
		dec := json.NewDecoder(strings.NewReader(modifiedJSON))
		dec.UseNumber()
		if err := dec.Decode(finalResult); err != nil {
			return m.handleError(err)
		}
	}

	// 8. Commit mutating statements after hooks have approved the result.
	if commit != nil {
		if err := commit(); err != nil {
			return m.handleError(err)
		}
	}

	// 9. Apply value masking (per-field, recursive into JSON columns)
	finalResult.Rows = m.masker.MaskRows(finalResult.Rows)

	// 10. Apply max result length truncation
	m.truncateIfNeeded(finalResult)

	// 11. Log successful execution with pipeline details
	logEvent := m.logger.Info().
		Str("sql", truncateForLog(sqlText, 200)).
		Str("operation", analysis.Operation).
		Str("risk_level", analysis.Level.String()).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(finalResult.Rows)).
		Int64("rows_affected", finalResult.RowsAffected)
	if len(beforeHooks) > 0 {
		logEvent = logEvent.Strs("before_hooks", beforeHooks)
	}
	if len(afterHooks) > 0 {
		logEvent = logEvent.Strs("after_hooks", afterHooks)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if m.masker.HasValueRules() {
		logEvent = logEvent.Bool("masked", true)
	}
	logEvent.Msg("query executed")

	return finalResult
}

// isMutating reports whether the operation changes rows and therefore runs
// via Exec in a transaction.
func isMutating(operation string) bool {
	switch operation {
	case "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

// leadingKeyword returns the uppercased first token of a statement.
func leadingKeyword(sql string) string {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// executeMutation runs an INSERT/UPDATE/DELETE inside a transaction and
// returns the pending commit and rollback functions. The caller commits
// after the AfterQuery hooks approve; rollback is a no-op after commit.
func (m *MysqlMcp) executeMutation(queryCtx context.Context, sqlText string, params []interface{}) (*QueryOutput, func() error, func(), error) {
	tx, err := m.db.BeginTx(queryCtx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.ExecContext(queryCtx, sqlText, params...)
	if err != nil {
		_ = tx.Rollback()
		m.logger.Debug().Msg("transaction rolled back after execution error")
		return nil, nil, nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, nil, err
	}

	result := &QueryOutput{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		RowsAffected: affected,
	}
	commit := func() error {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	rollback := func() { _ = tx.Rollback() } // no-op once committed
	return result, commit, rollback, nil
}

// executeRead runs a rows-returning statement (SELECT, metadata, EXPLAIN).
func (m *MysqlMcp) executeRead(queryCtx context.Context, sqlText string, params []interface{}, analysis *risk.Analysis) (*QueryOutput, error) {
	rows, err := m.db.QueryContext(queryCtx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	if analysis.Class == risk.ClassMetadata {
		result.Rows = reshapeMetadataRows(analysis.Operation, result.Rows)
	}
	return result, nil
}

// collectRows reads all rows from sql.Rows into a QueryOutput.
func collectRows(rows *sql.Rows) (*QueryOutput, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows}, nil
}

// convertValue converts a driver-returned value to a JSON-friendly Go type.
// go-sql-driver returns []byte for text, decimal, and blob columns alike;
// without column type metadata they all surface as strings.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// reshapeMetadataRows mirrors the result shaping metadata operations get:
// SHOW output gains a table_name field, DESC/DESCRIBE output gains
// column_name and data_type, and an empty result becomes a single marker
// row instead of nothing.
func reshapeMetadataRows(operation string, rows []map[string]interface{}) []map[string]interface{} {
	if len(rows) == 0 {
		return []map[string]interface{}{{
			"metadata_operation": operation,
			"result_count":       0,
		}}
	}
	for _, row := range rows {
		switch operation {
		case "SHOW":
			if v, ok := row["Table"]; ok {
				row["table_name"] = v
			}
		case "DESC", "DESCRIBE":
			if v, ok := row["Field"]; ok {
				row["column_name"] = v
				row["data_type"] = row["Type"]
			}
		}
	}
	return rows
}

// runGoBeforeHooks runs Go-interface BeforeQuery hooks in middleware chain.
func (m *MysqlMcp) runGoBeforeHooks(ctx context.Context, sqlText string) (string, error) {
	for _, entry := range m.goBeforeHooks {
		hookTimeout := entry.Timeout
		if hookTimeout == 0 {
			hookTimeout = time.Duration(m.config.DefaultHookTimeoutSeconds) * time.Second
		}
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)

		modified, err := entry.Hook.Run(hookCtx, sqlText)
		cancel()
		if err != nil {
			if hookCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("before_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, hookTimeout)
			}
			return "", fmt.Errorf("before_query hook error: hook rejected query (name: %s): %w", entry.Name, err)
		}
		sqlText = modified
	}
	return sqlText, nil
}

// runGoAfterHooks runs Go-interface AfterQuery hooks in middleware chain.
func (m *MysqlMcp) runGoAfterHooks(ctx context.Context, result *QueryOutput) (*QueryOutput, error) {
	for _, entry := range m.goAfterHooks {
		hookTimeout := entry.Timeout
		if hookTimeout == 0 {
			hookTimeout = time.Duration(m.config.DefaultHookTimeoutSeconds) * time.Second
		}
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)

		modified, err := entry.Hook.Run(hookCtx, result)
		cancel()
		if err != nil {
			if hookCtx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("after_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, hookTimeout)
			}
			return nil, fmt.Errorf("after_query hook error: hook rejected result (name: %s): %w", entry.Name, err)
		}
		result = modified
	}
	return result, nil
}

// handleError converts any error into a QueryOutput with error message.
// The error message is evaluated against error_prompts — matching prompt
// messages are appended. Gate denials arrive here as *intercept.Denial and
// are logged with their rule name.
func (m *MysqlMcp) handleError(err error) *QueryOutput {
	errMsg := err.Error()
	prompt, patterns := m.errPrompts.Evaluate(errMsg)

	logEvent := m.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return &QueryOutput{Error: errMsg}
}

// truncateIfNeeded truncates query output rows if they exceed
// MaxResultLength (in characters).
func (m *MysqlMcp) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= m.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:m.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
