package mymcp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fersoftware/mysql-mcp-server-sse/internal/errprompt"
)

func TestIsMutating(t *testing.T) {
	t.Parallel()
	for _, op := range []string{"INSERT", "UPDATE", "DELETE"} {
		if !isMutating(op) {
			t.Errorf("isMutating(%q) = false, want true", op)
		}
	}
	for _, op := range []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN", "CREATE", "DROP", ""} {
		if isMutating(op) {
			t.Errorf("isMutating(%q) = true, want false", op)
		}
	}
}

func TestLeadingKeyword(t *testing.T) {
	t.Parallel()
	cases := []struct {
		sql  string
		want string
	}{
		{"select * from t", "SELECT"},
		{"  UPDATE t SET x = 1", "UPDATE"},
		{"\n\tdelete from t", "DELETE"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := leadingKeyword(tc.sql); got != tc.want {
			t.Errorf("leadingKeyword(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}

func TestConvertValue(t *testing.T) {
	t.Parallel()
	if got := convertValue([]byte("hello")); got != "hello" {
		t.Errorf("[]byte should become string, got %v", got)
	}
	if got := convertValue(nil); got != nil {
		t.Errorf("nil should stay nil, got %v", got)
	}
	if got := convertValue(int64(7)); got != int64(7) {
		t.Errorf("int64 should pass through, got %v", got)
	}

	ts := time.Date(2024, 3, 1, 12, 30, 0, 500000000, time.UTC)
	if got := convertValue(ts); got != "2024-03-01T12:30:00.5Z" {
		t.Errorf("time should format as RFC3339Nano, got %v", got)
	}
}

func TestReshapeMetadataRowsShow(t *testing.T) {
	t.Parallel()
	rows := []map[string]interface{}{
		{"Table": "users"},
		{"Table": "orders"},
	}
	got := reshapeMetadataRows("SHOW", rows)
	if got[0]["table_name"] != "users" || got[1]["table_name"] != "orders" {
		t.Errorf("SHOW rows should gain table_name: %v", got)
	}
	// Original field stays.
	if got[0]["Table"] != "users" {
		t.Errorf("original field must remain: %v", got[0])
	}
}

func TestReshapeMetadataRowsDescribe(t *testing.T) {
	t.Parallel()
	for _, op := range []string{"DESC", "DESCRIBE"} {
		rows := []map[string]interface{}{
			{"Field": "id", "Type": "int(11)", "Null": "NO"},
		}
		got := reshapeMetadataRows(op, rows)
		if got[0]["column_name"] != "id" || got[0]["data_type"] != "int(11)" {
			t.Errorf("%s rows should gain column_name and data_type: %v", op, got[0])
		}
	}
}

func TestReshapeMetadataRowsEmpty(t *testing.T) {
	t.Parallel()
	got := reshapeMetadataRows("SHOW", nil)
	if len(got) != 1 {
		t.Fatalf("empty metadata result should become one marker row, got %v", got)
	}
	if got[0]["metadata_operation"] != "SHOW" || got[0]["result_count"] != 0 {
		t.Errorf("unexpected marker row: %v", got[0])
	}
}

func TestReshapeMetadataRowsOtherOps(t *testing.T) {
	t.Parallel()
	rows := []map[string]interface{}{{"id": "1", "select_type": "SIMPLE"}}
	got := reshapeMetadataRows("EXPLAIN", rows)
	if len(got) != 1 || got[0]["select_type"] != "SIMPLE" {
		t.Errorf("EXPLAIN rows should pass through unchanged: %v", got)
	}
}

// --- error conversion ---

func errTestEngine(t *testing.T, rules []ErrorPromptRule) *MysqlMcp {
	t.Helper()
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(rules))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &MysqlMcp{
		errPrompts: matcher,
		logger:     zerolog.Nop(),
	}
}

func TestHandleErrorPlain(t *testing.T) {
	t.Parallel()
	m := errTestEngine(t, nil)
	out := m.handleError(errors.New("Error 1146: Table 'db.x' doesn't exist"))
	if out.Error != "Error 1146: Table 'db.x' doesn't exist" {
		t.Errorf("unexpected output error: %q", out.Error)
	}
	if out.Rows != nil {
		t.Errorf("error output must carry no rows: %v", out.Rows)
	}
}

func TestHandleErrorAppendsGuidance(t *testing.T) {
	t.Parallel()
	m := errTestEngine(t, []ErrorPromptRule{
		{Pattern: "doesn't exist", Message: "Use list_tables to discover available tables."},
	})
	out := m.handleError(errors.New("Error 1146: Table 'db.x' doesn't exist"))
	if !strings.Contains(out.Error, "doesn't exist") {
		t.Errorf("original error lost: %q", out.Error)
	}
	if !strings.Contains(out.Error, "Use list_tables") {
		t.Errorf("guidance missing: %q", out.Error)
	}
}

// --- truncation ---

func TestTruncateIfNeeded(t *testing.T) {
	t.Parallel()
	m := &MysqlMcp{
		config: Config{Query: QueryConfig{MaxResultLength: 20}},
		logger: zerolog.Nop(),
	}

	out := &QueryOutput{Rows: []map[string]interface{}{
		{"v": strings.Repeat("x", 100)},
	}}
	m.truncateIfNeeded(out)
	if out.Rows != nil {
		t.Error("truncated output must drop the rows")
	}
	if !strings.Contains(out.Error, "[truncated]") || !strings.Contains(out.Error, "Add limits") {
		t.Errorf("unexpected truncation message: %q", out.Error)
	}
}

func TestTruncateNotNeeded(t *testing.T) {
	t.Parallel()
	m := &MysqlMcp{
		config: Config{Query: QueryConfig{MaxResultLength: 100000}},
		logger: zerolog.Nop(),
	}

	out := &QueryOutput{Rows: []map[string]interface{}{{"v": "small"}}}
	m.truncateIfNeeded(out)
	if out.Error != "" || len(out.Rows) != 1 {
		t.Errorf("small output must pass through untouched: %+v", out)
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := truncateForLog("short", 200); got != "short" {
		t.Errorf("short strings pass through, got %q", got)
	}

	long := strings.Repeat("a", 300)
	got := truncateForLog(long, 200)
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if len(got) > 200+len("...[truncated]") {
		t.Errorf("truncated string too long: %d", len(got))
	}

	// Truncation must not split a multi-byte rune.
	multibyte := strings.Repeat("é", 200)
	got = truncateForLog(multibyte, 199)
	trimmed := strings.TrimSuffix(got, "...[truncated]")
	if !strings.HasSuffix(trimmed, "é") {
		t.Errorf("rune boundary not respected: %q", trimmed[len(trimmed)-4:])
	}
}
