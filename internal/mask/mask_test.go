package mask

import (
	"testing"
)

func TestValueRuleRewrite(t *testing.T) {
	t.Parallel()
	m, err := NewMasker([]Rule{
		{Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "***-**-****"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{"name": "alice", "ssn": "123-45-6789"},
	}
	masked := m.MaskRows(rows)
	if masked[0]["ssn"] != "***-**-****" {
		t.Errorf("expected SSN masked, got %v", masked[0]["ssn"])
	}
	if masked[0]["name"] != "alice" {
		t.Errorf("non-matching field must be untouched, got %v", masked[0]["name"])
	}
}

func TestValueRulesApplyInOrder(t *testing.T) {
	t.Parallel()
	m, err := NewMasker([]Rule{
		{Pattern: "secret", Replacement: "hidden"},
		{Pattern: "hidden", Replacement: "gone"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := m.MaskRows([]map[string]interface{}{{"v": "secret"}})
	if rows[0]["v"] != "gone" {
		t.Errorf("expected chained rewrite to yield 'gone', got %v", rows[0]["v"])
	}
}

func TestMaskRecursesIntoNestedValues(t *testing.T) {
	t.Parallel()
	m, err := NewMasker([]Rule{{Pattern: "token-\\w+", Replacement: "[redacted]"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{
			"payload": map[string]interface{}{
				"auth": "token-abc123",
				"tags": []interface{}{"token-xyz", 42},
			},
		},
	}
	masked := m.MaskRows(rows)
	payload := masked[0]["payload"].(map[string]interface{})
	if payload["auth"] != "[redacted]" {
		t.Errorf("nested map value not masked: %v", payload["auth"])
	}
	tags := payload["tags"].([]interface{})
	if tags[0] != "[redacted]" {
		t.Errorf("nested slice value not masked: %v", tags[0])
	}
	if tags[1] != 42 {
		t.Errorf("non-string value must be untouched: %v", tags[1])
	}
}

func TestNonStringValuesUntouched(t *testing.T) {
	t.Parallel()
	m, err := NewMasker([]Rule{{Pattern: "42", Replacement: "x"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := m.MaskRows([]map[string]interface{}{{"n": int64(42), "b": true, "nil": nil}})
	if rows[0]["n"] != int64(42) || rows[0]["b"] != true || rows[0]["nil"] != nil {
		t.Errorf("non-string values must pass through unchanged: %v", rows[0])
	}
}

func TestInvalidPatternFailsFast(t *testing.T) {
	t.Parallel()
	if _, err := NewMasker([]Rule{{Pattern: "([unclosed"}}, nil); err == nil {
		t.Error("expected error for invalid value pattern")
	}
	if _, err := NewMasker(nil, []string{"([unclosed"}); err == nil {
		t.Error("expected error for invalid sensitive name pattern")
	}
}

func TestHasValueRules(t *testing.T) {
	t.Parallel()
	m, _ := NewMasker(nil, nil)
	if m.HasValueRules() {
		t.Error("expected no value rules")
	}
	m, _ = NewMasker([]Rule{{Pattern: "x", Replacement: "y"}}, nil)
	if !m.HasValueRules() {
		t.Error("expected value rules")
	}
}

// --- sensitive variable hiding ---

func TestHideSensitiveVariables(t *testing.T) {
	t.Parallel()
	m, err := NewMasker(nil, DefaultSensitiveNames)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{"Variable_name": "ssl_key", "Value": "/etc/mysql/server-key.pem"},
		{"Variable_name": "datadir", "Value": "/var/lib/mysql/"},
		{"Variable_name": "max_connections", "Value": "151"},
	}
	hidden := m.HideSensitive(rows, "Variable_name", "Value")

	if hidden[0]["Value"] != Hidden {
		t.Errorf("ssl_key value should be hidden, got %v", hidden[0]["Value"])
	}
	// "datadir" contains no sensitive name fragment.
	if hidden[1]["Value"] != "/var/lib/mysql/" {
		t.Errorf("datadir should be untouched, got %v", hidden[1]["Value"])
	}
	if hidden[2]["Value"] != "151" {
		t.Errorf("max_connections should be untouched, got %v", hidden[2]["Value"])
	}
}

func TestHideSensitiveCaseInsensitive(t *testing.T) {
	t.Parallel()
	m, err := NewMasker(nil, DefaultSensitiveNames)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{"Variable_name": "MASTER_PASSWORD", "Value": "s3cret"},
	}
	if got := m.HideSensitive(rows, "Variable_name", "Value"); got[0]["Value"] != Hidden {
		t.Errorf("name matching must be case-insensitive, got %v", got[0]["Value"])
	}
}

func TestHideSensitiveSkipsNonStringNames(t *testing.T) {
	t.Parallel()
	m, err := NewMasker(nil, DefaultSensitiveNames)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{"Variable_name": 7, "Value": "unchanged"},
		{"Value": "no name field"},
	}
	got := m.HideSensitive(rows, "Variable_name", "Value")
	if got[0]["Value"] != "unchanged" || got[1]["Value"] != "no name field" {
		t.Errorf("rows without a string name field must pass through: %v", got)
	}
}
