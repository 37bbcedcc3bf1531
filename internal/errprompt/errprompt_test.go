package errprompt

import (
	"strings"
	"testing"
)

func TestSingleMatch(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "(?i)doesn't exist", Message: "Use list_tables to discover available tables."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guidance, matched := m.Evaluate("Error 1146: Table 'db.missing' doesn't exist")
	if guidance != "Use list_tables to discover available tables." {
		t.Errorf("unexpected guidance: %q", guidance)
	}
	if len(matched) != 1 {
		t.Errorf("expected 1 matched pattern, got %v", matched)
	}
}

func TestMultipleMatchesJoined(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "syntax", Message: "first hint"},
		{Pattern: "error", Message: "second hint"},
		{Pattern: "never-matches", Message: "third hint"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guidance, matched := m.Evaluate("syntax error near 'FORM'")
	if guidance != "first hint\nsecond hint" {
		t.Errorf("expected joined guidance, got %q", guidance)
	}
	if len(matched) != 2 {
		t.Errorf("expected 2 matched patterns, got %v", matched)
	}
}

func TestNoMatch(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: "deadlock", Message: "retry the transaction"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guidance, matched := m.Evaluate("connection refused")
	if guidance != "" {
		t.Errorf("expected empty guidance, got %q", guidance)
	}
	if len(matched) != 0 {
		t.Errorf("expected no matches, got %v", matched)
	}
}

func TestNoRules(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if guidance, _ := m.Evaluate("anything"); guidance != "" {
		t.Errorf("expected empty guidance with no rules, got %q", guidance)
	}
}

func TestInvalidRegexFailsFast(t *testing.T) {
	t.Parallel()
	_, err := NewMatcher([]Rule{{Pattern: "([unclosed", Message: "x"}})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
	if !strings.Contains(err.Error(), "invalid regex pattern") {
		t.Errorf("error should name the bad pattern: %v", err)
	}
}
