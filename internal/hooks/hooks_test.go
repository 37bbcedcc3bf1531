package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func hookScript(name string) string {
	// Tests run from the package directory, testdata lives at the repo root.
	return filepath.Join("..", "..", "testdata", "hooks", name)
}

// --- before-query hooks ---

func TestBeforeQueryAccept(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("accept.sh")},
		},
	}, testLogger())

	result, executed, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "SELECT 1" {
		t.Fatalf("expected query unchanged, got %q", result)
	}
	if len(executed) != 1 {
		t.Fatalf("expected 1 executed hook, got %v", executed)
	}
}

func TestBeforeQueryReject(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("reject.sh")},
		},
	}, testLogger())

	_, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rejected by test hook") {
		t.Fatalf("expected rejection message, got %q", err.Error())
	}
}

func TestBeforeQueryModify(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("modify_query.sh")},
		},
	}, testLogger())

	result, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "SELECT 1 AS modified" {
		t.Fatalf("expected modified query, got %q", result)
	}
}

func TestBeforeQueryPatternNoMatch(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: "NEVER_MATCH", Command: hookScript("reject.sh")},
		},
	}, testLogger())

	result, executed, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "SELECT 1" {
		t.Fatalf("expected query unchanged, got %q", result)
	}
	if len(executed) != 0 {
		t.Fatalf("expected no executed hooks, got %v", executed)
	}
}

func TestBeforeQueryChaining(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("modify_query.sh")},
			{Pattern: ".*", Command: hookScript("accept.sh")},
		},
	}, testLogger())

	result, executed, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First hook modifies, second accepts the modified text unchanged.
	if result != "SELECT 1 AS modified" {
		t.Fatalf("expected modified query, got %q", result)
	}
	want := []string{hookScript("modify_query.sh"), hookScript("accept.sh")}
	if !reflect.DeepEqual(executed, want) {
		t.Fatalf("expected executed hooks %v, got %v", want, executed)
	}
}

func TestBeforeQueryChainPatternReEval(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("modify_query.sh")},
			{Pattern: "modified", Command: hookScript("reject.sh")},
		},
	}, testLogger())

	// Second hook's pattern is evaluated against the rewritten query.
	_, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected rejection by second hook")
	}
}

func TestBeforeQueryBadJSON(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("bad_json.sh")},
		},
	}, testLogger())

	_, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error for unparseable hook output")
	}
	if !strings.Contains(err.Error(), "unparseable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBeforeQueryTimeout(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 200 * time.Millisecond,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("slow.sh")},
		},
	}, testLogger())

	_, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout in error, got %q", err.Error())
	}
}

func TestPerHookTimeoutOverride(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 30 * time.Second,
		BeforeQuery: []Entry{
			{Pattern: ".*", Command: hookScript("slow.sh"), Timeout: 200 * time.Millisecond},
		},
	}, testLogger())

	start := time.Now()
	_, _, err := r.RunBeforeQuery(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("per-hook timeout not applied, took %v", elapsed)
	}
}

// --- after-query hooks ---

func TestAfterQueryAccept(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		AfterQuery: []Entry{
			{Pattern: ".*", Command: hookScript("accept.sh")},
		},
	}, testLogger())

	resultJSON := `{"columns":["id"],"rows":[{"id":1}]}`
	result, _, err := r.RunAfterQuery(context.Background(), resultJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != resultJSON {
		t.Fatalf("expected result unchanged, got %q", result)
	}
}

func TestAfterQueryReject(t *testing.T) {
	r := NewRunner(Config{
		DefaultTimeout: 5 * time.Second,
		AfterQuery: []Entry{
			{Pattern: ".*", Command: hookScript("reject.sh")},
		},
	}, testLogger())

	_, _, err := r.RunAfterQuery(context.Background(), `{"rows":[]}`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "after_query hook error") {
		t.Fatalf("expected after_query error wrapping, got %q", err.Error())
	}
}

func TestHasAfterQueryHooks(t *testing.T) {
	r := NewRunner(Config{}, testLogger())
	if r.HasAfterQueryHooks() {
		t.Error("expected no after-query hooks")
	}

	r = NewRunner(Config{
		DefaultTimeout: time.Second,
		AfterQuery:     []Entry{{Pattern: ".*", Command: hookScript("accept.sh")}},
	}, testLogger())
	if !r.HasAfterQueryHooks() {
		t.Error("expected after-query hooks")
	}
}

// --- config validation ---

func TestNewRunnerPanicsOnBadRegex(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid regex")
		}
	}()
	NewRunner(Config{
		DefaultTimeout: time.Second,
		BeforeQuery:    []Entry{{Pattern: "([unclosed", Command: "true"}},
	}, testLogger())
}

func TestNewRunnerPanicsOnMissingDefaultTimeout(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing default timeout")
		}
	}()
	NewRunner(Config{
		BeforeQuery: []Entry{{Pattern: ".*", Command: "true"}},
	}, testLogger())
}

func TestVerdictShape(t *testing.T) {
	// The documented hook protocol: accept, modified, error_message.
	data, err := json.Marshal(verdict{Accept: true, Modified: "SELECT 2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"accept":true,"modified":"SELECT 2"}`
	if string(data) != want {
		t.Fatalf("verdict JSON = %s, want %s", data, want)
	}
}
