// Package timeout resolves per-query execution timeouts by matching SQL
// against configured patterns. First matching rule wins; everything else
// gets the default. The gate itself carries no timeout semantics — these
// budgets apply to the downstream execution layer only.
package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule maps a SQL pattern to a timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves query timeouts based on SQL pattern matching.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager creates a Manager. Panics on invalid regex patterns — timeout
// rules are static config, a bad pattern is a deployment error.
func NewManager(config Config) *Manager {
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("timeout: invalid regex pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}
}

// GetTimeout returns the timeout for the given SQL.
func (m *Manager) GetTimeout(sql string) time.Duration {
	t, _ := m.GetTimeoutWithPattern(sql)
	return t
}

// GetTimeoutWithPattern returns the timeout for the given SQL along with
// the pattern that selected it (empty string for the default).
func (m *Manager) GetTimeoutWithPattern(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}
