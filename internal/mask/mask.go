// Package mask hides sensitive data in result rows before they leave the
// server: operator-configured regex rules rewrite field values, and server
// variables whose names look credential-related get their values replaced
// wholesale.
package mask

import (
	"fmt"
	"regexp"
)

// Hidden replaces the value of a sensitive server variable.
const Hidden = "*** HIDDEN ***"

// DefaultSensitiveNames match MySQL variable names whose values should never
// be shown to an agent (SHOW VARIABLES / SHOW STATUS output).
var DefaultSensitiveNames = []string{
	"password", "passwd", "auth", "credential", "key", "secret",
	"private", "host", "path", "directory", "ssl", "socket",
}

// Rule is a value-rewriting rule applied to every string field.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Masker applies value rules and sensitive-name hiding to result rows.
type Masker struct {
	rules          []compiledRule
	sensitiveNames []*regexp.Regexp
}

// NewMasker compiles the value rules and sensitive-name patterns.
// Returns an error on invalid regex, surfacing bad config at startup.
func NewMasker(rules []Rule, sensitiveNames []string) (*Masker, error) {
	m := &Masker{rules: make([]compiledRule, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("mask: invalid value pattern %q: %v", r.Pattern, err)
		}
		m.rules[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	for _, name := range sensitiveNames {
		re, err := regexp.Compile("(?i)" + name)
		if err != nil {
			return nil, fmt.Errorf("mask: invalid sensitive name pattern %q: %v", name, err)
		}
		m.sensitiveNames = append(m.sensitiveNames, re)
	}
	return m, nil
}

// HasValueRules reports whether any value-rewriting rules are configured.
func (m *Masker) HasValueRules() bool {
	return len(m.rules) > 0
}

// MaskRows applies the value rules to every field of every row, recursing
// into nested maps and slices (JSON columns).
func (m *Masker) MaskRows(rows []map[string]interface{}) []map[string]interface{} {
	for _, row := range rows {
		for k, v := range row {
			row[k] = m.maskValue(v)
		}
	}
	return rows
}

func (m *Masker) maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		result := val
		for _, rule := range m.rules {
			result = rule.pattern.ReplaceAllString(result, rule.replacement)
		}
		return result
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = m.maskValue(inner)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = m.maskValue(item)
		}
		return val
	default:
		return v
	}
}

// HideSensitive replaces the value fields of rows whose name field matches
// a sensitive-name pattern. Used for SHOW VARIABLES / SHOW STATUS style
// output where nameField is e.g. "Variable_name" and valueFields is
// {"Value"}.
func (m *Masker) HideSensitive(rows []map[string]interface{}, nameField string, valueFields ...string) []map[string]interface{} {
	for _, row := range rows {
		name, ok := row[nameField].(string)
		if !ok {
			continue
		}
		if !m.isSensitiveName(name) {
			continue
		}
		for _, field := range valueFields {
			if _, present := row[field]; present {
				row[field] = Hidden
			}
		}
	}
	return rows
}

func (m *Masker) isSensitiveName(name string) bool {
	for _, re := range m.sensitiveNames {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
