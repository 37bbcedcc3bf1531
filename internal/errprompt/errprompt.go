// Package errprompt turns database error messages into guidance for the
// calling agent. Each rule maps a regex over the error text to a hint that
// is appended to the error the agent sees.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error message pattern to a guidance message.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher evaluates error messages against the configured rules.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles the rules. Returns an error on invalid regex so bad
// config surfaces at startup, not on the first failing query.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Evaluate checks the error message against every rule, top to bottom.
// It returns the matching guidance messages joined by newlines (empty when
// nothing matched) and the patterns that matched, for logging.
func (m *Matcher) Evaluate(errMsg string) (guidance string, matched []string) {
	var messages []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			messages = append(messages, rule.message)
			matched = append(matched, rule.pattern.String())
		}
	}
	return strings.Join(messages, "\n"), matched
}
