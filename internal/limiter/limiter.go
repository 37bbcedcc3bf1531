// Package limiter enforces WHERE-clause presence on mutating statements.
//
// It is deliberately blunter than the risk classifier's own WHERE-aware
// scoring and runs in addition to it, not instead of it: the query pipeline
// invokes both guards unconditionally so a wiring mistake in one cannot
// silently admit an unbounded UPDATE or DELETE.
package limiter

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Limiter denies UPDATE and DELETE statements that carry no WHERE clause.
type Limiter struct {
	enabled bool
	logger  zerolog.Logger
}

// NewLimiter creates a Limiter. When enabled is false every check passes.
func NewLimiter(enabled bool, logger zerolog.Logger) *Limiter {
	return &Limiter{enabled: enabled, logger: logger}
}

// Check reports whether the statement may run and, when it may not, a
// human-readable reason naming the operation and the missing clause.
// The WHERE detection is a literal substring check, not literal-aware.
func (l *Limiter) Check(sql string) (bool, string) {
	if !l.enabled {
		return true, ""
	}

	upper := strings.ToUpper(strings.TrimSpace(sql))
	words := strings.Fields(upper)
	if len(words) == 0 {
		return true, ""
	}

	operation := words[0]
	if (operation == "UPDATE" || operation == "DELETE") && !strings.Contains(upper, "WHERE") {
		reason := fmt.Sprintf("%s statement must contain a WHERE clause", operation)
		l.logger.Warn().Str("operation", operation).Msg("statement restricted: missing WHERE clause")
		return false, reason
	}
	return true, ""
}
