package mymcp

import (
	"fmt"
	"regexp"
)

// Identifier inputs for the metadata tools never pass through the risk
// gate's regex patterns, so they get their own strict allowlist instead:
// plain names only, no quoting, no punctuation. Anything else is rejected
// before it can reach a statement.
var (
	identifierPattern  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	likePatternPattern = regexp.MustCompile(`^[A-Za-z0-9_%]+$`)
)

// validateIdentifier checks a table or database name.
func validateIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q: only letters, digits, and underscores are allowed", kind, name)
	}
	return nil
}

// validateLikePattern checks a SQL LIKE pattern used for name filtering.
func validateLikePattern(pattern string) error {
	if !likePatternPattern.MatchString(pattern) {
		return fmt.Errorf("invalid pattern %q: only letters, digits, underscores, and %% are allowed", pattern)
	}
	return nil
}
