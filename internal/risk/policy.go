package risk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxStatementLength caps statement size when no override is set.
const DefaultMaxStatementLength = 1000

// Settings is the raw, string-valued policy input resolved at startup.
// Empty fields take defaults.
type Settings struct {
	Environment        string // "development" or "production"
	AllowedRiskLevels  string // comma-separated level names; empty means no override
	BlockedPatterns    string // comma-separated regex fragments
	MaxStatementLength int    // <= 0 means DefaultMaxStatementLength
	WhereGuardEnabled  bool
}

// Policy is the immutable, process-lifetime gate configuration. Build it
// once with NewPolicy and share it read-only; no field is re-read from the
// environment after construction.
type Policy struct {
	Environment        Environment
	AllowedLevels      map[Level]bool
	BlockedPatterns    []*regexp.Regexp
	MaxStatementLength int
	WhereGuardEnabled  bool
}

// NewPolicy validates and builds a Policy. Pattern compilation failures are
// surfaced here, at load time, rather than at match time.
//
// In production with no explicit allowed-levels override the policy admits
// LOW only. Unrecognized level names are dropped with a warning; if nothing
// valid remains the set falls back to LOW rather than ending up empty.
func NewPolicy(settings Settings, logger zerolog.Logger) (Policy, error) {
	policy := Policy{
		Environment:        ParseEnvironment(settings.Environment),
		MaxStatementLength: settings.MaxStatementLength,
		WhereGuardEnabled:  settings.WhereGuardEnabled,
	}
	if policy.MaxStatementLength <= 0 {
		policy.MaxStatementLength = DefaultMaxStatementLength
	}

	explicit := strings.TrimSpace(settings.AllowedRiskLevels) != ""
	if explicit {
		policy.AllowedLevels = parseLevels(settings.AllowedRiskLevels, logger)
	} else if policy.Environment == EnvProduction {
		policy.AllowedLevels = map[Level]bool{LevelLow: true}
	} else {
		policy.AllowedLevels = map[Level]bool{LevelLow: true, LevelMedium: true}
	}
	if len(policy.AllowedLevels) == 0 {
		// Fail closed: an empty allowed set would deny everything silently,
		// an all-invalid override gets the most restrictive usable set.
		logger.Warn().
			Str("allowed_risk_levels", settings.AllowedRiskLevels).
			Msg("no valid risk levels configured, falling back to LOW")
		policy.AllowedLevels = map[Level]bool{LevelLow: true}
	}

	patterns, err := compilePatterns(settings.BlockedPatterns)
	if err != nil {
		return Policy{}, err
	}
	policy.BlockedPatterns = patterns

	logger.Info().
		Str("environment", policy.Environment.String()).
		Strs("allowed_risk_levels", policy.AllowedLevelNames()).
		Int("blocked_patterns", len(policy.BlockedPatterns)).
		Msg("SQL risk policy initialized")
	return policy, nil
}

// AllowedLevelNames returns the admitted level names in severity order,
// for logs and denial reasons.
func (p Policy) AllowedLevelNames() []string {
	levels := make([]Level, 0, len(p.AllowedLevels))
	for level := range p.AllowedLevels {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	names := make([]string, len(levels))
	for i, level := range levels {
		names[i] = level.String()
	}
	return names
}

// parseLevels parses a comma-separated list of level names, dropping
// unrecognized names with a warning.
func parseLevels(csv string, logger zerolog.Logger) map[Level]bool {
	levels := map[Level]bool{}
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		level, ok := ParseLevel(name)
		if !ok {
			logger.Warn().Str("level", name).Msg("unrecognized risk level name, dropped")
			continue
		}
		levels[level] = true
	}
	return levels
}

// compilePatterns parses comma-separated regex fragments. Empty entries are
// dropped; every remaining fragment must compile. Matching is
// case-insensitive.
func compilePatterns(csv string) ([]*regexp.Regexp, error) {
	var patterns []*regexp.Regexp
	for _, fragment := range strings.Split(csv, ",") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		compiled, err := regexp.Compile("(?i)" + fragment)
		if err != nil {
			return nil, fmt.Errorf("risk: invalid blocked pattern %q: %v", fragment, err)
		}
		patterns = append(patterns, compiled)
	}
	return patterns, nil
}
