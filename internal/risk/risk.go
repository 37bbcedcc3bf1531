// Package risk scores SQL statements for danger using lexical heuristics.
//
// The classifier is deliberately not a SQL parser: the leading keyword picks
// the operation class, tables are detected by adjacent-token scanning, and
// WHERE presence is a substring check. This keeps the gate dialect-agnostic
// and cheap, at the cost of known false positives on string literals that
// contain keywords and false negatives on multi-table lists and subqueries.
package risk

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Level is the ordered severity tier assigned to a statement.
type Level int

const (
	LevelLow      Level = 1 // SELECT and metadata queries
	LevelMedium   Level = 2 // INSERT, WHERE-qualified UPDATE/DELETE
	LevelHigh     Level = 3 // structural changes, UPDATE without WHERE
	LevelCritical Level = 4 // DROP/TRUNCATE, DELETE without WHERE, blocked patterns
)

// String returns the canonical level name used in config and denial reasons.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level. Returns false for
// unrecognized names.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LOW":
		return LevelLow, true
	case "MEDIUM":
		return LevelMedium, true
	case "HIGH":
		return LevelHigh, true
	case "CRITICAL":
		return LevelCritical, true
	default:
		return 0, false
	}
}

// Environment selects the deployment mode the gate runs under.
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvProduction
)

// String returns the lowercase environment name.
func (e Environment) String() string {
	if e == EnvProduction {
		return "production"
	}
	return "development"
}

// ParseEnvironment converts a configured string to an Environment.
// Unrecognized values (and empty input) default to development.
func ParseEnvironment(value string) Environment {
	if strings.ToLower(strings.TrimSpace(value)) == "production" {
		return EnvProduction
	}
	return EnvDevelopment
}

// OperationClass groups SQL operations by their leading keyword.
type OperationClass int

const (
	ClassUnknown OperationClass = iota
	ClassDDL
	ClassDML
	ClassMetadata
)

// String returns the class name used in audit logs.
func (c OperationClass) String() string {
	switch c {
	case ClassDDL:
		return "DDL"
	case ClassDML:
		return "DML"
	case ClassMetadata:
		return "METADATA"
	default:
		return "UNKNOWN"
	}
}

var ddlOperations = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true, "RENAME": true,
}

var dmlOperations = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
}

var metadataOperations = map[string]bool{
	"SHOW": true, "DESC": true, "DESCRIBE": true, "EXPLAIN": true, "HELP": true,
	"ANALYZE": true, "CHECK": true, "CHECKSUM": true, "OPTIMIZE": true,
}

// ClassOf returns the operation class for an uppercased leading keyword.
func ClassOf(operation string) OperationClass {
	switch {
	case ddlOperations[operation]:
		return ClassDDL
	case metadataOperations[operation]:
		return ClassMetadata
	case dmlOperations[operation]:
		return ClassDML
	default:
		return ClassUnknown
	}
}

// Supported reports whether the uppercased leading keyword is one of the
// operations the gate admits at all (the union of the three class sets).
func Supported(operation string) bool {
	return ddlOperations[operation] || dmlOperations[operation] || metadataOperations[operation]
}

// IsMetadata reports whether the uppercased leading keyword is a read-only
// schema-introspection operation.
func IsMetadata(operation string) bool {
	return metadataOperations[operation]
}

// RowsUnbounded is the sentinel for an impact estimate with no upper bound.
const RowsUnbounded int64 = -1

// Impact is a heuristic prediction of how many rows a statement could
// affect. It drives warnings only, never blocks execution by itself.
type Impact struct {
	Operation     string `json:"operation"`
	EstimatedRows int64  `json:"estimated_rows"` // RowsUnbounded when unlimited
	NeedsWhere    bool   `json:"needs_where"`
	HasWhere      bool   `json:"has_where"`
}

// Analysis is the classifier's verdict for a single statement.
type Analysis struct {
	Operation      string         `json:"operation"`
	Class          OperationClass `json:"operation_class"`
	Dangerous      bool           `json:"is_dangerous"`
	AffectedTables []string       `json:"affected_tables"`
	Impact         Impact         `json:"estimated_impact"`
	Level          Level          `json:"risk_level"`
	Allowed        bool           `json:"is_allowed"`
}

// Classifier scores SQL statements against a Policy. It holds no mutable
// state and is safe for concurrent use; identical (sql, policy) inputs
// produce identical Analysis values.
type Classifier struct {
	policy Policy
	logger zerolog.Logger
}

// NewClassifier creates a Classifier for the given policy.
func NewClassifier(policy Policy, logger zerolog.Logger) *Classifier {
	return &Classifier{policy: policy, logger: logger}
}

// Policy returns the policy the classifier scores against.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Analyze scores a single SQL statement. It is total: empty or whitespace
// input yields a dangerous, denied analysis rather than an error.
func (c *Classifier) Analyze(sql string) Analysis {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Analysis{
			Class:          ClassUnknown,
			Dangerous:      true,
			AffectedTables: []string{},
			Level:          LevelHigh,
			Allowed:        false,
		}
	}

	upper := strings.ToUpper(trimmed)
	operation := strings.Fields(upper)[0]

	analysis := Analysis{
		Operation:      operation,
		Class:          ClassOf(operation),
		Dangerous:      c.isDangerous(upper, operation),
		AffectedTables: detectTables(trimmed),
		Impact:         c.estimateImpact(upper, operation),
	}
	analysis.Level = c.riskLevel(upper, operation, analysis.Dangerous)
	analysis.Allowed = c.policy.AllowedLevels[analysis.Level]
	return analysis
}

// isDangerous checks the uppercased statement against the blocked patterns,
// and in production flags every non-SELECT operation regardless of patterns.
func (c *Classifier) isDangerous(upper, operation string) bool {
	if c.policy.Environment == EnvProduction && operation != "SELECT" {
		c.logger.Warn().
			Str("operation", operation).
			Msg("non-SELECT operation flagged in production")
		return true
	}
	for _, pattern := range c.policy.BlockedPatterns {
		if pattern.MatchString(upper) {
			c.logger.Warn().
				Str("operation", operation).
				Str("pattern", pattern.String()).
				Msg("SQL matches blocked pattern")
			return true
		}
	}
	return false
}

// riskLevel evaluates the fixed-priority cascade. First matching rule wins.
func (c *Classifier) riskLevel(upper, operation string, dangerous bool) Level {
	if dangerous {
		return LevelCritical
	}
	if metadataOperations[operation] {
		return LevelLow
	}
	if c.policy.Environment == EnvProduction && operation != "SELECT" {
		return LevelCritical
	}
	if ddlOperations[operation] {
		if operation == "DROP" || operation == "TRUNCATE" {
			return LevelCritical
		}
		return LevelHigh
	}
	hasWhere := strings.Contains(upper, "WHERE")
	switch operation {
	case "SELECT":
		return LevelLow
	case "INSERT":
		return LevelMedium
	case "UPDATE":
		if !hasWhere {
			return LevelHigh
		}
		return LevelMedium
	case "DELETE":
		if !hasWhere {
			return LevelCritical
		}
		return LevelMedium
	}
	return LevelHigh
}

// tableIntroducers are the keywords whose following token is taken as a
// table name.
var tableIntroducers = map[string]bool{
	"FROM": true, "JOIN": true, "UPDATE": true, "INTO": true, "TABLE": true,
}

// tableReserved are tokens never accepted as table names.
var tableReserved = map[string]bool{
	"SELECT": true, "WHERE": true, "SET": true,
}

// detectTables scans whitespace tokens and collects the token following
// FROM/JOIN/UPDATE/INTO/TABLE. Best effort only: misses multi-table lists
// and subqueries, and misfires on string literals containing these keywords.
// The result is deduplicated and sorted so identical input yields identical
// output.
func detectTables(sql string) []string {
	words := strings.Fields(sql)
	seen := map[string]bool{}
	for i, word := range words {
		if !tableIntroducers[strings.ToUpper(word)] || i+1 >= len(words) {
			continue
		}
		table := strings.Trim(words[i+1], "`;")
		if table == "" || tableReserved[strings.ToUpper(table)] {
			continue
		}
		seen[table] = true
	}
	tables := make([]string, 0, len(seen))
	for table := range seen {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// estimateImpact predicts affected row counts. The numbers are fixed
// heuristics, not query-plan based.
func (c *Classifier) estimateImpact(upper, operation string) Impact {
	impact := Impact{
		Operation:  operation,
		NeedsWhere: operation == "UPDATE" || operation == "DELETE",
		HasWhere:   strings.Contains(upper, "WHERE"),
	}

	if operation == "SELECT" {
		impact.EstimatedRows = 100
		return impact
	}

	if c.policy.Environment == EnvProduction {
		impact.EstimatedRows = RowsUnbounded
		c.logger.Warn().
			Str("operation", operation).
			Msg("non-SELECT operation in production has unbounded impact estimate")
		return impact
	}

	if impact.NeedsWhere {
		if impact.HasWhere {
			impact.EstimatedRows = 1000
		} else {
			impact.EstimatedRows = RowsUnbounded
			c.logger.Warn().
				Str("operation", operation).
				Msg("operation without WHERE may affect an unbounded number of rows")
		}
	}
	return impact
}
