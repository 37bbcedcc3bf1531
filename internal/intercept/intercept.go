// Package intercept is the single admission gate every SQL statement passes
// through before it reaches the database. It runs structural checks, invokes
// the risk classifier, and applies the policy decision. The gate fails
// closed: any internal fault during checking becomes a denial, never an
// admission and never a panic reaching the caller.
package intercept

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fersoftware/mysql-mcp-server-sse/internal/risk"
)

// Rule identifies which admission rule a statement violated.
type Rule int

const (
	RuleInternal Rule = iota // unexpected fault during checking
	RuleEmptyStatement
	RuleStatementTooLong
	RuleUnsupportedOperation
	RuleDangerousOperation
	RuleRiskLevelNotAllowed
	RuleMissingWhere // raised by the WHERE-clause guard in the query pipeline
)

// String returns the rule name used in audit logs.
func (r Rule) String() string {
	switch r {
	case RuleEmptyStatement:
		return "empty_statement"
	case RuleStatementTooLong:
		return "statement_too_long"
	case RuleUnsupportedOperation:
		return "unsupported_operation"
	case RuleDangerousOperation:
		return "dangerous_operation"
	case RuleRiskLevelNotAllowed:
		return "risk_level_not_allowed"
	case RuleMissingWhere:
		return "missing_where"
	default:
		return "internal"
	}
}

// Denial is the typed rejection returned for a statement that failed an
// admission rule. It is terminal for that statement and never retried.
type Denial struct {
	Rule      Rule
	Operation string
	Reason    string
}

// Error implements error.
func (d *Denial) Error() string {
	return d.Reason
}

// Interceptor orchestrates the admission pipeline. It holds only read-only
// state and is safe for unbounded concurrent use.
type Interceptor struct {
	classifier *risk.Classifier
	logger     zerolog.Logger
}

// NewInterceptor creates an Interceptor around the given classifier.
func NewInterceptor(classifier *risk.Classifier, logger zerolog.Logger) *Interceptor {
	return &Interceptor{classifier: classifier, logger: logger}
}

// Check runs the full admission pipeline. It returns the risk analysis and
// nil when the statement is admitted, or a *Denial when any step rejects it.
// Validation completes strictly before the statement may be submitted for
// execution; Check never runs concurrently with the statement it judges.
func (i *Interceptor) Check(sql string) (analysis *risk.Analysis, err error) {
	// Ambiguity resolves to deny: a fault anywhere below is converted into
	// a denial instead of propagating.
	defer func() {
		if r := recover(); r != nil {
			err = i.deny(&Denial{
				Rule:   RuleInternal,
				Reason: fmt.Sprintf("security check failed: %v", r),
			})
			analysis = nil
		}
	}()

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, i.deny(&Denial{
			Rule:   RuleEmptyStatement,
			Reason: "SQL statement must not be empty",
		})
	}

	policy := i.classifier.Policy()
	if len(sql) > policy.MaxStatementLength {
		return nil, i.deny(&Denial{
			Rule:   RuleStatementTooLong,
			Reason: fmt.Sprintf("SQL statement length %d exceeds the configured limit of %d", len(sql), policy.MaxStatementLength),
		})
	}

	operation := strings.ToUpper(strings.Fields(trimmed)[0])
	if !risk.Supported(operation) {
		return nil, i.deny(&Denial{
			Rule:      RuleUnsupportedOperation,
			Operation: operation,
			Reason:    fmt.Sprintf("unsupported SQL operation: %s", operation),
		})
	}

	result := i.classifier.Analyze(sql)

	if result.Dangerous {
		cause := "matches a blocked pattern"
		if policy.Environment == risk.EnvProduction && operation != "SELECT" {
			cause = "non-SELECT operations are locked down in production"
		}
		return nil, i.deny(&Denial{
			Rule:      RuleDangerousOperation,
			Operation: result.Operation,
			Reason:    fmt.Sprintf("dangerous operation detected: %s (%s)", result.Operation, cause),
		})
	}

	if !result.Allowed {
		return nil, i.deny(&Denial{
			Rule:      RuleRiskLevelNotAllowed,
			Operation: result.Operation,
			Reason: fmt.Sprintf("operation risk level %s is not permitted, allowed levels: %s",
				result.Level, strings.Join(policy.AllowedLevelNames(), ", ")),
		})
	}

	i.logger.Info().
		Str("operation", result.Operation).
		Str("operation_class", result.Class.String()).
		Str("risk_level", result.Level.String()).
		Strs("affected_tables", result.AffectedTables).
		Msg("SQL statement admitted")
	return &result, nil
}

// deny logs the denial with the same fields exposed to the caller, keeping
// audit logs and caller-visible reasons consistent.
func (i *Interceptor) deny(d *Denial) error {
	event := i.logger.Error().
		Str("rule", d.Rule.String()).
		Str("reason", d.Reason)
	if d.Operation != "" {
		event = event.Str("operation", d.Operation)
	}
	event.Msg("SQL statement denied")
	return d
}
