package mymcp

import (
	"context"
	"time"
)

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool                      PoolConfig        `json:"pool"`
	Security                  SecurityConfig    `json:"security"`
	Query                     QueryConfig       `json:"query"`
	ErrorPrompts              []ErrorPromptRule `json:"error_prompts"`
	Masking                   MaskingConfig     `json:"masking"`
	DefaultHookTimeoutSeconds int               `json:"default_hook_timeout_seconds"`

	// Library mode: Go function hooks (not serializable).
	// Mutually exclusive with ServerConfig.ServerHooks.
	BeforeQueryHooks []BeforeQueryHookEntry `json:"-"`
	AfterQueryHooks  []AfterQueryHookEntry  `json:"-"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection  ConnectionConfig  `json:"connection"`
	Server      ServerSettings    `json:"server"`
	Logging     LoggingConfig     `json:"logging"`
	ServerHooks ServerHooksConfig `json:"server_hooks"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
type ConnectionConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	DBName string `json:"dbname"`
	Params string `json:"params"` // extra DSN parameters, e.g. "tls=true"
}

// PoolConfig holds database/sql connection pool settings.
type PoolConfig struct {
	MaxConns        int    `json:"max_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime string `json:"conn_max_lifetime"`
	ConnMaxIdleTime string `json:"conn_max_idle_time"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// SecurityConfig configures the SQL risk gate. The zero value yields the
// development defaults: allowed levels {LOW, MEDIUM}, no blocked patterns,
// statement length limit 1000, WHERE guard on.
type SecurityConfig struct {
	// Environment is "development" or "production". Unrecognized values
	// fall back to development. Production with no explicit
	// allowed_risk_levels admits LOW only.
	Environment string `json:"environment"`

	// AllowedRiskLevels is a comma-separated list of level names
	// (LOW, MEDIUM, HIGH, CRITICAL). Empty means the environment default.
	AllowedRiskLevels string `json:"allowed_risk_levels"`

	// BlockedPatterns is a comma-separated list of regex fragments. Any
	// match forces the statement to CRITICAL and denies it.
	BlockedPatterns string `json:"blocked_patterns"`

	// MaxStatementLength caps statement size in bytes. <= 0 means 1000.
	MaxStatementLength int `json:"max_statement_length"`

	// DisableWhereGuard turns off the secondary UPDATE/DELETE WHERE-clause
	// guard. The guard is on by default.
	DisableWhereGuard bool `json:"disable_where_guard"`

	// AllowSensitiveInfo permits the sensitive server_info kinds
	// (variables, status, processlist) in production.
	AllowSensitiveInfo bool `json:"allow_sensitive_info"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	ServerInfoTimeoutSeconds    int           `json:"server_info_timeout_seconds"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// MaskingConfig configures result masking.
type MaskingConfig struct {
	// ValueRules rewrite matching substrings in every result field.
	ValueRules []MaskRule `json:"value_rules"`
	// SensitiveNames override the built-in variable-name patterns whose
	// values are hidden in server_info output. Empty keeps the defaults.
	SensitiveNames []string `json:"sensitive_names"`
}

// MaskRule defines a regex-based value masking rule.
type MaskRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// ServerHooksConfig holds command-based hook configuration for CLI mode.
type ServerHooksConfig struct {
	BeforeQuery []HookEntry `json:"before_query"`
	AfterQuery  []HookEntry `json:"after_query"`
}

// HookEntry defines a single command-based hook.
type HookEntry struct {
	Pattern        string   `json:"pattern"`
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// BeforeQueryHook can inspect and modify queries before execution.
type BeforeQueryHook interface {
	Run(ctx context.Context, query string) (string, error)
}

// AfterQueryHook can inspect and modify results after execution.
type AfterQueryHook interface {
	Run(ctx context.Context, result *QueryOutput) (*QueryOutput, error)
}

// BeforeQueryHookEntry wraps a BeforeQueryHook with metadata.
type BeforeQueryHookEntry struct {
	Name    string
	Timeout time.Duration
	Hook    BeforeQueryHook
}

// AfterQueryHookEntry wraps an AfterQueryHook with metadata.
type AfterQueryHookEntry struct {
	Name    string
	Timeout time.Duration
	Hook    AfterQueryHook
}
