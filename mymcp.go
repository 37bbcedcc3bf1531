package mymcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/fersoftware/mysql-mcp-server-sse/internal/errprompt"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/hooks"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/intercept"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/limiter"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/mask"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/risk"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/timeout"
)

// MysqlMcp is the core engine that provides the Query, ListTables,
// DescribeTable, and ServerInfo tools. All exported methods are safe for
// concurrent use from multiple goroutines; the security policy is built
// once in New and never mutated afterwards.
type MysqlMcp struct {
	config        Config
	db            *sql.DB
	semaphore     chan struct{}
	policy        risk.Policy
	interceptor   *intercept.Interceptor
	whereGuard    *limiter.Limiter
	cmdHooks      *hooks.Runner          // command-based hooks (CLI mode)
	goBeforeHooks []BeforeQueryHookEntry // Go function hooks (library mode)
	goAfterHooks  []AfterQueryHookEntry  // Go function hooks (library mode)
	masker        *mask.Masker
	errPrompts    *errprompt.Matcher
	timeoutMgr    *timeout.Manager
	logger        zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	serverHooks *ServerHooksConfig
}

// WithServerHooks passes command-based hook configuration to MysqlMcp.
// Mutually exclusive with Config.BeforeQueryHooks/AfterQueryHooks (Go hooks).
func WithServerHooks(h ServerHooksConfig) Option {
	return func(o *options) {
		o.serverHooks = &h
	}
}

// New creates a new MysqlMcp instance. dsn is the go-sql-driver DSN
// (e.g. "user:password@tcp(localhost:3306)/dbname").
// Panics on invalid config. Returns error only for runtime failures and for
// configuration that must be validated eagerly (blocked patterns, masking
// rules, error prompts — fail fast at load time rather than at match time).
func New(ctx context.Context, dsn string, config Config, logger zerolog.Logger, opts ...Option) (*MysqlMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if dsn == "" {
		panic("mymcp: dsn must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("mymcp: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("mymcp: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("mymcp: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("mymcp: query.describe_table_timeout_seconds must be > 0")
	}
	if config.Query.ServerInfoTimeoutSeconds <= 0 {
		panic("mymcp: query.server_info_timeout_seconds must be > 0")
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxResultLength < 0 {
		panic("mymcp: query.max_result_length must be > 0")
	}

	hasGoHooks := len(config.BeforeQueryHooks) > 0 || len(config.AfterQueryHooks) > 0
	hasCmdHooks := o.serverHooks != nil &&
		(len(o.serverHooks.BeforeQuery) > 0 || len(o.serverHooks.AfterQuery) > 0)
	if hasGoHooks && hasCmdHooks {
		panic("mymcp: Go hooks and command-based server hooks are mutually exclusive")
	}
	if (hasGoHooks || hasCmdHooks) && config.DefaultHookTimeoutSeconds <= 0 {
		panic("mymcp: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("mymcp: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}

	// --- Build the security gate ---

	policy, err := risk.NewPolicy(risk.Settings{
		Environment:        config.Security.Environment,
		AllowedRiskLevels:  config.Security.AllowedRiskLevels,
		BlockedPatterns:    config.Security.BlockedPatterns,
		MaxStatementLength: config.Security.MaxStatementLength,
		WhereGuardEnabled:  !config.Security.DisableWhereGuard,
	}, logger)
	if err != nil {
		return nil, err
	}

	classifier := risk.NewClassifier(policy, logger)
	interceptor := intercept.NewInterceptor(classifier, logger)
	whereGuard := limiter.NewLimiter(policy.WhereGuardEnabled, logger)

	// --- Initialize supporting components ---

	sensitiveNames := config.Masking.SensitiveNames
	if len(sensitiveNames) == 0 {
		sensitiveNames = mask.DefaultSensitiveNames
	}
	masker, err := mask.NewMasker(mapMaskRules(config.Masking.ValueRules), sensitiveNames)
	if err != nil {
		return nil, err
	}

	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})

	var cmdHooks *hooks.Runner
	if hasCmdHooks {
		hookEntries := func(entries []HookEntry) []hooks.Entry {
			result := make([]hooks.Entry, len(entries))
			for i, e := range entries {
				result[i] = hooks.Entry{
					Pattern: e.Pattern,
					Command: e.Command,
					Args:    e.Args,
					Timeout: time.Duration(e.TimeoutSeconds) * time.Second,
				}
			}
			return result
		}
		cmdHooks = hooks.NewRunner(hooks.Config{
			DefaultTimeout: time.Duration(config.DefaultHookTimeoutSeconds) * time.Second,
			BeforeQuery:    hookEntries(o.serverHooks.BeforeQuery),
			AfterQuery:     hookEntries(o.serverHooks.AfterQuery),
		}, logger)
	}

	// --- Open the database pool ---

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.Pool.MaxConns)
	if config.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.Pool.MaxIdleConns)
	}
	if config.Pool.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(config.Pool.ConnMaxLifetime)
		if err != nil {
			panic(fmt.Sprintf("mymcp: invalid pool.conn_max_lifetime %q: %v", config.Pool.ConnMaxLifetime, err))
		}
		db.SetConnMaxLifetime(d)
	}
	if config.Pool.ConnMaxIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.ConnMaxIdleTime)
		if err != nil {
			panic(fmt.Sprintf("mymcp: invalid pool.conn_max_idle_time %q: %v", config.Pool.ConnMaxIdleTime, err))
		}
		db.SetConnMaxIdleTime(d)
	}

	return &MysqlMcp{
		config:        config,
		db:            db,
		semaphore:     make(chan struct{}, config.Pool.MaxConns),
		policy:        policy,
		interceptor:   interceptor,
		whereGuard:    whereGuard,
		cmdHooks:      cmdHooks,
		goBeforeHooks: config.BeforeQueryHooks,
		goAfterHooks:  config.AfterQueryHooks,
		masker:        masker,
		errPrompts:    matcher,
		timeoutMgr:    tmgr,
		logger:        logger,
	}, nil
}

// Ping verifies database connectivity.
func (m *MysqlMcp) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Policy returns the immutable security policy the gate enforces.
func (m *MysqlMcp) Policy() risk.Policy {
	return m.policy
}

// Close closes the connection pool.
func (m *MysqlMcp) Close() error {
	return m.db.Close()
}

// mapMaskRules converts mymcp MaskRules to internal mask.Rules.
func mapMaskRules(rules []MaskRule) []mask.Rule {
	result := make([]mask.Rule, len(rules))
	for i, r := range rules {
		result[i] = mask.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorPromptRules converts mymcp ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
