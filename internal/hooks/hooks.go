// Package hooks runs operator-supplied commands around query execution.
// A hook receives the query (or the result JSON) on stdin and answers with
// a JSON verdict on stdout: accept or reject, optionally with a rewritten
// payload. Hooks are guardrails — any hook failure stops the pipeline.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the hook runner's own config type.
type Config struct {
	DefaultTimeout time.Duration
	BeforeQuery    []Entry
	AfterQuery     []Entry
}

// Entry defines a single command-based hook. The command runs only when the
// pattern matches the payload.
type Entry struct {
	Pattern string
	Command string
	Args    []string
	Timeout time.Duration // 0 means DefaultTimeout
}

// verdict is the JSON response a hook writes to stdout.
type verdict struct {
	Accept       bool   `json:"accept"`
	Modified     string `json:"modified,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type compiledHook struct {
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
}

// Runner executes command-based hooks.
type Runner struct {
	beforeQuery []compiledHook
	afterQuery  []compiledHook
	logger      zerolog.Logger
}

// NewRunner creates a Runner. Panics on invalid regex or a missing default
// timeout — hook config is static and a bad entry is a deployment error.
func NewRunner(config Config, logger zerolog.Logger) *Runner {
	if config.DefaultTimeout == 0 && (len(config.BeforeQuery) > 0 || len(config.AfterQuery) > 0) {
		panic("hooks: default hook timeout must be > 0 when hooks are configured")
	}

	compile := func(entries []Entry) []compiledHook {
		compiled := make([]compiledHook, len(entries))
		for i, e := range entries {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				panic(fmt.Sprintf("hooks: invalid regex pattern %q: %v", e.Pattern, err))
			}
			timeout := e.Timeout
			if timeout == 0 {
				timeout = config.DefaultTimeout
			}
			compiled[i] = compiledHook{pattern: re, command: e.Command, args: e.Args, timeout: timeout}
		}
		return compiled
	}

	return &Runner{
		beforeQuery: compile(config.BeforeQuery),
		afterQuery:  compile(config.AfterQuery),
		logger:      logger,
	}
}

// HasAfterQueryHooks reports whether any after-query hooks are configured.
func (r *Runner) HasAfterQueryHooks() bool {
	return len(r.afterQuery) > 0
}

// RunBeforeQuery chains matching before-query hooks over the SQL text.
// Returns the (possibly rewritten) SQL and the commands that ran.
func (r *Runner) RunBeforeQuery(ctx context.Context, sql string) (string, []string, error) {
	current, executed, err := r.runChain(ctx, r.beforeQuery, sql, "query rejected by hook")
	if err != nil {
		return "", executed, fmt.Errorf("before_query hook error: %w", err)
	}
	return current, executed, nil
}

// RunAfterQuery chains matching after-query hooks over the result JSON.
// Returns the (possibly rewritten) JSON and the commands that ran.
func (r *Runner) RunAfterQuery(ctx context.Context, resultJSON string) (string, []string, error) {
	current, executed, err := r.runChain(ctx, r.afterQuery, resultJSON, "result rejected by hook")
	if err != nil {
		return "", executed, fmt.Errorf("after_query hook error: %w", err)
	}
	return current, executed, nil
}

func (r *Runner) runChain(ctx context.Context, chain []compiledHook, payload, rejectMsg string) (string, []string, error) {
	var executed []string
	current := payload
	for _, hook := range chain {
		if !hook.pattern.MatchString(current) {
			continue
		}
		executed = append(executed, hook.command)

		output, err := r.executeHook(ctx, hook, current)
		if err != nil {
			return "", executed, err
		}

		var v verdict
		if err := json.Unmarshal(output, &v); err != nil {
			return "", executed, fmt.Errorf("hook returned unparseable response (command: %s): %w", hook.command, err)
		}
		if !v.Accept {
			msg := rejectMsg
			if v.ErrorMessage != "" {
				msg = v.ErrorMessage
			}
			return "", executed, errors.New(msg)
		}
		if v.Modified != "" {
			current = v.Modified
		}
	}
	return current, executed, nil
}

func (r *Runner) executeHook(ctx context.Context, hook compiledHook, input string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hook.timeout)
	defer cancel()

	// Command and args execute directly, no shell interpretation.
	cmd := exec.CommandContext(ctx, hook.command, hook.args...)
	cmd.Stdin = strings.NewReader(input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if stderr.Len() > 0 {
		// Hooks may emit diagnostics on stderr regardless of outcome.
		r.logger.Debug().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("hook timed out: %s", hook.command)
		}
		return nil, fmt.Errorf("hook failed (command: %s): %w", hook.command, err)
	}
	return output, nil
}
