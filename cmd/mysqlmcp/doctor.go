package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/rs/zerolog"

	mymcp "github.com/fersoftware/mysql-mcp-server-sse"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/intercept"
	"github.com/fersoftware/mysql-mcp-server-sse/internal/risk"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "mysqlmcp %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'mysqlmcp doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	doctorGateSelfCheck(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check
// results. Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*mymcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		return nil, false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config mymcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		return nil, false
	}
	printCheck(w, useColor, true, "Config file is valid JSON")
	applyEnvOverrides(&config)

	// Check 2: connection.dbname is set
	if config.Connection.DBName == "" {
		printCheck(w, useColor, false, "connection.dbname is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	// Check 3: server.port > 0
	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	// Check 4: Health check path set when enabled
	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	// Check 5: Security policy builds (blocked patterns compile, level
	// names parse)
	if _, err := risk.NewPolicy(risk.Settings{
		Environment:        config.Security.Environment,
		AllowedRiskLevels:  config.Security.AllowedRiskLevels,
		BlockedPatterns:    config.Security.BlockedPatterns,
		MaxStatementLength: config.Security.MaxStatementLength,
		WhereGuardEnabled:  !config.Security.DisableWhereGuard,
	}, zerolog.Nop()); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Security policy builds: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "Security policy builds (blocked patterns compile)")
	}

	// Check 6: Remaining regex patterns compile
	regexOK := true
	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, rule := range config.Masking.ValueRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("masking.value_rules[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, hook := range config.ServerHooks.BeforeQuery {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.before_query[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, hook := range config.ServerHooks.AfterQuery {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.after_query[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	if regexOK {
		printCheck(w, useColor, true, "All configured regex patterns compile")
	} else {
		allPassed = false
	}

	return &config, allPassed
}

// doctorGateSelfCheck runs representative statements through the gate built
// from the loaded config and prints each verdict, so operators can see what
// their policy actually admits before pointing an agent at it.
func doctorGateSelfCheck(w io.Writer, useColor bool, config *mymcp.ServerConfig) {
	fmt.Fprintln(w, "Security gate self-check:")

	policy, err := risk.NewPolicy(risk.Settings{
		Environment:        config.Security.Environment,
		AllowedRiskLevels:  config.Security.AllowedRiskLevels,
		BlockedPatterns:    config.Security.BlockedPatterns,
		MaxStatementLength: config.Security.MaxStatementLength,
		WhereGuardEnabled:  !config.Security.DisableWhereGuard,
	}, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(w, "  cannot build policy: %v\n", err)
		return
	}
	gate := intercept.NewInterceptor(risk.NewClassifier(policy, zerolog.Nop()), zerolog.Nop())

	samples := []string{
		"SELECT * FROM users LIMIT 10",
		"SHOW TABLES",
		"INSERT INTO t (id) VALUES (1)",
		"UPDATE users SET name = 'x' WHERE id = 1",
		"UPDATE users SET name = 'x'",
		"DELETE FROM users WHERE id = 1",
		"DROP TABLE users",
	}
	for _, sample := range samples {
		if _, err := gate.Check(sample); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("%-45s denied: %v", sample, err))
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("%-45s allowed", sample))
		}
	}
	fmt.Fprintf(w, "\nEnvironment: %s, allowed levels: %v\n", policy.Environment, policy.AllowedLevelNames())
}

// printCheck prints a single check result line.
func printCheck(w io.Writer, useColor, passed bool, message string) {
	mark := "FAIL"
	color := "\033[1;31m"
	if passed {
		mark = " OK "
		color = "\033[1;32m"
	}
	if useColor {
		fmt.Fprintf(w, "[%s%s\033[0m] %s\n", color, mark, message)
	} else {
		fmt.Fprintf(w, "[%s] %s\n", mark, message)
	}
}
