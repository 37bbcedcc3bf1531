package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	mymcp "github.com/fersoftware/mysql-mcp-server-sse"
)

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to write the configuration file")
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists, re-run with -force to overwrite", *configPath)
	}

	config := defaultServerConfig()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(*configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create config directory: %w", err)
		}
	}
	if err := os.WriteFile(*configPath, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %s\n\n", *configPath)
	fmt.Fprintln(os.Stderr, "Next steps:")
	fmt.Fprintf(os.Stderr, "  1. Edit %s and set connection.dbname (and host/port if not local).\n", *configPath)
	fmt.Fprintln(os.Stderr, "  2. Review the security section. The defaults admit LOW and MEDIUM")
	fmt.Fprintln(os.Stderr, "     risk statements in development mode. Set environment to")
	fmt.Fprintln(os.Stderr, "     \"production\" to lock execution down to read-only SELECTs.")
	fmt.Fprintln(os.Stderr, "  3. Run 'mysqlmcp doctor' to validate the config and preview the gate.")
	fmt.Fprintln(os.Stderr, "  4. Run 'mysqlmcp serve' to start the server.")
	return nil
}

// defaultServerConfig returns the starter configuration written by the
// configure subcommand. Development defaults, WHERE guard on, masking off.
func defaultServerConfig() *mymcp.ServerConfig {
	config := &mymcp.ServerConfig{}
	config.Connection = mymcp.ConnectionConfig{
		Host: "localhost",
		Port: 3306,
	}
	config.Server = mymcp.ServerSettings{
		Port:               8080,
		HealthCheckEnabled: true,
		HealthCheckPath:    "/health",
	}
	config.Logging = mymcp.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
	config.Pool = mymcp.PoolConfig{
		MaxConns:        10,
		MaxIdleConns:    5,
		ConnMaxLifetime: "30m",
		ConnMaxIdleTime: "5m",
	}
	config.Security = mymcp.SecurityConfig{
		Environment:        "development",
		MaxStatementLength: 1000,
	}
	config.Query = mymcp.QueryConfig{
		DefaultTimeoutSeconds:       30,
		ListTablesTimeoutSeconds:    10,
		DescribeTableTimeoutSeconds: 10,
		ServerInfoTimeoutSeconds:    10,
		MaxResultLength:             100000,
	}
	config.DefaultHookTimeoutSeconds = 10
	config.ErrorPrompts = []mymcp.ErrorPromptRule{
		{
			Pattern: "(?i)doesn't exist",
			Message: "The table or database does not exist. Use list_tables to discover available tables before querying.",
		},
		{
			Pattern: "(?i)unknown column",
			Message: "One of the referenced columns does not exist. Use describe_table to inspect the table's columns.",
		},
		{
			Pattern: "(?i)syntax error|error in your sql syntax",
			Message: "The statement has a syntax error. Double-check the SQL before retrying.",
		},
	}
	return config
}
