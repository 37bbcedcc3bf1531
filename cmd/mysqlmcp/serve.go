package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	mymcp "github.com/fersoftware/mysql-mcp-server-sse"
)

const defaultConfigPath = ".mysqlmcp/config.json"

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig and apply env overrides
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyEnvOverrides(serverConfig)

	if serverConfig.Server.Port <= 0 {
		panic("mysqlmcp: server.port must be > 0")
	}

	// 2. Resolve DSN
	dsn := os.Getenv("MYSQLMCP_DSN")
	if dsn == "" {
		username := promptInput("Username: ")
		password := promptPassword("Password: ")
		dsn = buildDSN(serverConfig.Connection, username, password)
	}

	// 3. Setup logger
	logger := setupLogger(serverConfig.Logging)

	// 4. Create MysqlMcp instance
	var opts []mymcp.Option
	if len(serverConfig.ServerHooks.BeforeQuery) > 0 || len(serverConfig.ServerHooks.AfterQuery) > 0 {
		opts = append(opts, mymcp.WithServerHooks(serverConfig.ServerHooks))
	}
	myMcp, err := mymcp.New(ctx, dsn, serverConfig.Config, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create MysqlMcp: %w", err)
	}
	defer myMcp.Close()

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := myMcp.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	mcpHooks := &server.Hooks{}
	mcpHooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("mysqlmcp", version,
		server.WithToolCapabilities(true),
		server.WithHooks(mcpHooks),
	)

	mymcp.RegisterMCPTools(mcpServer, myMcp)

	// 7. Start HTTP server with optional health check
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("mysqlmcp: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting mysqlmcp server")
	return streamableServer.Start(addr)
}

func loadServerConfig() (*mymcp.ServerConfig, error) {
	configPath := os.Getenv("MYSQLMCP_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config mymcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployments override the gate settings without
// touching the config file. Empty variables leave the file values alone.
func applyEnvOverrides(config *mymcp.ServerConfig) {
	if v := os.Getenv("ENV_TYPE"); v != "" {
		config.Security.Environment = v
	}
	if v := os.Getenv("ALLOWED_RISK_LEVELS"); v != "" {
		config.Security.AllowedRiskLevels = v
	}
	if v := os.Getenv("BLOCKED_PATTERNS"); v != "" {
		config.Security.BlockedPatterns = v
	}
	if v := os.Getenv("ENABLE_QUERY_CHECK"); v != "" {
		config.Security.DisableWhereGuard = isFalsy(v)
	}
	if v := os.Getenv("ALLOW_SENSITIVE_INFO"); v != "" {
		config.Security.AllowSensitiveInfo = strings.EqualFold(v, "true")
	}
}

// isFalsy mirrors the toggle parsing the service has always used:
// anything except false/0/no/off counts as enabled.
func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return true
	}
	return false
}

func buildDSN(conn mymcp.ConnectionConfig, username, password string) string {
	host := conn.Host
	if host == "" {
		host = "localhost"
	}
	port := conn.Port
	if port <= 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", username, password, host, port, conn.DBName)
	if conn.Params != "" {
		dsn += "?" + conn.Params
	}
	return dsn
}

func setupLogger(config mymcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
