package mymcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the mysql_query, list_tables, describe_table,
// and server_info tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, myMcp *MysqlMcp) {
	// Query tool
	queryTool := mcp.NewTool("mysql_query",
		mcp.WithDescription("Execute a SQL statement against the MySQL database. Every statement passes the security gate before execution. Returns results as JSON."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithArray("params",
			mcp.Description("Optional positional parameters substituted for ? placeholders by the driver"),
		),
	)

	mcpServer.AddTool(queryTool, myMcp.loggedToolHandler("mysql_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		var params []interface{}
		if raw, ok := req.GetArguments()["params"].([]interface{}); ok {
			params = raw
		}
		output := myMcp.Query(ctx, QueryInput{SQL: sqlText, Params: params})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal query result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// ListTables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List tables and views in the current (or a named) database."),
		mcp.WithString("database",
			mcp.Description("Database to list; defaults to the connection's current database"),
		),
		mcp.WithString("pattern",
			mcp.Description("SQL LIKE pattern over table names, e.g. 'user%'"),
		),
		mcp.WithBoolean("exclude_views",
			mcp.Description("Drop views from the listing"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, myMcp.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := ListTablesInput{
			Database:     req.GetString("database", ""),
			Pattern:      req.GetString("pattern", ""),
			ExcludeViews: req.GetBool("exclude_views", false),
			Limit:        req.GetInt("limit", 0),
		}
		output, err := myMcp.ListTables(ctx, input)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal list tables result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// DescribeTable tool
	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe the schema of a table: columns, indexes, and the CREATE TABLE statement."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithString("database",
			mcp.Description("The database name (defaults to the connection's current database)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(describeTableTool, myMcp.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		output, err := myMcp.DescribeTable(ctx, DescribeTableInput{
			Table:    table,
			Database: req.GetString("database", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal describe table result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	// ServerInfo tool
	serverInfoTool := mcp.NewTool("server_info",
		mcp.WithDescription("Inspect the MySQL server: databases, table status, variables, status counters, or the process list. Sensitive variable values are masked."),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("One of: databases, tables, variables, status, processlist"),
		),
		mcp.WithString("pattern",
			mcp.Description("LIKE pattern filter, e.g. '%buffer%'"),
		),
		mcp.WithString("database",
			mcp.Description("Database to list table status from (tables kind only, defaults to the current database)"),
		),
		mcp.WithBoolean("global",
			mcp.Description("Use GLOBAL scope for variables/status"),
		),
		mcp.WithBoolean("exclude_system",
			mcp.Description("Drop system schemas from the databases listing"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of rows (default 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(serverInfoTool, myMcp.loggedToolHandler("server_info", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("kind")
		if err != nil {
			return mcp.NewToolResultError("kind parameter is required"), nil
		}
		output, err := myMcp.ServerInfo(ctx, ServerInfoInput{
			Kind:          kind,
			Pattern:       req.GetString("pattern", ""),
			Database:      req.GetString("database", ""),
			Global:        req.GetBool("global", false),
			ExcludeSystem: req.GetBool("exclude_system", false),
			Limit:         req.GetInt("limit", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return mcp.NewToolResultError("failed to marshal server info result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (m *MysqlMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		m.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
