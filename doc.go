// Package mymcp provides safe, controlled MySQL access for AI agents
// through the Model Context Protocol (MCP).
//
// It exposes four tools — Query, ListTables, DescribeTable, and ServerInfo —
// behind a security gate that scores every free-form SQL statement for risk
// before it can reach the database. The gate is the entire security model of
// the server: a statement is admitted only after structural checks, risk
// classification against the configured policy, and the WHERE-clause guard
// have all passed. Any ambiguity or internal fault during checking resolves
// to denial, never admission.
//
// Risk is scored on four ordered tiers, LOW < MEDIUM < HIGH < CRITICAL,
// using lexical heuristics rather than a SQL parser: the leading keyword
// picks the operation class, blocked regex patterns force CRITICAL, and in
// production every non-SELECT statement is locked down unless the policy
// explicitly allows more. See the internal/risk package for the exact rules.
//
// # Library Usage
//
//	m, err := mymcp.New(ctx, dsn, mymcp.Config{
//		Pool: mymcp.PoolConfig{MaxConns: 10},
//		Security: mymcp.SecurityConfig{
//			Environment:     "production",
//			BlockedPatterns: "INFORMATION_SCHEMA\\.,INTO\\s+OUTFILE",
//		},
//		Query: mymcp.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//			ServerInfoTimeoutSeconds:    10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	// Use directly
//	output := m.Query(ctx, mymcp.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register as MCP tools
//	mymcp.RegisterMCPTools(mcpServer, m)
//
// # Hooks
//
// BeforeQuery and AfterQuery hooks run as a middleware chain around query
// execution. Implement [BeforeQueryHook] and [AfterQueryHook] for native Go
// hooks; CLI mode configures command-based hooks instead. Hooks run inside
// the pipeline, so a query rewritten by a BeforeQuery hook is re-judged by
// the gate in its rewritten form.
package mymcp
