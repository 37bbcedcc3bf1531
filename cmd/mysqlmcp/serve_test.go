package main

import (
	"testing"

	mymcp "github.com/fersoftware/mysql-mcp-server-sse"
)

func TestBuildDSN(t *testing.T) {
	conn := mymcp.ConnectionConfig{Host: "db.internal", Port: 3307, DBName: "app"}
	got := buildDSN(conn, "alice", "s3cret")
	want := "alice:s3cret@tcp(db.internal:3307)/app"
	if got != want {
		t.Errorf("buildDSN = %q, want %q", got, want)
	}
}

func TestBuildDSNDefaults(t *testing.T) {
	conn := mymcp.ConnectionConfig{DBName: "app"}
	got := buildDSN(conn, "alice", "pw")
	want := "alice:pw@tcp(localhost:3306)/app"
	if got != want {
		t.Errorf("buildDSN = %q, want %q", got, want)
	}
}

func TestBuildDSNWithParams(t *testing.T) {
	conn := mymcp.ConnectionConfig{Host: "h", Port: 3306, DBName: "app", Params: "tls=true&charset=utf8mb4"}
	got := buildDSN(conn, "u", "p")
	want := "u:p@tcp(h:3306)/app?tls=true&charset=utf8mb4"
	if got != want {
		t.Errorf("buildDSN = %q, want %q", got, want)
	}
}

func TestIsFalsy(t *testing.T) {
	for _, v := range []string{"false", "FALSE", " False ", "0", "no", "off"} {
		if !isFalsy(v) {
			t.Errorf("isFalsy(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"true", "1", "yes", "on", "", "anything"} {
		if isFalsy(v) {
			t.Errorf("isFalsy(%q) = true, want false", v)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ENV_TYPE", "production")
	t.Setenv("ALLOWED_RISK_LEVELS", "LOW")
	t.Setenv("BLOCKED_PATTERNS", "DROP,TRUNCATE")
	t.Setenv("ENABLE_QUERY_CHECK", "false")
	t.Setenv("ALLOW_SENSITIVE_INFO", "true")

	config := &mymcp.ServerConfig{}
	applyEnvOverrides(config)

	if config.Security.Environment != "production" {
		t.Errorf("ENV_TYPE not applied: %q", config.Security.Environment)
	}
	if config.Security.AllowedRiskLevels != "LOW" {
		t.Errorf("ALLOWED_RISK_LEVELS not applied: %q", config.Security.AllowedRiskLevels)
	}
	if config.Security.BlockedPatterns != "DROP,TRUNCATE" {
		t.Errorf("BLOCKED_PATTERNS not applied: %q", config.Security.BlockedPatterns)
	}
	if !config.Security.DisableWhereGuard {
		t.Error("ENABLE_QUERY_CHECK=false should disable the WHERE guard")
	}
	if !config.Security.AllowSensitiveInfo {
		t.Error("ALLOW_SENSITIVE_INFO=true should be applied")
	}
}

func TestApplyEnvOverridesLeavesConfigAlone(t *testing.T) {
	t.Setenv("ENV_TYPE", "")
	t.Setenv("ALLOWED_RISK_LEVELS", "")
	t.Setenv("BLOCKED_PATTERNS", "")
	t.Setenv("ENABLE_QUERY_CHECK", "")
	t.Setenv("ALLOW_SENSITIVE_INFO", "")

	config := &mymcp.ServerConfig{}
	config.Security.Environment = "development"
	config.Security.AllowedRiskLevels = "LOW,MEDIUM,HIGH"
	applyEnvOverrides(config)

	if config.Security.Environment != "development" || config.Security.AllowedRiskLevels != "LOW,MEDIUM,HIGH" {
		t.Errorf("empty env vars must not override config: %+v", config.Security)
	}
	if config.Security.DisableWhereGuard {
		t.Error("WHERE guard must stay enabled by default")
	}
}

func TestDefaultServerConfigIsServable(t *testing.T) {
	config := defaultServerConfig()
	if config.Server.Port <= 0 {
		t.Error("default server port must be > 0")
	}
	if config.Pool.MaxConns <= 0 {
		t.Error("default pool size must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 ||
		config.Query.ListTablesTimeoutSeconds <= 0 ||
		config.Query.DescribeTableTimeoutSeconds <= 0 ||
		config.Query.ServerInfoTimeoutSeconds <= 0 {
		t.Error("all default timeouts must be > 0")
	}
	if config.Security.DisableWhereGuard {
		t.Error("WHERE guard must default to enabled")
	}
	if config.Security.Environment != "development" {
		t.Errorf("default environment should be development, got %q", config.Security.Environment)
	}
}
