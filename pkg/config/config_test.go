package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nsxbet/sql-governor/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxResultRows != 1000 {
		t.Errorf("MaxResultRows = %d, want %d", cfg.MaxResultRows, 1000)
	}
	if cfg.StatementTimeout() != 300*time.Second {
		t.Errorf("StatementTimeout() = %v, want %v", cfg.StatementTimeout(), 300*time.Second)
	}
	if cfg.BatchTimeout() != 600*time.Second {
		t.Errorf("BatchTimeout() = %v, want %v", cfg.BatchTimeout(), 600*time.Second)
	}
	if !cfg.EnableSchemaDiff {
		t.Error("EnableSchemaDiff = false, want true")
	}
	if cfg.Audit.Sink != "sqlite" {
		t.Errorf("Audit.Sink = %q, want %q", cfg.Audit.Sink, "sqlite")
	}
	if len(cfg.Connections) != 0 {
		t.Errorf("Connections length = %d, want 0", len(cfg.Connections))
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `max_result_rows: 250
statement_timeout_seconds: 30
batch_timeout_seconds: 120
enable_schema_diff: true
store_path: /var/lib/governor/governor.db
audit:
  sink: file
  path: /var/log/governor/audit.jsonl
connections:
  - name: orders-primary
    engine: MYSQL
    hosts:
      - db1.example.com
      - db2.example.com
    port: 3307
    user: governor
    password_env: ORDERS_DB_PASSWORD
    database: orders
    params:
      charset: utf8mb4
  - name: billing
    engine: MARIADB
    hosts:
      - billing.example.com
    user: governor
    database: billing
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.MaxResultRows != 250 {
		t.Errorf("MaxResultRows = %d, want %d", cfg.MaxResultRows, 250)
	}
	if cfg.StatementTimeout() != 30*time.Second {
		t.Errorf("StatementTimeout() = %v, want %v", cfg.StatementTimeout(), 30*time.Second)
	}
	if cfg.BatchTimeout() != 120*time.Second {
		t.Errorf("BatchTimeout() = %v, want %v", cfg.BatchTimeout(), 120*time.Second)
	}
	if cfg.StorePath != "/var/lib/governor/governor.db" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if cfg.Audit.Sink != "file" || cfg.Audit.Path != "/var/log/governor/audit.jsonl" {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("Connections length = %d, want 2", len(cfg.Connections))
	}

	c := cfg.Connections[0]
	if c.Name != "orders-primary" || c.Engine != types.Engine_MYSQL || c.Port != 3307 ||
		c.User != "governor" || c.PasswordEnv != "ORDERS_DB_PASSWORD" || c.Database != "orders" {
		t.Errorf("Connection[0] fields mismatch: %+v", c)
	}
	if len(c.Hosts) != 2 || c.Hosts[0] != "db1.example.com" {
		t.Errorf("Connection[0] hosts mismatch: %v", c.Hosts)
	}
	if c.Params["charset"] != "utf8mb4" {
		t.Errorf("Connection[0] params mismatch: %v", c.Params)
	}

	c2 := cfg.Connections[1]
	if c2.Engine != types.Engine_MARIADB {
		t.Errorf("Connection[1] engine = %v, want MARIADB", c2.Engine)
	}
	if c2.Port != 3306 {
		t.Errorf("Connection[1] port = %d, want default 3306", c2.Port)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	jsonContent := `{
  "max_result_rows": 50,
  "connections": [
    {"name": "staging", "engine": "MYSQL", "hosts": ["staging.example.com"], "user": "qa", "database": "app"}
  ]
}`
	if err := os.WriteFile(path, []byte(jsonContent), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.MaxResultRows != 50 {
		t.Errorf("MaxResultRows = %d, want %d", cfg.MaxResultRows, 50)
	}
	// Unset keys fall back to defaults.
	if cfg.StatementTimeoutSeconds != DefaultStatementTimeoutSeconds {
		t.Errorf("StatementTimeoutSeconds = %d, want default %d",
			cfg.StatementTimeoutSeconds, DefaultStatementTimeoutSeconds)
	}
	if len(cfg.Connections) != 1 || cfg.Connections[0].Name != "staging" {
		t.Errorf("Connections = %+v", cfg.Connections)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("LoadFromFile() error = nil, want error for missing file")
	}
}

func TestGetConnection(t *testing.T) {
	cfg := &Config{
		Connections: []*ConnectionConfig{
			{Name: "a", Database: "first"},
			{Name: "b", Database: "second"},
		},
	}

	if conn := cfg.GetConnection("b"); conn == nil || conn.Database != "second" {
		t.Errorf("GetConnection(b) = %+v", conn)
	}
	if conn := cfg.GetConnection("missing"); conn != nil {
		t.Errorf("GetConnection(missing) = %+v, want nil", conn)
	}
}

func TestPasswordFromEnv(t *testing.T) {
	t.Setenv("GOVERNOR_TEST_DB_PASSWORD", "s3cret")

	cc := &ConnectionConfig{PasswordEnv: "GOVERNOR_TEST_DB_PASSWORD"}
	if got := cc.Password(); got != "s3cret" {
		t.Errorf("Password() = %q, want %q", got, "s3cret")
	}

	empty := &ConnectionConfig{}
	if got := empty.Password(); got != "" {
		t.Errorf("Password() with no env = %q, want empty", got)
	}
}
