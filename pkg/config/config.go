package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/nsxbet/sql-governor/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxResultRows caps how many rows a query statement returns.
	DefaultMaxResultRows = 1000
	// DefaultStatementTimeoutSeconds bounds a single statement execution.
	DefaultStatementTimeoutSeconds = 300
	// DefaultBatchTimeoutSeconds bounds a whole batch, wall clock.
	DefaultBatchTimeoutSeconds = 600
)

// Config represents the configuration for the governance engine
type Config struct {
	MaxResultRows           int    `yaml:"max_result_rows" json:"max_result_rows"`
	StatementTimeoutSeconds int    `yaml:"statement_timeout_seconds" json:"statement_timeout_seconds"`
	BatchTimeoutSeconds     int    `yaml:"batch_timeout_seconds" json:"batch_timeout_seconds"`
	EnableSchemaDiff        bool   `yaml:"enable_schema_diff" json:"enable_schema_diff"`
	StorePath               string `yaml:"store_path" json:"store_path"`

	Audit       AuditConfig         `yaml:"audit" json:"audit"`
	Connections []*ConnectionConfig `yaml:"connections" json:"connections"`
}

// AuditConfig selects where batch audit records are written.
// Sink is "sqlite" (default, shares StorePath) or "file" (JSON lines).
type AuditConfig struct {
	Sink string `yaml:"sink" json:"sink"`
	Path string `yaml:"path" json:"path"`
}

// ConnectionConfig holds parameters for a managed database target.
// Passwords never live in the file; PasswordEnv names the environment
// variable that carries the secret.
type ConnectionConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Engine      types.Engine      `yaml:"engine" json:"engine"`
	Hosts       []string          `yaml:"hosts" json:"hosts"`
	Port        int               `yaml:"port,omitempty" json:"port,omitempty"`
	User        string            `yaml:"user" json:"user"`
	PasswordEnv string            `yaml:"password_env,omitempty" json:"password_env,omitempty"`
	Database    string            `yaml:"database" json:"database"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// StatementTimeout returns the per-statement execution bound.
func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.StatementTimeoutSeconds) * time.Second
}

// BatchTimeout returns the whole-batch wall clock bound.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}

// GetConnection returns the named connection config, or nil.
func (c *Config) GetConnection(name string) *ConnectionConfig {
	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn
		}
	}
	return nil
}

// Password resolves the connection secret from the environment.
func (cc *ConnectionConfig) Password() string {
	if cc.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(cc.PasswordEnv)
}

// LoadFromFile loads configuration from a file
func LoadFromFile(filename string) (*Config, error) {
	slog.Debug("Loading config from file", "filename", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		slog.Debug("Failed to read file", "error", err)
		return nil, err
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	slog.Debug("Attempting YAML unmarshal")
	if err := yaml.Unmarshal(data, config); err != nil {
		slog.Debug("YAML unmarshal failed", "error", err)
		slog.Debug("Attempting JSON unmarshal")
		if err := json.Unmarshal(data, config); err != nil {
			slog.Debug("JSON unmarshal failed", "error", err)
			return nil, err
		}
		slog.Debug("JSON unmarshal succeeded")
	} else {
		slog.Debug("YAML unmarshal succeeded")
	}

	config.normalize()

	slog.Debug("Loaded config",
		"connections", len(config.Connections),
		"max_result_rows", config.MaxResultRows,
		"schema_diff", config.EnableSchemaDiff)
	return config, nil
}

// normalize backfills zero values with defaults after unmarshal.
func (c *Config) normalize() {
	if c.MaxResultRows <= 0 {
		c.MaxResultRows = DefaultMaxResultRows
	}
	if c.StatementTimeoutSeconds <= 0 {
		c.StatementTimeoutSeconds = DefaultStatementTimeoutSeconds
	}
	if c.BatchTimeoutSeconds <= 0 {
		c.BatchTimeoutSeconds = DefaultBatchTimeoutSeconds
	}
	if c.StorePath == "" {
		c.StorePath = "sql-governor.db"
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "sqlite"
	}
	for _, conn := range c.Connections {
		if conn.Engine == types.Engine_ENGINE_UNSPECIFIED {
			conn.Engine = types.Engine_MYSQL
		}
		if conn.Port == 0 {
			conn.Port = 3306
		}
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxResultRows:           DefaultMaxResultRows,
		StatementTimeoutSeconds: DefaultStatementTimeoutSeconds,
		BatchTimeoutSeconds:     DefaultBatchTimeoutSeconds,
		EnableSchemaDiff:        true,
		StorePath:               "sql-governor.db",
		Audit: AuditConfig{
			Sink: "sqlite",
		},
	}
}
