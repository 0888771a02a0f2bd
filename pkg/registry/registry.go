// Package registry resolves connection names from the configuration to
// live database handles. Handles are opened lazily, verified with a ping
// and cached for reuse. Credentials never pass through the registry: the
// password is read from the configured environment variable at open time
// and stripped from anything that gets logged.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/config"
)

// Registry hands out live database handles for configured connections.
type Registry struct {
	cfg *config.Config

	mu      sync.Mutex
	handles map[string]*sql.DB
}

// New creates a registry over the given configuration. No connections are
// opened until Resolve is called.
func New(cfg *config.Config) *Registry {
	return &Registry{
		cfg:     cfg,
		handles: make(map[string]*sql.DB),
	}
}

// Names lists the configured connection names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cfg.Connections))
	for _, conn := range r.cfg.Connections {
		names = append(names, conn.Name)
	}
	return names
}

// Resolve returns the live handle for a named connection, opening and
// caching it on first use. Hosts are tried in order until one answers a
// ping.
func (r *Registry) Resolve(ctx context.Context, name string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.handles[name]; ok {
		return db, nil
	}

	cc := r.cfg.GetConnection(name)
	if cc == nil {
		return nil, errors.Errorf("unknown connection %q", name)
	}

	db, err := open(ctx, cc)
	if err != nil {
		return nil, err
	}
	r.handles[name] = db
	return db, nil
}

// TestConnection opens the named connection if needed and asks the server
// for its version string.
func (r *Registry) TestConnection(ctx context.Context, name string) (string, error) {
	db, err := r.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", errors.Wrapf(err, "failed to query connection %q", name)
	}
	return version, nil
}

// Close closes every cached handle. The registry stays usable, closed
// connections reopen on the next Resolve.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, db := range r.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close connection %q", name)
		}
	}
	r.handles = make(map[string]*sql.DB)
	return firstErr
}

func open(ctx context.Context, cc *config.ConnectionConfig) (*sql.DB, error) {
	var lastErr error
	for _, host := range cc.Hosts {
		dsn := BuildDSN(cc, host)

		db, err := sql.Open("mysql", dsn)
		if err != nil {
			lastErr = err
			continue
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			lastErr = err
			slog.Debug("Host unreachable", "connection", cc.Name, "host", host, "error", err)
			continue
		}

		slog.Debug("Opened connection", "connection", cc.Name, "host", host, "dsn", SanitizeDSN(dsn))
		return db, nil
	}

	if lastErr == nil {
		return nil, errors.Errorf("connection %q has no hosts configured", cc.Name)
	}
	return nil, errors.Wrapf(lastErr, "failed to reach connection %q", cc.Name)
}

// BuildDSN renders the go-sql-driver DSN for one host of a connection.
// The host may carry its own port, otherwise the configured port is used.
// parseTime is always on so time columns scan into time.Time.
func BuildDSN(cc *config.ConnectionConfig, host string) string {
	if !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%d", host, cc.Port)
	}

	userInfo := cc.User
	if password := cc.Password(); password != "" {
		userInfo = fmt.Sprintf("%s:%s", cc.User, password)
	}

	params := url.Values{}
	params.Set("parseTime", "true")
	for key, value := range cc.Params {
		params.Set(key, value)
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", userInfo, host, cc.Database, params.Encode())
}

var reCredentials = regexp.MustCompile(`[^@]+@tcp\(`)

// SanitizeDSN strips credentials from a DSN string for logging.
func SanitizeDSN(dsn string) string {
	return reCredentials.ReplaceAllString(dsn, "***@tcp(")
}
