package governor

import "database/sql"

// Option customizes a single governor operation.
type Option func(*options)

// options holds optional per-operation overrides.
type options struct {
	driver *sql.DB
}

func applyOptions(opts []Option) *options {
	resolved := &options{}
	for _, opt := range opts {
		opt(resolved)
	}
	return resolved
}

// WithDriver runs the operation on the given handle instead of resolving
// the connection through the registry. The caller keeps ownership of the
// handle; Close leaves it open.
//
// Example:
//
//	db, _ := sql.Open("mysql", dsn)
//	result, err := g.Review(ctx, "staging", sql, governor.WithDriver(db))
func WithDriver(driver *sql.DB) Option {
	return func(opts *options) {
		opts.driver = driver
	}
}
