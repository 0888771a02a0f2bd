// Package pkg provides SQL governance functionality for Go applications:
// validation against a live engine, transactional batch execution with
// rollback on first failure, online DDL advisories, schema versioning and
// an auditable execution history.
//
// # Package Structure
//
// The pkg directory contains several specialized packages:
//
//   - governor: high-level API tying review, execution, versioning and
//     audit together (recommended starting point)
//   - classifier: splits raw SQL into classified statements
//   - analyzer: engine syntax probe and schema-aware semantic checks
//   - alteradvisor: ALGORITHM/LOCK advisories for ALTER TABLE
//   - executor: single-session transactional batch runner
//   - snapshot: before/after table structure capture around DDL
//   - differ: structural and textual diffs between captures
//   - inspector: information_schema metadata queries
//   - registry: named connection pool built from the config
//   - store: SQLite-backed version and execution history
//   - config: configuration loading and defaults
//   - types: core type definitions shared by all packages
//   - mysqlparser: ANTLR-based MySQL SQL parser
//   - logger: logging abstraction layer
//
// # Getting Started
//
// For most use cases, start with the governor package:
//
//	import (
//	    "github.com/nsxbet/sql-governor/pkg/config"
//	    "github.com/nsxbet/sql-governor/pkg/governor"
//	)
//
//	func main() {
//	    cfg, _ := config.LoadFromFile("sql-governor.yaml")
//	    g, err := governor.New(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer g.Close()
//
//	    review, err := g.Review(ctx, "staging", sqlText)
//	    // Gate on review.HasBlocking(), then g.ExecuteBatch(...)
//	}
//
// # Error Handling
//
// Review and execution distinguish between:
//   - Findings in the SQL itself (returned as data: ValidationResult,
//     BatchResult with a failure code)
//   - Infrastructure faults (returned as error)
//
// A rolled-back batch is a normal result, not an error. Version conflicts
// and history write failures are returned as errors alongside a truthful
// BatchResult.
//
// # Thread Safety
//
// All public APIs are safe for concurrent use by multiple goroutines.
// Governor instances can be reused across operations; batches on the same
// connection run on separate sessions and are serialized only by the
// database itself.
package pkg
