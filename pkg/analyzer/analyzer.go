// Package analyzer implements the two validation phases that run before any
// statement executes: a syntax check against the live engine and a semantic
// check of column references against introspected schema metadata.
//
// Semantic rules are registered per engine and statement kind in init
// functions and walk the ANTLR parse tree through a shared generic checker.
// Rules are pure over the pre-fetched metadata in Context, so they are safe
// to run concurrently and testable without a database.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// Context carries one classified statement together with the schema
// metadata its rules need. DBSchema holds the tables the statement targets;
// Referencing holds, per target table, the foreign keys elsewhere in the
// schema that point at it.
type Context struct {
	Statement   *types.Statement
	Database    string
	DBSchema    *types.DatabaseSchemaMetadata
	Referencing map[string][]*inspector.ReferencingForeignKey
}

// Analyzer is the interface for a semantic check over one statement.
type Analyzer interface {
	Analyze(ctx context.Context, checkCtx *Context) ([]*types.Violation, error)
}

var (
	analyzerMu sync.RWMutex
	analyzers  = make(map[types.Engine]map[types.StatementKind][]Analyzer)
)

// Register makes an analyzer available for the given engine and statement
// kind. If the analyzer is nil, it panics.
func Register(engine types.Engine, kind types.StatementKind, a Analyzer) {
	analyzerMu.Lock()
	defer analyzerMu.Unlock()
	if a == nil {
		panic("analyzer: Register analyzer is nil")
	}
	kindAnalyzers, ok := analyzers[engine]
	if !ok {
		kindAnalyzers = make(map[types.StatementKind][]Analyzer)
		analyzers[engine] = kindAnalyzers
	}
	kindAnalyzers[kind] = append(kindAnalyzers[kind], a)
}

// Analyze runs every analyzer registered for the statement's kind and
// returns the combined violations. Statement kinds with no registered
// analyzers produce no violations.
func Analyze(ctx context.Context, engine types.Engine, checkCtx *Context) (violationList []*types.Violation, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panicErr, ok := panicErr.(error)
			if !ok {
				panicErr = errors.Errorf("%v", panicErr)
			}
			err = errors.Errorf("analyzer PANIC RECOVER, kind: %v, err: %v", checkCtx.Statement.Kind, panicErr)
			slog.Error("analyzer PANIC RECOVER", "error", panicErr)
		}
	}()

	analyzerMu.RLock()
	kindAnalyzers := analyzers[engine]
	defer analyzerMu.RUnlock()

	for _, a := range kindAnalyzers[checkCtx.Statement.Kind] {
		violations, err := a.Analyze(ctx, checkCtx)
		if err != nil {
			return nil, err
		}
		violationList = append(violationList, violations...)
	}
	return violationList, nil
}

// GetTable returns the pre-fetched metadata for a target table, or nil when
// the table was not found during loading.
func (c *Context) GetTable(name string) *types.TableMetadata {
	return c.DBSchema.GetTable(name)
}

// FindColumn resolves a column on a table the MySQL way, ignoring case.
func FindColumn(table *types.TableMetadata, name string) *types.ColumnMetadata {
	if table == nil {
		return nil
	}
	for _, column := range table.Columns {
		if strings.EqualFold(column.Name, name) {
			return column
		}
	}
	return nil
}

func missingTableViolation(database, table string, pos *types.Position) *types.Violation {
	return &types.Violation{
		Severity:      types.Severity_ERROR,
		Code:          types.TableNotFound,
		Identifier:    table,
		Content:       fmt.Sprintf("Table %q does not exist in database %q", table, database),
		StartPosition: pos,
	}
}
