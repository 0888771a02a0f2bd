// Package governor wires the whole governance pipeline into one
// high-level API: classify, validate, execute, version and diff SQL
// against connections declared in configuration.
//
// # Quick Start
//
//	cfg, err := config.LoadFromFile("governor.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g, err := governor.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Close()
//
//	review, err := g.Review(ctx, "staging", "UPDATE users SET active = 1 WHERE id = 4;")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(review)
//
//	if !review.HasBlocking() {
//	    result, err := g.ExecuteBatch(ctx, "staging", sqlText, "dba@example.com")
//	    ...
//	}
//
// Review, Execute and ExecuteBatch never return an error for findings in
// the SQL itself; those travel inside the result object. The error return
// is reserved for infrastructure faults: an unreachable connection, a
// failed history write, a schema version conflict.
package governor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/alteradvisor"
	"github.com/nsxbet/sql-governor/pkg/analyzer"
	"github.com/nsxbet/sql-governor/pkg/classifier"
	"github.com/nsxbet/sql-governor/pkg/config"
	"github.com/nsxbet/sql-governor/pkg/differ"
	"github.com/nsxbet/sql-governor/pkg/executor"
	"github.com/nsxbet/sql-governor/pkg/registry"
	"github.com/nsxbet/sql-governor/pkg/store"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// ErrSchemaDiffDisabled is returned by CompareSchemaVersions when the
// feature flag turns diff computation off.
var ErrSchemaDiffDisabled = errors.New("schema diff computation is disabled by configuration")

// auditMaxSizeMB caps the JSONL audit file before rotation.
const auditMaxSizeMB = 100

// Governor is the high-level API over the governance pipeline.
//
// It is safe for concurrent use by multiple goroutines. Validation is
// read-only; concurrent batches against the same connection run on
// independent pooled sessions and rely on the target's own transaction
// isolation.
type Governor struct {
	cfg      *config.Config
	registry *registry.Registry
	store    *store.Store
	audit    *store.AuditLogger
}

// New builds a Governor from the configuration. It opens the embedded
// store at StorePath and, when the audit sink is "file", the JSONL audit
// log. Database connections open lazily on first use.
func New(cfg *config.Config) (*Governor, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	g := &Governor{
		cfg:      cfg,
		registry: registry.New(cfg),
		store:    st,
	}
	if cfg.Audit.Sink == "file" {
		audit, err := store.NewAuditLogger(cfg.Audit.Path, auditMaxSizeMB)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		g.audit = audit
	}
	return g, nil
}

// NewFromFile is a convenience over New for a YAML or JSON config file.
func NewFromFile(filename string) (*Governor, error) {
	cfg, err := config.LoadFromFile(filename)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Config returns the configuration the governor runs with.
func (g *Governor) Config() *config.Config {
	return g.cfg
}

// Registry returns the connection registry, for health probes and schema
// browsing on the raw handles.
func (g *Governor) Registry() *registry.Registry {
	return g.registry
}

// Store returns the embedded version and history store.
func (g *Governor) Store() *store.Store {
	return g.store
}

// Close releases every database handle, the store and the audit log.
func (g *Governor) Close() error {
	err := g.registry.Close()
	if cerr := g.store.Close(); err == nil {
		err = cerr
	}
	if g.audit != nil {
		if cerr := g.audit.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Review splits and classifies the SQL, then validates every statement
// without executing anything: syntax against the live engine, semantics
// against introspected schema metadata. ALTER statements additionally
// carry an online DDL advisory. Findings come back as data; the error
// return is reserved for unreachable connections and cancellation.
func (g *Governor) Review(ctx context.Context, connection, sql string, opts ...Option) (*ReviewResult, error) {
	cc := g.cfg.GetConnection(connection)
	if cc == nil {
		return nil, errors.Errorf("unknown connection %q", connection)
	}

	result := &ReviewResult{Connection: connection}
	statements, err := classifier.Classify(sql)
	if err != nil {
		var unclassifiable *classifier.UnclassifiableError
		if !errors.As(err, &unclassifiable) {
			return nil, err
		}
		result.Statements = append(result.Statements, &StatementReview{
			Validation: types.NewUnclassifiableResult(unclassifiable.Statement, unclassifiable.Error(), unclassifiable.Position),
		})
		result.Summary = summarize(result.Statements)
		return result, nil
	}
	if len(statements) == 0 {
		return result, nil
	}

	db, err := g.resolveHandle(ctx, connection, opts)
	if err != nil {
		return nil, err
	}
	for _, stmt := range statements {
		review, err := g.reviewStatement(ctx, db, cc, stmt)
		if err != nil {
			return nil, err
		}
		result.Statements = append(result.Statements, review)
	}
	result.Summary = summarize(result.Statements)
	return result, nil
}

func (g *Governor) reviewStatement(ctx context.Context, db *sql.DB, cc *config.ConnectionConfig, stmt *types.Statement) (*StatementReview, error) {
	review := &StatementReview{}

	violation, err := analyzer.ValidateSyntax(ctx, db, stmt)
	if err != nil {
		return nil, err
	}
	if violation != nil {
		review.Validation = types.NewSyntaxInvalidResult(stmt, violation.Content, violation.StartPosition)
	} else {
		checkCtx, err := analyzer.LoadContext(ctx, db, cc.Database, stmt)
		if err != nil {
			return nil, err
		}
		violations, err := analyzer.Analyze(ctx, cc.Engine, checkCtx)
		if err != nil {
			return nil, err
		}
		review.Validation = types.NewSemanticResult(stmt, violations)
	}

	if stmt.Kind == types.StatementKind_ALTER {
		advisory, err := alteradvisor.Advise(stmt)
		if err != nil {
			// A statement the advisor cannot read is already flagged by
			// the syntax phase. The advisory never blocks.
			slog.Debug("alter advisory unavailable", slog.String("error", err.Error()))
		} else {
			review.Advisory = advisory
		}
	}
	return review, nil
}

// Execute runs a single statement as its own batch and returns the full
// batch result. Text holding more than one statement is an error; use
// ExecuteBatch for multiple statements.
func (g *Governor) Execute(ctx context.Context, connection, sql, operator string, opts ...Option) (*types.BatchResult, error) {
	statements, rejected, err := g.classifyForExecution(connection, sql, operator)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return g.finishBatch(ctx, rejected)
	}
	if len(statements) > 1 {
		return nil, errors.Errorf("expected a single statement, got %d; use ExecuteBatch", len(statements))
	}
	return g.executeClassified(ctx, connection, operator, statements, opts)
}

// ExecuteBatch classifies the SQL and executes every statement inside a
// single transaction on one session, in order. The first failure rolls
// the whole batch back and marks the remainder skipped. The result is
// recorded in the execution history and the audit sink whether the batch
// committed or rolled back.
//
// Committed DDL statements carry before/after structure captures; the
// after states are versioned against the store. A concurrent version
// conflict comes back as an error alongside the committed result, the
// caller re-runs the DDL batch to version the current structure.
func (g *Governor) ExecuteBatch(ctx context.Context, connection, sql, operator string, opts ...Option) (*types.BatchResult, error) {
	statements, rejected, err := g.classifyForExecution(connection, sql, operator)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return g.finishBatch(ctx, rejected)
	}
	return g.executeClassified(ctx, connection, operator, statements, opts)
}

// classifyForExecution turns precondition failures into rejected batch
// results, so every execution attempt comes back as a result object and
// lands in the audit trail.
func (g *Governor) classifyForExecution(connection, sql, operator string) ([]*types.Statement, *types.BatchResult, error) {
	if g.cfg.GetConnection(connection) == nil {
		return nil, nil, errors.Errorf("unknown connection %q", connection)
	}
	statements, err := classifier.Classify(sql)
	if err != nil {
		var unclassifiable *classifier.UnclassifiableError
		if !errors.As(err, &unclassifiable) {
			return nil, nil, err
		}
		return nil, rejectedBatch(connection, operator, types.UnclassifiableStatement, err.Error()), nil
	}
	if len(statements) == 0 {
		return nil, rejectedBatch(connection, operator, types.EmptyBatch, "batch contains no statements"), nil
	}
	if strings.TrimSpace(operator) == "" {
		return nil, rejectedBatch(connection, operator, types.MissingOperator, "operator is required for execution"), nil
	}
	return statements, nil, nil
}

// rejectedBatch is a batch that never reached the database. Nothing was
// applied, so the outcome reads ROLLED_BACK with no statement outcomes.
func rejectedBatch(connection, operator string, code types.Code, message string) *types.BatchResult {
	return &types.BatchResult{
		BatchID:     uuid.NewString(),
		Connection:  connection,
		Operator:    operator,
		Outcome:     types.BatchOutcome_ROLLED_BACK,
		FailedIndex: -1,
		FailureCode: code,
		Error:       message,
		StartedAt:   time.Now().UTC(),
	}
}

func (g *Governor) executeClassified(ctx context.Context, connection, operator string, statements []*types.Statement, opts []Option) (*types.BatchResult, error) {
	cc := g.cfg.GetConnection(connection)
	db, err := g.resolveHandle(ctx, connection, opts)
	if err != nil {
		return nil, err
	}

	result, err := executor.Run(ctx, db, cc.Database, &executor.Batch{
		Connection: connection,
		Operator:   operator,
		Statements: statements,
	}, executor.Options{
		MaxResultRows:    g.cfg.MaxResultRows,
		StatementTimeout: g.cfg.StatementTimeout(),
		BatchTimeout:     g.cfg.BatchTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return g.finishBatch(ctx, result)
}

// finishBatch versions committed DDL captures, then records the result in
// history and the audit sink. Recording happens for every batch, success
// or rollback. A version conflict or store failure is returned alongside
// the result; the batch outcome itself stays truthful.
func (g *Governor) finishBatch(ctx context.Context, result *types.BatchResult) (*types.BatchResult, error) {
	err := g.resolveVersions(ctx, result)
	if recordErr := g.store.RecordExecution(ctx, result); recordErr != nil {
		slog.Error("failed to record execution",
			slog.String("batchID", result.BatchID),
			slog.String("error", recordErr.Error()))
		if err == nil {
			err = recordErr
		}
	}
	g.audit.Record(result)
	return result, err
}

// resolveVersions assigns a stored version to every committed DDL
// capture. When the after checksum matches the latest stored version the
// capture reuses its number, no new row. Otherwise a new version is
// inserted with the latest as the expected predecessor; concurrent
// inserts race to a VersionConflict which is returned for the caller to
// retry. No retry happens here.
func (g *Governor) resolveVersions(ctx context.Context, result *types.BatchResult) error {
	if !result.Committed() {
		return nil
	}
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, change := range result.Changes {
		if change.After == nil {
			// The table is gone after the statement. History keeps the
			// before snapshot; there is nothing to version.
			continue
		}
		latest, err := g.store.GetLatestVersion(ctx, result.Connection, change.Table)
		if err != nil {
			keep(err)
			continue
		}
		if latest != nil && latest.Checksum == change.After.Checksum {
			change.Version = latest.Version
			change.Deduplicated = true
			continue
		}
		var expected int64
		if latest != nil {
			expected = latest.Version
		}
		created, err := g.store.InsertVersion(ctx, result.Connection, change.Table, change.After, expected)
		if err != nil {
			keep(errors.Wrapf(err, "failed to version %q after statement %d", change.Table, change.StatementIndex))
			continue
		}
		change.Version = created.Version
	}
	return firstErr
}

// AnalyzeAlter reads one ALTER statement and reports, per sub-operation,
// the online DDL algorithm and lock MySQL is expected to take, headlined
// by the most conservative combination. The advisory never blocks
// anything; Review attaches the same advisory next to validation results.
func (g *Governor) AnalyzeAlter(ctx context.Context, connection, sql string) (*types.AlterAdvisory, error) {
	if g.cfg.GetConnection(connection) == nil {
		return nil, errors.Errorf("unknown connection %q", connection)
	}
	statements, err := classifier.Classify(sql)
	if err != nil {
		return nil, err
	}
	if len(statements) != 1 {
		return nil, errors.Errorf("expected a single ALTER statement, got %d statements", len(statements))
	}
	stmt := statements[0]
	if stmt.Kind != types.StatementKind_ALTER {
		return nil, errors.Errorf("statement is %s, not ALTER", stmt.Kind)
	}
	return alteradvisor.Advise(stmt)
}

// CompareSchemaVersions loads two stored versions of a table and renders
// their structural difference. Requires the schema diff feature flag;
// returns ErrSchemaDiffDisabled otherwise.
func (g *Governor) CompareSchemaVersions(ctx context.Context, connection, table string, versionA, versionB int64) (*SchemaComparison, error) {
	if !g.cfg.EnableSchemaDiff {
		return nil, ErrSchemaDiffDisabled
	}
	from, err := g.store.GetVersion(ctx, connection, table, versionA)
	if err != nil {
		return nil, err
	}
	to, err := g.store.GetVersion(ctx, connection, table, versionB)
	if err != nil {
		return nil, err
	}

	unified, err := differ.Unified(from.Snapshot(), to.Snapshot(),
		fmt.Sprintf("%s@v%d", table, versionA),
		fmt.Sprintf("%s@v%d", table, versionB))
	if err != nil {
		return nil, err
	}
	return &SchemaComparison{
		Connection: connection,
		Table:      table,
		From:       from,
		To:         to,
		Diff:       differ.Diff(from.Structure, to.Structure),
		Unified:    unified,
		SideBySide: differ.SideBySide(from.Snapshot(), to.Snapshot()),
	}, nil
}

func (g *Governor) resolveHandle(ctx context.Context, connection string, opts []Option) (*sql.DB, error) {
	resolved := applyOptions(opts)
	if resolved.driver != nil {
		return resolved.driver, nil
	}
	return g.registry.Resolve(ctx, connection)
}
