// Package executor runs classified statement batches. A batch executes on
// one pinned session inside a single transaction, in order, and the first
// failure rolls the whole batch back: statements after it are never sent.
// DDL statements get before and after structure captures on the same
// session so the snapshots observe the transaction's view of the schema.
package executor

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/snapshot"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// ErrEmptyBatch rejects a batch with no statements.
var ErrEmptyBatch = errors.New("batch contains no statements")

// ErrMissingOperator rejects execution without an accountable operator.
var ErrMissingOperator = errors.New("operator is required for execution")

// Batch is an ordered list of classified statements to run as one
// transaction.
type Batch struct {
	Connection string
	Operator   string
	Statements []*types.Statement
}

// Options bound a batch run. Zero values disable the corresponding limit.
type Options struct {
	// MaxResultRows caps the rows captured per query statement.
	MaxResultRows int
	// StatementTimeout bounds each statement individually.
	StatementTimeout time.Duration
	// BatchTimeout bounds the whole batch, wall clock, including the
	// structure captures around DDL.
	BatchTimeout time.Duration
}

type pendingChange struct {
	database string
	change   *types.SchemaChange
}

// Run executes the batch on a session pinned from db. The returned result
// is always complete: one outcome per statement, the failing index and
// code on rollback, and the before/after captures for committed DDL. An
// error return means the batch never started (empty batch, missing
// operator, no session).
func Run(ctx context.Context, db *sql.DB, database string, batch *Batch, opts Options) (*types.BatchResult, error) {
	if len(batch.Statements) == 0 {
		return nil, ErrEmptyBatch
	}
	if strings.TrimSpace(batch.Operator) == "" {
		return nil, ErrMissingOperator
	}

	result := &types.BatchResult{
		BatchID:     uuid.NewString(),
		Connection:  batch.Connection,
		Operator:    batch.Operator,
		FailedIndex: -1,
		StartedAt:   time.Now().UTC(),
	}
	defer func() { result.Elapsed = time.Since(result.StartedAt) }()

	batchCtx := ctx
	cancel := func() {}
	if opts.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, opts.BatchTimeout)
	}
	defer cancel()

	// One session for the whole batch. The transaction and every
	// structure capture share it.
	conn, err := db.Conn(batchCtx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire session")
	}
	defer conn.Close()

	tx, err := conn.BeginTx(batchCtx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slog.Debug("Executing batch",
		"batch_id", result.BatchID,
		"connection", batch.Connection,
		"operator", batch.Operator,
		"statements", len(batch.Statements))

	for index, stmt := range batch.Statements {
		outcome := &types.StatementOutcome{
			Index:     index,
			Statement: stmt,
			Status:    types.StatementOutcome_SUCCESS,
		}
		result.Statements = append(result.Statements, outcome)

		stmtCtx := batchCtx
		stmtCancel := func() {}
		if opts.StatementTimeout > 0 {
			stmtCtx, stmtCancel = context.WithTimeout(batchCtx, opts.StatementTimeout)
		}
		err := runStatement(stmtCtx, tx, database, stmt, outcome, opts.MaxResultRows, result)
		code := classifyFailure(err, batchCtx, stmtCtx)
		stmtCancel()

		if err == nil {
			slog.Debug("Statement succeeded",
				"batch_id", result.BatchID,
				"index", index,
				"kind", stmt.Kind.String(),
				"rows", outcome.RowsAffected,
				"elapsed", outcome.Elapsed)
			continue
		}

		outcome.Status = types.StatementOutcome_FAILED
		outcome.Error = err.Error()
		result.Outcome = types.BatchOutcome_ROLLED_BACK
		result.FailedIndex = index
		result.FailureCode = code
		result.Error = err.Error()
		// The rollback undoes every DDL effect, so the captures around
		// earlier statements describe state that no longer exists.
		result.Changes = nil

		for rest := index + 1; rest < len(batch.Statements); rest++ {
			result.Statements = append(result.Statements, &types.StatementOutcome{
				Index:     rest,
				Statement: batch.Statements[rest],
				Status:    types.StatementOutcome_SKIPPED,
			})
		}

		slog.Debug("Batch rolled back",
			"batch_id", result.BatchID,
			"failed_index", index,
			"code", code.String(),
			"error", err)
		return result, nil
	}

	if err := tx.Commit(); err != nil {
		result.Outcome = types.BatchOutcome_ROLLED_BACK
		result.FailureCode = classifyFailure(err, batchCtx, batchCtx)
		result.Error = err.Error()
		result.Changes = nil
		return result, nil
	}
	committed = true
	result.Outcome = types.BatchOutcome_COMMITTED

	slog.Debug("Batch committed",
		"batch_id", result.BatchID,
		"statements", len(result.Statements),
		"changes", len(result.Changes))
	return result, nil
}

// runStatement executes one statement inside the transaction and fills
// its outcome. For DDL it captures the affected tables before and after
// and appends the completed changes to the result.
func runStatement(ctx context.Context, tx *sql.Tx, database string, stmt *types.Statement, outcome *types.StatementOutcome, maxRows int, result *types.BatchResult) error {
	started := time.Now()
	defer func() { outcome.Elapsed = time.Since(started) }()

	var pending []*pendingChange
	if stmt.IsDDL() {
		var err error
		pending, err = captureBefore(ctx, tx, database, stmt, outcome.Index)
		if err != nil {
			return err
		}
	}

	if stmt.IsQuery() {
		if err := runQuery(ctx, tx, stmt, outcome, maxRows); err != nil {
			return err
		}
	} else {
		res, err := tx.ExecContext(ctx, stmt.Text)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil {
			outcome.RowsAffected = affected
		}
	}

	for _, pc := range pending {
		after, err := snapshot.Capture(ctx, tx, pc.database, pc.change.Table)
		if err != nil {
			return err
		}
		pc.change.After = after
		result.Changes = append(result.Changes, pc.change)
	}
	return nil
}

func captureBefore(ctx context.Context, q inspector.Querier, database string, stmt *types.Statement, index int) ([]*pendingChange, error) {
	targets, err := snapshot.Targets(stmt)
	if err != nil {
		return nil, err
	}

	var pending []*pendingChange
	for _, target := range targets {
		db := database
		if target.Database != "" {
			db = target.Database
		}
		before, err := snapshot.Capture(ctx, q, db, target.Table)
		if err != nil {
			return nil, err
		}
		pending = append(pending, &pendingChange{
			database: db,
			change: &types.SchemaChange{
				StatementIndex: index,
				Table:          target.Table,
				Before:         before,
			},
		})
	}
	return pending, nil
}

func runQuery(ctx context.Context, tx *sql.Tx, stmt *types.Statement, outcome *types.StatementOutcome, maxRows int) error {
	rows, err := tx.QueryContext(ctx, stmt.Text)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	outcome.Columns = columns

	for rows.Next() {
		if maxRows > 0 && len(outcome.Rows) >= maxRows {
			outcome.Truncated = true
			break
		}

		values := make([]sql.NullString, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}

		row := make([]string, len(columns))
		for i, value := range values {
			if value.Valid {
				row[i] = value.String
			} else {
				row[i] = "NULL"
			}
		}
		outcome.Rows = append(outcome.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// For queries the affected count carries the captured row count.
	outcome.RowsAffected = int64(len(outcome.Rows))
	return nil
}

func classifyFailure(err error, batchCtx, stmtCtx context.Context) types.Code {
	if err == nil {
		return types.Ok
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(batchCtx.Err(), context.DeadlineExceeded) ||
		errors.Is(stmtCtx.Err(), context.DeadlineExceeded) {
		return types.TimeoutExceeded
	}
	return types.ExecutionFailure
}
