package analyzer

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// Prober is the narrow database handle the syntax probe needs. *sql.DB and
// *sql.Conn both satisfy it.
type Prober interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ValidateSyntax asks the engine itself whether it accepts the statement,
// without running it. Queries and DML are planned with EXPLAIN inside a
// transaction that is always rolled back. DDL is round tripped through a
// server side prepare whose handle is discarded. The engine's error text is
// kept verbatim as the violation content.
//
// A nil violation means the engine accepted the statement. The error return
// is reserved for cancellation, every other failure becomes a violation.
func ValidateSyntax(ctx context.Context, db Prober, stmt *types.Statement) (*types.Violation, error) {
	var probeErr error
	switch stmt.Class {
	case types.StatementClass_DDL:
		probeErr = probePrepare(ctx, db, stmt.Text)
	default:
		probeErr = probeExplain(ctx, db, stmt.Text)
	}
	if probeErr == nil {
		return nil, nil
	}
	if errors.Is(probeErr, context.Canceled) || errors.Is(probeErr, context.DeadlineExceeded) {
		return nil, probeErr
	}

	slog.Debug("statement rejected by engine probe", slog.String("kind", stmt.Kind.String()), slog.String("error", probeErr.Error()))
	return syntaxViolation(stmt, probeErr), nil
}

func probePrepare(ctx context.Context, db Prober, text string) error {
	handle, err := db.PrepareContext(ctx, text)
	if err != nil {
		return err
	}
	// The handle is throwaway, releasing it is the whole point.
	_ = handle.Close()
	return nil
}

func probeExplain(ctx context.Context, db Prober, text string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin probe transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, "EXPLAIN "+text)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// syntaxViolation carries the engine's rejection verbatim. A local reparse
// only sharpens the reported position, the engine does not say where it
// stopped reading.
func syntaxViolation(stmt *types.Statement, probeErr error) *types.Violation {
	pos := stmt.Start
	if _, parseErr := mysqlparser.ParseMySQL(stmt.Text); parseErr != nil {
		var syntaxErr *mysqlparser.SyntaxError
		if errors.As(parseErr, &syntaxErr) && syntaxErr.Position != nil {
			pos = &types.Position{
				Line:   syntaxErr.Position.Line + int32(stmt.BaseLine),
				Column: syntaxErr.Position.Column,
			}
		}
	}
	return &types.Violation{
		Severity:      types.Severity_ERROR,
		Code:          types.SyntaxError,
		Content:       probeErr.Error(),
		StartPosition: pos,
	}
}
