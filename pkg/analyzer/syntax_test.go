package analyzer

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nsxbet/sql-governor/pkg/types"
)

func openProbeDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// One connection so every probe sees the in-memory schema.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestValidateSyntaxAccepted(t *testing.T) {
	db := openProbeDB(t)

	for _, text := range []string{
		`SELECT id, email FROM users;`,
		`UPDATE users SET email = 'a@b.c' WHERE id = 1;`,
		`DELETE FROM users WHERE id = 1;`,
	} {
		violation, err := ValidateSyntax(context.Background(), db, mustStatement(t, text))
		require.NoError(t, err, text)
		require.Nil(t, violation, text)
	}
}

func TestValidateSyntaxRejected(t *testing.T) {
	db := openProbeDB(t)

	stmt := mustStatement(t, `SELECT id FROM customers;`)
	violation, err := ValidateSyntax(context.Background(), db, stmt)
	require.NoError(t, err)
	require.NotNil(t, violation)
	require.Equal(t, types.SyntaxError, violation.Code)
	require.Equal(t, types.Severity_ERROR, violation.Severity)
	require.Contains(t, violation.Content, "customers")
}

func TestValidateSyntaxParseErrorPosition(t *testing.T) {
	db := openProbeDB(t)

	stmt := mustStatement(t, `SELECT FROM WHERE;`)
	violation, err := ValidateSyntax(context.Background(), db, stmt)
	require.NoError(t, err)
	require.NotNil(t, violation)
	require.Equal(t, types.SyntaxError, violation.Code)
	require.Contains(t, violation.Content, "syntax error")
	require.NotNil(t, violation.StartPosition)
}

func TestValidateSyntaxDDLPrepare(t *testing.T) {
	db := openProbeDB(t)

	violation, err := ValidateSyntax(context.Background(), db, mustStatement(t, `ALTER TABLE users ADD COLUMN name TEXT;`))
	require.NoError(t, err)
	require.Nil(t, violation)

	violation, err = ValidateSyntax(context.Background(), db, mustStatement(t, `ALTER TABLE customers ADD COLUMN name TEXT;`))
	require.NoError(t, err)
	require.NotNil(t, violation)
	require.Contains(t, violation.Content, "customers")
}

func TestValidateSyntaxCancelled(t *testing.T) {
	db := openProbeDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	violation, err := ValidateSyntax(ctx, db, mustStatement(t, `SELECT id FROM users;`))
	require.Error(t, err)
	require.Nil(t, violation)
}
