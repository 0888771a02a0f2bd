package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-governor/pkg/classifier"
	"github.com/nsxbet/sql-governor/pkg/types"
)

func mustStatement(t *testing.T, text string) *types.Statement {
	t.Helper()
	stmts, err := classifier.Classify(text)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func analyzeOne(t *testing.T, text string) []*types.Violation {
	t.Helper()
	checkCtx := &Context{
		Statement: mustStatement(t, text),
		Database:  MockDatabaseName,
		DBSchema:  MockAppDatabase(),
	}
	got, err := Analyze(context.Background(), types.Engine_MYSQL, checkCtx)
	require.NoError(t, err)
	return got
}

func TestAnalyzeInsert(t *testing.T) {
	tests := []struct {
		name            string
		statement       string
		wantCodes       []types.Code
		wantIdentifiers []string
	}{
		{
			name:      "valid insert",
			statement: `INSERT INTO users (email, name) VALUES ('a@b.c', 'Ada');`,
		},
		{
			name:            "column does not exist",
			statement:       `INSERT INTO users (email, nickname) VALUES ('a@b.c', 'Ada');`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:            "not null column without value",
			statement:       `INSERT INTO users (name) VALUES ('Ada');`,
			wantCodes:       []types.Code{types.NotNullViolation},
			wantIdentifiers: []string{"email"},
		},
		{
			name:            "every not null column reported",
			statement:       `INSERT INTO orders (id) VALUES (1);`,
			wantCodes:       []types.Code{types.NotNullViolation, types.NotNullViolation},
			wantIdentifiers: []string{"user_id", "total"},
		},
		{
			name:      "positional values cover every column",
			statement: `INSERT INTO users VALUES (1, 'a@b.c', 'Ada', NOW());`,
		},
		{
			name:            "insert set form",
			statement:       `INSERT INTO users SET email = 'a@b.c', nickname = 'Ada';`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:      "insert select with column list",
			statement: `INSERT INTO orders (id, user_id, total) SELECT id, id, 0 FROM users;`,
		},
		{
			name:            "unknown table",
			statement:       `INSERT INTO customers (email) VALUES ('a@b.c');`,
			wantCodes:       []types.Code{types.TableNotFound},
			wantIdentifiers: []string{"customers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeOne(t, tt.statement)
			require.Len(t, got, len(tt.wantCodes))
			for i, violation := range got {
				require.Equal(t, tt.wantCodes[i], violation.Code)
				require.Equal(t, tt.wantIdentifiers[i], violation.Identifier)
				require.Equal(t, types.Severity_ERROR, violation.Severity)
			}
		})
	}
}

func TestAnalyzeInsertPosition(t *testing.T) {
	got := analyzeOne(t, `INSERT INTO users (nickname) VALUES ('Ada');`)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].StartPosition)
	require.Equal(t, int32(0), got[0].StartPosition.Line)
}

func TestAnalyzeUpdate(t *testing.T) {
	tests := []struct {
		name            string
		statement       string
		wantCodes       []types.Code
		wantIdentifiers []string
	}{
		{
			name:      "valid update",
			statement: `UPDATE users SET name = 'Bea' WHERE id = 1;`,
		},
		{
			name:            "missing set column",
			statement:       `UPDATE users SET nickname = 'Bea' WHERE id = 1;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:            "missing column in set expression",
			statement:       `UPDATE users SET name = nickname WHERE id = 1;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:            "missing where column",
			statement:       `UPDATE users SET name = 'Bea' WHERE deleted_at IS NULL;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"deleted_at"},
		},
		{
			name:            "alias qualified missing column",
			statement:       `UPDATE users u SET u.nickname = 'Bea' WHERE u.id = 1;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:      "subquery columns resolve in their own scope",
			statement: `UPDATE users SET name = 'Bea' WHERE id IN (SELECT user_id FROM archived_orders);`,
		},
		{
			name:      "multi table update",
			statement: `UPDATE users u, orders o SET o.total = 0 WHERE u.id = o.user_id;`,
		},
		{
			name:            "multi table update missing qualified column",
			statement:       `UPDATE users u, orders o SET o.shipping = 0 WHERE u.id = o.user_id;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"shipping"},
		},
		{
			name:            "unqualified column on no updated table",
			statement:       `UPDATE users u, orders o SET nickname = 'Bea' WHERE u.id = o.user_id;`,
			wantCodes:       []types.Code{types.MissingColumn},
			wantIdentifiers: []string{"nickname"},
		},
		{
			name:            "unknown target table",
			statement:       `UPDATE customers SET name = 'Bea';`,
			wantCodes:       []types.Code{types.TableNotFound},
			wantIdentifiers: []string{"customers"},
		},
		{
			name:            "unknown target suppresses unqualified checks",
			statement:       `UPDATE customers c, users u SET nickname = 'Bea';`,
			wantCodes:       []types.Code{types.TableNotFound},
			wantIdentifiers: []string{"customers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeOne(t, tt.statement)
			require.Len(t, got, len(tt.wantCodes))
			for i, violation := range got {
				require.Equal(t, tt.wantCodes[i], violation.Code)
				require.Equal(t, tt.wantIdentifiers[i], violation.Identifier)
				require.Equal(t, types.Severity_ERROR, violation.Severity)
			}
		})
	}
}

func TestAnalyzeDelete(t *testing.T) {
	checkCtx := &Context{
		Statement:   mustStatement(t, `DELETE FROM users WHERE id = 1;`),
		Database:    MockDatabaseName,
		DBSchema:    MockAppDatabase(),
		Referencing: MockReferencingForeignKeys(),
	}
	got, err := Analyze(context.Background(), types.Engine_MYSQL, checkCtx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, "fk_orders_user", got[0].Identifier)
	require.Contains(t, got[0].Content, "rejected")
	require.Equal(t, "fk_sessions_user", got[1].Identifier)
	require.Contains(t, got[1].Content, "cascades")
	require.Equal(t, "fk_audit_user", got[2].Identifier)
	require.Contains(t, got[2].Content, "NULL")

	for _, violation := range got {
		require.Equal(t, types.Severity_WARNING, violation.Severity)
		require.Equal(t, types.DanglingForeignKeyReference, violation.Code)
	}

	result := types.NewSemanticResult(checkCtx.Statement, got)
	require.Equal(t, types.ValidationResult_VALID, result.Status)
	require.False(t, result.Blocking())
	require.Len(t, result.Warnings(), 3)
}

func TestAnalyzeDeleteWithoutReferences(t *testing.T) {
	checkCtx := &Context{
		Statement: mustStatement(t, `DELETE FROM users WHERE id = 1;`),
		Database:  MockDatabaseName,
		DBSchema:  MockAppDatabase(),
	}
	got, err := Analyze(context.Background(), types.Engine_MYSQL, checkCtx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAnalyzeDeleteForeignDatabase(t *testing.T) {
	checkCtx := &Context{
		Statement:   mustStatement(t, `DELETE FROM warehouse.users WHERE id = 1;`),
		Database:    MockDatabaseName,
		DBSchema:    MockAppDatabase(),
		Referencing: MockReferencingForeignKeys(),
	}
	got, err := Analyze(context.Background(), types.Engine_MYSQL, checkCtx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAnalyzeUnregisteredKind(t *testing.T) {
	checkCtx := &Context{
		Statement: mustStatement(t, `SELECT 1;`),
		Database:  MockDatabaseName,
		DBSchema:  MockAppDatabase(),
	}
	got, err := Analyze(context.Background(), types.Engine_MYSQL, checkCtx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTargetTables(t *testing.T) {
	tests := []struct {
		statement string
		want      []string
	}{
		{`INSERT INTO users (email) VALUES ('a@b.c');`, []string{"users"}},
		{`UPDATE users u, orders o SET o.total = 0;`, []string{"users", "orders"}},
		{`UPDATE users u, users v SET u.name = v.name;`, []string{"users"}},
		{`DELETE FROM users WHERE id = 1;`, []string{"users"}},
		{`UPDATE warehouse.users SET name = 'Bea';`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			got, err := TargetTables(MockDatabaseName, mustStatement(t, tt.statement))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
