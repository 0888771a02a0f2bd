package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-governor/pkg/types"
)

func TestClassifySingleStatements(t *testing.T) {
	tests := []struct {
		statement string
		kind      types.StatementKind
		class     types.StatementClass
	}{
		{
			statement: "SELECT * FROM users;",
			kind:      types.StatementKind_SELECT,
			class:     types.StatementClass_DQL,
		},
		{
			statement: "select id from orders where status = 'open';",
			kind:      types.StatementKind_SELECT,
			class:     types.StatementClass_DQL,
		},
		{
			statement: "(SELECT 1);",
			kind:      types.StatementKind_SELECT,
			class:     types.StatementClass_DQL,
		},
		{
			statement: "WITH active AS (SELECT id FROM users WHERE active = 1) SELECT * FROM active;",
			kind:      types.StatementKind_SELECT,
			class:     types.StatementClass_DQL,
		},
		{
			statement: "WITH stale AS (SELECT id FROM sessions WHERE expired = 1) DELETE FROM sessions WHERE id IN (SELECT id FROM stale);",
			kind:      types.StatementKind_DELETE,
			class:     types.StatementClass_DML,
		},
		{
			statement: "INSERT INTO users (name) VALUES ('a;b');",
			kind:      types.StatementKind_INSERT,
			class:     types.StatementClass_DML,
		},
		{
			statement: "UPDATE users SET name = 'x' WHERE id = 1;",
			kind:      types.StatementKind_UPDATE,
			class:     types.StatementClass_DML,
		},
		{
			statement: "DELETE FROM users WHERE id = 1;",
			kind:      types.StatementKind_DELETE,
			class:     types.StatementClass_DML,
		},
		{
			statement: "REPLACE INTO users (id, name) VALUES (1, 'x');",
			kind:      types.StatementKind_REPLACE,
			class:     types.StatementClass_DML,
		},
		{
			statement: "CREATE TABLE t (id INT PRIMARY KEY);",
			kind:      types.StatementKind_CREATE,
			class:     types.StatementClass_DDL,
		},
		{
			statement: "ALTER TABLE t ADD COLUMN c INT NULL;",
			kind:      types.StatementKind_ALTER,
			class:     types.StatementClass_DDL,
		},
		{
			statement: "DROP TABLE t;",
			kind:      types.StatementKind_DROP,
			class:     types.StatementClass_DDL,
		},
		{
			statement: "TRUNCATE TABLE t;",
			kind:      types.StatementKind_TRUNCATE,
			class:     types.StatementClass_DDL,
		},
		{
			statement: "RENAME TABLE t TO t2;",
			kind:      types.StatementKind_RENAME,
			class:     types.StatementClass_DDL,
		},
	}

	for _, test := range tests {
		statements, err := Classify(test.statement)
		require.NoError(t, err, test.statement)
		require.Len(t, statements, 1, test.statement)
		require.Equal(t, test.kind, statements[0].Kind, test.statement)
		require.Equal(t, test.class, statements[0].Class, test.statement)
	}
}

func TestClassifyMultiStatement(t *testing.T) {
	sql := "UPDATE accounts SET balance = balance - 10 WHERE id = 1;\n" +
		"UPDATE accounts SET balance = balance + 10 WHERE id = 2;\n" +
		"SELECT balance FROM accounts;"

	statements, err := Classify(sql)
	require.NoError(t, err)
	require.Len(t, statements, 3)

	require.Equal(t, types.StatementKind_UPDATE, statements[0].Kind)
	require.Equal(t, types.StatementKind_UPDATE, statements[1].Kind)
	require.Equal(t, types.StatementKind_SELECT, statements[2].Kind)

	// Order must match the input text.
	require.Contains(t, statements[0].Text, "id = 1")
	require.Contains(t, statements[1].Text, "id = 2")
	require.Equal(t, int32(0), statements[0].Start.Line)
	require.Equal(t, int32(1), statements[1].Start.Line)
	require.Equal(t, int32(2), statements[2].Start.Line)
}

func TestClassifyDropsEmptyStatements(t *testing.T) {
	sql := "-- audit the open orders\nSELECT * FROM orders;\n-- done\n"

	statements, err := Classify(sql)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Equal(t, types.StatementKind_SELECT, statements[0].Kind)
}

func TestClassifyLiteralAndCommentSemicolons(t *testing.T) {
	sql := "INSERT INTO logs (msg) VALUES ('first; second');\n" +
		"/* block; comment */ SELECT msg FROM logs;"

	statements, err := Classify(sql)
	require.NoError(t, err)
	require.Len(t, statements, 2)
	require.Equal(t, types.StatementKind_INSERT, statements[0].Kind)
	require.Equal(t, types.StatementKind_SELECT, statements[1].Kind)
}

func TestClassifyUnclassifiable(t *testing.T) {
	tests := []struct {
		statement string
		keyword   string
	}{
		{
			statement: "SET NAMES utf8mb4;",
			keyword:   "SET",
		},
		{
			statement: "SHOW TABLES;",
			keyword:   "SHOW",
		},
		{
			statement: "GRANT SELECT ON db.* TO 'reader'@'%';",
			keyword:   "GRANT",
		},
		{
			statement: "BEGIN;",
			keyword:   "BEGIN",
		},
		{
			statement: "EXPLAIN SELECT * FROM t;",
			keyword:   "EXPLAIN",
		},
	}

	for _, test := range tests {
		_, err := Classify(test.statement)
		require.Error(t, err, test.statement)

		var unclassifiable *UnclassifiableError
		require.ErrorAs(t, err, &unclassifiable, test.statement)
		require.Equal(t, test.keyword, unclassifiable.Keyword, test.statement)
	}
}

func TestClassifyUnclassifiableFailsWholeText(t *testing.T) {
	sql := "SELECT 1;\nSET SESSION sql_mode = '';\nSELECT 2;"

	statements, err := Classify(sql)
	require.Error(t, err)
	require.Nil(t, statements)
}

func TestClassifyKind(t *testing.T) {
	kind, err := ClassifyKind("ALTER TABLE t MODIFY COLUMN c BIGINT;")
	require.NoError(t, err)
	require.Equal(t, types.StatementKind_ALTER, kind)

	_, err = ClassifyKind("USE production;")
	require.Error(t, err)
}
