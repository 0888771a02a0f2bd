package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-governor/pkg/classifier"
	"github.com/nsxbet/sql-governor/pkg/types"
)

func structureFixture() *types.TableMetadata {
	return &types.TableMetadata{
		Name: "orders",
		Columns: []*types.ColumnMetadata{
			{Name: "id", Position: 1, Type: "bigint", AutoIncrement: true},
			{Name: "user_id", Position: 2, Type: "bigint"},
			{Name: "status", Position: 3, Type: "varchar(32)", HasDefault: true, DefaultString: "pending"},
		},
		Indexes: []*types.IndexMetadata{
			{Name: "PRIMARY", Expressions: []string{"id"}, Type: "BTREE", Unique: true, Primary: true, Visible: true},
			{Name: "idx_user", Expressions: []string{"user_id"}, Type: "BTREE", Visible: true},
		},
		ForeignKeys: []*types.ForeignKeyMetadata{
			{
				Name:              "fk_orders_user",
				Columns:           []string{"user_id"},
				ReferencedTable:   "users",
				ReferencedColumns: []string{"id"},
				OnDelete:          "RESTRICT",
				OnUpdate:          "NO ACTION",
			},
		},
	}
}

func TestChecksumDeterministic(t *testing.T) {
	require.Equal(t, Checksum(structureFixture()), Checksum(structureFixture()))
}

func TestChecksumIgnoresCaptureOrder(t *testing.T) {
	shuffled := structureFixture()
	shuffled.Columns[0], shuffled.Columns[2] = shuffled.Columns[2], shuffled.Columns[0]
	shuffled.Indexes[0], shuffled.Indexes[1] = shuffled.Indexes[1], shuffled.Indexes[0]
	require.Equal(t, Checksum(structureFixture()), Checksum(shuffled))
}

func TestChecksumIgnoresOrdinals(t *testing.T) {
	moved := structureFixture()
	for i, column := range moved.Columns {
		column.Position = int32(10 + i)
	}
	require.Equal(t, Checksum(structureFixture()), Checksum(moved))
}

func TestChecksumTracksStructure(t *testing.T) {
	base := Checksum(structureFixture())

	retyped := structureFixture()
	retyped.Columns[1].Type = "int"
	require.NotEqual(t, base, Checksum(retyped))

	extended := structureFixture()
	extended.Columns = append(extended.Columns, &types.ColumnMetadata{Name: "note", Type: "text", Nullable: true})
	require.NotEqual(t, base, Checksum(extended))

	reindexed := structureFixture()
	reindexed.Indexes[1].Unique = true
	require.NotEqual(t, base, Checksum(reindexed))
}

func TestChecksumAbsentTable(t *testing.T) {
	require.Equal(t, Checksum(nil), Checksum(nil))
	require.NotEqual(t, Checksum(nil), Checksum(structureFixture()))
}

func mustStatement(t *testing.T, text string) *types.Statement {
	t.Helper()
	statements, err := classifier.Classify(text)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	return statements[0]
}

func TestTargets(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Target
	}{
		{
			name: "alter table",
			text: "ALTER TABLE orders ADD COLUMN note TEXT NULL;",
			want: []Target{{Table: "orders"}},
		},
		{
			name: "alter qualified table",
			text: "ALTER TABLE warehouse.stock ADD COLUMN note TEXT NULL;",
			want: []Target{{Database: "warehouse", Table: "stock"}},
		},
		{
			name: "create table",
			text: "CREATE TABLE audit_log (id BIGINT PRIMARY KEY);",
			want: []Target{{Table: "audit_log"}},
		},
		{
			name: "drop several tables",
			text: "DROP TABLE staging_orders, staging_users;",
			want: []Target{{Table: "staging_orders"}, {Table: "staging_users"}},
		},
		{
			name: "truncate",
			text: "TRUNCATE TABLE request_log;",
			want: []Target{{Table: "request_log"}},
		},
		{
			name: "rename contributes both names",
			text: "RENAME TABLE users TO archived_users;",
			want: []Target{{Table: "users"}, {Table: "archived_users"}},
		},
		{
			name: "create index",
			text: "CREATE INDEX idx_status ON orders (status);",
			want: []Target{{Table: "orders"}},
		},
		{
			name: "drop index",
			text: "DROP INDEX idx_status ON orders;",
			want: []Target{{Table: "orders"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Targets(mustStatement(t, tc.text))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTargetsRejectsNonDDL(t *testing.T) {
	_, err := Targets(mustStatement(t, "DELETE FROM orders WHERE id = 1;"))
	require.Error(t, err)
}
