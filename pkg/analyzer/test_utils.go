package analyzer

import (
	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// MockDatabaseName is the database name mock schemas are registered under in tests
const MockDatabaseName = "app"

// MockAppDatabase creates a mock schema with users and orders tables for analyzer tests
func MockAppDatabase() *types.DatabaseSchemaMetadata {
	return &types.DatabaseSchemaMetadata{
		Name: MockDatabaseName,
		Tables: []*types.TableMetadata{
			{
				Name: "users",
				Columns: []*types.ColumnMetadata{
					{Name: "id", Position: 1, Type: "bigint", AutoIncrement: true},
					{Name: "email", Position: 2, Type: "varchar(255)"},
					{Name: "name", Position: 3, Type: "varchar(100)", Nullable: true},
					{Name: "created_at", Position: 4, Type: "timestamp", HasDefault: true, DefaultExpression: "CURRENT_TIMESTAMP"},
				},
			},
			{
				Name: "orders",
				Columns: []*types.ColumnMetadata{
					{Name: "id", Position: 1, Type: "bigint", AutoIncrement: true},
					{Name: "user_id", Position: 2, Type: "bigint"},
					{Name: "status", Position: 3, Type: "varchar(20)", HasDefault: true, DefaultString: "pending"},
					{Name: "total", Position: 4, Type: "decimal(10,2)"},
				},
			},
		},
	}
}

// MockReferencingForeignKeys creates foreign keys in other tables pointing at
// the users table, keyed the way the loader hands them to DELETE analysis
func MockReferencingForeignKeys() map[string][]*inspector.ReferencingForeignKey {
	return map[string][]*inspector.ReferencingForeignKey{
		"users": {
			{
				Table: "orders",
				ForeignKey: &types.ForeignKeyMetadata{
					Name:              "fk_orders_user",
					Columns:           []string{"user_id"},
					ReferencedTable:   "users",
					ReferencedColumns: []string{"id"},
					OnDelete:          "RESTRICT",
				},
			},
			{
				Table: "sessions",
				ForeignKey: &types.ForeignKeyMetadata{
					Name:              "fk_sessions_user",
					Columns:           []string{"user_id"},
					ReferencedTable:   "users",
					ReferencedColumns: []string{"id"},
					OnDelete:          "CASCADE",
				},
			},
			{
				Table: "audit_log",
				ForeignKey: &types.ForeignKeyMetadata{
					Name:              "fk_audit_user",
					Columns:           []string{"actor_id"},
					ReferencedTable:   "users",
					ReferencedColumns: []string{"id"},
					OnDelete:          "SET NULL",
				},
			},
		},
	}
}
