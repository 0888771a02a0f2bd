package analyzer

import (
	"context"

	"github.com/antlr4-go/antlr/v4"
	mysql "github.com/gedhean/mysql-parser"

	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// LoadContext resolves the tables the statement targets and fetches their
// structure over the given session, producing the Context the semantic
// rules run against. For DELETE statements it also loads the foreign keys
// elsewhere in the schema that reference each target table. Only metadata
// queries run here; the statement itself is never executed.
func LoadContext(ctx context.Context, q inspector.Querier, database string, stmt *types.Statement) (*Context, error) {
	targets, err := TargetTables(database, stmt)
	if err != nil {
		return nil, err
	}

	checkCtx := &Context{
		Statement:   stmt,
		Database:    database,
		DBSchema:    &types.DatabaseSchemaMetadata{Name: database},
		Referencing: make(map[string][]*inspector.ReferencingForeignKey),
	}
	for _, table := range targets {
		meta, err := inspector.GetTableMetadata(ctx, q, database, table)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			checkCtx.DBSchema.Tables = append(checkCtx.DBSchema.Tables, meta)
		}
		if stmt.Kind == types.StatementKind_DELETE {
			refs, err := inspector.GetReferencingForeignKeys(ctx, q, database, table)
			if err != nil {
				return nil, err
			}
			checkCtx.Referencing[table] = refs
		}
	}
	return checkCtx, nil
}

// TargetTables returns the tables the statement writes to, in first-seen
// order. References qualified with a different database are left out; their
// metadata lives outside the session's schema.
func TargetTables(database string, stmt *types.Statement) ([]string, error) {
	root, err := mysqlparser.ParseMySQL(stmt.Text)
	if err != nil {
		return nil, err
	}

	var tables []string
	seen := make(map[string]bool)
	add := func(db, table string) {
		if table == "" {
			return
		}
		if db != "" && db != database {
			return
		}
		if !seen[table] {
			seen[table] = true
			tables = append(tables, table)
		}
	}

	for _, stmtNode := range root {
		collectTargetTables(stmtNode.Tree, add)
	}
	return tables, nil
}

func collectTargetTables(node antlr.Tree, add func(db, table string)) {
	switch n := node.(type) {
	case *mysql.InsertStatementContext:
		if n.TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(n.TableRef()))
		}
	case *mysql.DeleteStatementContext:
		if n.TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(n.TableRef()))
		}
	case *mysql.UpdateStatementContext:
		if n.TableReferenceList() != nil {
			var singles []*mysql.SingleTableContext
			collectSingleTables(n.TableReferenceList(), &singles)
			for _, single := range singles {
				add(mysqlparser.NormalizeMySQLTableRef(single.TableRef()))
			}
		}
	}
	for i := 0; i < node.GetChildCount(); i++ {
		collectTargetTables(node.GetChild(i), add)
	}
}
