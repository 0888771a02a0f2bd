// Package snapshot captures table structure on a live session. A capture
// pairs the engine's own SHOW CREATE TABLE text with the normalized
// structure from information_schema and a content checksum over that
// structure. Captures taken around a DDL statement feed the version
// history: an after-capture whose checksum matches the latest stored
// version is deduplicated instead of opening a new version.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/antlr4-go/antlr/v4"
	mysql "github.com/gedhean/mysql-parser"
	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// Capture reads one table's structure and definition on the caller's
// session. A nil capture means the table does not exist. Running the
// capture on the session that executes the surrounding batch makes it
// observe that transaction's view of the schema.
func Capture(ctx context.Context, q inspector.Querier, database, table string) (*types.SchemaSnapshot, error) {
	structure, err := inspector.GetTableMetadata(ctx, q, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect table %q", table)
	}
	if structure == nil {
		return nil, nil
	}

	definition, err := inspector.ShowCreateTable(ctx, q, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read definition of table %q", table)
	}

	return &types.SchemaSnapshot{
		Table:      table,
		Definition: definition,
		Structure:  structure,
		Checksum:   Checksum(structure),
		CapturedAt: time.Now().UTC(),
	}, nil
}

// Checksum produces a deterministic content hash of a table structure.
// Columns, indexes and foreign keys are sorted by name so the hash is
// independent of capture order, and column ordinals are left out so the
// hash covers the same fields the structural diff compares. The definition
// text is not part of the hash: it churns (AUTO_INCREMENT counters) while
// the structure stays the same.
func Checksum(structure *types.TableMetadata) string {
	payload, _ := json.Marshal(canonicalTable(structure))
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func canonicalTable(structure *types.TableMetadata) map[string]any {
	if structure == nil {
		return map[string]any{"columns": []any{}}
	}

	out := map[string]any{
		"name":    structure.Name,
		"columns": canonicalColumns(structure.Columns),
	}
	if len(structure.Indexes) > 0 {
		out["indexes"] = canonicalIndexes(structure.Indexes)
	}
	if len(structure.ForeignKeys) > 0 {
		out["foreign_keys"] = canonicalForeignKeys(structure.ForeignKeys)
	}
	return out
}

func canonicalColumns(columns []*types.ColumnMetadata) []any {
	sorted := make([]*types.ColumnMetadata, len(columns))
	copy(sorted, columns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]any, 0, len(sorted))
	for _, column := range sorted {
		entry := map[string]any{
			"name":     column.Name,
			"type":     strings.ToLower(column.Type),
			"nullable": column.Nullable,
		}
		if column.HasDefault {
			switch {
			case column.DefaultNull:
				entry["default"] = nil
			case column.DefaultExpression != "":
				entry["default_expression"] = column.DefaultExpression
			default:
				entry["default"] = column.DefaultString
			}
		}
		if column.OnUpdate != "" {
			entry["on_update"] = column.OnUpdate
		}
		if column.AutoIncrement {
			entry["auto_increment"] = true
		}
		if column.Generated {
			entry["generated"] = true
		}
		if column.CharacterSet != "" {
			entry["character_set"] = column.CharacterSet
		}
		if column.Collation != "" {
			entry["collation"] = column.Collation
		}
		if column.Comment != "" {
			entry["comment"] = column.Comment
		}
		out = append(out, entry)
	}
	return out
}

func canonicalIndexes(indexes []*types.IndexMetadata) []any {
	sorted := make([]*types.IndexMetadata, len(indexes))
	copy(sorted, indexes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]any, 0, len(sorted))
	for _, index := range sorted {
		out = append(out, map[string]any{
			"name":    index.Name,
			"columns": index.Expressions,
			"type":    index.Type,
			"unique":  index.Unique,
			"primary": index.Primary,
			"visible": index.Visible,
		})
	}
	return out
}

func canonicalForeignKeys(keys []*types.ForeignKeyMetadata) []any {
	sorted := make([]*types.ForeignKeyMetadata, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([]any, 0, len(sorted))
	for _, fk := range sorted {
		entry := map[string]any{
			"name":               fk.Name,
			"columns":            fk.Columns,
			"referenced_table":   fk.ReferencedTable,
			"referenced_columns": fk.ReferencedColumns,
			"on_delete":          fk.OnDelete,
			"on_update":          fk.OnUpdate,
		}
		if fk.ReferencedSchema != "" {
			entry["referenced_schema"] = fk.ReferencedSchema
		}
		out = append(out, entry)
	}
	return out
}

// Target names one table a DDL statement touches. Database is empty when
// the statement does not qualify the table name.
type Target struct {
	Database string
	Table    string
}

// Targets lists the tables a DDL statement affects, in order of first
// mention. DROP TABLE contributes every listed table and RENAME both the
// old and the new name, so captures around the statement can pair an
// existing table with an absent one.
func Targets(stmt *types.Statement) ([]Target, error) {
	if stmt.Class != types.StatementClass_DDL {
		return nil, errors.Errorf("statement is %s, not DDL", stmt.Class)
	}
	root, err := mysqlparser.ParseMySQL(stmt.Text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse statement")
	}

	var targets []Target
	seen := make(map[string]bool)
	add := func(database, table string) {
		if table == "" {
			return
		}
		key := strings.ToLower(database) + "." + strings.ToLower(table)
		if seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, Target{Database: database, Table: table})
	}

	for _, stmtNode := range root {
		collectTargets(stmtNode.Tree, add)
	}
	return targets, nil
}

func collectTargets(node antlr.Tree, add func(database, table string)) {
	switch ctx := node.(type) {
	case *mysql.CreateTableContext:
		if ctx.TableName() != nil {
			add(mysqlparser.NormalizeMySQLTableName(ctx.TableName()))
		}
	case *mysql.AlterTableContext:
		if ctx.TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(ctx.TableRef()))
		}
	case *mysql.DropTableContext:
		if ctx.TableRefList() != nil {
			for _, ref := range ctx.TableRefList().AllTableRef() {
				add(mysqlparser.NormalizeMySQLTableRef(ref))
			}
		}
	case *mysql.TruncateTableStatementContext:
		if ctx.TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(ctx.TableRef()))
		}
	case *mysql.RenameTableStatementContext:
		for _, pair := range ctx.AllRenamePair() {
			if pair.TableRef() != nil {
				add(mysqlparser.NormalizeMySQLTableRef(pair.TableRef()))
			}
			if pair.TableName() != nil {
				add(mysqlparser.NormalizeMySQLTableName(pair.TableName()))
			}
		}
	case *mysql.CreateIndexContext:
		if ctx.CreateIndexTarget() != nil && ctx.CreateIndexTarget().TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(ctx.CreateIndexTarget().TableRef()))
		}
	case *mysql.DropIndexContext:
		if ctx.TableRef() != nil {
			add(mysqlparser.NormalizeMySQLTableRef(ctx.TableRef()))
		}
	}

	for i := 0; i < node.GetChildCount(); i++ {
		collectTargets(node.GetChild(i), add)
	}
}
