// Package inspector reads table structure from a live MySQL-family database
// through information_schema. All queries are read only and run on whatever
// session the caller passes in, so snapshots taken inside an open
// transaction observe that transaction's view of the schema.
package inspector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/types"
)

// Querier is the read surface the inspector needs. *sql.DB, *sql.Conn and
// *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ReferencingForeignKey is a foreign key in another table that points at the
// inspected table.
type ReferencingForeignKey struct {
	// Table is the table that owns the foreign key.
	Table      string
	ForeignKey *types.ForeignKeyMetadata
}

// ListDatabases returns the database names visible to the session.
func ListDatabases(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list databases")
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		databases = append(databases, name)
	}
	return databases, rows.Err()
}

// ListTables returns the base table names in the database, ordered by name.
func ListTables(ctx context.Context, q Querier, database string) ([]string, error) {
	const query = `
		SELECT TABLE_NAME
		FROM information_schema.tables
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	rows, err := q.QueryContext(ctx, query, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tables in %q", database)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// CurrentDatabase returns the session's default database, or "" when none
// is selected.
func CurrentDatabase(ctx context.Context, q Querier) (string, error) {
	var database sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&database); err != nil {
		return "", errors.Wrap(err, "failed to read current database")
	}
	return database.String, nil
}

// GetTableMetadata reads the full structure of one table. It returns
// (nil, nil) when the table does not exist.
func GetTableMetadata(ctx context.Context, q Querier, database, table string) (*types.TableMetadata, error) {
	const query = `
		SELECT IFNULL(ENGINE, ''), IFNULL(TABLE_COLLATION, ''), TABLE_COMMENT
		FROM information_schema.tables
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		  AND TABLE_TYPE   = 'BASE TABLE'`

	meta := &types.TableMetadata{Name: table}
	err := q.QueryRowContext(ctx, query, database, table).Scan(&meta.Engine, &meta.Collation, &meta.Comment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect table %q.%q", database, table)
	}

	if meta.Columns, err = queryColumns(ctx, q, database, table); err != nil {
		return nil, err
	}
	if meta.Indexes, err = queryIndexes(ctx, q, database, table); err != nil {
		return nil, err
	}
	if meta.ForeignKeys, err = queryForeignKeys(ctx, q, database, table); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetDatabaseMetadata reads the structure of every base table in the
// database with one query per concern instead of one per table.
func GetDatabaseMetadata(ctx context.Context, q Querier, database string) (*types.DatabaseSchemaMetadata, error) {
	meta := &types.DatabaseSchemaMetadata{Name: database}

	const schemaQuery = `
		SELECT DEFAULT_CHARACTER_SET_NAME, DEFAULT_COLLATION_NAME
		FROM information_schema.schemata
		WHERE SCHEMA_NAME = ?`
	err := q.QueryRowContext(ctx, schemaQuery, database).Scan(&meta.CharacterSet, &meta.Collation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect database %q", database)
	}

	const tableQuery = `
		SELECT TABLE_NAME, IFNULL(ENGINE, ''), IFNULL(TABLE_COLLATION, ''), TABLE_COMMENT
		FROM information_schema.tables
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
	rows, err := q.QueryContext(ctx, tableQuery, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tables in %q", database)
	}
	defer rows.Close()

	for rows.Next() {
		table := &types.TableMetadata{}
		if err := rows.Scan(&table.Name, &table.Engine, &table.Collation, &table.Comment); err != nil {
			return nil, err
		}
		meta.Tables = append(meta.Tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	columns, err := queryAllColumns(ctx, q, database)
	if err != nil {
		return nil, err
	}
	indexes, err := queryAllIndexes(ctx, q, database)
	if err != nil {
		return nil, err
	}
	foreignKeys, err := queryAllForeignKeys(ctx, q, database)
	if err != nil {
		return nil, err
	}
	for _, table := range meta.Tables {
		table.Columns = columns[table.Name]
		table.Indexes = indexes[table.Name]
		table.ForeignKeys = foreignKeys[table.Name]
	}
	return meta, nil
}

// GetReferencingForeignKeys returns the foreign keys in other tables that
// reference the given table. DELETEs on the table may orphan or cascade
// through these.
func GetReferencingForeignKeys(ctx context.Context, q Querier, database, table string) ([]*ReferencingForeignKey, error) {
	const query = `
		SELECT
			kcu.TABLE_NAME,
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_COLUMN_NAME,
			rc.DELETE_RULE,
			rc.UPDATE_RULE
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON  rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME   = kcu.CONSTRAINT_NAME
		WHERE kcu.REFERENCED_TABLE_SCHEMA = ?
		  AND kcu.REFERENCED_TABLE_NAME   = ?
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect foreign keys referencing %q.%q", database, table)
	}
	defer rows.Close()

	type fkKey struct{ table, name string }
	fkMap := make(map[fkKey]*ReferencingForeignKey)
	var order []fkKey

	for rows.Next() {
		var owner, name, column, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&owner, &name, &column, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		key := fkKey{owner, name}
		fk, ok := fkMap[key]
		if !ok {
			fk = &ReferencingForeignKey{
				Table: owner,
				ForeignKey: &types.ForeignKeyMetadata{
					Name:             name,
					ReferencedSchema: database,
					ReferencedTable:  table,
					OnDelete:         onDelete,
					OnUpdate:         onUpdate,
				},
			}
			fkMap[key] = fk
			order = append(order, key)
		}
		fk.ForeignKey.Columns = append(fk.ForeignKey.Columns, column)
		fk.ForeignKey.ReferencedColumns = append(fk.ForeignKey.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*ReferencingForeignKey, 0, len(order))
	for _, key := range order {
		result = append(result, fkMap[key])
	}
	return result, nil
}

// ShowCreateTable returns the engine's own CREATE TABLE text for the table.
func ShowCreateTable(ctx context.Context, q Querier, table string) (string, error) {
	var name, definition string
	query := fmt.Sprintf("SHOW CREATE TABLE %s", quoteIdentifier(table))
	if err := q.QueryRowContext(ctx, query).Scan(&name, &definition); err != nil {
		return "", errors.Wrapf(err, "failed to read definition of %q", table)
	}
	return definition, nil
}

func queryColumns(ctx context.Context, q Querier, database, table string) ([]*types.ColumnMetadata, error) {
	const query = `
		SELECT
			COLUMN_NAME,
			ORDINAL_POSITION,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			EXTRA,
			IFNULL(CHARACTER_SET_NAME, ''),
			IFNULL(COLLATION_NAME, ''),
			COLUMN_COMMENT
		FROM information_schema.columns
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect columns of %q.%q", database, table)
	}
	defer rows.Close()

	var columns []*types.ColumnMetadata
	for rows.Next() {
		var (
			column     types.ColumnMetadata
			position   int64
			nullable   string
			colDefault sql.NullString
			extra      string
		)
		if err := rows.Scan(&column.Name, &position, &column.Type, &nullable, &colDefault,
			&extra, &column.CharacterSet, &column.Collation, &column.Comment); err != nil {
			return nil, err
		}
		column.Position = int32(position)
		column.Nullable = nullable == "YES"
		applyColumnExtra(&column, colDefault, extra)
		columns = append(columns, &column)
	}
	return columns, rows.Err()
}

func queryAllColumns(ctx context.Context, q Querier, database string) (map[string][]*types.ColumnMetadata, error) {
	const query = `
		SELECT
			TABLE_NAME,
			COLUMN_NAME,
			ORDINAL_POSITION,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			EXTRA,
			IFNULL(CHARACTER_SET_NAME, ''),
			IFNULL(COLLATION_NAME, ''),
			COLUMN_COMMENT
		FROM information_schema.columns
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect columns of %q", database)
	}
	defer rows.Close()

	result := make(map[string][]*types.ColumnMetadata)
	for rows.Next() {
		var (
			table      string
			column     types.ColumnMetadata
			position   int64
			nullable   string
			colDefault sql.NullString
			extra      string
		)
		if err := rows.Scan(&table, &column.Name, &position, &column.Type, &nullable, &colDefault,
			&extra, &column.CharacterSet, &column.Collation, &column.Comment); err != nil {
			return nil, err
		}
		column.Position = int32(position)
		column.Nullable = nullable == "YES"
		applyColumnExtra(&column, colDefault, extra)
		result[table] = append(result[table], &column)
	}
	return result, rows.Err()
}

// applyColumnExtra folds COLUMN_DEFAULT and EXTRA into the column metadata.
// A NULL default on a NOT NULL column means the column has no default at
// all, which is what the insert analyzer needs to know.
func applyColumnExtra(column *types.ColumnMetadata, colDefault sql.NullString, extra string) {
	lowered := strings.ToLower(extra)
	column.AutoIncrement = strings.Contains(lowered, "auto_increment")
	column.Generated = strings.Contains(lowered, "virtual generated") || strings.Contains(lowered, "stored generated")
	column.OnUpdate = extractOnUpdate(extra)

	if colDefault.Valid {
		column.HasDefault = true
		if strings.Contains(lowered, "default_generated") {
			column.DefaultExpression = colDefault.String
		} else {
			column.DefaultString = colDefault.String
		}
		return
	}
	if column.Nullable {
		// No stored default on a nullable column is an implicit DEFAULT NULL.
		column.DefaultNull = true
	}
}

// extractOnUpdate pulls the "on update <expr>" clause out of EXTRA, e.g.
// "DEFAULT_GENERATED on update CURRENT_TIMESTAMP".
func extractOnUpdate(extra string) string {
	lowered := strings.ToLower(extra)
	idx := strings.Index(lowered, "on update ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(extra[idx+len("on update "):])
}

func queryIndexes(ctx context.Context, q Querier, database, table string) ([]*types.IndexMetadata, error) {
	const query = `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, INDEX_TYPE, INDEX_COMMENT
		FROM information_schema.statistics
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	rows, err := q.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect indexes of %q.%q", database, table)
	}
	defer rows.Close()

	indexMap := make(map[string]*types.IndexMetadata)
	var order []string

	for rows.Next() {
		var (
			name, column, indexType, comment string
			nonUnique                        int
		)
		if err := rows.Scan(&name, &column, &nonUnique, &indexType, &comment); err != nil {
			return nil, err
		}
		index, ok := indexMap[name]
		if !ok {
			index = &types.IndexMetadata{
				Name:    name,
				Type:    indexType,
				Unique:  nonUnique == 0,
				Primary: name == "PRIMARY",
				Visible: true,
				Comment: comment,
			}
			indexMap[name] = index
			order = append(order, name)
		}
		index.Expressions = append(index.Expressions, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]*types.IndexMetadata, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, indexMap[name])
	}
	return indexes, nil
}

func queryAllIndexes(ctx context.Context, q Querier, database string) (map[string][]*types.IndexMetadata, error) {
	const query = `
		SELECT TABLE_NAME, INDEX_NAME, COLUMN_NAME, NON_UNIQUE, INDEX_TYPE, INDEX_COMMENT
		FROM information_schema.statistics
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`

	rows, err := q.QueryContext(ctx, query, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect indexes of %q", database)
	}
	defer rows.Close()

	type idxKey struct{ table, name string }
	indexMap := make(map[idxKey]*types.IndexMetadata)
	var order []idxKey

	for rows.Next() {
		var (
			table, name, column, indexType, comment string
			nonUnique                               int
		)
		if err := rows.Scan(&table, &name, &column, &nonUnique, &indexType, &comment); err != nil {
			return nil, err
		}
		key := idxKey{table, name}
		index, ok := indexMap[key]
		if !ok {
			index = &types.IndexMetadata{
				Name:    name,
				Type:    indexType,
				Unique:  nonUnique == 0,
				Primary: name == "PRIMARY",
				Visible: true,
				Comment: comment,
			}
			indexMap[key] = index
			order = append(order, key)
		}
		index.Expressions = append(index.Expressions, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]*types.IndexMetadata)
	for _, key := range order {
		result[key.table] = append(result[key.table], indexMap[key])
	}
	return result, nil
}

func queryForeignKeys(ctx context.Context, q Querier, database, table string) ([]*types.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			IFNULL(kcu.REFERENCED_TABLE_SCHEMA, ''),
			IFNULL(kcu.REFERENCED_TABLE_NAME, ''),
			IFNULL(kcu.REFERENCED_COLUMN_NAME, ''),
			rc.DELETE_RULE,
			rc.UPDATE_RULE
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON  rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME   = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA          = ?
		  AND kcu.TABLE_NAME            = ?
		  AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect foreign keys of %q.%q", database, table)
	}
	defer rows.Close()

	fkMap := make(map[string]*types.ForeignKeyMetadata)
	var order []string

	for rows.Next() {
		var name, column, refSchema, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &column, &refSchema, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		fk, ok := fkMap[name]
		if !ok {
			fk = &types.ForeignKeyMetadata{
				Name:             name,
				ReferencedSchema: refSchema,
				ReferencedTable:  refTable,
				OnDelete:         onDelete,
				OnUpdate:         onUpdate,
			}
			fkMap[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, column)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]*types.ForeignKeyMetadata, 0, len(order))
	for _, name := range order {
		fks = append(fks, fkMap[name])
	}
	return fks, nil
}

func queryAllForeignKeys(ctx context.Context, q Querier, database string) (map[string][]*types.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			kcu.TABLE_NAME,
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			IFNULL(kcu.REFERENCED_TABLE_SCHEMA, ''),
			IFNULL(kcu.REFERENCED_TABLE_NAME, ''),
			IFNULL(kcu.REFERENCED_COLUMN_NAME, ''),
			rc.DELETE_RULE,
			rc.UPDATE_RULE
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON  rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME   = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA          = ?
		  AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect foreign keys of %q", database)
	}
	defer rows.Close()

	type fkKey struct{ table, name string }
	fkMap := make(map[fkKey]*types.ForeignKeyMetadata)
	var order []fkKey

	for rows.Next() {
		var table, name, column, refSchema, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&table, &name, &column, &refSchema, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		key := fkKey{table, name}
		fk, ok := fkMap[key]
		if !ok {
			fk = &types.ForeignKeyMetadata{
				Name:             name,
				ReferencedSchema: refSchema,
				ReferencedTable:  refTable,
				OnDelete:         onDelete,
				OnUpdate:         onUpdate,
			}
			fkMap[key] = fk
			order = append(order, key)
		}
		fk.Columns = append(fk.Columns, column)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]*types.ForeignKeyMetadata)
	for _, key := range order {
		result[key.table] = append(result[key.table], fkMap[key])
	}
	return result, nil
}

// quoteIdentifier wraps an identifier in backticks, doubling any embedded
// backtick.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
