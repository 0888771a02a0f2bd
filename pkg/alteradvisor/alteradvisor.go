// Package alteradvisor predicts how MySQL will execute an ALTER TABLE
// statement. Each sub-operation is mapped through a static policy table to
// the expected online DDL algorithm and lock level, and a statement with
// several sub-operations is summarized by the most conservative combination.
// The advisory never blocks execution, it only annotates the review.
package alteradvisor

import (
	"fmt"

	"github.com/antlr4-go/antlr/v4"
	mysql "github.com/gedhean/mysql-parser"
	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// Advise analyzes a classified ALTER statement without touching the
// database.
func Advise(stmt *types.Statement) (*types.AlterAdvisory, error) {
	if stmt.Kind != types.StatementKind_ALTER {
		return nil, errors.Errorf("expected an ALTER statement, got %s", stmt.Kind)
	}
	root, err := mysqlparser.ParseMySQL(stmt.Text)
	if err != nil {
		return nil, err
	}

	var alters []*mysql.AlterTableContext
	for _, stmtNode := range root {
		collectAlterTables(stmtNode.Tree, &alters)
	}
	if len(alters) == 0 {
		return nil, errors.New("statement alters no table")
	}

	alter := alters[0]
	_, tableName := mysqlparser.NormalizeMySQLTableRef(alter.TableRef())
	advisory := &types.AlterAdvisory{Table: tableName}

	for _, item := range alterItems(alter) {
		for _, advice := range itemAdvices(item) {
			advisory.Operations = append(advisory.Operations, advice)
			if advice.Algorithm > advisory.Algorithm {
				advisory.Algorithm = advice.Algorithm
			}
			if advice.Lock > advisory.Lock {
				advisory.Lock = advice.Lock
			}
			advisory.HighRisk = advisory.HighRisk || advice.HighRisk
		}
	}

	// Partitioning, ENGINE and the other table options land outside the
	// alter list. Without a recognized sub-operation assume a rebuild.
	if len(advisory.Operations) == 0 {
		advice := &types.AlterOperationAdvice{
			Operation: "TABLE OPTIONS",
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			Rationale: "unrecognized alteration, assumed to copy the table",
		}
		advisory.Operations = append(advisory.Operations, advice)
		advisory.Algorithm = advice.Algorithm
		advisory.Lock = advice.Lock
	}

	return advisory, nil
}

func collectAlterTables(node antlr.Tree, out *[]*mysql.AlterTableContext) {
	if alter, ok := node.(*mysql.AlterTableContext); ok {
		*out = append(*out, alter)
		return
	}
	for i := 0; i < node.GetChildCount(); i++ {
		collectAlterTables(node.GetChild(i), out)
	}
}

func alterItems(ctx *mysql.AlterTableContext) []mysql.IAlterListItemContext {
	if ctx.AlterTableActions() == nil {
		return nil
	}
	if ctx.AlterTableActions().AlterCommandList() == nil {
		return nil
	}
	if ctx.AlterTableActions().AlterCommandList().AlterList() == nil {
		return nil
	}
	return ctx.AlterTableActions().AlterCommandList().AlterList().AllAlterListItem()
}

func itemAdvices(item mysql.IAlterListItemContext) []*types.AlterOperationAdvice {
	if item == nil {
		return nil
	}

	switch {
	case item.ADD_SYMBOL() != nil && item.TableConstraintDef() != nil:
		return []*types.AlterOperationAdvice{adviseAddConstraint(item.TableConstraintDef())}
	case item.ADD_SYMBOL() != nil && item.Identifier() != nil && item.FieldDefinition() != nil:
		name := mysqlparser.NormalizeMySQLIdentifier(item.Identifier())
		return []*types.AlterOperationAdvice{adviseAddColumn(name, item.FieldDefinition(), item.Place() != nil)}
	case item.ADD_SYMBOL() != nil && item.OPEN_PAR_SYMBOL() != nil && item.TableElementList() != nil:
		var advices []*types.AlterOperationAdvice
		for _, element := range item.TableElementList().AllTableElement() {
			switch {
			case element.ColumnDefinition() != nil &&
				element.ColumnDefinition().ColumnName() != nil &&
				element.ColumnDefinition().FieldDefinition() != nil:
				_, _, name := mysqlparser.NormalizeMySQLColumnName(element.ColumnDefinition().ColumnName())
				advices = append(advices, adviseAddColumn(name, element.ColumnDefinition().FieldDefinition(), false))
			case element.TableConstraintDef() != nil:
				advices = append(advices, adviseAddConstraint(element.TableConstraintDef()))
			}
		}
		return advices
	case item.CHANGE_SYMBOL() != nil && item.ColumnInternalRef() != nil && item.Identifier() != nil:
		oldName := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		newName := mysqlparser.NormalizeMySQLIdentifier(item.Identifier())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("CHANGE COLUMN %s TO %s", oldName, newName),
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			HighRisk:  true,
			Rationale: "redefining a column copies the table and blocks writes for the duration",
		}}
	case item.MODIFY_SYMBOL() != nil && item.ColumnInternalRef() != nil && item.FieldDefinition() != nil:
		name := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("MODIFY COLUMN %s", name),
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			HighRisk:  true,
			Rationale: "changing a column type copies the table and blocks writes for the duration",
		}}
	case item.DROP_SYMBOL() != nil && item.FOREIGN_SYMBOL() != nil && item.ColumnInternalRef() != nil:
		name := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("DROP FOREIGN KEY %s", name),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "dropping a foreign key only changes metadata",
		}}
	case item.DROP_SYMBOL() != nil && item.PRIMARY_SYMBOL() != nil && item.KEY_SYMBOL() != nil:
		return []*types.AlterOperationAdvice{{
			Operation: "DROP PRIMARY KEY",
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			HighRisk:  true,
			Rationale: "dropping the clustered key copies the table and blocks writes for the duration",
		}}
	case item.DROP_SYMBOL() != nil && item.KeyOrIndex() != nil && item.IndexRef() != nil:
		_, _, name := mysqlparser.NormalizeIndexRef(item.IndexRef())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("DROP INDEX %s", name),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "dropping a secondary index only changes metadata",
		}}
	case item.DROP_SYMBOL() != nil && item.ColumnInternalRef() != nil:
		name := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("DROP COLUMN %s", name),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			HighRisk:  true,
			Rationale: "discards the stored column data, the table is rebuilt in place",
		}}
	case item.RENAME_SYMBOL() != nil && item.COLUMN_SYMBOL() != nil && item.ColumnInternalRef() != nil && item.Identifier() != nil:
		oldName := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		newName := mysqlparser.NormalizeMySQLIdentifier(item.Identifier())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("RENAME COLUMN %s TO %s", oldName, newName),
			Algorithm: types.AlterAlgorithm_INSTANT,
			Lock:      types.AlterLock_NONE,
			Rationale: "renaming a column only changes metadata",
		}}
	case item.RENAME_SYMBOL() != nil && item.KeyOrIndex() != nil && item.IndexRef() != nil && item.IndexName() != nil:
		_, _, oldName := mysqlparser.NormalizeIndexRef(item.IndexRef())
		newName := mysqlparser.NormalizeIndexName(item.IndexName())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("RENAME INDEX %s TO %s", oldName, newName),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "renaming an index only changes metadata",
		}}
	case item.RENAME_SYMBOL() != nil && item.TableName() != nil:
		_, newName := mysqlparser.NormalizeMySQLTableName(item.TableName())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("RENAME TO %s", newName),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "renaming the table only changes metadata",
		}}
	case item.ALTER_SYMBOL() != nil && item.ColumnInternalRef() != nil:
		name := mysqlparser.NormalizeMySQLColumnInternalRef(item.ColumnInternalRef())
		return []*types.AlterOperationAdvice{{
			Operation: fmt.Sprintf("ALTER COLUMN %s", name),
			Algorithm: types.AlterAlgorithm_INSTANT,
			Lock:      types.AlterLock_NONE,
			Rationale: "default and visibility changes only touch metadata",
		}}
	}

	return []*types.AlterOperationAdvice{{
		Operation: "UNRECOGNIZED",
		Algorithm: types.AlterAlgorithm_COPY,
		Lock:      types.AlterLock_SHARED,
		Rationale: "unrecognized operation, assumed to copy the table",
	}}
}

func adviseAddColumn(name string, fieldDef mysql.IFieldDefinitionContext, placed bool) *types.AlterOperationAdvice {
	nullable, hasDefault, autoIncrement := columnAttributes(fieldDef)

	switch {
	case nullable && !hasDefault && !autoIncrement && !placed:
		return &types.AlterOperationAdvice{
			Operation: fmt.Sprintf("ADD COLUMN %s", name),
			Algorithm: types.AlterAlgorithm_INSTANT,
			Lock:      types.AlterLock_NONE,
			Rationale: "adding a nullable column without default only changes metadata",
		}
	default:
		return &types.AlterOperationAdvice{
			Operation: fmt.Sprintf("ADD COLUMN %s", name),
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "the table is rebuilt in place, concurrent writes are allowed",
		}
	}
}

func adviseAddConstraint(def mysql.ITableConstraintDefContext) *types.AlterOperationAdvice {
	if def.GetType_() == nil {
		return &types.AlterOperationAdvice{
			Operation: "ADD CONSTRAINT",
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			Rationale: "unrecognized constraint, assumed to copy the table",
		}
	}

	switch def.GetType_().GetTokenType() {
	case mysql.MySQLParserPRIMARY_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD PRIMARY KEY",
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "the table is rebuilt in place to cluster rows by the new key",
		}
	case mysql.MySQLParserFOREIGN_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD FOREIGN KEY",
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			Rationale: "foreign key validation copies the table unless foreign_key_checks is disabled",
		}
	case mysql.MySQLParserUNIQUE_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD UNIQUE INDEX",
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "the index is built online, duplicates fail the statement at the end",
		}
	case mysql.MySQLParserFULLTEXT_SYMBOL, mysql.MySQLParserSPATIAL_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD SPECIALIZED INDEX",
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_SHARED,
			Rationale: "fulltext and spatial index builds block concurrent writes",
		}
	case mysql.MySQLParserINDEX_SYMBOL, mysql.MySQLParserKEY_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD INDEX",
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "the index is built online without blocking writes",
		}
	case mysql.MySQLParserCHECK_SYMBOL:
		return &types.AlterOperationAdvice{
			Operation: "ADD CHECK",
			Algorithm: types.AlterAlgorithm_INPLACE,
			Lock:      types.AlterLock_NONE,
			Rationale: "existing rows are validated without copying the table",
		}
	default:
		return &types.AlterOperationAdvice{
			Operation: "ADD CONSTRAINT",
			Algorithm: types.AlterAlgorithm_COPY,
			Lock:      types.AlterLock_SHARED,
			Rationale: "unrecognized constraint, assumed to copy the table",
		}
	}
}

func columnAttributes(fieldDef mysql.IFieldDefinitionContext) (nullable, hasDefault, autoIncrement bool) {
	nullable = true
	if fieldDef == nil {
		return
	}
	for _, attr := range fieldDef.AllColumnAttribute() {
		if attr == nil {
			continue
		}
		switch {
		case attr.NullLiteral() != nil && attr.NOT_SYMBOL() != nil:
			nullable = false
		case attr.PRIMARY_SYMBOL() != nil && attr.KEY_SYMBOL() != nil:
			nullable = false
		case attr.DEFAULT_SYMBOL() != nil:
			hasDefault = true
		case attr.AUTO_INCREMENT_SYMBOL() != nil:
			autoIncrement = true
		}
	}
	return
}
