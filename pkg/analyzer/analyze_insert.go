package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/antlr4-go/antlr/v4"
	mysql "github.com/gedhean/mysql-parser"

	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// InsertColumnRule checks that every column an INSERT names exists on the
// target table, and that every NOT NULL column without a default receives
// an explicit value.
type InsertColumnRule struct {
	BaseRule
	checkCtx *Context
}

// Name returns the rule name
func (*InsertColumnRule) Name() string {
	return "InsertColumnRule"
}

// OnEnter is called when entering a parse tree node
func (r *InsertColumnRule) OnEnter(ctx antlr.ParserRuleContext, nodeType string) error {
	if nodeType == NodeTypeInsertStatement {
		r.checkInsertStatement(ctx.(*mysql.InsertStatementContext))
	}
	return nil
}

// OnExit is called when exiting a parse tree node
func (*InsertColumnRule) OnExit(_ antlr.ParserRuleContext, _ string) error {
	return nil
}

// namedColumn is one column reference in the statement text.
type namedColumn struct {
	name string
	line int
}

func (r *InsertColumnRule) checkInsertStatement(ctx *mysql.InsertStatementContext) {
	if !mysqlparser.IsTopMySQLRule(&ctx.BaseParserRuleContext) {
		return
	}
	if ctx.TableRef() == nil {
		return
	}
	databaseName, tableName := mysqlparser.NormalizeMySQLTableRef(ctx.TableRef())
	if databaseName != "" && databaseName != r.checkCtx.Database {
		return
	}

	pos := ConvertANTLRLineToPosition(r.baseLine + ctx.GetStart().GetLine())
	table := r.checkCtx.GetTable(tableName)
	if table == nil {
		r.AddViolation(missingTableViolation(r.checkCtx.Database, tableName, pos))
		return
	}

	named, explicit := insertColumnList(ctx)
	for _, column := range named {
		if FindColumn(table, column.name) == nil {
			r.AddViolation(&types.Violation{
				Severity:      types.Severity_ERROR,
				Code:          types.MissingColumn,
				Identifier:    column.name,
				Content:       fmt.Sprintf("Column %q does not exist on table %q", column.name, tableName),
				StartPosition: ConvertANTLRLineToPosition(r.baseLine + column.line),
			})
		}
	}

	// Without an explicit column list the VALUES rows supply every column
	// positionally, so no NOT NULL column can be left out.
	if !explicit {
		return
	}
	for _, column := range table.Columns {
		if column.Nullable || column.HasDefault || column.AutoIncrement || column.Generated {
			continue
		}
		if containsColumn(named, column.Name) {
			continue
		}
		r.AddViolation(&types.Violation{
			Severity:      types.Severity_ERROR,
			Code:          types.NotNullViolation,
			Identifier:    column.Name,
			Content:       fmt.Sprintf("Column %q on table %q is NOT NULL without a default and receives no value", column.Name, tableName),
			StartPosition: pos,
		})
	}
}

// insertColumnList extracts the columns the INSERT names explicitly, from
// the column list of both the VALUES and SELECT forms and from the SET
// form. The second result is false when the statement relies on positional
// values instead.
func insertColumnList(ctx *mysql.InsertStatementContext) ([]namedColumn, bool) {
	var fields mysql.IFieldsContext
	if ctx.InsertFromConstructor() != nil {
		fields = ctx.InsertFromConstructor().Fields()
	} else if ctx.InsertQueryExpression() != nil {
		fields = ctx.InsertQueryExpression().Fields()
	}

	if fields != nil {
		var named []namedColumn
		for _, identifier := range fields.AllInsertIdentifier() {
			if identifier.ColumnRef() == nil {
				continue
			}
			_, _, columnName := mysqlparser.NormalizeMySQLColumnRef(identifier.ColumnRef())
			named = append(named, namedColumn{
				name: columnName,
				line: identifier.GetStart().GetLine(),
			})
		}
		return named, true
	}

	if ctx.UpdateList() != nil {
		var named []namedColumn
		for _, element := range ctx.UpdateList().AllUpdateElement() {
			if element.ColumnRef() == nil {
				continue
			}
			_, _, columnName := mysqlparser.NormalizeMySQLColumnRef(element.ColumnRef())
			named = append(named, namedColumn{
				name: columnName,
				line: element.GetStart().GetLine(),
			})
		}
		return named, true
	}

	return nil, false
}

func containsColumn(named []namedColumn, name string) bool {
	for _, column := range named {
		if strings.EqualFold(column.name, name) {
			return true
		}
	}
	return false
}

// InsertColumnAnalyzer runs the INSERT column checks over one statement.
type InsertColumnAnalyzer struct{}

// Analyze performs the INSERT column reference and NOT NULL coverage check
func (*InsertColumnAnalyzer) Analyze(_ context.Context, checkCtx *Context) ([]*types.Violation, error) {
	root, err := mysqlparser.ParseMySQL(checkCtx.Statement.Text)
	if err != nil {
		return nil, err
	}

	rule := &InsertColumnRule{checkCtx: checkCtx}
	checker := NewGenericChecker([]Rule{rule})

	for _, stmtNode := range root {
		rule.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		checker.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		antlr.ParseTreeWalkerDefault.Walk(checker, stmtNode.Tree)
	}

	return checker.GetViolationList(), nil
}

func init() {
	Register(types.Engine_MYSQL, types.StatementKind_INSERT, &InsertColumnAnalyzer{})
	Register(types.Engine_MARIADB, types.StatementKind_INSERT, &InsertColumnAnalyzer{})
	Register(types.Engine_TIDB, types.StatementKind_INSERT, &InsertColumnAnalyzer{})
}
