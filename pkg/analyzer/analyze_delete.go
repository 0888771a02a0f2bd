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

// DeleteReferenceRule surfaces the foreign keys in other tables that point at
// the table a DELETE targets. The findings are warnings, the relational risk
// is worth reading but the engine enforces the constraints on its own.
type DeleteReferenceRule struct {
	BaseRule
	checkCtx *Context
}

// Name returns the rule name
func (*DeleteReferenceRule) Name() string {
	return "DeleteReferenceRule"
}

// OnEnter is called when entering a parse tree node
func (r *DeleteReferenceRule) OnEnter(ctx antlr.ParserRuleContext, nodeType string) error {
	if nodeType == NodeTypeDeleteStatement {
		r.checkDeleteStatement(ctx.(*mysql.DeleteStatementContext))
	}
	return nil
}

// OnExit is called when exiting a parse tree node
func (*DeleteReferenceRule) OnExit(_ antlr.ParserRuleContext, _ string) error {
	return nil
}

func (r *DeleteReferenceRule) checkDeleteStatement(ctx *mysql.DeleteStatementContext) {
	if !mysqlparser.IsTopMySQLRule(&ctx.BaseParserRuleContext) {
		return
	}
	// Multi-table DELETE has no single target ref.
	if ctx.TableRef() == nil {
		return
	}
	databaseName, tableName := mysqlparser.NormalizeMySQLTableRef(ctx.TableRef())
	if tableName == "" {
		return
	}
	if databaseName != "" && databaseName != r.checkCtx.Database {
		return
	}
	pos := ConvertANTLRLineToPosition(r.baseLine + ctx.GetStart().GetLine())

	for _, referencing := range r.checkCtx.Referencing[tableName] {
		fk := referencing.ForeignKey
		var content string
		switch strings.ToUpper(fk.OnDelete) {
		case "CASCADE":
			content = fmt.Sprintf("Deleting from %q cascades to table %q through foreign key %q", tableName, referencing.Table, fk.Name)
		case "SET NULL":
			content = fmt.Sprintf("Deleting from %q sets %s on table %q to NULL through foreign key %q", tableName, quotedColumnList(fk.Columns), referencing.Table, fk.Name)
		default:
			content = fmt.Sprintf("Deleting from %q will be rejected while rows in table %q still reference it through foreign key %q", tableName, referencing.Table, fk.Name)
		}
		r.AddViolation(&types.Violation{
			Severity:      types.Severity_WARNING,
			Code:          types.DanglingForeignKeyReference,
			Identifier:    fk.Name,
			Content:       content,
			StartPosition: pos,
		})
	}
}

func quotedColumnList(columns []string) string {
	quoted := make([]string, 0, len(columns))
	for _, column := range columns {
		quoted = append(quoted, fmt.Sprintf("%q", column))
	}
	return strings.Join(quoted, ", ")
}

// DeleteReferenceAnalyzer runs the DELETE reference checks over one statement.
type DeleteReferenceAnalyzer struct{}

// Analyze performs the DELETE foreign key reference check
func (*DeleteReferenceAnalyzer) Analyze(_ context.Context, checkCtx *Context) ([]*types.Violation, error) {
	root, err := mysqlparser.ParseMySQL(checkCtx.Statement.Text)
	if err != nil {
		return nil, err
	}

	rule := &DeleteReferenceRule{checkCtx: checkCtx}
	checker := NewGenericChecker([]Rule{rule})

	for _, stmtNode := range root {
		rule.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		checker.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		antlr.ParseTreeWalkerDefault.Walk(checker, stmtNode.Tree)
	}

	return checker.GetViolationList(), nil
}

func init() {
	Register(types.Engine_MYSQL, types.StatementKind_DELETE, &DeleteReferenceAnalyzer{})
	Register(types.Engine_MARIADB, types.StatementKind_DELETE, &DeleteReferenceAnalyzer{})
	Register(types.Engine_TIDB, types.StatementKind_DELETE, &DeleteReferenceAnalyzer{})
}
