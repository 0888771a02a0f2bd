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

// UpdateColumnRule checks that every column an UPDATE references, in the
// SET list and in the WHERE clause, exists on the updated tables.
type UpdateColumnRule struct {
	BaseRule
	checkCtx *Context
}

// Name returns the rule name
func (*UpdateColumnRule) Name() string {
	return "UpdateColumnRule"
}

// OnEnter is called when entering a parse tree node
func (r *UpdateColumnRule) OnEnter(ctx antlr.ParserRuleContext, nodeType string) error {
	if nodeType == NodeTypeUpdateStatement {
		r.checkUpdateStatement(ctx.(*mysql.UpdateStatementContext))
	}
	return nil
}

// OnExit is called when exiting a parse tree node
func (*UpdateColumnRule) OnExit(_ antlr.ParserRuleContext, _ string) error {
	return nil
}

func (r *UpdateColumnRule) checkUpdateStatement(ctx *mysql.UpdateStatementContext) {
	if !mysqlparser.IsTopMySQLRule(&ctx.BaseParserRuleContext) {
		return
	}
	if ctx.TableReferenceList() == nil {
		return
	}

	var singles []*mysql.SingleTableContext
	collectSingleTables(ctx.TableReferenceList(), &singles)

	// aliases maps alias and table names (lowercased) to the resolved table.
	// opaque flips when a target's structure is unknown, which suppresses
	// the unqualified column checks since absence can no longer be proven.
	aliases := make(map[string]string)
	var targets []*types.TableMetadata
	opaque := false

	for _, single := range singles {
		if single.TableRef() == nil {
			continue
		}
		databaseName, tableName := mysqlparser.NormalizeMySQLTableRef(single.TableRef())
		if databaseName != "" && databaseName != r.checkCtx.Database {
			opaque = true
			continue
		}
		if single.TableAlias() != nil {
			alias := mysqlparser.NormalizeMySQLIdentifier(single.TableAlias().Identifier())
			if alias != "" {
				aliases[strings.ToLower(alias)] = tableName
			}
		}

		table := r.checkCtx.GetTable(tableName)
		if table == nil {
			r.AddViolation(missingTableViolation(r.checkCtx.Database, tableName,
				ConvertANTLRLineToPosition(r.baseLine+single.GetStart().GetLine())))
			opaque = true
			continue
		}
		targets = append(targets, table)
	}
	if len(targets) == 0 {
		return
	}

	var refs []*mysql.ColumnRefContext
	if ctx.UpdateList() != nil {
		collectColumnRefs(ctx.UpdateList(), &refs)
	}
	if ctx.WhereClause() != nil {
		collectColumnRefs(ctx.WhereClause(), &refs)
	}

	for _, ref := range refs {
		r.checkColumnRef(ref, aliases, targets, opaque)
	}
}

func (r *UpdateColumnRule) checkColumnRef(ref *mysql.ColumnRefContext, aliases map[string]string, targets []*types.TableMetadata, opaque bool) {
	databaseName, refTable, columnName := mysqlparser.NormalizeMySQLColumnRef(ref)
	if columnName == "" {
		return
	}
	if databaseName != "" && databaseName != r.checkCtx.Database {
		return
	}
	pos := ConvertANTLRLineToPosition(r.baseLine + ref.GetStart().GetLine())

	if refTable != "" {
		tableName := refTable
		if resolved, ok := aliases[strings.ToLower(refTable)]; ok {
			tableName = resolved
		}
		var target *types.TableMetadata
		for _, t := range targets {
			if strings.EqualFold(t.Name, tableName) {
				target = t
				break
			}
		}
		// A qualifier that matches no target belongs to an outer scope.
		if target == nil {
			return
		}
		if FindColumn(target, columnName) == nil {
			r.AddViolation(&types.Violation{
				Severity:      types.Severity_ERROR,
				Code:          types.MissingColumn,
				Identifier:    columnName,
				Content:       fmt.Sprintf("Column %q does not exist on table %q", columnName, target.Name),
				StartPosition: pos,
			})
		}
		return
	}

	if opaque {
		return
	}
	for _, target := range targets {
		if FindColumn(target, columnName) != nil {
			return
		}
	}

	content := fmt.Sprintf("Column %q does not exist on table %q", columnName, targets[0].Name)
	if len(targets) > 1 {
		content = fmt.Sprintf("Column %q does not exist on any updated table", columnName)
	}
	r.AddViolation(&types.Violation{
		Severity:      types.Severity_ERROR,
		Code:          types.MissingColumn,
		Identifier:    columnName,
		Content:       content,
		StartPosition: pos,
	})
}

// UpdateColumnAnalyzer runs the UPDATE column checks over one statement.
type UpdateColumnAnalyzer struct{}

// Analyze performs the UPDATE column reference check
func (*UpdateColumnAnalyzer) Analyze(_ context.Context, checkCtx *Context) ([]*types.Violation, error) {
	root, err := mysqlparser.ParseMySQL(checkCtx.Statement.Text)
	if err != nil {
		return nil, err
	}

	rule := &UpdateColumnRule{checkCtx: checkCtx}
	checker := NewGenericChecker([]Rule{rule})

	for _, stmtNode := range root {
		rule.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		checker.SetBaseLine(checkCtx.Statement.BaseLine + stmtNode.BaseLine)
		antlr.ParseTreeWalkerDefault.Walk(checker, stmtNode.Tree)
	}

	return checker.GetViolationList(), nil
}

func init() {
	Register(types.Engine_MYSQL, types.StatementKind_UPDATE, &UpdateColumnAnalyzer{})
	Register(types.Engine_MARIADB, types.StatementKind_UPDATE, &UpdateColumnAnalyzer{})
	Register(types.Engine_TIDB, types.StatementKind_UPDATE, &UpdateColumnAnalyzer{})
}
