package analyzer

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/antlr4-go/antlr/v4"
	mysql "github.com/gedhean/mysql-parser"

	"github.com/nsxbet/sql-governor/pkg/types"
)

// Node type constants for consistent node type checking
const (
	NodeTypeQuery           = "Query"
	NodeTypeInsertStatement = "InsertStatement"
	NodeTypeUpdateStatement = "UpdateStatement"
	NodeTypeDeleteStatement = "DeleteStatement"
)

// Rule defines the interface for individual semantic rules. Each rule
// implements specific checking logic without embedding the base listener.
type Rule interface {
	// OnEnter is called when entering a parse tree node
	OnEnter(ctx antlr.ParserRuleContext, nodeType string) error

	// OnExit is called when exiting a parse tree node
	OnExit(ctx antlr.ParserRuleContext, nodeType string) error

	// Name returns the rule name for logging/debugging
	Name() string

	// GetViolationList returns the accumulated violations from this rule
	GetViolationList() []*types.Violation
}

// GenericChecker embeds the base MySQL parser listener and dispatches events
// to registered rules. This design ensures only one copy of the listener type
// metadata in the binary.
type GenericChecker struct {
	*mysql.BaseMySQLParserListener

	rules    []Rule
	baseLine int
}

// NewGenericChecker creates a new instance of GenericChecker with the given rules.
func NewGenericChecker(rules []Rule) *GenericChecker {
	return &GenericChecker{
		rules: rules,
	}
}

// SetBaseLine sets the base line number for violation positions.
func (g *GenericChecker) SetBaseLine(baseLine int) {
	g.baseLine = baseLine
}

// GetBaseLine returns the current base line number.
func (g *GenericChecker) GetBaseLine() int {
	return g.baseLine
}

// EnterEveryRule is called when any rule is entered.
// It dispatches the event to all registered rules.
func (g *GenericChecker) EnterEveryRule(ctx antlr.ParserRuleContext) {
	nodeType := g.getNodeType(ctx)
	for _, rule := range g.rules {
		if err := rule.OnEnter(ctx, nodeType); err != nil {
			slog.Debug("Rule error on enter",
				"rule", rule.Name(),
				"nodeType", nodeType,
				"error", err)
		}
	}
}

// ExitEveryRule is called when any rule is exited.
// It dispatches the event to all registered rules.
func (g *GenericChecker) ExitEveryRule(ctx antlr.ParserRuleContext) {
	nodeType := g.getNodeType(ctx)
	for _, rule := range g.rules {
		if err := rule.OnExit(ctx, nodeType); err != nil {
			slog.Debug("Rule error on exit",
				"rule", rule.Name(),
				"nodeType", nodeType,
				"error", err)
		}
	}
}

// GetViolationList collects and returns all violations from registered rules.
func (g *GenericChecker) GetViolationList() []*types.Violation {
	var all []*types.Violation
	for _, rule := range g.rules {
		all = append(all, rule.GetViolationList()...)
	}
	return all
}

// getNodeType returns the type name of the parse tree node.
func (*GenericChecker) getNodeType(ctx antlr.ParserRuleContext) string {
	t := reflect.TypeOf(ctx)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	// Remove "Context" suffix if present
	name = strings.TrimSuffix(name, "Context")
	return name
}

// BaseRule provides common functionality for semantic rules. Other rules
// embed this struct to get common behavior.
type BaseRule struct {
	violationList []*types.Violation
	baseLine      int
}

// SetBaseLine sets the base line for the rule.
func (r *BaseRule) SetBaseLine(baseLine int) {
	r.baseLine = baseLine
}

// GetViolationList returns the accumulated violations.
func (r *BaseRule) GetViolationList() []*types.Violation {
	return r.violationList
}

// AddViolation adds a new violation to the list.
func (r *BaseRule) AddViolation(violation *types.Violation) {
	r.violationList = append(r.violationList, violation)
}

// ConvertANTLRLineToPosition converts ANTLR line number to Position
func ConvertANTLRLineToPosition(line int) *types.Position {
	pLine := ConvertANTLRLineToPositionLine(line)
	return &types.Position{
		Line: int32(pLine),
	}
}

func ConvertANTLRLineToPositionLine(line int) int {
	positionLine := line - 1
	if line == 0 {
		positionLine = 0
	}
	return positionLine
}

// collectColumnRefs gathers every column reference under node, without
// descending into subqueries. Columns inside a subquery resolve against the
// subquery's own FROM list, not the outer target table.
func collectColumnRefs(node antlr.Tree, out *[]*mysql.ColumnRefContext) {
	switch n := node.(type) {
	case *mysql.SubqueryContext:
		return
	case *mysql.ColumnRefContext:
		*out = append(*out, n)
		return
	}
	for i := 0; i < node.GetChildCount(); i++ {
		collectColumnRefs(node.GetChild(i), out)
	}
}

// collectSingleTables gathers every single-table factor under node, covering
// joined table references as well.
func collectSingleTables(node antlr.Tree, out *[]*mysql.SingleTableContext) {
	if n, ok := node.(*mysql.SingleTableContext); ok {
		*out = append(*out, n)
	}
	for i := 0; i < node.GetChildCount(); i++ {
		collectSingleTables(node.GetChild(i), out)
	}
}
