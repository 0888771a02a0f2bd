package mysqlparser

import (
	"strings"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/gedhean/mysql-parser"
)

// NormalizeMySQLTableName normalizes the given table name.
func NormalizeMySQLTableName(ctx parser.ITableNameContext) (string, string) {
	if ctx.QualifiedIdentifier() != nil {
		return NormalizeMySQLQualifiedIdentifier(ctx.QualifiedIdentifier())
	}
	if ctx.DotIdentifier() != nil {
		return "", NormalizeMySQLIdentifier(ctx.DotIdentifier().Identifier())
	}
	return "", ""
}

// NormalizeMySQLTableRef normalizes the given table reference.
func NormalizeMySQLTableRef(ctx parser.ITableRefContext) (string, string) {
	if ctx.QualifiedIdentifier() != nil {
		return NormalizeMySQLQualifiedIdentifier(ctx.QualifiedIdentifier())
	}
	if ctx.DotIdentifier() != nil {
		return "", NormalizeMySQLIdentifier(ctx.DotIdentifier().Identifier())
	}
	return "", ""
}

// NormalizeMySQLQualifiedIdentifier normalizes the given qualified
// identifier into a (database, object) pair. The database part is empty
// when the identifier is unqualified.
func NormalizeMySQLQualifiedIdentifier(ctx parser.IQualifiedIdentifierContext) (string, string) {
	list := []string{NormalizeMySQLIdentifier(ctx.Identifier())}
	if ctx.DotIdentifier() != nil {
		list = append(list, NormalizeMySQLIdentifier(ctx.DotIdentifier().Identifier()))
	}

	if len(list) == 1 {
		list = append([]string{""}, list...)
	}

	return list[0], list[1]
}

// NormalizeMySQLColumnName normalizes the given column name into a
// (database, table, column) triple.
func NormalizeMySQLColumnName(ctx parser.IColumnNameContext) (string, string, string) {
	if ctx.Identifier() != nil {
		return "", "", NormalizeMySQLIdentifier(ctx.Identifier())
	}
	return NormalizeMySQLFieldIdentifier(ctx.FieldIdentifier())
}

// NormalizeMySQLColumnRef normalizes the given column reference into a
// (database, table, column) triple.
func NormalizeMySQLColumnRef(ctx parser.IColumnRefContext) (string, string, string) {
	if ctx.FieldIdentifier() == nil {
		return "", "", ""
	}
	return NormalizeMySQLFieldIdentifier(ctx.FieldIdentifier())
}

// NormalizeMySQLFieldIdentifier normalizes the given field identifier into
// a (database, table, column) triple.
func NormalizeMySQLFieldIdentifier(ctx parser.IFieldIdentifierContext) (string, string, string) {
	list := []string{}
	if ctx.QualifiedIdentifier() != nil {
		id1, id2 := NormalizeMySQLQualifiedIdentifier(ctx.QualifiedIdentifier())
		if id1 == "" {
			list = append(list, id2)
		} else {
			list = append(list, id1, id2)
		}
	}

	if ctx.DotIdentifier() != nil {
		list = append(list, NormalizeMySQLIdentifier(ctx.DotIdentifier().Identifier()))
	}

	for len(list) < 3 {
		list = append([]string{""}, list...)
	}

	return list[0], list[1], list[2]
}

// NormalizeMySQLColumnInternalRef normalizes the given internal column
// reference.
func NormalizeMySQLColumnInternalRef(ctx parser.IColumnInternalRefContext) string {
	if ctx.Identifier() != nil {
		return NormalizeMySQLIdentifier(ctx.Identifier())
	}
	return ""
}

// NormalizeMySQLIdentifier normalizes the given identifier.
func NormalizeMySQLIdentifier(ctx parser.IIdentifierContext) string {
	if ctx == nil {
		return ""
	}
	if ctx.PureIdentifier() != nil {
		return NormalizeMySQLPureIdentifier(ctx.PureIdentifier())
	}
	// Identifier keywords share the vocabulary with plain identifiers.
	return ctx.IdentifierKeyword().GetText()
}

// NormalizeMySQLPureIdentifier normalizes the given pure identifier,
// stripping backtick or double quote wrapping.
func NormalizeMySQLPureIdentifier(ctx parser.IPureIdentifierContext) string {
	switch {
	case ctx.IDENTIFIER() != nil:
		return ctx.IDENTIFIER().GetText()
	case ctx.BACK_TICK_QUOTED_ID() != nil:
		return trimQuoted(ctx.BACK_TICK_QUOTED_ID().GetText(), "`")
	case doubleQuotedText(ctx) != nil:
		return trimQuoted(doubleQuotedText(ctx).GetText(), `"`)
	}
	return ctx.GetText()
}

// doubleQuotedText mirrors the generated DOUBLE_QUOTED_TEXT accessor that
// other MySQLParser contexts have; IPureIdentifierContext does not declare
// it, so the token is fetched generically from the parse tree.
func doubleQuotedText(ctx parser.IPureIdentifierContext) antlr.TerminalNode {
	type tokenGetter interface {
		GetToken(ttype int, i int) antlr.TerminalNode
	}
	if g, ok := ctx.(tokenGetter); ok {
		return g.GetToken(parser.MySQLParserDOUBLE_QUOTED_TEXT, 0)
	}
	return nil
}

// NormalizeIndexRef normalizes the given index reference into database,
// table and index name.
func NormalizeIndexRef(ctx parser.IIndexRefContext) (string, string, string) {
	if ctx != nil && ctx.FieldIdentifier() != nil {
		return NormalizeMySQLFieldIdentifier(ctx.FieldIdentifier())
	}
	return "", "", ""
}

// NormalizeIndexName normalizes the given index name.
func NormalizeIndexName(ctx parser.IIndexNameContext) string {
	if ctx != nil && ctx.Identifier() != nil {
		return NormalizeMySQLIdentifier(ctx.Identifier())
	}
	return ""
}

// NormalizeKeyListVariants normalizes the given key list variants into
// column names.
func NormalizeKeyListVariants(ctx parser.IKeyListVariantsContext) []string {
	if ctx.KeyList() != nil {
		return NormalizeKeyList(ctx.KeyList())
	}
	if ctx.KeyListWithExpression() != nil {
		return NormalizeKeyListWithExpression(ctx.KeyListWithExpression())
	}
	return nil
}

// NormalizeKeyList normalizes the given key list into column names.
func NormalizeKeyList(ctx parser.IKeyListContext) []string {
	var result []string
	for _, key := range ctx.AllKeyPart() {
		result = append(result, NormalizeMySQLIdentifier(key.Identifier()))
	}
	return result
}

// NormalizeKeyListWithExpression normalizes the given key list, keeping
// expression parts as their raw text.
func NormalizeKeyListWithExpression(ctx parser.IKeyListWithExpressionContext) []string {
	var result []string
	for _, expression := range ctx.AllKeyPartOrExpression() {
		if expression.KeyPart() != nil {
			result = append(result, NormalizeMySQLIdentifier(expression.KeyPart().Identifier()))
		} else if expression.ExprWithParentheses() != nil {
			result = append(result, expression.GetParser().GetTokenStream().GetTextFromRuleContext(expression.ExprWithParentheses()))
		}
	}
	return result
}

// NormalizeMySQLDataType returns a lowercased canonical spelling of the
// data type, folding the common synonyms MySQL itself folds.
func NormalizeMySQLDataType(ctx parser.IDataTypeContext) string {
	if ctx == nil {
		return ""
	}
	text := strings.ToLower(ctx.GetParser().GetTokenStream().GetTextFromRuleContext(ctx))
	text = strings.Join(strings.Fields(text), " ")
	switch {
	case text == "integer":
		return "int"
	case text == "boolean" || text == "bool":
		return "tinyint(1)"
	case strings.HasPrefix(text, "integer("):
		return "int(" + strings.TrimPrefix(text, "integer(")
	case strings.HasPrefix(text, "dec("):
		return "decimal(" + strings.TrimPrefix(text, "dec(")
	case strings.HasPrefix(text, "numeric("):
		return "decimal(" + strings.TrimPrefix(text, "numeric(")
	}
	return text
}

// trimQuoted strips the wrapping quote rune and unescapes doubled quotes.
func trimQuoted(text, quote string) string {
	text = strings.TrimPrefix(text, quote)
	text = strings.TrimSuffix(text, quote)
	return strings.ReplaceAll(text, quote+quote, quote)
}
