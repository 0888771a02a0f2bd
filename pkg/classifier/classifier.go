// Package classifier turns raw SQL text into an ordered list of classified
// statements. Splitting is semicolon aware through the MySQL lexer, so
// literals, comments and compound BEGIN...END bodies never break a
// statement apart. Each statement is tagged with its class (DDL, DML, DQL)
// and kind (SELECT, INSERT, ALTER, ...) from the leading keyword.
package classifier

import (
	"fmt"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/gedhean/mysql-parser"

	"github.com/nsxbet/sql-governor/pkg/mysqlparser"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// UnclassifiableError reports a statement whose leading keyword belongs to
// no governed statement kind.
type UnclassifiableError struct {
	Keyword   string
	Statement string
	Position  *types.Position
}

// Error returns the error message.
func (e *UnclassifiableError) Error() string {
	return fmt.Sprintf("unclassifiable statement: leading keyword %q is not a governed statement kind", e.Keyword)
}

// Classify splits the SQL text into statements and classifies each one.
// Empty statements (comments and stray semicolons) are dropped. The first
// unclassifiable statement fails the whole text.
func Classify(sql string) ([]*types.Statement, error) {
	list, err := mysqlparser.SplitSQL(sql)
	if err != nil {
		return nil, err
	}

	var statements []*types.Statement
	for _, single := range list {
		if single.Empty {
			continue
		}

		kind, err := classifyText(single.Text, single.Start)
		if err != nil {
			return nil, err
		}

		statements = append(statements, &types.Statement{
			Text:     single.Text,
			Class:    kind.Class(),
			Kind:     kind,
			BaseLine: single.BaseLine,
			Start:    single.Start,
			End:      single.End,
		})
	}

	return statements, nil
}

// ClassifyKind classifies a single statement text by its leading keyword.
func ClassifyKind(text string) (types.StatementKind, error) {
	return classifyText(text, nil)
}

func classifyText(text string, pos *types.Position) (types.StatementKind, error) {
	lexer := parser.NewMySQLLexer(antlr.NewInputStream(text))
	stream := antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel)
	stream.Fill()
	tokens := stream.GetAllTokens()

	leading := firstMeaningfulToken(tokens)
	if leading == nil {
		return types.StatementKind_KIND_UNSPECIFIED, &UnclassifiableError{
			Keyword:   "",
			Statement: text,
			Position:  pos,
		}
	}

	switch leading.GetTokenType() {
	case parser.MySQLLexerSELECT_SYMBOL:
		return types.StatementKind_SELECT, nil
	case parser.MySQLLexerINSERT_SYMBOL:
		return types.StatementKind_INSERT, nil
	case parser.MySQLLexerUPDATE_SYMBOL:
		return types.StatementKind_UPDATE, nil
	case parser.MySQLLexerDELETE_SYMBOL:
		return types.StatementKind_DELETE, nil
	case parser.MySQLLexerREPLACE_SYMBOL:
		return types.StatementKind_REPLACE, nil
	case parser.MySQLLexerCREATE_SYMBOL:
		return types.StatementKind_CREATE, nil
	case parser.MySQLLexerALTER_SYMBOL:
		return types.StatementKind_ALTER, nil
	case parser.MySQLLexerDROP_SYMBOL:
		return types.StatementKind_DROP, nil
	case parser.MySQLLexerTRUNCATE_SYMBOL:
		return types.StatementKind_TRUNCATE, nil
	case parser.MySQLLexerRENAME_SYMBOL:
		return types.StatementKind_RENAME, nil
	case parser.MySQLLexerWITH_SYMBOL:
		return classifyWithStatement(tokens, leading.GetTokenIndex())
	}

	return types.StatementKind_KIND_UNSPECIFIED, &UnclassifiableError{
		Keyword:   leading.GetText(),
		Statement: text,
		Position:  tokenPosition(leading),
	}
}

// firstMeaningfulToken returns the first default channel token, looking
// through opening parentheses so `(SELECT ...)` classifies as a SELECT.
func firstMeaningfulToken(tokens []antlr.Token) antlr.Token {
	for _, token := range tokens {
		if token.GetChannel() != antlr.TokenDefaultChannel {
			continue
		}
		switch token.GetTokenType() {
		case parser.MySQLLexerOPEN_PAR_SYMBOL, parser.MySQLParserEOF:
			continue
		}
		return token
	}
	return nil
}

// classifyWithStatement resolves what a WITH clause introduces. MySQL
// allows WITH before SELECT, UPDATE and DELETE, so the classifier scans
// for the first of those at parenthesis depth zero past the CTE bodies.
func classifyWithStatement(tokens []antlr.Token, withIndex int) (types.StatementKind, error) {
	depth := 0
	for _, token := range tokens[withIndex+1:] {
		if token.GetChannel() != antlr.TokenDefaultChannel {
			continue
		}
		switch token.GetTokenType() {
		case parser.MySQLLexerOPEN_PAR_SYMBOL:
			depth++
		case parser.MySQLLexerCLOSE_PAR_SYMBOL:
			depth--
		case parser.MySQLLexerSELECT_SYMBOL:
			if depth == 0 {
				return types.StatementKind_SELECT, nil
			}
		case parser.MySQLLexerUPDATE_SYMBOL:
			if depth == 0 {
				return types.StatementKind_UPDATE, nil
			}
		case parser.MySQLLexerDELETE_SYMBOL:
			if depth == 0 {
				return types.StatementKind_DELETE, nil
			}
		}
	}

	return types.StatementKind_KIND_UNSPECIFIED, &UnclassifiableError{
		Keyword:  "WITH",
		Position: tokenPosition(tokens[withIndex]),
	}
}

func tokenPosition(token antlr.Token) *types.Position {
	// From antlr4, the line is ONE based, and the column is ZERO based.
	return &types.Position{
		Line:   int32(token.GetLine() - 1),
		Column: int32(token.GetColumn()),
	}
}
