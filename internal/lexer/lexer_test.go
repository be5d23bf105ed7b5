package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjver/brace/internal/lexer"
	"github.com/sjver/brace/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	l := lexer.New(src)
	var out []token.Kind
	for {
		tok := l.NextToken()
		out = append(out, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := kinds(t, "Var x Cls Fun If Else While For Foreach Return Print PrintLn Exit true false null this super _UNKNOWN")
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENTIFIER, token.CLASS, token.FUN, token.IF, token.ELSE,
		token.WHILE, token.FOR, token.FOREACH, token.RETURN, token.PRINT, token.PRINTLN,
		token.EXIT, token.TRUE, token.FALSE, token.NULL, token.THIS, token.SUPER,
		token.IDENTIFIER, token.EOF,
	}, toks)
}

func TestCompoundOperators(t *testing.T) {
	toks := kinds(t, "-> -- -= ++ += != == <= >= && ||")
	require.Equal(t, []token.Kind{
		token.ARROW, token.MINUS_MINUS, token.MINUS_EQUAL, token.PLUS_PLUS,
		token.PLUS_EQUAL, token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL,
		token.GREATER_EQUAL, token.AND_AND, token.OR_OR, token.EOF,
	}, toks)
}

func TestSingleAmpersandAndPipeAreErrors(t *testing.T) {
	l := lexer.New("&")
	tok := l.NextToken()
	require.Equal(t, token.ERROR, tok.Kind)
	require.NotEmpty(t, tok.Message)

	l = lexer.New("|")
	tok = l.NextToken()
	require.Equal(t, token.ERROR, tok.Kind)
	require.NotEmpty(t, tok.Message)
}

func TestNumberLiteral(t *testing.T) {
	l := lexer.New("123 4.5")
	tok := l.NextToken()
	require.Equal(t, token.NUMBER, tok.Kind)
	require.Equal(t, "123", tok.Lexeme)

	tok = l.NextToken()
	require.Equal(t, token.NUMBER, tok.Kind)
	require.Equal(t, "4.5", tok.Lexeme)
}

func TestStringLiteral(t *testing.T) {
	l := lexer.New(`"hello world"`)
	tok := l.NextToken()
	require.Equal(t, token.STRING, tok.Kind)
	require.Equal(t, "hello world", tok.Lexeme)
}

func TestUnterminatedStringIsError(t *testing.T) {
	l := lexer.New(`"hello`)
	tok := l.NextToken()
	require.Equal(t, token.ERROR, tok.Kind)
}

func TestLineComment(t *testing.T) {
	toks := kinds(t, "Var x # this is a comment\nVar y")
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENTIFIER, token.VAR, token.IDENTIFIER, token.EOF,
	}, toks)
}

func TestBlockComment(t *testing.T) {
	toks := kinds(t, "Var #* block\ncomment *# x")
	require.Equal(t, []token.Kind{token.VAR, token.IDENTIFIER, token.EOF}, toks)
}

func TestLineNumbersAdvanceAcrossNewlines(t *testing.T) {
	l := lexer.New("Var\nx\n=\n1")
	var lines []int
	for {
		tok := l.NextToken()
		lines = append(lines, tok.Line)
		if tok.Kind == token.EOF {
			break
		}
	}
	require.Equal(t, []int{1, 2, 3, 4, 4}, lines)
}
