package lexer

import (
	"testing"

	"github.com/thisisjab/logtable/filter/token"
)

func TestNextToken(t *testing.T) {
	input := `level>=warn & logger=api.users,docker-compose
	| !(message~"timed out") & property.status!=200
	property.ratio<0.5 property.ok=false property.user=null
	timestamp>2024-05-01T12:00:00Z sequence<=-3 message="say \"hi\"" $`

	l := New(input)

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.IDENT, "level"},
		{token.GREATEREQUAL, ">="},
		{token.IDENT, "warn"},
		{token.AND, "&"},
		{token.IDENT, "logger"},
		{token.EQUAL, "="},
		{token.IDENT, "api.users"},
		{token.COMMA, ","},
		{token.IDENT, "docker-compose"},
		{token.OR, "|"},
		{token.NOT, "!"},
		{token.LPAREN, "("},
		{token.IDENT, "message"},
		{token.TILDE, "~"},
		{token.STRING, "timed out"},
		{token.RPAREN, ")"},
		{token.AND, "&"},
		{token.IDENT, "property.status"},
		{token.NOTEQUAL, "!="},
		{token.INT, "200"},
		{token.IDENT, "property.ratio"},
		{token.LESS, "<"},
		{token.DECIMAL, "0.5"},
		{token.IDENT, "property.ok"},
		{token.EQUAL, "="},
		{token.FALSE, "false"},
		{token.IDENT, "property.user"},
		{token.EQUAL, "="},
		{token.NULL, "null"},
		{token.IDENT, "timestamp"},
		{token.GREATER, ">"},
		{token.STRING, "2024-05-01T12:00:00Z"},
		{token.IDENT, "sequence"},
		{token.LESSEQUAL, "<="},
		{token.MINUS, "-"},
		{token.INT, "3"},
		{token.IDENT, "message"},
		{token.EQUAL, "="},
		{token.STRING, `say "hi"`},
		{token.ILLEGAL, "$"},
		{token.EOF, ""},
	}

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("#%d - expected type `%s`, got `%s` (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("#%d - expected literal `%s`, got `%s`", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	l := New(`a = "b"`)

	for _, want := range []int{0, 2, 4, 7} {
		if tok := l.NextToken(); tok.Pos != want {
			t.Fatalf("token %q at %d, want %d", tok.Literal, tok.Pos, want)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`message = "open`)
	l.NextToken()
	l.NextToken()

	if tok := l.NextToken(); tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s %q", tok.Type, tok.Literal)
	}
	if tok := l.NextToken(); tok.Type != token.EOF {
		t.Fatalf("expected EOF after unterminated string, got %s", tok.Type)
	}
}
