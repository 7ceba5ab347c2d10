package token

const (
	ILLEGAL TokenType = iota
	EOF

	// Identifiers + literals
	IDENT
	INT
	DECIMAL
	STRING
	NULL
	TRUE
	FALSE

	// Delimiters
	COMMA
	LPAREN
	RPAREN

	EQUAL
	NOTEQUAL
	LESS
	LESSEQUAL
	GREATER
	GREATEREQUAL
	TILDE
	MINUS
	AND
	OR
	NOT
)

type TokenType int

var names = [...]string{
	ILLEGAL:      "illegal",
	EOF:          "end of input",
	IDENT:        "identifier",
	INT:          "integer",
	DECIMAL:      "decimal",
	STRING:       "string",
	NULL:         "null",
	TRUE:         "true",
	FALSE:        "false",
	COMMA:        "','",
	LPAREN:       "'('",
	RPAREN:       "')'",
	EQUAL:        "'='",
	NOTEQUAL:     "'!='",
	LESS:         "'<'",
	LESSEQUAL:    "'<='",
	GREATER:      "'>'",
	GREATEREQUAL: "'>='",
	TILDE:        "'~'",
	MINUS:        "'-'",
	AND:          "'&'",
	OR:           "'|'",
	NOT:          "'!'",
}

func (t TokenType) String() string {
	if t < 0 || int(t) >= len(names) {
		return "unknown"
	}
	return names[t]
}

type Token struct {
	Type    TokenType
	Literal string
	// Pos is the rune offset of the token in the input.
	Pos int
}
