package lexer

import (
	"strings"

	"github.com/thisisjab/logtable/filter/token"
)

type Lexer struct {
	input   []rune
	pos     int  // position of the current character in the input string
	readPos int  // position of the next character to be read
	char    rune // current character being processed
}

var keywords = map[string]token.TokenType{
	"null":  token.NULL,
	"true":  token.TRUE,
	"false": token.FALSE,
}

func New(input string) *Lexer {
	l := &Lexer{input: []rune(input)}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()
	start := l.pos

	switch l.char {
	case '=':
		tok = token.Token{Type: token.EQUAL, Literal: "="}
	case '~':
		tok = token.Token{Type: token.TILDE, Literal: "~"}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LESSEQUAL, Literal: "<="}
		} else {
			tok = token.Token{Type: token.LESS, Literal: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GREATEREQUAL, Literal: ">="}
		} else {
			tok = token.Token{Type: token.GREATER, Literal: ">"}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOTEQUAL, Literal: "!="}
		} else {
			tok = token.Token{Type: token.NOT, Literal: "!"}
		}
	case ',':
		tok = token.Token{Type: token.COMMA, Literal: ","}
	case '(':
		tok = token.Token{Type: token.LPAREN, Literal: "("}
	case ')':
		tok = token.Token{Type: token.RPAREN, Literal: ")"}
	case '&':
		tok = token.Token{Type: token.AND, Literal: "&"}
	case '|':
		tok = token.Token{Type: token.OR, Literal: "|"}
	case '-':
		tok = token.Token{Type: token.MINUS, Literal: "-"}
	case 0:
		return token.Token{Type: token.EOF, Literal: "", Pos: start}
	case '"':
		tok = l.readQuotedString()
	default:
		if isLetter(l.char) {
			tok = l.readIdentifier()
		} else if isDigit(l.char) {
			tok = l.readPossibleNumber()
		} else {
			tok = token.Token{Type: token.ILLEGAL, Literal: string(l.char)}
			l.readChar()
		}
		tok.Pos = start
		return tok
	}

	l.readChar()
	tok.Pos = start
	return tok
}

func (l *Lexer) readIdentifier() token.Token {
	pos := l.pos

	for {
		// Stop if we hit a boundary: space, comma, EOF, or an operator (=, &, |, etc.)
		if l.char == 0 || isWhitespace(l.char) || l.char == ',' || isOperator(l.char) {
			break
		}
		l.readChar()
	}

	literal := string(l.input[pos:l.pos])

	return token.Token{Type: l.lookupIdent(literal), Literal: literal}
}

func (l *Lexer) lookupIdent(ident string) token.TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return token.IDENT
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' || r == '.' || r == '-'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (l *Lexer) skipWhitespace() {
	for isWhitespace(l.char) {
		l.readChar()
	}
}

func (l *Lexer) readPossibleNumber() token.Token {
	pos := l.pos
	hasDot := false
	isPureNumber := true

	for {
		if isDigit(l.char) {
			l.readChar()
		} else if l.char == '.' {
			if hasDot { // Second dot? It's definitely not a valid float, treat as string/ident
				isPureNumber = false
			}
			hasDot = true
			l.readChar()
		} else if l.char == ',' || isWhitespace(l.char) || l.char == 0 || isOperator(l.char) {
			break
		} else {
			// A dash, a letter or a colon: still a usable literal (dates, versions), not a number.
			isPureNumber = false
			l.readChar()
		}
	}

	literal := string(l.input[pos:l.pos])

	if !isPureNumber {
		return token.Token{Type: token.STRING, Literal: literal}
	}
	if hasDot {
		return token.Token{Type: token.DECIMAL, Literal: literal}
	}
	return token.Token{Type: token.INT, Literal: literal}
}

// readQuotedString reads up to the closing quote. A backslash escapes the next
// character. An unterminated string yields an ILLEGAL token.
func (l *Lexer) readQuotedString() token.Token {
	var sb strings.Builder

	for {
		l.readChar()
		switch l.char {
		case 0:
			return token.Token{Type: token.ILLEGAL, Literal: `"` + sb.String()}
		case '"':
			return token.Token{Type: token.STRING, Literal: sb.String()}
		case '\\':
			if l.peekChar() == 0 {
				continue
			}
			l.readChar()
		}
		sb.WriteRune(l.char)
	}
}

func isOperator(r rune) bool {
	return r == '=' || r == '~' || r == '!' || r == '&' || r == '|' || r == '(' || r == ')' || r == '<' || r == '>'
}
