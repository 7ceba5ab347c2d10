package parser

import (
	"fmt"
	"strconv"

	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/filter/ast"
	"github.com/thisisjab/logtable/filter/lexer"
	"github.com/thisisjab/logtable/filter/token"
)

// Parser builds a condition tree from the token stream. Precedence from
// loosest to tightest is '|', '&', '!'. Parentheses group.
//
//	expr       = and { "|" and }
//	and        = unary { "&" unary }
//	unary      = "!" unary | "(" expr ")" | comparison
//	comparison = IDENT op value { "," value }
type Parser struct {
	l         *lexer.Lexer
	curToken  token.Token
	peekToken token.Token
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l: l,
	}

	p.nextToken()
	p.nextToken()

	return p
}

// Parse is a shorthand for New(lexer.New(input)).ParseExpression().
func Parse(input string) (ast.Node, error) {
	return New(lexer.New(input)).ParseExpression()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseExpression parses the whole input. Errors are BadInputCode faults
// naming the offending position.
func (p *Parser) ParseExpression() (ast.Node, error) {
	if p.curToken.Type == token.EOF {
		return nil, p.errorf("empty expression")
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.curToken.Type != token.EOF {
		return nil, p.unexpected("end of input")
	}

	return n, nil
}

func (p *Parser) parseOr() (ast.Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	children := []ast.Node{first}
	for p.curToken.Type == token.OR {
		p.nextToken()
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	if len(children) == 1 {
		return first, nil
	}
	return ast.OrNode{Children: children}, nil
}

func (p *Parser) parseAnd() (ast.Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	children := []ast.Node{first}
	for p.curToken.Type == token.AND {
		p.nextToken()
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	if len(children) == 1 {
		return first, nil
	}
	return ast.AndNode{Children: children}, nil
}

func (p *Parser) parseUnary() (ast.Node, error) {
	switch p.curToken.Type {
	case token.NOT:
		p.nextToken()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NotNode{Child: child}, nil

	case token.LPAREN:
		p.nextToken()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != token.RPAREN {
			return nil, p.unexpected("')'")
		}
		p.nextToken()
		return n, nil

	case token.IDENT:
		return p.parseComparison()

	default:
		return nil, p.unexpected("field name, '!' or '('")
	}
}

func (p *Parser) parseComparison() (ast.Node, error) {
	n := ast.ComparisonNode{FieldName: p.curToken.Literal}
	p.nextToken()

	switch p.curToken.Type {
	case token.EQUAL:
		n.Operator = ast.OperatorEq
	case token.NOTEQUAL:
		n.Operator = ast.OperatorNe
	case token.GREATER:
		n.Operator = ast.OperatorGt
	case token.LESS:
		n.Operator = ast.OperatorLt
	case token.GREATEREQUAL:
		n.Operator = ast.OperatorGte
	case token.LESSEQUAL:
		n.Operator = ast.OperatorLte
	case token.TILDE:
		n.Operator = ast.OperatorLike
	default:
		return nil, p.unexpected("comparison operator after " + strconv.Quote(n.FieldName))
	}
	p.nextToken()

	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		n.Values = append(n.Values, v)

		if p.curToken.Type != token.COMMA {
			break
		}
		p.nextToken()
	}

	if len(n.Values) > 1 {
		switch n.Operator {
		case ast.OperatorEq:
			n.Operator = ast.OperatorIn
		case ast.OperatorNe:
			n.Operator = ast.OperatorNotIn
		default:
			return nil, p.errorf("value lists are only allowed with '=' and '!=' (field %q)", n.FieldName)
		}
	}

	return n, nil
}

func (p *Parser) parseValue() (any, error) {
	tok := p.curToken
	negative := false

	if tok.Type == token.MINUS {
		p.nextToken()
		tok = p.curToken
		negative = true
		if tok.Type != token.INT && tok.Type != token.DECIMAL {
			return nil, p.unexpected("number after '-'")
		}
	}

	var v any
	switch tok.Type {
	case token.INT:
		i, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %q", tok.Literal)
		}
		if negative {
			i = -i
		}
		v = i
	case token.DECIMAL:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid decimal %q", tok.Literal)
		}
		if negative {
			f = -f
		}
		v = f
	case token.STRING, token.IDENT:
		v = tok.Literal
	case token.TRUE:
		v = true
	case token.FALSE:
		v = false
	case token.NULL:
		v = nil
	default:
		return nil, p.unexpected("value")
	}

	p.nextToken()
	return v, nil
}

func (p *Parser) unexpected(want string) error {
	got := p.curToken.Type.String()
	if p.curToken.Literal != "" {
		got = fmt.Sprintf("%s %q", got, p.curToken.Literal)
	}
	return p.errorf("expected %s, got %s", want, got)
}

func (p *Parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.New(fault.BadInputCode, fmt.Sprintf("filter: position %d: %s", p.curToken.Pos, msg)).
		WithMetadata(fault.FieldErrorsMetadata{"filter": []string{msg}})
}
