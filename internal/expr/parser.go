package expr

import (
	"fmt"
	"strconv"
)

// Binary operator precedence, higher binds tighter.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// Parser is a precedence-climbing parser over a token slice.
type Parser struct {
	toks []Token
	pos  int
}

// NewParser tokenizes src.
func NewParser(src string) (*Parser, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

// ParseExpression parses a single expression. A trailing semicolon is
// accepted.
func ParseExpression(src string) (Expression, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type == TOKEN_SEMICOLON {
		p.next()
	}
	if t := p.peek(); t.Type != TOKEN_EOF {
		return nil, p.errorf(t, "unexpected %q after expression", t.Value)
	}
	return e, nil
}

// ParseStatements parses a sequence of assignments separated by semicolons.
func ParseStatements(src string) ([]*AssignStmt, error) {
	p, err := NewParser(src)
	if err != nil {
		return nil, err
	}
	var stmts []*AssignStmt
	for p.peek().Type != TOKEN_EOF {
		if p.peek().Type == TOKEN_SEMICOLON {
			p.next()
			continue
		}
		s, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		switch t := p.peek(); t.Type {
		case TOKEN_SEMICOLON:
			p.next()
		case TOKEN_EOF:
		default:
			return nil, p.errorf(t, "expected ';', found %q", t.Value)
		}
	}
	return stmts, nil
}

func (p *Parser) peek() Token { return p.toks[p.pos] }

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != TOKEN_EOF {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(t Token, format string, args ...any) error {
	return &SyntaxError{Pos: t.Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	t := p.next()
	if t.Type != tt {
		if t.Type == TOKEN_EOF {
			return t, p.errorf(t, "expected %s, found end of input", what)
		}
		return t, p.errorf(t, "expected %s, found %q", what, t.Value)
	}
	return t, nil
}

func (p *Parser) parseAssign() (*AssignStmt, error) {
	s := &AssignStmt{}
	name, err := p.expect(TOKEN_IDENT, "identifier")
	if err != nil {
		return nil, err
	}
	if name.Value == "int" && p.peek().Type == TOKEN_IDENT {
		s.Decl = true
		name = p.next()
	}
	s.Name = name.Value
	op, err := p.expect(TOKEN_ASSIGN, "assignment")
	if err != nil {
		return nil, err
	}
	s.Op = op.Value
	if s.Value, err = p.parseExpr(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) parseExpr() (Expression, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TOKEN_QUESTION {
		return cond, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_COLON, "':'"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &CondExpr{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseBinary(minPrec int) (Expression, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		prec, ok := precedence[t.Value]
		if t.Type != TOKEN_OP || !ok || prec < minPrec {
			return x, nil
		}
		p.next()
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: t.Value, X: x, Y: y}
	}
}

func (p *Parser) parseUnary() (Expression, error) {
	t := p.peek()
	if t.Type == TOKEN_OP {
		switch t.Value {
		case "-", "~", "!", "+":
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &UnaryExpr{Op: t.Value, X: x}, nil
		}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	t := p.next()
	switch t.Type {
	case TOKEN_NUMBER:
		v, err := strconv.ParseUint(t.Value, 0, 32)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.Value)
		}
		return &NumberExpr{Value: int32(uint32(v))}, nil
	case TOKEN_IDENT:
		switch t.Value {
		case InputLength:
			return &InputLengthExpr{}, nil
		case InputArray:
			if _, err := p.expect(TOKEN_LBRACKET, "'['"); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TOKEN_RBRACKET, "']'"); err != nil {
				return nil, err
			}
			return &InputExpr{Index: idx}, nil
		}
		return &IdentExpr{Name: t.Value}, nil
	case TOKEN_LPAREN:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case TOKEN_EOF:
		return nil, p.errorf(t, "unexpected end of input")
	}
	return nil, p.errorf(t, "unexpected %q", t.Value)
}
