// Package expr parses, prints and compiles the integer expression language
// used by cell outputs.
//
// Values are 32-bit two's-complement integers. Arithmetic wraps, division and
// modulo by zero yield 0, shift counts use their low five bits, and
// comparisons and logical operators yield 0 or 1.
package expr

import (
	"fmt"
	"strings"
)

// TokenType classifies a token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_NUMBER
	TOKEN_IDENT
	TOKEN_OP
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_QUESTION
	TOKEN_COLON
	TOKEN_SEMICOLON
	TOKEN_ASSIGN
)

// Token is one lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// SyntaxError reports the byte offset of a lexing or parsing failure.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: %d: %s", e.Pos, e.Msg)
}

// Lexer splits source text into tokens.
type Lexer struct {
	input string
	pos   int
}

// NewLexer returns a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Operators ordered so that longer spellings match first.
var operators = []string{
	">>>=", "<<=", ">>=", ">>>",
	"&&", "||", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">",
}

var punctuation = map[byte]TokenType{
	'(': TOKEN_LPAREN, ')': TOKEN_RPAREN,
	'[': TOKEN_LBRACKET, ']': TOKEN_RBRACKET,
	'?': TOKEN_QUESTION, ':': TOKEN_COLON, ';': TOKEN_SEMICOLON,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch c := l.input[l.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case strings.HasPrefix(l.input[l.pos:], "//"):
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// NextToken returns the next token, or a *SyntaxError for an unexpected
// character.
func (l *Lexer) NextToken() (Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Pos: start}, nil
	}

	c := l.input[l.pos]
	switch {
	case isDigit(c):
		for l.pos < len(l.input) && isAlnum(l.input[l.pos]) {
			l.pos++
		}
		return Token{Type: TOKEN_NUMBER, Value: l.input[start:l.pos], Pos: start}, nil
	case isIdentStart(c):
		for l.pos < len(l.input) && isAlnum(l.input[l.pos]) {
			l.pos++
		}
		return Token{Type: TOKEN_IDENT, Value: l.input[start:l.pos], Pos: start}, nil
	}

	if t, ok := punctuation[c]; ok {
		l.pos++
		return Token{Type: t, Value: string(c), Pos: start}, nil
	}
	if c == '=' && !strings.HasPrefix(l.input[l.pos:], "==") {
		l.pos++
		return Token{Type: TOKEN_ASSIGN, Value: "=", Pos: start}, nil
	}
	for _, op := range operators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			if strings.HasSuffix(op, "=") && isCompound(op) {
				return Token{Type: TOKEN_ASSIGN, Value: op, Pos: start}, nil
			}
			return Token{Type: TOKEN_OP, Value: op, Pos: start}, nil
		}
	}
	return Token{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func isCompound(op string) bool {
	switch op {
	case "<=", ">=", "==", "!=":
		return false
	}
	return true
}

// Tokenize returns all tokens of input up to and including EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var toks []Token
	for {
		t, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Type == TOKEN_EOF {
			return toks, nil
		}
	}
}
