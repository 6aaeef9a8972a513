package dsl

import (
	"strconv"
	"strings"
	"unicode"
)

// Lexer turns Swarm-DSL source into tokens.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int

	peeked *Token
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, column: 1}
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekRune() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) advance() {
	if l.atEnd() {
		return
	}
	if l.src[l.pos] == '\n' {
		l.line++
		l.column = 0
	}
	l.pos++
	l.column++
}

func (l *Lexer) errorAt(line, column int, lexeme string) error {
	return &Error{
		Stage: StageLexer,
		Code:  UnexpectedToken,
		Token: Token{Type: EOF, Value: lexeme, Line: line, Column: column},
	}
}

func (l *Lexer) skipSpaceAndComments() {
	for !l.atEnd() {
		c := l.current()
		switch {
		case unicode.IsSpace(c):
			l.advance()
		case c == '/' && l.peekRune() == '/':
			for !l.atEnd() && l.current() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// PeekToken returns the next token without consuming it.
func (l *Lexer) PeekToken() (Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	l.peeked = &tok
	return tok, nil
}

// NextToken consumes and returns the next token. At the end of input it
// keeps returning EOF.
func (l *Lexer) NextToken() (Token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.scan()
}

// Tokens lexes the whole input, EOF included.
func (l *Lexer) Tokens() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Type == EOF {
			return out, nil
		}
	}
}

func (l *Lexer) scan() (Token, error) {
	l.skipSpaceAndComments()
	if l.atEnd() {
		return Token{Type: EOF, Line: l.line, Column: l.column}, nil
	}

	c := l.current()
	switch {
	case isIdentStart(c):
		return l.identifier(), nil
	case c == '@':
		line, col := l.line, l.column
		l.advance()
		if !isIdentStart(l.current()) {
			return Token{}, l.errorAt(line, col, "@")
		}
		return l.identifier(), nil
	case unicode.IsDigit(c):
		return l.number()
	case c == '"' || c == '\'':
		return l.str()
	}

	line, col := l.line, l.column
	if next := l.peekRune(); next != 0 {
		if t, ok := twoCharOps[string([]rune{c, next})]; ok {
			l.advance()
			l.advance()
			return Token{Type: t, Value: string([]rune{c, next}), Line: line, Column: col}, nil
		}
	}
	if t, ok := oneCharOps[c]; ok {
		l.advance()
		return Token{Type: t, Value: string(c), Line: line, Column: col}, nil
	}
	return Token{}, l.errorAt(line, col, string(c))
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func (l *Lexer) identifier() Token {
	tok := Token{Line: l.line, Column: l.column}
	var b strings.Builder
	for !l.atEnd() && (unicode.IsLetter(l.current()) || unicode.IsDigit(l.current()) || l.current() == '_') {
		b.WriteRune(l.current())
		l.advance()
	}
	word := b.String()
	if t, ok := keywords[strings.ToUpper(word)]; ok {
		tok.Type = t
		tok.Value = strings.ToUpper(word)
		return tok
	}
	tok.Type = ID
	tok.Value = word
	return tok
}

func (l *Lexer) number() (Token, error) {
	tok := Token{Line: l.line, Column: l.column}
	var b strings.Builder
	for !l.atEnd() && unicode.IsDigit(l.current()) {
		b.WriteRune(l.current())
		l.advance()
	}
	if l.current() == '.' && unicode.IsDigit(l.peekRune()) {
		b.WriteRune('.')
		l.advance()
		for !l.atEnd() && unicode.IsDigit(l.current()) {
			b.WriteRune(l.current())
			l.advance()
		}
		f, err := strconv.ParseFloat(b.String(), 64)
		if err != nil {
			return Token{}, l.errorAt(tok.Line, tok.Column, b.String())
		}
		tok.Type, tok.Value = FLOAT, f
		return tok, nil
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return Token{}, l.errorAt(tok.Line, tok.Column, b.String())
	}
	tok.Type, tok.Value = INTEGER, n
	return tok, nil
}

func (l *Lexer) str() (Token, error) {
	tok := Token{Type: STRING, Line: l.line, Column: l.column}
	quote := l.current()
	l.advance()

	var b strings.Builder
	for !l.atEnd() && l.current() != quote {
		if l.current() == '\\' {
			l.advance()
			if l.atEnd() {
				break
			}
			switch l.current() {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(l.current())
			}
			l.advance()
			continue
		}
		b.WriteRune(l.current())
		l.advance()
	}
	if l.atEnd() {
		return Token{}, l.errorAt(tok.Line, tok.Column, string(quote)+b.String())
	}
	l.advance()
	tok.Value = b.String()
	return tok, nil
}
