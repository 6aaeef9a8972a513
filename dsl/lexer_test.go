package dsl

import (
	"errors"
	"testing"
)

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		types []TokenType
	}{
		{"empty", "", []TokenType{EOF}},
		{"assignment", "x = 1;", []TokenType{ID, ASSIGN, INTEGER, SEMI, EOF}},
		{"float", "3.25", []TokenType{FLOAT, EOF}},
		{"integer then dot", "3.x", []TokenType{INTEGER, DOT, ID, EOF}},
		{"two char ops", "== != <= >= ||", []TokenType{IS_EQUAL, NOT_EQUAL, LESS_EQUAL, GREATER_EQUAL, PARALLEL, EOF}},
		{"range", "drone[0~3]", []TokenType{ID, LBRACKET, INTEGER, TILDE, INTEGER, RBRACKET, EOF}},
		{"knowledge cell", "#k#", []TokenType{HASH, ID, HASH, EOF}},
		{"knowledge queue", "##k##", []TokenType{HASH, HASH, ID, HASH, HASH, EOF}},
		{"keywords any case", "Task TASK task", []TokenType{TASK, TASK, TASK, EOF}},
		{"at prefix", "@init @goal", []TokenType{INIT, GOAL, EOF}},
		{"comment", "a // b c\nd", []TokenType{ID, ID, EOF}},
		{"goal marker", "$ n >= 3", []TokenType{DOLLAR, ID, GREATER_EQUAL, INTEGER, EOF}},
		{"underscore ident", "_tmp1", []TokenType{ID, EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := NewLexer(tt.src).Tokens()
			if err != nil {
				t.Fatalf("Tokens() error = %v", err)
			}
			if len(toks) != len(tt.types) {
				t.Fatalf("len(Tokens()) = %d, want %d (%v)", len(toks), len(tt.types), toks)
			}
			for i, tok := range toks {
				if tok.Type != tt.types[i] {
					t.Errorf("token %d = %s, want %s", i, tok.Type, tt.types[i])
				}
			}
		})
	}
}

func TestLexerValues(t *testing.T) {
	toks, err := NewLexer(`42 2.5 "a\tb" 'q\'s' routine drone`).Tokens()
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}

	want := []any{int64(42), 2.5, "a\tb", "q's", "ROUTINE", "drone"}
	for i, w := range want {
		if toks[i].Value != w {
			t.Errorf("token %d value = %#v, want %#v", i, toks[i].Value, w)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a\n  b")
	first, _ := l.NextToken()
	second, _ := l.NextToken()

	if first.Line != 1 || first.Column != 1 {
		t.Errorf("first at %d:%d, want 1:1", first.Line, first.Column)
	}
	if second.Line != 2 || second.Column != 3 {
		t.Errorf("second at %d:%d, want 2:3", second.Line, second.Column)
	}
}

func TestLexerPeek(t *testing.T) {
	l := NewLexer("foo(")
	peeked, err := l.PeekToken()
	if err != nil {
		t.Fatalf("PeekToken() error = %v", err)
	}
	next, _ := l.NextToken()
	if peeked != next {
		t.Errorf("PeekToken() = %v, NextToken() = %v", peeked, next)
	}
	paren, _ := l.NextToken()
	if paren.Type != LPAREN {
		t.Errorf("NextToken() = %s, want LPAREN", paren.Type)
	}
	for i := 0; i < 2; i++ {
		if eof, _ := l.NextToken(); eof.Type != EOF {
			t.Errorf("NextToken() after end = %s, want EOF", eof.Type)
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		line, col int
	}{
		{"stray char", "x = 1 ? 2", 1, 7},
		{"unterminated string", "\n  \"abc", 2, 3},
		{"single pipe", "a | b", 1, 3},
		{"bare at", "@ 1", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.src).Tokens()
			if err == nil {
				t.Fatal("Tokens() error = nil, want lexer error")
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if e.Stage != StageLexer || e.Code != UnexpectedToken {
				t.Errorf("error = %s/%s, want %s/%s", e.Stage, e.Code, StageLexer, UnexpectedToken)
			}
			if e.Token.Line != tt.line || e.Token.Column != tt.col {
				t.Errorf("error at %d:%d, want %d:%d", e.Token.Line, e.Token.Column, tt.line, tt.col)
			}
		})
	}
}
