package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType is the category of a lexical token.
type TokenType int

const (
	EOF TokenType = iota

	// Literals
	INTEGER
	FLOAT
	STRING
	ID

	// Operators and punctuation
	PLUS
	MINUS
	MUL
	DIV
	MOD
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	SEMI
	COMMA
	DOT
	ASSIGN
	LESS
	GREATER
	LESS_EQUAL
	GREATER_EQUAL
	IS_EQUAL
	NOT_EQUAL
	PARALLEL
	TILDE
	HASH
	DOLLAR

	// Reserved words
	IMPORT
	ACTION
	AGENT
	BEHAVIOR
	TASK
	MAIN
	INIT
	GOAL
	ROUTINE
	IF
	ELSE
	RETURN
	PUT
	TO
	GET
	FROM
	ORDER
	EACH
	NOT
	AND
	OR
)

var tokenNames = map[TokenType]string{
	EOF:           "EOF",
	INTEGER:       "INTEGER",
	FLOAT:         "FLOAT",
	STRING:        "STRING",
	ID:            "ID",
	PLUS:          "PLUS",
	MINUS:         "MINUS",
	MUL:           "MUL",
	DIV:           "DIV",
	MOD:           "MOD",
	LPAREN:        "LPAREN",
	RPAREN:        "RPAREN",
	LBRACE:        "LBRACE",
	RBRACE:        "RBRACE",
	LBRACKET:      "LBRACKET",
	RBRACKET:      "RBRACKET",
	SEMI:          "SEMI",
	COMMA:         "COMMA",
	DOT:           "DOT",
	ASSIGN:        "ASSIGN",
	LESS:          "LESS",
	GREATER:       "GREATER",
	LESS_EQUAL:    "LESS_EQUAL",
	GREATER_EQUAL: "GREATER_EQUAL",
	IS_EQUAL:      "IS_EQUAL",
	NOT_EQUAL:     "NOT_EQUAL",
	PARALLEL:      "PARALLEL",
	TILDE:         "TILDE",
	HASH:          "HASH",
	DOLLAR:        "DOLLAR",
	IMPORT:        "IMPORT",
	ACTION:        "ACTION",
	AGENT:         "AGENT",
	BEHAVIOR:      "BEHAVIOR",
	TASK:          "TASK",
	MAIN:          "MAIN",
	INIT:          "INIT",
	GOAL:          "GOAL",
	ROUTINE:       "ROUTINE",
	IF:            "IF",
	ELSE:          "ELSE",
	RETURN:        "RETURN",
	PUT:           "PUT",
	TO:            "TO",
	GET:           "GET",
	FROM:          "FROM",
	ORDER:         "ORDER",
	EACH:          "EACH",
	NOT:           "NOT",
	AND:           "AND",
	OR:            "OR",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "TokenType(" + strconv.Itoa(int(t)) + ")"
}

// keywords maps upper-cased spellings to reserved words.
var keywords = map[string]TokenType{
	"IMPORT":   IMPORT,
	"ACTION":   ACTION,
	"AGENT":    AGENT,
	"BEHAVIOR": BEHAVIOR,
	"TASK":     TASK,
	"MAIN":     MAIN,
	"INIT":     INIT,
	"GOAL":     GOAL,
	"ROUTINE":  ROUTINE,
	"IF":       IF,
	"ELSE":     ELSE,
	"RETURN":   RETURN,
	"PUT":      PUT,
	"TO":       TO,
	"GET":      GET,
	"FROM":     FROM,
	"ORDER":    ORDER,
	"EACH":     EACH,
	"NOT":      NOT,
	"AND":      AND,
	"OR":       OR,
}

var twoCharOps = map[string]TokenType{
	"==": IS_EQUAL,
	"!=": NOT_EQUAL,
	"<=": LESS_EQUAL,
	">=": GREATER_EQUAL,
	"||": PARALLEL,
}

var oneCharOps = map[rune]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': MUL,
	'/': DIV,
	'%': MOD,
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	'[': LBRACKET,
	']': RBRACKET,
	';': SEMI,
	',': COMMA,
	'.': DOT,
	'=': ASSIGN,
	'<': LESS,
	'>': GREATER,
	'~': TILDE,
	'#': HASH,
	'$': DOLLAR,
}

// Token is a lexical token with its source position.
// Value holds an int64, float64 or string depending on Type.
type Token struct {
	Type   TokenType
	Value  any
	Line   int
	Column int
}

// Text returns the token value as a string.
func (t Token) Text() string {
	if s, ok := t.Value.(string); ok {
		return s
	}
	return fmt.Sprint(t.Value)
}

func (t Token) String() string {
	var v string
	switch x := t.Value.(type) {
	case string:
		v = strconv.Quote(x)
	case nil:
		v = "none"
	default:
		v = fmt.Sprint(x)
	}
	return fmt.Sprintf("Token(%s, %s, position=%d:%d)", t.Type, v, t.Line, t.Column)
}

// IsKeyword reports whether name is reserved, ignoring case.
func IsKeyword(name string) bool {
	_, ok := keywords[strings.ToUpper(name)]
	return ok
}
