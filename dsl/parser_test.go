package dsl

import (
	"errors"
	"testing"
)

func TestParseProgram(t *testing.T) {
	prog, err := Parse(surveyProgram)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(prog.Libraries) != 2 {
		t.Errorf("len(Libraries) = %d, want 2", len(prog.Libraries))
	}
	if len(prog.Actions) != 2 {
		t.Errorf("len(Actions) = %d, want 2", len(prog.Actions))
	}
	if got := prog.Agents[0].Abilities; len(got) != 2 || got[1].Name != "report" {
		t.Errorf("Agent abilities = %v", got)
	}

	task := prog.Tasks[0]
	if task.Name != "survey" {
		t.Errorf("Task.Name = %q, want survey", task.Name)
	}
	if len(task.Ranges) != 1 || task.Ranges[0].Agent.Name != "drone" {
		t.Fatalf("Task.Ranges = %v", task.Ranges)
	}
	if s, ok := task.Ranges[0].Start.(*Var); !ok || s.Name != "s" {
		t.Errorf("range start = %#v, want Var s", task.Ranges[0].Start)
	}
	if len(task.Params) != 1 || task.Params[0].Name != "height" {
		t.Errorf("Task.Params = %v", task.Params)
	}
	if len(task.Routine.Branches) != 1 {
		t.Errorf("len(Routine.Branches) = %d, want 1", len(task.Routine.Branches))
	}
	if _, ok := task.Routine.Branches[0].Children[0].(*TaskEach); !ok {
		t.Errorf("first routine statement = %T, want *TaskEach", task.Routine.Branches[0].Children[0])
	}
	if _, ok := task.Goal.Cond.(*BinOp); !ok {
		t.Errorf("goal condition = %T, want *BinOp", task.Goal.Cond)
	}

	m := prog.Main
	if len(m.Agents) != 1 || m.Agents[0].Count.Value != int64(3) {
		t.Errorf("Main agents = %v", m.Agents)
	}
	if len(m.Tasks) != 1 || len(m.Tasks[0].Args) != 1 {
		t.Errorf("Main tasks = %v", m.Tasks)
	}
}

func TestParseParallelBranches(t *testing.T) {
	src := `
Behavior twin() {
	init {}
	goal {}
	routine { a = 1; } || { b = 2; } || { c = 3; }
}
Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { twin(); } } }
Main { Agent d 1; t({d[0~1]}); }
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	b := prog.Behaviors[0]
	if len(b.Routine.Branches) != 3 {
		t.Errorf("len(Branches) = %d, want 3", len(b.Routine.Branches))
	}
	if _, ok := b.Goal.Cond.(*NoOp); !ok {
		t.Errorf("absent goal condition = %T, want *NoOp", b.Goal.Cond)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "1 + 2 * 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"1 - (2 - 3)", "1 - (2 - 3)"},
		{"1 - 2 - 3", "1 - 2 - 3"},
		{"a or b and c", "a or b and c"},
		{"(a or b) and c", "(a or b) and c"},
		{"not a == b", "not a == b"},
		{"-(x + 1)", "-(x + 1)"},
		{"a < b == c > d", "a < b == c > d"},
		{"math.sqrt(x * x) % 7", "math.sqrt(x * x) % 7"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p := NewParser(NewLexer(tt.expr))
			var err error
			if p.tok, err = p.lexer.NextToken(); err != nil {
				t.Fatalf("NextToken() error = %v", err)
			}
			n, err := p.expr()
			if err != nil {
				t.Fatalf("expr() error = %v", err)
			}
			if got := FormatNode(n); got != tt.want {
				t.Errorf("FormatNode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTreeShape(t *testing.T) {
	p := NewParser(NewLexer("1 + 2 * 3 - 4"))
	p.tok, _ = p.lexer.NextToken()
	n, err := p.expr()
	if err != nil {
		t.Fatalf("expr() error = %v", err)
	}

	top, ok := n.(*BinOp)
	if !ok || top.Op.Type != MINUS {
		t.Fatalf("root = %#v, want MINUS", n)
	}
	left, ok := top.Left.(*BinOp)
	if !ok || left.Op.Type != PLUS {
		t.Fatalf("root.Left = %#v, want PLUS", top.Left)
	}
	if mul, ok := left.Right.(*BinOp); !ok || mul.Op.Type != MUL {
		t.Errorf("PLUS.Right = %#v, want MUL", left.Right)
	}
}

func TestParseKnowledgeQueue(t *testing.T) {
	src := `
Action produce(x) { put x to ##jobs##; }
Action consume() { get j from ##jobs##; return j; }
Agent d { produce, consume; }
Task t({d[s~e]}) { init {} goal { $ 1 } routine { order d[s~e] { produce(1); } } }
Main { Agent d 1; t({d[0~1]}); }
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	put := prog.Actions[0].Body.Children[0].(*Put)
	if !put.Key.Queue || put.Key.Name != "jobs" {
		t.Errorf("put key = %+v, want queue jobs", put.Key)
	}
	get := prog.Actions[1].Body.Children[0].(*Get)
	if !get.Key.Queue || get.Target.Name != "j" {
		t.Errorf("get = %+v", get)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tok  TokenType
	}{
		{
			name: "missing main",
			src:  `Action a() {}`,
			tok:  EOF,
		},
		{
			name: "main without task call",
			src:  `Main { Agent d 1; }`,
			tok:  RBRACE,
		},
		{
			name: "each outside task",
			src: `Action a() { each d[0~1] { b(); } }
Main { Agent d 1; t({d[0~1]}); }`,
			tok: EACH,
		},
		{
			name: "assignment in fan-out body",
			src: `Task t({d[s~e]}) { init {} goal {} routine { order d[s~e] { x = 1; } } }
Main { Agent d 1; t({d[0~1]}); }`,
			tok: ID,
		},
		{
			name: "formal range with expression",
			src: `Task t({d[0~e]}) { init {} goal {} routine {} }
Main { Agent d 1; t({d[0~1]}); }`,
			tok: INTEGER,
		},
		{
			name: "missing semicolon",
			src: `Action a() { x = 1 }
Main { Agent d 1; t({d[0~1]}); }`,
			tok: RBRACE,
		},
		{
			name: "trailing tokens",
			src:  `Main { Agent d 1; t({d[0~1]}); } extra`,
			tok:  ID,
		},
		{
			name: "declarations out of order",
			src: `Agent d { ; }
Action a() {}
Main { Agent d 1; t({d[0~1]}); }`,
			tok: ACTION,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if e.Stage != StageParser || e.Code != UnexpectedToken {
				t.Errorf("error = %s/%s, want %s/%s", e.Stage, e.Code, StageParser, UnexpectedToken)
			}
			if e.Token.Type != tt.tok {
				t.Errorf("error token = %v, want type %s", e.Token, tt.tok)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("Main { Agent d 1; t({d[0~1]}) }")
	if err == nil {
		t.Fatal("Parse() error = nil")
	}
	want := `UNEXPECTED_TOKEN -> Token(RBRACE, "}", position=1:31)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
