package dsl

import (
	"strconv"
	"strings"
)

// Format renders a program in canonical source form. Parsing the output
// yields a structurally identical tree.
func Format(prog *Program) string {
	pr := &printer{}
	pr.program(prog)
	return pr.b.String()
}

// FormatNode renders a single expression or statement.
func FormatNode(n Node) string {
	pr := &printer{}
	pr.node(n)
	return pr.b.String()
}

type printer struct {
	b      strings.Builder
	indent int
}

func (pr *printer) write(parts ...string) {
	for _, s := range parts {
		pr.b.WriteString(s)
	}
}

func (pr *printer) tabs() string {
	return strings.Repeat("\t", pr.indent)
}

func (pr *printer) line(parts ...string) {
	pr.b.WriteString(pr.tabs())
	pr.write(parts...)
	pr.b.WriteByte('\n')
}

func (pr *printer) program(prog *Program) {
	for _, lib := range prog.Libraries {
		pr.line("Import ", lib.Name, ";")
	}
	if len(prog.Libraries) > 0 {
		pr.write("\n")
	}
	for _, a := range prog.Actions {
		pr.write("Action ", a.Name, "(", varList(a.Params), ") ")
		pr.block(a.Body)
		pr.write("\n\n")
	}
	for _, a := range prog.Agents {
		pr.write("Agent ", a.Name, " { ", varList(a.Abilities), "; }\n\n")
	}
	for _, b := range prog.Behaviors {
		pr.write("Behavior ", b.Name, "(", varList(b.Params), ") ")
		pr.procedure(b.Init, b.Goal, b.Routine)
		pr.write("\n\n")
	}
	for _, t := range prog.Tasks {
		pr.write("Task ", t.Name, "({", rangeList(t.Ranges), "}")
		if len(t.Params) > 0 {
			pr.write(", ", varList(t.Params))
		}
		pr.write(") ")
		pr.procedure(t.Init, t.Goal, t.Routine)
		pr.write("\n\n")
	}
	if prog.Main != nil {
		pr.write("Main {\n")
		pr.indent++
		for _, a := range prog.Main.Agents {
			pr.line("Agent ", a.Agent.Name, " ", expr(a.Count), ";")
		}
		for _, t := range prog.Main.Tasks {
			pr.line(taskCall(t))
		}
		pr.indent--
		pr.write("}\n")
	}
}

func (pr *printer) procedure(ib *InitBlock, goal *GoalBlock, routine *RoutineBlock) {
	pr.write("{\n")
	pr.indent++

	pr.write(pr.tabs(), "init ")
	pr.block(ib.Body)
	pr.write("\n")

	pr.line("goal {")
	pr.indent++
	for _, s := range goal.Body.Children {
		pr.statement(s)
	}
	if _, absent := goal.Cond.(*NoOp); !absent {
		pr.line("$ ", expr(goal.Cond))
	}
	pr.indent--
	pr.line("}")

	pr.write(pr.tabs(), "routine ")
	for i, branch := range routine.Branches {
		if i > 0 {
			pr.write(" || ")
		}
		pr.block(branch)
	}
	pr.write("\n")

	pr.indent--
	pr.write("}")
}

// block writes "{ ... }" starting at the current column.
func (pr *printer) block(c *Compound) {
	if len(c.Children) == 0 {
		pr.write("{}")
		return
	}
	pr.write("{\n")
	pr.indent++
	for _, s := range c.Children {
		pr.statement(s)
	}
	pr.indent--
	pr.write(pr.tabs(), "}")
}

func (pr *printer) statement(n Node) {
	switch s := n.(type) {
	case *IfElse:
		pr.write(pr.tabs())
		pr.ifElse(s)
		pr.write("\n")
	case *TaskOrder:
		pr.fanOut("order", s.Range, s.Body)
	case *TaskEach:
		pr.fanOut("each", s.Range, s.Body)
	case *TaskCall:
		pr.line(taskCall(s))
	default:
		pr.line(statement(n))
	}
}

func (pr *printer) ifElse(s *IfElse) {
	pr.write("if (", expr(s.Cond), ") ")
	pr.block(s.Then)
	switch e := s.Else.(type) {
	case *IfElse:
		pr.write(" else ")
		pr.ifElse(e)
	case *Compound:
		pr.write(" else ")
		pr.block(e)
	}
}

func (pr *printer) fanOut(keyword string, r *AgentRange, body *Compound) {
	pr.line(keyword, " ", agentRange(r), " {")
	pr.indent++
	for _, s := range body.Children {
		pr.line(expr(s), ";")
	}
	pr.indent--
	pr.line("}")
}

func (pr *printer) node(n Node) {
	switch n.(type) {
	case *Assign, *Put, *Get, *Return:
		pr.write(statement(n))
	default:
		pr.write(expr(n))
	}
}

// statement renders single-line statements.
func statement(n Node) string {
	switch s := n.(type) {
	case *Assign:
		return s.Target.Name + " = " + expr(s.Value) + ";"
	case *Put:
		return "put " + expr(s.Value) + " to " + knowledgeKey(s.Key) + ";"
	case *Get:
		return "get " + s.Target.Name + " from " + knowledgeKey(s.Key) + ";"
	case *Return:
		if s.Value == nil {
			return "return;"
		}
		return "return " + expr(s.Value) + ";"
	case *NoOp:
		return ";"
	default:
		return expr(n) + ";"
	}
}

func knowledgeKey(k *KnowledgeKey) string {
	if k.Queue {
		return "##" + k.Name + "##"
	}
	return "#" + k.Name + "#"
}

func taskCall(t *TaskCall) string {
	s := t.Name + "({" + rangeList(t.Ranges) + "}"
	if len(t.Args) > 0 {
		s += ", " + exprList(t.Args)
	}
	return s + ");"
}

func agentRange(r *AgentRange) string {
	return r.Agent.Name + "[" + expr(r.Start) + "~" + expr(r.End) + "]"
}

func rangeList(ranges []*AgentRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = agentRange(r)
	}
	return strings.Join(parts, ", ")
}

func varList(vars []*Var) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.Name
	}
	return strings.Join(parts, ", ")
}

func exprList(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = expr(n)
	}
	return strings.Join(parts, ", ")
}

var opText = map[TokenType]string{
	OR:            "or",
	AND:           "and",
	IS_EQUAL:      "==",
	NOT_EQUAL:     "!=",
	LESS:          "<",
	LESS_EQUAL:    "<=",
	GREATER:       ">",
	GREATER_EQUAL: ">=",
	PLUS:          "+",
	MINUS:         "-",
	MUL:           "*",
	DIV:           "/",
	MOD:           "%",
	NOT:           "not ",
}

func expr(n Node) string {
	switch e := n.(type) {
	case *Num:
		return formatNumber(e.Value)
	case *String:
		return quote(e.Value)
	case *Var:
		return e.Name
	case *FunctionCall:
		return e.Name + "(" + exprList(e.Args) + ")"
	case *LibraryCall:
		s := strings.Join(e.Path, ".")
		if e.Called {
			s += "(" + exprList(e.Args) + ")"
		}
		return s
	case *UnaryOp:
		inner := expr(e.Expr)
		if _, ok := e.Expr.(*BinOp); ok {
			inner = "(" + inner + ")"
		}
		return opText[e.Op.Type] + inner
	case *BinOp:
		prec := precedence(e.Op.Type)
		left, right := expr(e.Left), expr(e.Right)
		if l, ok := e.Left.(*BinOp); ok && precedence(l.Op.Type) < prec {
			left = "(" + left + ")"
		}
		if r, ok := e.Right.(*BinOp); ok && precedence(r.Op.Type) <= prec {
			right = "(" + right + ")"
		}
		return left + " " + opText[e.Op.Type] + " " + right
	case *NoOp:
		return ""
	default:
		return ""
	}
}

func formatNumber(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	default:
		return ""
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}
