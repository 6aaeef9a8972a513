package dsl

// body identifies which statement forms a block may contain.
type body int

const (
	actionBody body = iota
	behaviorBody
	taskBody
)

// Parser is a recursive-descent parser for Swarm-DSL.
type Parser struct {
	lexer *Lexer
	tok   Token
}

// NewParser creates a parser reading from lexer.
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// Parse lexes and parses src.
func Parse(src string) (*Program, error) {
	return NewParser(NewLexer(src)).Parse()
}

// Parse returns the program or the first syntax error.
func (p *Parser) Parse() (*Program, error) {
	var err error
	if p.tok, err = p.lexer.NextToken(); err != nil {
		return nil, err
	}
	prog, err := p.program()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != EOF {
		return nil, p.unexpected()
	}
	return prog, nil
}

func (p *Parser) unexpected() error {
	return &Error{Stage: StageParser, Code: UnexpectedToken, Token: p.tok}
}

// eat consumes the current token if it has type t and returns it.
func (p *Parser) eat(t TokenType) (Token, error) {
	tok := p.tok
	if tok.Type != t {
		return tok, p.unexpected()
	}
	next, err := p.lexer.NextToken()
	if err != nil {
		return tok, err
	}
	p.tok = next
	return tok, nil
}

func (p *Parser) peek() (Token, error) {
	return p.lexer.PeekToken()
}

func (p *Parser) program() (*Program, error) {
	prog := &Program{}
	for p.tok.Type == IMPORT {
		lib, err := p.library()
		if err != nil {
			return nil, err
		}
		prog.Libraries = append(prog.Libraries, lib)
	}
	for p.tok.Type == ACTION {
		a, err := p.action()
		if err != nil {
			return nil, err
		}
		prog.Actions = append(prog.Actions, a)
	}
	for p.tok.Type == AGENT {
		a, err := p.agent()
		if err != nil {
			return nil, err
		}
		prog.Agents = append(prog.Agents, a)
	}
	for p.tok.Type == BEHAVIOR {
		b, err := p.behavior()
		if err != nil {
			return nil, err
		}
		prog.Behaviors = append(prog.Behaviors, b)
	}
	for p.tok.Type == TASK {
		t, err := p.task()
		if err != nil {
			return nil, err
		}
		prog.Tasks = append(prog.Tasks, t)
	}
	m, err := p.main()
	if err != nil {
		return nil, err
	}
	prog.Main = m
	return prog, nil
}

func (p *Parser) library() (*Library, error) {
	tok, err := p.eat(IMPORT)
	if err != nil {
		return nil, err
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	if p.tok.Type == SEMI {
		if _, err := p.eat(SEMI); err != nil {
			return nil, err
		}
	}
	return &Library{Tok: tok, Name: name.Name}, nil
}

func (p *Parser) action() (*Action, error) {
	if _, err := p.eat(ACTION); err != nil {
		return nil, err
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	params, err := p.parenParams()
	if err != nil {
		return nil, err
	}
	block, err := p.compound(actionBody)
	if err != nil {
		return nil, err
	}
	return &Action{Tok: name.Tok, Name: name.Name, Params: params, Body: block}, nil
}

// parenParams parses "(" params? ")".
func (p *Parser) parenParams() ([]*Var, error) {
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	var params []*Var
	if p.tok.Type != RPAREN {
		var err error
		if params, err = p.formalParams(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) formalParams() ([]*Var, error) {
	v, err := p.variable()
	if err != nil {
		return nil, err
	}
	params := []*Var{v}
	for p.tok.Type == COMMA {
		if _, err := p.eat(COMMA); err != nil {
			return nil, err
		}
		if v, err = p.variable(); err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}

func (p *Parser) agent() (*Agent, error) {
	if _, err := p.eat(AGENT); err != nil {
		return nil, err
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LBRACE); err != nil {
		return nil, err
	}
	a := &Agent{Tok: name.Tok, Name: name.Name}
	if p.tok.Type == ID {
		if a.Abilities, err = p.formalParams(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	return a, nil
}

func (p *Parser) behavior() (*Behavior, error) {
	if _, err := p.eat(BEHAVIOR); err != nil {
		return nil, err
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	params, err := p.parenParams()
	if err != nil {
		return nil, err
	}
	b := &Behavior{Tok: name.Tok, Name: name.Name, Params: params}
	if b.Init, b.Goal, b.Routine, err = p.procedureBody(behaviorBody); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Parser) task() (*Task, error) {
	if _, err := p.eat(TASK); err != nil {
		return nil, err
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	t := &Task{Tok: name.Tok, Name: name.Name}
	if t.Ranges, err = p.rangeList(true); err != nil {
		return nil, err
	}
	if p.tok.Type == COMMA {
		if _, err := p.eat(COMMA); err != nil {
			return nil, err
		}
		if t.Params, err = p.formalParams(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	if t.Init, t.Goal, t.Routine, err = p.procedureBody(taskBody); err != nil {
		return nil, err
	}
	return t, nil
}

// procedureBody parses "{" init goal routine "}".
func (p *Parser) procedureBody(kind body) (*InitBlock, *GoalBlock, *RoutineBlock, error) {
	if _, err := p.eat(LBRACE); err != nil {
		return nil, nil, nil, err
	}

	tok, err := p.eat(INIT)
	if err != nil {
		return nil, nil, nil, err
	}
	block, err := p.compound(kind)
	if err != nil {
		return nil, nil, nil, err
	}
	initBlock := &InitBlock{Tok: tok, Body: block}

	goal, err := p.goal(kind)
	if err != nil {
		return nil, nil, nil, err
	}

	if tok, err = p.eat(ROUTINE); err != nil {
		return nil, nil, nil, err
	}
	routine := &RoutineBlock{Tok: tok}
	for {
		branch, err := p.compound(kind)
		if err != nil {
			return nil, nil, nil, err
		}
		routine.Branches = append(routine.Branches, branch)
		if p.tok.Type != PARALLEL {
			break
		}
		if _, err := p.eat(PARALLEL); err != nil {
			return nil, nil, nil, err
		}
	}

	if _, err := p.eat(RBRACE); err != nil {
		return nil, nil, nil, err
	}
	return initBlock, goal, routine, nil
}

// goal parses "goal" "{" stmt* ("$" expr)? "}".
func (p *Parser) goal(kind body) (*GoalBlock, error) {
	tok, err := p.eat(GOAL)
	if err != nil {
		return nil, err
	}
	open, err := p.eat(LBRACE)
	if err != nil {
		return nil, err
	}
	g := &GoalBlock{Tok: tok, Body: &Compound{Tok: open}, Cond: &NoOp{Tok: open}}
	for p.tok.Type != DOLLAR && p.tok.Type != RBRACE {
		stmt, err := p.statement(kind)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			g.Body.Children = append(g.Body.Children, stmt)
		}
	}
	if p.tok.Type == DOLLAR {
		if _, err := p.eat(DOLLAR); err != nil {
			return nil, err
		}
		if g.Cond, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	return g, nil
}

func (p *Parser) main() (*Main, error) {
	tok, err := p.eat(MAIN)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LBRACE); err != nil {
		return nil, err
	}
	m := &Main{Tok: tok}
	for p.tok.Type == AGENT {
		call, err := p.agentCall()
		if err != nil {
			return nil, err
		}
		m.Agents = append(m.Agents, call)
	}
	for {
		name, err := p.variable()
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(LPAREN); err != nil {
			return nil, err
		}
		call, err := p.taskCallRest(name)
		if err != nil {
			return nil, err
		}
		m.Tasks = append(m.Tasks, call)
		if p.tok.Type == RBRACE {
			break
		}
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) agentCall() (*AgentCall, error) {
	tok, err := p.eat(AGENT)
	if err != nil {
		return nil, err
	}
	agent, err := p.variable()
	if err != nil {
		return nil, err
	}
	count, err := p.eat(INTEGER)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return &AgentCall{Tok: tok, Agent: agent, Count: &Num{Tok: count, Value: count.Value}}, nil
}

// rangeList parses "{" range ("," range)* "}". Formal ranges take names as bounds.
func (p *Parser) rangeList(formal bool) ([]*AgentRange, error) {
	if _, err := p.eat(LBRACE); err != nil {
		return nil, err
	}
	var ranges []*AgentRange
	for {
		r, err := p.agentRange(formal)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
		if p.tok.Type != COMMA {
			break
		}
		if _, err := p.eat(COMMA); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	return ranges, nil
}

func (p *Parser) agentRange(formal bool) (*AgentRange, error) {
	agent, err := p.variable()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LBRACKET); err != nil {
		return nil, err
	}
	bound := p.additive
	if formal {
		bound = func() (Node, error) { return p.variable() }
	}
	start, err := bound()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(TILDE); err != nil {
		return nil, err
	}
	end, err := bound()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(RBRACKET); err != nil {
		return nil, err
	}
	return &AgentRange{Agent: agent, Start: start, End: end}, nil
}

// taskCallRest parses the remainder of name "(" after the parenthesis.
func (p *Parser) taskCallRest(name *Var) (*TaskCall, error) {
	call := &TaskCall{Tok: name.Tok, Name: name.Name}
	var err error
	if call.Ranges, err = p.rangeList(false); err != nil {
		return nil, err
	}
	if p.tok.Type == COMMA {
		if _, err := p.eat(COMMA); err != nil {
			return nil, err
		}
		if call.Args, err = p.args(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) compound(kind body) (*Compound, error) {
	tok, err := p.eat(LBRACE)
	if err != nil {
		return nil, err
	}
	c := &Compound{Tok: tok}
	for p.tok.Type != RBRACE {
		if p.tok.Type == EOF {
			return nil, p.unexpected()
		}
		stmt, err := p.statement(kind)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			c.Children = append(c.Children, stmt)
		}
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	return c, nil
}

// statement parses one statement. Empty statements yield nil.
func (p *Parser) statement(kind body) (Node, error) {
	switch p.tok.Type {
	case SEMI:
		_, err := p.eat(SEMI)
		return nil, err
	case IF:
		return p.ifElse(kind)
	case RETURN:
		return p.returnStatement()
	case PUT:
		return p.put()
	case GET:
		return p.get()
	case ORDER, EACH:
		if kind != taskBody {
			return nil, p.unexpected()
		}
		return p.fanOut()
	case ID:
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case ASSIGN:
			return p.assignment()
		case DOT:
			call, err := p.libraryCall()
			if err != nil {
				return nil, err
			}
			if _, err := p.eat(SEMI); err != nil {
				return nil, err
			}
			return call, nil
		case LPAREN:
			return p.callStatement(kind)
		}
	}
	return nil, p.unexpected()
}

// callStatement parses name "(" ... ")" ";". Inside tasks a "{" after the
// parenthesis makes it a task call.
func (p *Parser) callStatement(kind body) (Node, error) {
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	if p.tok.Type == LBRACE && kind == taskBody {
		return p.taskCallRest(name)
	}
	call, err := p.callRest(name)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return call, nil
}

// callRest parses args? ")" after name "(".
func (p *Parser) callRest(name *Var) (*FunctionCall, error) {
	call := &FunctionCall{Tok: name.Tok, Name: name.Name}
	if p.tok.Type != RPAREN {
		var err error
		if call.Args, err = p.args(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) args() ([]Node, error) {
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	args := []Node{arg}
	for p.tok.Type == COMMA {
		if _, err := p.eat(COMMA); err != nil {
			return nil, err
		}
		if arg, err = p.expr(); err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func (p *Parser) ifElse(kind body) (*IfElse, error) {
	tok, err := p.eat(IF)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(RPAREN); err != nil {
		return nil, err
	}
	then, err := p.compound(kind)
	if err != nil {
		return nil, err
	}
	node := &IfElse{Tok: tok, Cond: cond, Then: then}
	if p.tok.Type != ELSE {
		return node, nil
	}
	if _, err := p.eat(ELSE); err != nil {
		return nil, err
	}
	if p.tok.Type == IF {
		if node.Else, err = p.ifElse(kind); err != nil {
			return nil, err
		}
		return node, nil
	}
	if node.Else, err = p.compound(kind); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) returnStatement() (*Return, error) {
	tok, err := p.eat(RETURN)
	if err != nil {
		return nil, err
	}
	node := &Return{Tok: tok}
	if p.tok.Type != SEMI {
		if node.Value, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) assignment() (*Assign, error) {
	target, err := p.variable()
	if err != nil {
		return nil, err
	}
	tok, err := p.eat(ASSIGN)
	if err != nil {
		return nil, err
	}
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return &Assign{Tok: tok, Target: target, Value: value}, nil
}

func (p *Parser) put() (*Put, error) {
	tok, err := p.eat(PUT)
	if err != nil {
		return nil, err
	}
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(TO); err != nil {
		return nil, err
	}
	key, err := p.knowledgeKey()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return &Put{Tok: tok, Value: value, Key: key}, nil
}

func (p *Parser) get() (*Get, error) {
	tok, err := p.eat(GET)
	if err != nil {
		return nil, err
	}
	target, err := p.variable()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(FROM); err != nil {
		return nil, err
	}
	key, err := p.knowledgeKey()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(SEMI); err != nil {
		return nil, err
	}
	return &Get{Tok: tok, Target: target, Key: key}, nil
}

// knowledgeKey parses #name# or ##name##.
func (p *Parser) knowledgeKey() (*KnowledgeKey, error) {
	tok, err := p.eat(HASH)
	if err != nil {
		return nil, err
	}
	key := &KnowledgeKey{Tok: tok}
	if p.tok.Type == HASH {
		key.Queue = true
		if _, err := p.eat(HASH); err != nil {
			return nil, err
		}
	}
	name, err := p.variable()
	if err != nil {
		return nil, err
	}
	key.Name = name.Name
	if _, err := p.eat(HASH); err != nil {
		return nil, err
	}
	if key.Queue {
		if _, err := p.eat(HASH); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// fanOut parses order/each agent[a~b] "{" call* "}".
func (p *Parser) fanOut() (Node, error) {
	tok := p.tok
	if _, err := p.eat(tok.Type); err != nil {
		return nil, err
	}
	rng, err := p.agentRange(false)
	if err != nil {
		return nil, err
	}
	open, err := p.eat(LBRACE)
	if err != nil {
		return nil, err
	}
	block := &Compound{Tok: open}
	for p.tok.Type != RBRACE {
		if p.tok.Type != ID {
			return nil, p.unexpected()
		}
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		var call Node
		switch next.Type {
		case DOT:
			call, err = p.libraryCall()
		case LPAREN:
			var name *Var
			if name, err = p.variable(); err != nil {
				return nil, err
			}
			if _, err = p.eat(LPAREN); err != nil {
				return nil, err
			}
			call, err = p.callRest(name)
		default:
			return nil, p.unexpected()
		}
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(SEMI); err != nil {
			return nil, err
		}
		block.Children = append(block.Children, call)
	}
	if _, err := p.eat(RBRACE); err != nil {
		return nil, err
	}
	if tok.Type == ORDER {
		return &TaskOrder{Tok: tok, Range: rng, Body: block}, nil
	}
	return &TaskEach{Tok: tok, Range: rng, Body: block}, nil
}

// libraryCall parses name ("." name)+ ("(" args? ")")?.
func (p *Parser) libraryCall() (*LibraryCall, error) {
	head, err := p.variable()
	if err != nil {
		return nil, err
	}
	call := &LibraryCall{Tok: head.Tok, Path: []string{head.Name}}
	for p.tok.Type == DOT {
		if _, err := p.eat(DOT); err != nil {
			return nil, err
		}
		part, err := p.variable()
		if err != nil {
			return nil, err
		}
		call.Path = append(call.Path, part.Name)
	}
	if p.tok.Type == LPAREN {
		if _, err := p.eat(LPAREN); err != nil {
			return nil, err
		}
		call.Called = true
		if p.tok.Type != RPAREN {
			if call.Args, err = p.args(); err != nil {
				return nil, err
			}
		}
		if _, err := p.eat(RPAREN); err != nil {
			return nil, err
		}
	}
	return call, nil
}

func (p *Parser) variable() (*Var, error) {
	tok, err := p.eat(ID)
	if err != nil {
		return nil, err
	}
	return &Var{Tok: tok, Name: tok.Value.(string)}, nil
}

// Expressions, lowest precedence first.

func (p *Parser) expr() (Node, error) {
	return p.binary(0)
}

// levels lists binary operators by increasing precedence.
var levels = [][]TokenType{
	{OR},
	{AND},
	{IS_EQUAL, NOT_EQUAL},
	{LESS, LESS_EQUAL, GREATER, GREATER_EQUAL},
	{PLUS, MINUS},
	{MUL, DIV, MOD},
}

func precedence(t TokenType) int {
	for i, ops := range levels {
		for _, op := range ops {
			if op == t {
				return i
			}
		}
	}
	return -1
}

func (p *Parser) additive() (Node, error) {
	return p.binary(precedence(PLUS))
}

// binary parses a left-associative chain of operators at level and above.
func (p *Parser) binary(level int) (Node, error) {
	if level == len(levels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for precedence(p.tok.Type) == level {
		op, err := p.eat(p.tok.Type)
		if err != nil {
			return nil, err
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) unary() (Node, error) {
	switch p.tok.Type {
	case NOT, PLUS, MINUS:
		op, err := p.eat(p.tok.Type)
		if err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: op, Expr: operand}, nil
	}
	return p.primary()
}

func (p *Parser) primary() (Node, error) {
	switch p.tok.Type {
	case LPAREN:
		if _, err := p.eat(LPAREN); err != nil {
			return nil, err
		}
		node, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(RPAREN); err != nil {
			return nil, err
		}
		return node, nil
	case INTEGER, FLOAT:
		tok, err := p.eat(p.tok.Type)
		if err != nil {
			return nil, err
		}
		return &Num{Tok: tok, Value: tok.Value}, nil
	case STRING:
		tok, err := p.eat(STRING)
		if err != nil {
			return nil, err
		}
		return &String{Tok: tok, Value: tok.Value.(string)}, nil
	case ID:
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case DOT:
			return p.libraryCall()
		case LPAREN:
			name, err := p.variable()
			if err != nil {
				return nil, err
			}
			if _, err := p.eat(LPAREN); err != nil {
				return nil, err
			}
			return p.callRest(name)
		}
		return p.variable()
	}
	return nil, p.unexpected()
}
