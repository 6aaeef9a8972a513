package dsl

import (
	"log/slog"
	"sort"
)

// AnalyzerOption configures the semantic analyzer.
type AnalyzerOption func(*Analyzer)

// WithScopeTrace logs scope entry, exit, inserts and lookups at debug level.
func WithScopeTrace(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// Analyzer resolves names, checks declarations and attaches symbols to call nodes.
type Analyzer struct {
	logger   *slog.Logger
	global   *Scope
	current  *Scope
	inAction bool
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze checks prog and returns the global scope.
func (a *Analyzer) Analyze(prog *Program) (*Scope, error) {
	a.global = NewScope("global", 1, nil, a.logger)
	a.global.initBuiltins()
	a.current = a.global
	a.trace("enter scope", a.global)

	for _, lib := range prog.Libraries {
		if err := a.declare(&LibrarySymbol{symbol{name: lib.Name}}, lib.Tok); err != nil {
			return nil, err
		}
	}
	for _, act := range prog.Actions {
		if err := a.action(act); err != nil {
			return nil, err
		}
	}
	for _, ag := range prog.Agents {
		if err := a.agent(ag); err != nil {
			return nil, err
		}
	}
	for _, b := range prog.Behaviors {
		if err := a.behavior(b); err != nil {
			return nil, err
		}
	}
	for _, t := range prog.Tasks {
		if err := a.task(t); err != nil {
			return nil, err
		}
	}
	if err := a.main(prog.Main); err != nil {
		return nil, err
	}

	a.trace("leave scope", a.global)
	return a.global, nil
}

func (a *Analyzer) trace(msg string, s *Scope) {
	if a.logger != nil {
		a.logger.Debug(msg, "component", "scope", "scope", s.Name, "level", s.Level, "table", s.String())
	}
}

func (a *Analyzer) push(name string) {
	a.current = NewScope(name, a.current.Level+1, a.current, a.logger)
	a.trace("enter scope", a.current)
}

func (a *Analyzer) pop() {
	a.trace("leave scope", a.current)
	a.current = a.current.Enclosing
}

// declare inserts sym into the current scope, rejecting duplicates.
func (a *Analyzer) declare(sym Symbol, tok Token) error {
	if a.current == a.global {
		if a.global.Lookup(sym.Name(), true) != nil {
			return semanticError(DuplicateID, tok)
		}
	} else if a.current.Lookup(sym.Name(), true) != nil {
		return semanticError(DuplicateID, tok)
	}
	a.current.Insert(sym)
	return nil
}

func (a *Analyzer) params(vars []*Var) ([]*VarSymbol, error) {
	out := make([]*VarSymbol, 0, len(vars))
	for _, v := range vars {
		sym := &VarSymbol{symbol{name: v.Name}}
		if err := a.declare(sym, v.Tok); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

func (a *Analyzer) action(act *Action) error {
	sym := &ActionSymbol{symbol: symbol{name: act.Name}, Decl: act}
	if err := a.declare(sym, act.Tok); err != nil {
		return err
	}

	a.push(act.Name)
	defer a.pop()
	params, err := a.params(act.Params)
	if err != nil {
		return err
	}
	sym.Params = params

	a.inAction = true
	defer func() { a.inAction = false }()
	return a.compound(act.Body)
}

func (a *Analyzer) agent(ag *Agent) error {
	sym := &AgentSymbol{symbol: symbol{name: ag.Name}, Decl: ag}
	for _, ability := range ag.Abilities {
		found := a.global.Lookup(ability.Name, false)
		switch found.(type) {
		case *ActionSymbol, *BehaviorSymbol:
			sym.Abilities = append(sym.Abilities, found)
		default:
			return semanticError(IDNotFound, ability.Tok)
		}
	}
	if err := a.declare(sym, ag.Tok); err != nil {
		return err
	}

	a.push(ag.Name)
	defer a.pop()
	for _, ability := range ag.Abilities {
		if err := a.declare(&VarSymbol{symbol{name: ability.Name}}, ability.Tok); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) behavior(b *Behavior) error {
	sym := &BehaviorSymbol{symbol: symbol{name: b.Name}, Decl: b}
	if err := a.declare(sym, b.Tok); err != nil {
		return err
	}

	a.push(b.Name)
	defer a.pop()
	params, err := a.params(b.Params)
	if err != nil {
		return err
	}
	sym.Params = params
	return a.procedureBody(b.Init, b.Goal, b.Routine)
}

func (a *Analyzer) task(t *Task) error {
	sym := &TaskSymbol{symbol: symbol{name: t.Name}, Decl: t}
	if err := a.declare(sym, t.Tok); err != nil {
		return err
	}

	a.push(t.Name)
	defer a.pop()
	for _, r := range t.Ranges {
		start, _ := r.Start.(*Var)
		end, _ := r.End.(*Var)
		rs := &AgentRangeSymbol{symbol: symbol{name: r.Agent.Name}, Start: start.Name, End: end.Name, Count: -1}
		if err := a.declare(rs, r.Agent.Tok); err != nil {
			return err
		}
		if err := a.declare(&VarSymbol{symbol{name: start.Name}}, start.Tok); err != nil {
			return err
		}
		if err := a.declare(&VarSymbol{symbol{name: end.Name}}, end.Tok); err != nil {
			return err
		}
		sym.Ranges = append(sym.Ranges, rs)
	}
	params, err := a.params(t.Params)
	if err != nil {
		return err
	}
	sym.Params = params
	return a.procedureBody(t.Init, t.Goal, t.Routine)
}

// procedureBody visits the routine before the goal so variables first
// assigned by a branch are visible to the goal.
func (a *Analyzer) procedureBody(ib *InitBlock, goal *GoalBlock, routine *RoutineBlock) error {
	if err := a.compound(ib.Body); err != nil {
		return err
	}
	for _, branch := range routine.Branches {
		if err := a.compound(branch); err != nil {
			return err
		}
	}
	if err := a.compound(goal.Body); err != nil {
		return err
	}
	return a.visit(goal.Cond)
}

func (a *Analyzer) main(m *Main) error {
	a.push("Main")
	defer a.pop()

	for _, call := range m.Agents {
		sym, ok := a.global.Lookup(call.Agent.Name, false).(*AgentSymbol)
		if !ok {
			return semanticError(IDNotFound, call.Agent.Tok)
		}
		count, _ := call.Count.Value.(int64)
		bound := &AgentRangeSymbol{symbol: symbol{name: sym.Name()}, Agent: sym, Count: count}
		if err := a.declare(bound, call.Agent.Tok); err != nil {
			return err
		}
		call.Symbol = sym
	}
	for _, call := range m.Tasks {
		if err := a.taskCall(call); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) taskCall(call *TaskCall) error {
	sym, ok := a.global.Lookup(call.Name, false).(*TaskSymbol)
	if !ok {
		return semanticError(IDNotFound, call.Tok)
	}
	for _, r := range call.Ranges {
		if a.current.Lookup(r.Agent.Name, true) == nil {
			return semanticError(IDNotFound, r.Agent.Tok)
		}
	}
	if len(call.Ranges) != len(sym.Ranges) {
		return semanticError(WrongParamsNum, call.Tok)
	}
	for _, r := range call.Ranges {
		if err := a.agentRange(r); err != nil {
			return err
		}
	}
	if len(call.Args) != len(sym.Params) {
		return semanticError(WrongParamsNum, call.Tok)
	}
	for _, arg := range call.Args {
		if err := a.visit(arg); err != nil {
			return err
		}
	}
	call.Symbol = sym
	return nil
}

// agentRange checks the agent names an agent range and, for agents bound in
// Main with constant bounds, that [start, end) lies within [0, count).
func (a *Analyzer) agentRange(r *AgentRange) error {
	var rs *AgentRangeSymbol
	switch s := a.current.Lookup(r.Agent.Name, false).(type) {
	case nil:
		return semanticError(IDNotFound, r.Agent.Tok)
	case *AgentRangeSymbol:
		rs = s
	case *AgentSymbol:
	default:
		return semanticError(DuplicateID, r.Agent.Tok)
	}
	if err := a.visit(r.Start); err != nil {
		return err
	}
	if err := a.visit(r.End); err != nil {
		return err
	}

	if rs == nil || rs.Agent == nil {
		return nil
	}
	start, okStart := constInt(r.Start)
	end, okEnd := constInt(r.End)
	if okStart && (start < 0 || start > rs.Count) {
		return semanticError(OutOfRange, r.Start.Pos())
	}
	if okEnd && (end < 0 || end > rs.Count) {
		return semanticError(OutOfRange, r.End.Pos())
	}
	if okStart && okEnd && start > end {
		return semanticError(OutOfRange, r.End.Pos())
	}
	return nil
}

// constInt evaluates integer literals and their negation.
func constInt(n Node) (int64, bool) {
	switch e := n.(type) {
	case *Num:
		v, ok := e.Value.(int64)
		return v, ok
	case *UnaryOp:
		v, ok := constInt(e.Expr)
		if !ok {
			return 0, false
		}
		switch e.Op.Type {
		case MINUS:
			return -v, true
		case PLUS:
			return v, true
		}
	}
	return 0, false
}

func (a *Analyzer) compound(c *Compound) error {
	var keys []string
	seen := make(map[string]bool)
	for _, child := range c.Children {
		if put, ok := child.(*Put); ok && !put.Key.Queue && !seen[put.Key.Name] {
			seen[put.Key.Name] = true
			keys = append(keys, put.Key.Name)
		}
		if err := a.visit(child); err != nil {
			return err
		}
	}
	sort.Strings(keys)
	c.LockKeys = keys
	return nil
}

func (a *Analyzer) fanOut(r *AgentRange, body *Compound, kind string) error {
	if err := a.agentRange(r); err != nil {
		return err
	}
	a.push(kind)
	defer a.pop()
	a.current.Insert(&VarSymbol{symbol{name: "id"}})
	return a.compound(body)
}

// assignable rejects writes to imported library names and declares new locals.
func (a *Analyzer) assignable(v *Var) error {
	switch a.current.Lookup(v.Name, false).(type) {
	case *LibrarySymbol:
		return semanticError(LibraryCannotBeAssigned, v.Tok)
	case nil:
		a.current.Insert(&VarSymbol{symbol{name: v.Name}})
	}
	return nil
}

func (a *Analyzer) visit(n Node) error {
	switch e := n.(type) {
	case nil, *Num, *String, *NoOp:
		return nil
	case *Compound:
		return a.compound(e)
	case *IfElse:
		if err := a.visit(e.Cond); err != nil {
			return err
		}
		if err := a.compound(e.Then); err != nil {
			return err
		}
		if e.Else != nil {
			return a.visit(e.Else)
		}
		return nil
	case *Return:
		return a.visit(e.Value)
	case *Assign:
		if err := a.visit(e.Value); err != nil {
			return err
		}
		return a.assignable(e.Target)
	case *Put:
		return a.visit(e.Value)
	case *Get:
		return a.assignable(e.Target)
	case *TaskCall:
		return a.taskCall(e)
	case *TaskOrder:
		return a.fanOut(e.Range, e.Body, "order")
	case *TaskEach:
		return a.fanOut(e.Range, e.Body, "each")
	case *FunctionCall:
		return a.functionCall(e)
	case *LibraryCall:
		if _, ok := a.current.Lookup(e.Path[0], false).(*LibrarySymbol); !ok {
			return semanticError(IDNotFound, e.Tok)
		}
		for _, arg := range e.Args {
			if err := a.visit(arg); err != nil {
				return err
			}
		}
		e.Symbol = a.current.Lookup(e.Path[0], false).(*LibrarySymbol)
		return nil
	case *BinOp:
		if err := a.visit(e.Left); err != nil {
			return err
		}
		return a.visit(e.Right)
	case *UnaryOp:
		return a.visit(e.Expr)
	case *Var:
		if a.current.Lookup(e.Name, false) == nil {
			return semanticError(IDNotFound, e.Tok)
		}
		return nil
	default:
		return semanticError(UnexpectedToken, n.Pos())
	}
}

// functionCall resolves the callee globally. Unknown names inside an Action
// are capabilities.
func (a *Analyzer) functionCall(call *FunctionCall) error {
	var params int
	switch s := a.global.Lookup(call.Name, false).(type) {
	case *ActionSymbol:
		params = len(s.Params)
		call.Symbol = s
	case *BehaviorSymbol:
		params = len(s.Params)
		call.Symbol = s
	case nil:
		if !a.inAction {
			return semanticError(IDNotFound, call.Tok)
		}
		if a.logger != nil {
			a.logger.Debug("capability call", "component", "scope", "name", call.Name)
		}
		call.Symbol = &CapabilitySymbol{symbol{name: call.Name}}
		params = -1
	default:
		return semanticError(IDNotFound, call.Tok)
	}
	if params >= 0 && len(call.Args) != params {
		return semanticError(WrongParamsNum, call.Tok)
	}
	for _, arg := range call.Args {
		if err := a.visit(arg); err != nil {
			return err
		}
	}
	return nil
}
