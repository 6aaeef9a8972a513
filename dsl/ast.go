package dsl

// Node is an element of the syntax tree.
type Node interface {
	// Pos returns the token that starts the node, used for diagnostics.
	Pos() Token
}

// Program is the root of a parsed source file.
type Program struct {
	Libraries []*Library
	Actions   []*Action
	Agents    []*Agent
	Behaviors []*Behavior
	Tasks     []*Task
	Main      *Main
}

// Library imports a library module by name.
type Library struct {
	Tok  Token
	Name string
}

// Action is a sequential procedure; unknown calls inside it are capabilities.
type Action struct {
	Tok    Token
	Name   string
	Params []*Var
	Body   *Compound
}

// Agent declares a class of swarm participant and the actions it may perform.
type Agent struct {
	Tok       Token
	Name      string
	Abilities []*Var
}

// Behavior is a per-agent parallel goal-driven routine.
type Behavior struct {
	Tok     Token
	Name    string
	Params  []*Var
	Init    *InitBlock
	Goal    *GoalBlock
	Routine *RoutineBlock
}

// Task is a swarm-wide goal-driven routine invoked over agent ranges.
type Task struct {
	Tok     Token
	Name    string
	Ranges  []*AgentRange
	Params  []*Var
	Init    *InitBlock
	Goal    *GoalBlock
	Routine *RoutineBlock
}

// Main instantiates agents and runs tasks over them.
type Main struct {
	Tok    Token
	Agents []*AgentCall
	Tasks  []*TaskCall
}

// AgentCall binds count instances of an agent: Agent drone 3;
type AgentCall struct {
	Tok    Token
	Agent  *Var
	Count  *Num
	Symbol *AgentSymbol
}

// TaskCall invokes a task over agent ranges.
type TaskCall struct {
	Tok    Token
	Name   string
	Ranges []*AgentRange
	Args   []Node
	Symbol *TaskSymbol
}

// AgentRange is agent[start~end]. In task declarations Start and End are *Var.
type AgentRange struct {
	Agent *Var
	Start Node
	End   Node
}

// FunctionCall invokes an action, a behavior or a capability.
type FunctionCall struct {
	Tok    Token
	Name   string
	Args   []Node
	Symbol Symbol
}

// LibraryCall reads or invokes a dotted library member.
type LibraryCall struct {
	Tok    Token
	Path   []string
	Args   []Node
	Called bool
	Symbol *LibrarySymbol
}

// Compound is a brace-delimited statement list.
type Compound struct {
	Tok      Token
	Children []Node

	// LockKeys are the knowledge cells this compound puts to directly,
	// sorted. Filled in by the analyzer. A get of any other cell locks only
	// for the read.
	LockKeys []string
}

// IfElse selects a branch. Else is nil, a *Compound or a nested *IfElse.
type IfElse struct {
	Tok  Token
	Cond Node
	Then *Compound
	Else Node
}

// Return leaves the current procedure. Value may be nil.
type Return struct {
	Tok   Token
	Value Node
}

// Assign binds a value to a local variable.
type Assign struct {
	Tok    Token
	Target *Var
	Value  Node
}

// KnowledgeKey addresses a blackboard cell (#k#) or queue (##k##).
type KnowledgeKey struct {
	Tok   Token
	Name  string
	Queue bool
}

// Put writes to the blackboard.
type Put struct {
	Tok   Token
	Value Node
	Key   *KnowledgeKey
}

// Get reads from the blackboard into a local variable.
type Get struct {
	Tok    Token
	Target *Var
	Key    *KnowledgeKey
}

// InitBlock runs once before the routine starts.
type InitBlock struct {
	Tok  Token
	Body *Compound
}

// GoalBlock runs Body then evaluates Cond after every routine iteration.
// Cond is *NoOp when the goal has no expression.
type GoalBlock struct {
	Tok  Token
	Body *Compound
	Cond Node
}

// RoutineBlock holds the parallel branches separated by ||.
type RoutineBlock struct {
	Tok      Token
	Branches []*Compound
}

// TaskOrder runs its calls for each agent id in turn on one goroutine.
type TaskOrder struct {
	Tok   Token
	Range *AgentRange
	Body  *Compound
}

// TaskEach runs its calls for every agent id concurrently.
type TaskEach struct {
	Tok   Token
	Range *AgentRange
	Body  *Compound
}

// BinOp is a binary operation.
type BinOp struct {
	Op    Token
	Left  Node
	Right Node
}

// UnaryOp is not, unary plus or unary minus.
type UnaryOp struct {
	Op   Token
	Expr Node
}

// Var references a variable.
type Var struct {
	Tok  Token
	Name string
}

// Num is an integer (int64) or fixed-point (float64) literal.
type Num struct {
	Tok   Token
	Value any
}

// String is a string literal.
type String struct {
	Tok   Token
	Value string
}

// NoOp is the empty statement or an absent goal expression.
type NoOp struct {
	Tok Token
}

func (n *Library) Pos() Token      { return n.Tok }
func (n *Action) Pos() Token       { return n.Tok }
func (n *Agent) Pos() Token        { return n.Tok }
func (n *Behavior) Pos() Token     { return n.Tok }
func (n *Task) Pos() Token         { return n.Tok }
func (n *Main) Pos() Token         { return n.Tok }
func (n *AgentCall) Pos() Token    { return n.Tok }
func (n *TaskCall) Pos() Token     { return n.Tok }
func (n *AgentRange) Pos() Token   { return n.Agent.Tok }
func (n *FunctionCall) Pos() Token { return n.Tok }
func (n *LibraryCall) Pos() Token  { return n.Tok }
func (n *Compound) Pos() Token     { return n.Tok }
func (n *IfElse) Pos() Token       { return n.Tok }
func (n *Return) Pos() Token       { return n.Tok }
func (n *Assign) Pos() Token       { return n.Tok }
func (n *KnowledgeKey) Pos() Token { return n.Tok }
func (n *Put) Pos() Token          { return n.Tok }
func (n *Get) Pos() Token          { return n.Tok }
func (n *InitBlock) Pos() Token    { return n.Tok }
func (n *GoalBlock) Pos() Token    { return n.Tok }
func (n *RoutineBlock) Pos() Token { return n.Tok }
func (n *TaskOrder) Pos() Token    { return n.Tok }
func (n *TaskEach) Pos() Token     { return n.Tok }
func (n *BinOp) Pos() Token        { return n.Op }
func (n *UnaryOp) Pos() Token      { return n.Op }
func (n *Var) Pos() Token          { return n.Tok }
func (n *Num) Pos() Token          { return n.Tok }
func (n *String) Pos() Token       { return n.Tok }
func (n *NoOp) Pos() Token         { return n.Tok }
