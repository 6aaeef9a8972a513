package dsl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/swarm"
)

// InterpreterOption configures the interpreter.
type InterpreterOption func(*Interpreter)

// WithProvider sets the vehicle provider. Defaults to a SimProvider.
func WithProvider(p swarm.Provider) InterpreterOption {
	return func(i *Interpreter) {
		i.provider = p
	}
}

// WithCapabilities sets the capability registry used for calls that
// resolve to no Action or Behavior.
func WithCapabilities(c *swarm.Capabilities) InterpreterOption {
	return func(i *Interpreter) {
		i.capabilities = c
	}
}

// WithLibraries sets the registry that Import statements resolve against.
func WithLibraries(l *swarm.Libraries) InterpreterOption {
	return func(i *Interpreter) {
		i.libraries = l
	}
}

// WithKnowledge seeds the blackboard. The interpreter writes to k directly.
func WithKnowledge(k *swarm.Knowledge) InterpreterOption {
	return func(i *Interpreter) {
		i.knowledge = k
	}
}

// WithStackTrace logs every activation record push and pop, together with
// the visible call stack, at debug level.
func WithStackTrace(logger *slog.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.stackLog = logger
	}
}

// WithScopes enables the analyzer's scope trace when running through Run.
func WithScopes(logger *slog.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.scopeLog = logger
	}
}

// WithLogger sets the logger for run lifecycle messages.
func WithLogger(logger *slog.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithEventSink receives procedure lifecycle events.
func WithEventSink(sink swarm.EventSink) InterpreterOption {
	return func(i *Interpreter) {
		i.sink = sink
	}
}

// WithRunID sets the id stamped on events. Defaults to a random UUID.
func WithRunID(id string) InterpreterOption {
	return func(i *Interpreter) {
		i.runID = id
	}
}

// Interpreter executes an analyzed program.
type Interpreter struct {
	prog   *Program
	agents map[string]*AgentSymbol

	provider     swarm.Provider
	capabilities *swarm.Capabilities
	libraries    *swarm.Libraries
	knowledge    *swarm.Knowledge

	logger   *slog.Logger
	stackLog *slog.Logger
	scopeLog *slog.Logger
	sink     swarm.EventSink
	runID    string

	mu    sync.Mutex
	stack *swarm.CallStack
}

// NewInterpreter creates an interpreter for prog. globals is the scope
// returned by Analyze for the same program.
func NewInterpreter(prog *Program, globals *Scope, opts ...InterpreterOption) *Interpreter {
	i := newInterpreter(opts...)
	i.bind(prog, globals)
	return i
}

// bind attaches the analyzed program.
func (i *Interpreter) bind(prog *Program, globals *Scope) {
	i.prog = prog
	if globals == nil {
		return
	}
	for _, sym := range globals.Symbols() {
		if a, ok := sym.(*AgentSymbol); ok {
			i.agents[a.Name()] = a
		}
	}
}

// newInterpreter applies opts and fills in defaults.
func newInterpreter(opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{agents: make(map[string]*AgentSymbol)}
	for _, opt := range opts {
		opt(i)
	}

	if i.provider == nil {
		i.provider = swarm.NewSimProvider()
	}
	if i.capabilities == nil {
		i.capabilities = swarm.NewCapabilities()
	}
	if i.libraries == nil {
		i.libraries = swarm.DefaultLibraries(nil)
	}
	if i.knowledge == nil {
		i.knowledge = swarm.NewKnowledge()
	}
	if !i.libraries.Has(BlackboardModule) {
		// The caller's registry may be shared by other runs.
		i.libraries = i.libraries.Clone()
		i.libraries.Register(BlackboardModule, blackboardLibrary(i.knowledge))
	}
	if i.logger == nil {
		i.logger = slog.New(slog.DiscardHandler)
	}
	if i.runID == "" {
		i.runID = uuid.New().String()
	}
	return i
}

// RunID returns the id stamped on this interpreter's events.
func (i *Interpreter) RunID() string {
	return i.runID
}

// Knowledge returns the blackboard.
func (i *Interpreter) Knowledge() *swarm.Knowledge {
	return i.knowledge
}

// CallStack returns the root of the call-stack tree of the current or last
// run, or nil before Interpret is called.
func (i *Interpreter) CallStack() *swarm.CallStack {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stack
}

// Interpret runs Main. It returns once every task has finished.
func (i *Interpreter) Interpret(ctx context.Context) error {
	for _, lib := range i.prog.Libraries {
		if !i.libraries.Has(lib.Name) {
			return runtimeError(IDNotFound, lib.Tok, fmt.Errorf("%w: %s", swarm.ErrLibraryNotFound, lib.Name))
		}
	}

	root := swarm.NewProgramRecord("Program", i.knowledge)
	stack := swarm.NewCallStack(root)
	i.mu.Lock()
	i.stack = stack
	i.mu.Unlock()

	start := time.Now()
	i.logger.Info("run started", "run_id", i.runID)
	err := i.executeMain(ctx, &execContext{stack: stack, provider: i.provider}, i.prog.Main)
	if err != nil {
		i.logger.Error("run failed", "run_id", i.runID, "error", err, "duration", time.Since(start))
		return err
	}
	i.logger.Info("run completed", "run_id", i.runID, "duration", time.Since(start))
	return nil
}

// execContext is the state of one goroutine of the running program.
type execContext struct {
	stack    *swarm.CallStack
	provider swarm.Provider
	agent    *agentRef
	instance *instance

	// held are the knowledge keys this goroutine has locked, and locks the
	// lock sets of the enclosing compounds, outermost first.
	held  map[string]bool
	locks []*swarm.LockSet
}

// fork returns the context of a goroutine started on node. It holds no locks.
func (ec *execContext) fork(node *swarm.CallStack) *execContext {
	return &execContext{
		stack:    node,
		provider: ec.provider,
		agent:    ec.agent,
		instance: ec.instance,
	}
}

// acquire locks the keys not already held, in sorted order, and returns the
// matching release.
func (ec *execContext) acquire(k *swarm.Knowledge, keys []string) func() {
	var fresh []string
	for _, key := range keys {
		if !ec.held[key] {
			fresh = append(fresh, key)
		}
	}
	if len(fresh) == 0 {
		return func() {}
	}

	ls := swarm.NewLockSet(k, fresh...)
	ls.Lock()
	if ec.held == nil {
		ec.held = make(map[string]bool)
	}
	for _, key := range fresh {
		ec.held[key] = true
	}
	ec.locks = append(ec.locks, ls)

	return func() {
		ls.Unlock()
		for _, key := range fresh {
			delete(ec.held, key)
		}
		ec.locks = ec.locks[:len(ec.locks)-1]
	}
}

// suspend releases every held lock while the goroutine runs a callee and
// waits at its join. The callee starts with nothing held. The returned
// function takes the locks back and restores the held set.
func (ec *execContext) suspend() func() {
	if len(ec.locks) == 0 {
		return func() {}
	}
	held, locks := ec.held, ec.locks
	for i := len(locks) - 1; i >= 0; i-- {
		locks[i].Unlock()
	}
	ec.held, ec.locks = nil, nil
	return func() {
		for _, ls := range locks {
			ls.Lock()
		}
		ec.held, ec.locks = held, locks
	}
}

func (ec *execContext) vehicle() string {
	if ec.agent == nil {
		return ""
	}
	return ec.agent.vehicle()
}

// agentRef identifies the agent instance a goroutine acts for.
type agentRef struct {
	Agent string
	ID    int64
}

func (a *agentRef) vehicle() string {
	return VehicleName(a.Agent, a.ID)
}

// VehicleName returns the provider name of agent instance id.
func VehicleName(agent string, id int64) string {
	return fmt.Sprintf("%s_%d", agent, id)
}

// instance is one running Behavior or Task call.
type instance struct {
	id   string
	name string
	kind swarm.RecordKind

	terminated atomic.Bool
	goalMu     sync.Mutex

	mu       sync.Mutex
	value    any
	returned bool
}

func newInstance(name string, kind swarm.RecordKind) *instance {
	return &instance{
		id:   uuid.New().String()[:8],
		name: name,
		kind: kind,
	}
}

// finish records the instance's return value, first caller wins, and
// terminates it.
func (in *instance) finish(v any) {
	in.mu.Lock()
	if !in.returned {
		in.returned = true
		in.value = v
	}
	in.mu.Unlock()
	in.terminated.Store(true)
}

func (in *instance) result() any {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

func (in *instance) terminate() {
	in.terminated.Store(true)
}

// returned carries the value of a Return statement up to its procedure.
type returned struct {
	value any
}

// procedureKinds bound name resolution: variables are visible up to the
// nearest procedure record and no further.
var procedureKinds = []swarm.RecordKind{
	swarm.KindAction,
	swarm.KindBehavior,
	swarm.KindTask,
	swarm.KindMain,
	swarm.KindProgram,
}

func (i *Interpreter) lookup(ec *execContext, v *Var) (any, error) {
	val, _, ok := ec.stack.LookupUntil(v.Name, procedureKinds...)
	if !ok {
		return nil, runtimeError(IDNotFound, v.Tok, nil)
	}
	return val, nil
}

func (i *Interpreter) push(ec *execContext, ar *swarm.ActivationRecord) {
	ec.stack.Push(ar)
	i.traceStack(ec, "push", ar)
}

func (i *Interpreter) pop(ec *execContext) {
	ar := ec.stack.Pop()
	if ar != nil {
		i.traceStack(ec, "pop", ar)
	}
}

func (i *Interpreter) traceStack(ec *execContext, msg string, ar *swarm.ActivationRecord) {
	if i.stackLog == nil {
		return
	}
	i.stackLog.Debug(msg,
		"component", "stack",
		"node", ec.stack.ID,
		"label", ec.stack.Label,
		"record", ar.Name,
		"kind", ar.Kind,
		"stack", ec.stack.String(),
	)
}

func (i *Interpreter) publish(ec *execContext, typ swarm.EventType, name string, kind swarm.RecordKind, err error) {
	if i.sink == nil {
		return
	}
	e := swarm.Event{
		Type:      typ,
		RunID:     i.runID,
		NodeID:    ec.stack.ID,
		Procedure: name,
		Kind:      kind,
		Vehicle:   ec.vehicle(),
		Timestamp: time.Now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	i.sink.Publish(e)
}
