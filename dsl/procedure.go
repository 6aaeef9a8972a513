package dsl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/everydev1618/swarm"
)

// Span is the runtime value of an agent range: instances [Start, End) of Agent.
type Span struct {
	Agent string
	Start int64
	End   int64
}

func (s Span) String() string {
	return fmt.Sprintf("%s[%d~%d]", s.Agent, s.Start, s.End)
}

// Vehicles returns the provider names of the instances in the span.
func (s Span) Vehicles() []string {
	out := make([]string, 0, s.End-s.Start)
	for id := s.Start; id < s.End; id++ {
		out = append(out, VehicleName(s.Agent, id))
	}
	return out
}

func (i *Interpreter) executeMain(ctx context.Context, ec *execContext, m *Main) (err error) {
	ar := swarm.NewActivationRecord("Main", swarm.KindMain, ec.stack.Depth()+1)
	i.push(ec, ar)
	defer i.pop(ec)

	i.publish(ec, swarm.EventStarted, "Main", swarm.KindMain, nil)
	defer func() {
		if err != nil {
			i.publish(ec, swarm.EventFailed, "Main", swarm.KindMain, err)
			return
		}
		i.publish(ec, swarm.EventCompleted, "Main", swarm.KindMain, nil)
	}()

	for _, call := range m.Agents {
		count, _ := call.Count.Value.(int64)
		span := Span{Agent: call.Agent.Name, Start: 0, End: count}
		ar.Set(call.Agent.Name, span)
		if err := ec.provider.SetHome(ctx, span.Vehicles()); err != nil {
			return runtimeError(UnexpectedToken, call.Tok, err)
		}
	}
	for _, call := range m.Tasks {
		if _, err := i.executeTaskCall(ctx, ec, call); err != nil {
			return err
		}
	}
	return nil
}

// resolveSpan evaluates an actual agent range and checks that it lies inside
// the span bound to its agent name.
func (i *Interpreter) resolveSpan(ctx context.Context, ec *execContext, r *AgentRange) (Span, error) {
	v, err := i.lookup(ec, r.Agent)
	if err != nil {
		return Span{}, err
	}
	bound, ok := v.(Span)
	if !ok {
		return Span{}, runtimeError(UnexpectedToken, r.Agent.Tok, fmt.Errorf("%w: %s is not an agent range", swarm.ErrTypeMismatch, r.Agent.Name))
	}
	start, err := i.evaluateIndex(ctx, ec, r.Start)
	if err != nil {
		return Span{}, err
	}
	end, err := i.evaluateIndex(ctx, ec, r.End)
	if err != nil {
		return Span{}, err
	}
	if start < bound.Start || start > bound.End {
		return Span{}, runtimeError(OutOfRange, r.Start.Pos(), nil)
	}
	if end > bound.End || end < start {
		return Span{}, runtimeError(OutOfRange, r.End.Pos(), nil)
	}
	return Span{Agent: bound.Agent, Start: start, End: end}, nil
}

func (i *Interpreter) evaluateIndex(ctx context.Context, ec *execContext, n Node) (int64, error) {
	v, err := i.evaluate(ctx, ec, n)
	if err != nil {
		return 0, err
	}
	id, ok := v.(int64)
	if !ok {
		return 0, runtimeError(UnexpectedToken, n.Pos(), fmt.Errorf("%w: range bound %s", swarm.ErrTypeMismatch, swarm.FormatValue(v)))
	}
	return id, nil
}

func (i *Interpreter) evaluateArgs(ctx context.Context, ec *execContext, args []Node) ([]any, error) {
	out := make([]any, len(args))
	for idx, arg := range args {
		v, err := i.evaluate(ctx, ec, arg)
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

func (i *Interpreter) executeTaskCall(ctx context.Context, ec *execContext, call *TaskCall) (any, error) {
	if call.Symbol == nil {
		return nil, runtimeError(IDNotFound, call.Tok, nil)
	}
	task := call.Symbol.Decl
	ar := swarm.NewActivationRecord(task.Name, swarm.KindTask, ec.stack.Depth()+1)

	for idx, r := range call.Ranges {
		span, err := i.resolveSpan(ctx, ec, r)
		if err != nil {
			return nil, err
		}
		formal := task.Ranges[idx]
		ar.Set(formal.Agent.Name, span)
		ar.Set(formal.Start.(*Var).Name, span.Start)
		ar.Set(formal.End.(*Var).Name, span.End)
	}
	args, err := i.evaluateArgs(ctx, ec, call.Args)
	if err != nil {
		return nil, err
	}
	for idx, p := range task.Params {
		ar.Set(p.Name, args[idx])
	}

	resume := ec.suspend()
	defer resume()
	return i.runInstance(ctx, ec, ar, task.Init, task.Goal, task.Routine)
}

// executeCall dispatches a call to an Action, a Behavior or a capability.
func (i *Interpreter) executeCall(ctx context.Context, ec *execContext, call *FunctionCall) (any, error) {
	args, err := i.evaluateArgs(ctx, ec, call.Args)
	if err != nil {
		return nil, err
	}

	switch sym := call.Symbol.(type) {
	case *ActionSymbol:
		if err := i.checkAbility(ec, call); err != nil {
			return nil, err
		}
		return i.executeAction(ctx, ec, sym.Decl, args)
	case *BehaviorSymbol:
		decl := sym.Decl
		ar := swarm.NewActivationRecord(decl.Name, swarm.KindBehavior, ec.stack.Depth()+1)
		for idx, p := range decl.Params {
			ar.Set(p.Name, args[idx])
		}
		resume := ec.suspend()
		defer resume()
		return i.runInstance(ctx, ec, ar, decl.Init, decl.Goal, decl.Routine)
	case *CapabilitySymbol:
		return i.invokeCapability(ctx, ec, call, args)
	default:
		return nil, runtimeError(IDNotFound, call.Tok, nil)
	}
}

// checkAbility requires Behavior and Task code acting for an agent to call
// only the Actions that agent declares.
func (i *Interpreter) checkAbility(ec *execContext, call *FunctionCall) error {
	if ec.agent == nil {
		return nil
	}
	caller := ec.stack.Nearest(procedureKinds...)
	if caller == nil || (caller.Kind != swarm.KindBehavior && caller.Kind != swarm.KindTask) {
		return nil
	}
	agent, ok := i.agents[ec.agent.Agent]
	if !ok || !agent.HasAbility(call.Name) {
		return runtimeError(AbilityNotDefineInAgent, call.Tok, nil)
	}
	return nil
}

func (i *Interpreter) executeAction(ctx context.Context, ec *execContext, act *Action, args []any) (any, error) {
	ar := swarm.NewActivationRecord(act.Name, swarm.KindAction, ec.stack.Depth()+1)
	for idx, p := range act.Params {
		ar.Set(p.Name, args[idx])
	}
	i.push(ec, ar)
	defer i.pop(ec)

	ret, err := i.executeCompound(ctx, ec, act.Body)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		return ret.value, nil
	}
	return nil, nil
}

func (i *Interpreter) invokeCapability(ctx context.Context, ec *execContext, call *FunctionCall, args []any) (any, error) {
	v, err := i.capabilities.Invoke(ctx, swarm.Call{
		Name:     call.Name,
		Args:     args,
		Vehicle:  ec.vehicle(),
		Provider: ec.provider,
	})
	if err != nil {
		if errors.Is(err, swarm.ErrCapabilityNotFound) {
			return nil, runtimeError(IDNotFound, call.Tok, err)
		}
		return nil, runtimeError(UnexpectedToken, call.Tok, err)
	}
	return swarm.Normalize(v), nil
}

// runInstance executes a Behavior or Task whose record ar is already bound:
// init once, then one goroutine per routine branch until the goal holds or
// a branch returns, then joins.
func (i *Interpreter) runInstance(ctx context.Context, ec *execContext, ar *swarm.ActivationRecord, ib *InitBlock, goal *GoalBlock, routine *RoutineBlock) (result any, err error) {
	inst := newInstance(ar.Name, ar.Kind)
	i.push(ec, ar)
	defer i.pop(ec)

	i.publish(ec, swarm.EventStarted, ar.Name, ar.Kind, nil)
	defer func() {
		if err != nil {
			i.publish(ec, swarm.EventFailed, ar.Name, ar.Kind, err)
			return
		}
		i.publish(ec, swarm.EventCompleted, ar.Name, ar.Kind, nil)
	}()

	prev := ec.instance
	ec.instance = inst
	defer func() { ec.instance = prev }()

	ret, err := i.executeCompound(ctx, ec, ib.Body)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		return ret.value, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(routine.Branches))
	for idx, branch := range routine.Branches {
		node := ec.stack.Spawn(fmt.Sprintf("%s/%s#%d", ar.Name, inst.id, idx))
		bc := ec.fork(node)
		wg.Add(1)
		go func(idx int, branch *Compound) {
			defer wg.Done()
			defer node.Detach()
			errs[idx] = i.runBranch(ctx, bc, inst, idx, branch, goal)
		}(idx, branch)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return inst.result(), nil
}

// runBranch repeats body until the instance terminates.
func (i *Interpreter) runBranch(ctx context.Context, ec *execContext, inst *instance, branch int, body *Compound, goal *GoalBlock) error {
	for iteration := 1; ; iteration++ {
		if inst.terminated.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ret, err := i.executeCompound(ctx, ec, body)
		if err != nil {
			return err
		}
		if ret != nil {
			inst.finish(ret.value)
			return nil
		}

		done, err := i.checkGoal(ctx, ec, inst, goal, branch, iteration)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// checkGoal evaluates the goal against the instance's shared record. Goal
// checks of one instance never overlap, so exactly one branch flips the flag.
func (i *Interpreter) checkGoal(ctx context.Context, ec *execContext, inst *instance, goal *GoalBlock, branch, iteration int) (bool, error) {
	inst.goalMu.Lock()
	defer inst.goalMu.Unlock()
	if inst.terminated.Load() {
		return true, nil
	}

	shared := ec.stack.Parent()
	node := shared.Spawn(fmt.Sprintf("%s/%s#goal", inst.name, inst.id))
	defer node.Detach()
	gc := ec.fork(node)

	ret, err := i.executeCompound(ctx, gc, goal.Body)
	if err != nil {
		return false, err
	}
	if ret != nil {
		inst.finish(ret.value)
		return true, nil
	}
	if _, ok := goal.Cond.(*NoOp); ok {
		return false, nil
	}

	v, err := i.evaluate(ctx, gc, goal.Cond)
	if err != nil {
		return false, err
	}
	if swarm.Truthy(v) && inst.terminated.CompareAndSwap(false, true) {
		i.logger.Debug("goal reached", "procedure", inst.name, "instance", inst.id, "branch", branch, "iteration", iteration)
		if i.sink != nil {
			i.sink.Publish(swarm.Event{
				Type:      swarm.EventGoalReached,
				RunID:     i.runID,
				NodeID:    gc.stack.ID,
				Procedure: inst.name,
				Kind:      inst.kind,
				Vehicle:   gc.vehicle(),
				Timestamp: time.Now(),
				Branch:    branch,
				Iteration: iteration,
			})
		}
		return true, nil
	}
	return inst.terminated.Load(), nil
}
