package dsl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/everydev1618/swarm"
)

// executeCompound runs the statements of c in order while holding the locks
// of the knowledge cells it touches directly.
func (i *Interpreter) executeCompound(ctx context.Context, ec *execContext, c *Compound) (*returned, error) {
	if c == nil {
		return nil, nil
	}
	release := ec.acquire(i.knowledge, c.LockKeys)
	defer release()

	for _, child := range c.Children {
		ret, err := i.executeStatement(ctx, ec, child)
		if err != nil || ret != nil {
			return ret, err
		}
	}
	return nil, nil
}

func (i *Interpreter) executeStatement(ctx context.Context, ec *execContext, n Node) (*returned, error) {
	switch s := n.(type) {
	case nil, *NoOp:
		return nil, nil
	case *Compound:
		return i.executeCompound(ctx, ec, s)
	case *IfElse:
		return i.executeIf(ctx, ec, s)
	case *Return:
		var v any
		if s.Value != nil {
			var err error
			if v, err = i.evaluate(ctx, ec, s.Value); err != nil {
				return nil, err
			}
		}
		return &returned{value: v}, nil
	case *Assign:
		v, err := i.evaluate(ctx, ec, s.Value)
		if err != nil {
			return nil, err
		}
		ec.stack.Peek().Set(s.Target.Name, v)
		return nil, nil
	case *Put:
		return nil, i.executePut(ctx, ec, s)
	case *Get:
		return nil, i.executeGet(ctx, ec, s)
	case *FunctionCall:
		_, err := i.executeCall(ctx, ec, s)
		return nil, err
	case *LibraryCall:
		_, err := i.executeLibraryCall(ctx, ec, s)
		return nil, err
	case *TaskCall:
		_, err := i.executeTaskCall(ctx, ec, s)
		return nil, err
	case *TaskOrder:
		return nil, i.executeOrder(ctx, ec, s)
	case *TaskEach:
		return nil, i.executeEach(ctx, ec, s)
	default:
		return nil, runtimeError(UnexpectedToken, n.Pos(), nil)
	}
}

func (i *Interpreter) executeIf(ctx context.Context, ec *execContext, s *IfElse) (*returned, error) {
	cond, err := i.evaluate(ctx, ec, s.Cond)
	if err != nil {
		return nil, err
	}
	if swarm.Truthy(cond) {
		return i.executeCompound(ctx, ec, s.Then)
	}
	if s.Else != nil {
		return i.executeStatement(ctx, ec, s.Else)
	}
	return nil, nil
}

func (i *Interpreter) executePut(ctx context.Context, ec *execContext, s *Put) error {
	v, err := i.evaluate(ctx, ec, s.Value)
	if err != nil {
		return err
	}
	key := s.Key.Name
	switch {
	case s.Key.Queue:
		i.knowledge.Queue(key).Push(v)
	case ec.held[key]:
		i.knowledge.StoreLocked(key, v)
	default:
		i.knowledge.Store(key, v)
	}
	return nil
}

func (i *Interpreter) executeGet(ctx context.Context, ec *execContext, s *Get) error {
	key := s.Key.Name
	var v any
	switch {
	case s.Key.Queue:
		var err error
		v, err = i.knowledge.Queue(key).Pop(ctx)
		if err != nil {
			return runtimeError(UnexpectedToken, s.Key.Tok, err)
		}
	case ec.held[key]:
		var ok bool
		if v, ok = i.knowledge.LoadLocked(key); !ok {
			return runtimeError(IDNotFound, s.Key.Tok, fmt.Errorf("%w: %s", swarm.ErrKeyNotFound, key))
		}
	default:
		var ok bool
		if v, ok = i.knowledge.Load(key); !ok {
			return runtimeError(IDNotFound, s.Key.Tok, fmt.Errorf("%w: %s", swarm.ErrKeyNotFound, key))
		}
	}
	ec.stack.Peek().Set(s.Target.Name, v)
	return nil
}

func agentRecord(ec *execContext, agent string, id int64) *swarm.ActivationRecord {
	ar := swarm.NewActivationRecord(VehicleName(agent, id), swarm.KindAgent, ec.stack.Depth()+1)
	ar.Set("id", id)
	return ar
}

// executeOrder runs the body for each id of the range in turn on the
// calling goroutine.
func (i *Interpreter) executeOrder(ctx context.Context, ec *execContext, s *TaskOrder) error {
	span, err := i.resolveSpan(ctx, ec, s.Range)
	if err != nil {
		return err
	}

	prev := ec.agent
	defer func() { ec.agent = prev }()
	for id := span.Start; id < span.End; id++ {
		ec.agent = &agentRef{Agent: span.Agent, ID: id}
		ar := agentRecord(ec, span.Agent, id)
		i.push(ec, ar)
		_, err := i.executeCompound(ctx, ec, s.Body)
		i.pop(ec)
		if err != nil {
			return err
		}
	}
	return nil
}

// executeEach runs the body for every id of the range concurrently, each
// on its own call-stack node with its own provider clone, and waits for all.
func (i *Interpreter) executeEach(ctx context.Context, ec *execContext, s *TaskEach) error {
	span, err := i.resolveSpan(ctx, ec, s.Range)
	if err != nil {
		return err
	}

	resume := ec.suspend()
	defer resume()

	var wg sync.WaitGroup
	errs := make([]error, span.End-span.Start)
	for id := span.Start; id < span.End; id++ {
		node := ec.stack.Spawn(VehicleName(span.Agent, id))
		ac := ec.fork(node)
		ac.provider = ec.provider.Clone()
		ac.agent = &agentRef{Agent: span.Agent, ID: id}

		wg.Add(1)
		go func(idx int64) {
			defer wg.Done()
			defer node.Detach()
			i.push(ac, agentRecord(ac, span.Agent, ac.agent.ID))
			defer i.pop(ac)
			_, errs[idx] = i.executeCompound(ctx, ac, s.Body)
		}(id - span.Start)
	}
	wg.Wait()
	return errors.Join(errs...)
}
