package dsl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/everydev1618/swarm"
)

func (i *Interpreter) evaluate(ctx context.Context, ec *execContext, n Node) (any, error) {
	switch e := n.(type) {
	case *Num:
		return e.Value, nil
	case *String:
		return e.Value, nil
	case *NoOp:
		return nil, nil
	case *Var:
		return i.lookup(ec, e)
	case *BinOp:
		return i.evaluateBinary(ctx, ec, e)
	case *UnaryOp:
		v, err := i.evaluate(ctx, ec, e.Expr)
		if err != nil {
			return nil, err
		}
		out, err := unary(e.Op.Type, v)
		if err != nil {
			return nil, runtimeError(UnexpectedToken, e.Op, err)
		}
		return out, nil
	case *FunctionCall:
		return i.executeCall(ctx, ec, e)
	case *LibraryCall:
		return i.executeLibraryCall(ctx, ec, e)
	default:
		return nil, runtimeError(UnexpectedToken, n.Pos(), nil)
	}
}

func (i *Interpreter) evaluateBinary(ctx context.Context, ec *execContext, e *BinOp) (any, error) {
	left, err := i.evaluate(ctx, ec, e.Left)
	if err != nil {
		return nil, err
	}
	switch e.Op.Type {
	case AND:
		if !swarm.Truthy(left) {
			return false, nil
		}
		right, err := i.evaluate(ctx, ec, e.Right)
		if err != nil {
			return nil, err
		}
		return swarm.Truthy(right), nil
	case OR:
		if swarm.Truthy(left) {
			return true, nil
		}
		right, err := i.evaluate(ctx, ec, e.Right)
		if err != nil {
			return nil, err
		}
		return swarm.Truthy(right), nil
	}

	right, err := i.evaluate(ctx, ec, e.Right)
	if err != nil {
		return nil, err
	}
	out, err := binary(e.Op.Type, left, right)
	if err != nil {
		return nil, runtimeError(UnexpectedToken, e.Op, err)
	}
	return out, nil
}

func (i *Interpreter) executeLibraryCall(ctx context.Context, ec *execContext, call *LibraryCall) (any, error) {
	if !call.Called {
		v, err := i.libraries.Resolve(call.Path)
		if err != nil {
			return nil, runtimeError(IDNotFound, call.Tok, err)
		}
		if _, ok := v.(swarm.LibraryFunc); ok {
			return nil, runtimeError(UnexpectedToken, call.Tok, fmt.Errorf("%w: %s is a function", swarm.ErrTypeMismatch, call.Tok.Text()))
		}
		return v, nil
	}

	args, err := i.evaluateArgs(ctx, ec, call.Args)
	if err != nil {
		return nil, err
	}
	lc := swarm.LibraryContext{Vehicle: ec.vehicle()}
	if inst := ec.instance; inst != nil {
		lc.GoalCaller = inst.name
		lc.Terminate = inst.terminate
	}
	v, err := i.libraries.Call(ctx, call.Path, args, lc)
	if err != nil {
		if errors.Is(err, swarm.ErrLibraryNotFound) {
			return nil, runtimeError(IDNotFound, call.Tok, err)
		}
		return nil, runtimeError(UnexpectedToken, call.Tok, err)
	}
	return swarm.Normalize(v), nil
}

func mismatch(op TokenType, l, r any) error {
	return fmt.Errorf("%w: %s %s %s", swarm.ErrTypeMismatch, typeName(l), op, typeName(r))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case Span:
		return "range"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func unary(op TokenType, v any) (any, error) {
	switch op {
	case NOT:
		return !swarm.Truthy(v), nil
	case MINUS:
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
	case PLUS:
		switch v.(type) {
		case int64, float64:
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", swarm.ErrTypeMismatch, op, typeName(v))
}

// binary applies an arithmetic, comparison or equality operator. Integer
// operands stay integral with floored division; any float operand makes the
// operation floating point.
func binary(op TokenType, l, r any) (any, error) {
	switch op {
	case IS_EQUAL:
		return equal(l, r), nil
	case NOT_EQUAL:
		return !equal(l, r), nil
	}

	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return nil, mismatch(op, l, r)
		}
		switch op {
		case PLUS:
			return ls + rs, nil
		case LESS:
			return ls < rs, nil
		case LESS_EQUAL:
			return ls <= rs, nil
		case GREATER:
			return ls > rs, nil
		case GREATER_EQUAL:
			return ls >= rs, nil
		}
		return nil, mismatch(op, l, r)
	}

	li, lok := l.(int64)
	ri, rok := r.(int64)
	if lok && rok {
		return integer(op, li, ri)
	}
	lf, lok := swarm.ToFloat(l)
	rf, rok := swarm.ToFloat(r)
	if !lok || !rok {
		return nil, mismatch(op, l, r)
	}
	return floating(op, lf, rf)
}

func integer(op TokenType, a, b int64) (any, error) {
	switch op {
	case PLUS:
		return a + b, nil
	case MINUS:
		return a - b, nil
	case MUL:
		return a * b, nil
	case DIV:
		if b == 0 {
			return nil, swarm.ErrDivisionByZero
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return q, nil
	case MOD:
		if b == 0 {
			return nil, swarm.ErrDivisionByZero
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case LESS:
		return a < b, nil
	case LESS_EQUAL:
		return a <= b, nil
	case GREATER:
		return a > b, nil
	case GREATER_EQUAL:
		return a >= b, nil
	}
	return nil, mismatch(op, a, b)
}

func floating(op TokenType, a, b float64) (any, error) {
	switch op {
	case PLUS:
		return a + b, nil
	case MINUS:
		return a - b, nil
	case MUL:
		return a * b, nil
	case DIV:
		if b == 0 {
			return nil, swarm.ErrDivisionByZero
		}
		return math.Floor(a / b), nil
	case MOD:
		if b == 0 {
			return nil, swarm.ErrDivisionByZero
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case LESS:
		return a < b, nil
	case LESS_EQUAL:
		return a <= b, nil
	case GREATER:
		return a > b, nil
	case GREATER_EQUAL:
		return a >= b, nil
	}
	return nil, mismatch(op, a, b)
}

// equal compares numbers by value across int and float.
func equal(l, r any) bool {
	lf, lok := swarm.ToFloat(l)
	rf, rok := swarm.ToFloat(r)
	if lok && rok {
		return lf == rf
	}
	return reflect.DeepEqual(l, r)
}
