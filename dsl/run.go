package dsl

import (
	"context"
)

// Check lexes, parses and analyzes src without running it.
func Check(src string, opts ...AnalyzerOption) (*Program, *Scope, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, nil, err
	}
	globals, err := NewAnalyzer(opts...).Analyze(prog)
	if err != nil {
		return nil, nil, err
	}
	return prog, globals, nil
}

// Run executes src through every stage, stopping at the first error. The
// returned interpreter is nil when a static stage failed.
func Run(ctx context.Context, src string, opts ...InterpreterOption) (*Interpreter, error) {
	interp := newInterpreter(opts...)

	var analyzerOpts []AnalyzerOption
	if interp.scopeLog != nil {
		analyzerOpts = append(analyzerOpts, WithScopeTrace(interp.scopeLog))
	}
	prog, globals, err := Check(src, analyzerOpts...)
	if err != nil {
		return nil, err
	}
	interp.bind(prog, globals)
	return interp, interp.Interpret(ctx)
}
