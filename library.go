package swarm

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LibraryContext is the interpreter state handed to library functions.
type LibraryContext struct {
	// Vehicle is the vehicle bound to the calling agent, empty outside agent code.
	Vehicle string

	// GoalCaller names the Behavior or Task instance the call runs under.
	GoalCaller string

	// Terminate requests termination of that instance. Nil outside Behavior/Task code.
	Terminate func()
}

// LibraryFunc is a callable library member.
type LibraryFunc func(ctx context.Context, args []any, lc LibraryContext) (any, error)

// Libraries maps module names to members addressed by dotted path.
// A member is either a LibraryFunc or a constant value.
type Libraries struct {
	mu      sync.RWMutex
	modules map[string]map[string]any
}

// NewLibraries creates an empty registry.
func NewLibraries() *Libraries {
	return &Libraries{modules: make(map[string]map[string]any)}
}

// Register adds or extends a module. Member names may themselves be dotted.
func (l *Libraries) Register(module string, members map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[module]
	if !ok {
		m = make(map[string]any)
		l.modules[module] = m
	}
	for name, v := range members {
		m[name] = v
	}
}

// Clone returns a registry with the same modules that can be extended
// without affecting l.
func (l *Libraries) Clone() *Libraries {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c := NewLibraries()
	for name, members := range l.modules {
		m := make(map[string]any, len(members))
		for k, v := range members {
			m[k] = v
		}
		c.modules[name] = m
	}
	return c
}

// Has reports whether module is registered.
func (l *Libraries) Has(module string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.modules[module]
	return ok
}

// Modules returns the registered module names, sorted.
func (l *Libraries) Modules() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the member at path, where path[0] is the module.
func (l *Libraries) Resolve(path []string) (any, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, strings.Join(path, "."))
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[path[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, strings.Join(path, "."))
	}
	v, ok := m[strings.Join(path[1:], ".")]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, strings.Join(path, "."))
	}
	return v, nil
}

// Call resolves path and invokes it with args.
func (l *Libraries) Call(ctx context.Context, path []string, args []any, lc LibraryContext) (any, error) {
	v, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(LibraryFunc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, strings.Join(path, "."))
	}
	return fn(ctx, args, lc)
}

// DefaultLibraries returns a registry holding the math, sys and geo modules.
// sys.print writes to out, or stdout when out is nil.
func DefaultLibraries(out io.Writer) *Libraries {
	if out == nil {
		out = os.Stdout
	}
	l := NewLibraries()
	l.Register("math", mathLibrary())
	l.Register("sys", sysLibrary(out))
	l.Register("geo", geoLibrary())
	return l
}

func numbers(name string, args []any, n int) ([]float64, error) {
	if n >= 0 && len(args) != n {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrBadArgument, name, n, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := ToFloat(a)
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d is not a number", ErrBadArgument, name, i+1)
		}
		out[i] = f
	}
	return out, nil
}

func unaryMath(name string, fn func(float64) float64) LibraryFunc {
	return func(_ context.Context, args []any, _ LibraryContext) (any, error) {
		x, err := numbers(name, args, 1)
		if err != nil {
			return nil, err
		}
		return fn(x[0]), nil
	}
}

// integral converts a float result back to an integer value.
func integral(name string, fn func(float64) float64) LibraryFunc {
	return func(_ context.Context, args []any, _ LibraryContext) (any, error) {
		x, err := numbers(name, args, 1)
		if err != nil {
			return nil, err
		}
		return int64(fn(x[0])), nil
	}
}

func mathLibrary() map[string]any {
	extreme := func(name string, pick func(a, b float64) bool) LibraryFunc {
		return func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%w: %s needs at least one argument", ErrBadArgument, name)
			}
			if _, err := numbers(name, args, -1); err != nil {
				return nil, err
			}
			best := args[0]
			for _, a := range args[1:] {
				x, _ := ToFloat(a)
				y, _ := ToFloat(best)
				if pick(x, y) {
					best = a
				}
			}
			return best, nil
		}
	}

	return map[string]any{
		"pi":    math.Pi,
		"sqrt":  unaryMath("sqrt", math.Sqrt),
		"floor": integral("floor", math.Floor),
		"ceil":  integral("ceil", math.Ceil),
		"round": integral("round", math.Round),
		"abs": LibraryFunc(func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			if len(args) == 1 {
				if i, ok := args[0].(int64); ok {
					if i < 0 {
						return -i, nil
					}
					return i, nil
				}
			}
			x, err := numbers("abs", args, 1)
			if err != nil {
				return nil, err
			}
			return math.Abs(x[0]), nil
		}),
		"pow": LibraryFunc(func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			x, err := numbers("pow", args, 2)
			if err != nil {
				return nil, err
			}
			return math.Pow(x[0], x[1]), nil
		}),
		"min": extreme("min", func(a, b float64) bool { return a < b }),
		"max": extreme("max", func(a, b float64) bool { return a > b }),
	}
}

func sysLibrary(out io.Writer) map[string]any {
	var mu sync.Mutex
	return map[string]any{
		"print": LibraryFunc(func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = FormatValue(a)
			}
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintln(out, strings.Join(parts, " "))
			return nil, err
		}),
		"sleep": LibraryFunc(func(ctx context.Context, args []any, _ LibraryContext) (any, error) {
			x, err := numbers("sleep", args, 1)
			if err != nil {
				return nil, err
			}
			t := time.NewTimer(time.Duration(x[0] * float64(time.Millisecond)))
			defer t.Stop()
			select {
			case <-t.C:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
		"vehicle": LibraryFunc(func(_ context.Context, _ []any, lc LibraryContext) (any, error) {
			return lc.Vehicle, nil
		}),
		"caller": LibraryFunc(func(_ context.Context, _ []any, lc LibraryContext) (any, error) {
			return lc.GoalCaller, nil
		}),
		"stop": LibraryFunc(func(_ context.Context, _ []any, lc LibraryContext) (any, error) {
			if lc.Terminate != nil {
				lc.Terminate()
			}
			return nil, nil
		}),
	}
}

func coordinate(name string, i int) LibraryFunc {
	return func(_ context.Context, args []any, _ LibraryContext) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s expects a point", ErrBadArgument, name)
		}
		pt, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a point", ErrBadArgument, name)
		}
		if i >= len(pt) {
			return 0.0, nil
		}
		return pt[i], nil
	}
}

func geoLibrary() map[string]any {
	return map[string]any{
		"point": LibraryFunc(func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			if len(args) != 2 && len(args) != 3 {
				return nil, fmt.Errorf("%w: point expects 2 or 3 coordinates", ErrBadArgument)
			}
			if _, err := numbers("point", args, -1); err != nil {
				return nil, err
			}
			out := make([]any, len(args))
			copy(out, args)
			return out, nil
		}),
		"x": coordinate("x", 0),
		"y": coordinate("y", 1),
		"z": coordinate("z", 2),
		"distance": LibraryFunc(func(_ context.Context, args []any, _ LibraryContext) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("%w: distance expects two points", ErrBadArgument)
			}
			var pts [2][3]float64
			for i, a := range args {
				pt, ok := a.([]any)
				if !ok || len(pt) < 2 {
					return nil, fmt.Errorf("%w: distance argument %d is not a point", ErrBadArgument, i+1)
				}
				c, err := numbers("distance", pt, -1)
				if err != nil {
					return nil, err
				}
				copy(pts[i][:], c)
			}
			dx := pts[0][0] - pts[1][0]
			dy := pts[0][1] - pts[1][1]
			dz := pts[0][2] - pts[1][2]
			return math.Sqrt(dx*dx + dy*dy + dz*dz), nil
		}),
	}
}
