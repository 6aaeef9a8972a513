package dsl

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Category classifies symbols.
type Category string

const (
	CategoryVar        Category = "VAR"
	CategoryBuiltin    Category = "BUILTIN"
	CategoryAction     Category = "ACTION"
	CategoryAgent      Category = "AGENT"
	CategoryBehavior   Category = "BEHAVIOR"
	CategoryTask       Category = "TASK"
	CategoryLibrary    Category = "LIBRARY"
	CategoryAgentRange Category = "AGENT_RANGE"
	CategoryCapability Category = "RPC"
)

// Symbol is a named declaration recorded in a scope.
type Symbol interface {
	Name() string
	Category() Category
	Level() int
	setLevel(int)
}

type symbol struct {
	name  string
	level int
}

func (s *symbol) Name() string     { return s.name }
func (s *symbol) Level() int       { return s.level }
func (s *symbol) setLevel(lvl int) { s.level = lvl }

// VarSymbol is a parameter or local variable.
type VarSymbol struct {
	symbol
}

// BuiltinTypeSymbol marks a built-in value type.
type BuiltinTypeSymbol struct {
	symbol
}

// ActionSymbol is a declared Action.
type ActionSymbol struct {
	symbol
	Params []*VarSymbol
	Decl   *Action
}

// AgentSymbol is a declared Agent with its ability set.
type AgentSymbol struct {
	symbol
	Abilities []Symbol
	Decl      *Agent
}

// BehaviorSymbol is a declared Behavior.
type BehaviorSymbol struct {
	symbol
	Params []*VarSymbol
	Decl   *Behavior
}

// TaskSymbol is a declared Task.
type TaskSymbol struct {
	symbol
	Ranges []*AgentRangeSymbol
	Params []*VarSymbol
	Decl   *Task
}

// LibrarySymbol is an imported library module.
type LibrarySymbol struct {
	symbol
}

// AgentRangeSymbol is an agent range: a task's formal agent[start~end], or
// an agent bound in Main with a known count.
type AgentRangeSymbol struct {
	symbol
	Start string
	End   string

	// Agent and Count are set for agents bound in Main.
	Agent *AgentSymbol
	Count int64
}

// CapabilitySymbol is a call resolved to an external capability.
type CapabilitySymbol struct {
	symbol
}

func (*VarSymbol) Category() Category         { return CategoryVar }
func (*BuiltinTypeSymbol) Category() Category { return CategoryBuiltin }
func (*ActionSymbol) Category() Category      { return CategoryAction }
func (*AgentSymbol) Category() Category       { return CategoryAgent }
func (*BehaviorSymbol) Category() Category    { return CategoryBehavior }
func (*TaskSymbol) Category() Category        { return CategoryTask }
func (*LibrarySymbol) Category() Category     { return CategoryLibrary }
func (*AgentRangeSymbol) Category() Category  { return CategoryAgentRange }
func (*CapabilitySymbol) Category() Category  { return CategoryCapability }

// HasAbility reports whether name is in the agent's ability set.
func (a *AgentSymbol) HasAbility(name string) bool {
	for _, s := range a.Abilities {
		if s.Name() == name {
			return true
		}
	}
	return false
}

func describe(s Symbol) string {
	return fmt.Sprintf("<%s %s level=%d>", s.Category(), s.Name(), s.Level())
}

// Scope maps names to symbols and links to its enclosing scope.
type Scope struct {
	Name      string
	Level     int
	Enclosing *Scope

	symbols map[string]Symbol
	logger  *slog.Logger
}

// NewScope creates a scope nested in enclosing. A nil logger disables tracing.
func NewScope(name string, level int, enclosing *Scope, logger *slog.Logger) *Scope {
	return &Scope{
		Name:      name,
		Level:     level,
		Enclosing: enclosing,
		symbols:   make(map[string]Symbol),
		logger:    logger,
	}
}

func (s *Scope) trace(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append([]any{"component", "scope", "scope", s.Name, "level", s.Level}, args...)...)
	}
}

func (s *Scope) initBuiltins() {
	for _, name := range []string{"INTEGER", "FLOAT", "STRING"} {
		s.Insert(&BuiltinTypeSymbol{symbol{name: name}})
	}
}

// Insert records sym in this scope, replacing any symbol of the same name.
func (s *Scope) Insert(sym Symbol) {
	s.trace("insert", "symbol", sym.Name())
	sym.setLevel(s.Level)
	s.symbols[sym.Name()] = sym
}

// Lookup resolves name, walking enclosing scopes unless currentOnly is set.
func (s *Scope) Lookup(name string, currentOnly bool) Symbol {
	s.trace("lookup", "symbol", name)
	for sc := s; sc != nil; sc = sc.Enclosing {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
		if currentOnly {
			return nil
		}
	}
	return nil
}

// Symbols returns the symbols declared directly in this scope, sorted by name.
func (s *Scope) Symbols() []Symbol {
	out := make([]Symbol, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (s *Scope) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCOPE %s (level %d)", s.Name, s.Level)
	if s.Enclosing != nil {
		fmt.Fprintf(&b, " enclosed by %s", s.Enclosing.Name)
	}
	for _, sym := range s.Symbols() {
		fmt.Fprintf(&b, "\n  %-16s: %s", sym.Name(), describe(sym))
	}
	return b.String()
}
