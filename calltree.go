package swarm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RecordKind identifies the procedure an activation record belongs to.
type RecordKind string

const (
	KindProgram  RecordKind = "PROGRAM"
	KindMain     RecordKind = "MAIN"
	KindTask     RecordKind = "TASK"
	KindBehavior RecordKind = "BEHAVIOR"
	KindAction   RecordKind = "ACTION"
	KindAgent    RecordKind = "AGENT"
)

// ActivationRecord holds the bindings of one procedure call.
// Only the program record carries the knowledge blackboard.
type ActivationRecord struct {
	Name  string
	Kind  RecordKind
	Level int

	mu        sync.RWMutex
	members   map[string]any
	order     []string
	knowledge *Knowledge
}

// NewActivationRecord creates an empty record.
func NewActivationRecord(name string, kind RecordKind, level int) *ActivationRecord {
	return &ActivationRecord{
		Name:    name,
		Kind:    kind,
		Level:   level,
		members: make(map[string]any),
	}
}

// NewProgramRecord creates the root record owning k.
func NewProgramRecord(name string, k *Knowledge) *ActivationRecord {
	ar := NewActivationRecord(name, KindProgram, 1)
	if k == nil {
		k = NewKnowledge()
	}
	ar.knowledge = k
	return ar
}

// Knowledge returns the blackboard, or nil for non-program records.
func (ar *ActivationRecord) Knowledge() *Knowledge {
	return ar.knowledge
}

// Get returns the binding for name.
func (ar *ActivationRecord) Get(name string) (any, bool) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	v, ok := ar.members[name]
	return v, ok
}

// Set binds name to value.
func (ar *ActivationRecord) Set(name string, value any) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if _, ok := ar.members[name]; !ok {
		ar.order = append(ar.order, name)
	}
	ar.members[name] = value
}

// Has reports whether name is bound in this record.
func (ar *ActivationRecord) Has(name string) bool {
	_, ok := ar.Get(name)
	return ok
}

// Members returns a copy of the bindings.
func (ar *ActivationRecord) Members() map[string]any {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	out := make(map[string]any, len(ar.members))
	for k, v := range ar.members {
		out[k] = v
	}
	return out
}

func (ar *ActivationRecord) String() string {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s %s", ar.Level, ar.Kind, ar.Name)
	for _, name := range ar.order {
		fmt.Fprintf(&b, "\n   %-20s: %v", name, ar.members[name])
	}
	return b.String()
}

// CallStack is one node of the call-stack tree: the frame list of a single
// goroutine plus links to the node it was spawned from and the nodes it spawned.
//
// Frames are pushed and popped only by the owning goroutine. Children read
// ancestor frames while resolving names, which is safe because a parent is
// blocked at a join point for as long as its children run.
type CallStack struct {
	ID    string
	Label string

	parent *CallStack

	mu       sync.RWMutex
	records  []*ActivationRecord
	children []*CallStack
}

// NewCallStack creates a root node with the given bottom record.
func NewCallStack(root *ActivationRecord) *CallStack {
	s := &CallStack{ID: uuid.New().String()[:8], Label: "main"}
	if root != nil {
		s.records = append(s.records, root)
	}
	return s
}

// Spawn creates a child node with an empty frame list.
func (s *CallStack) Spawn(label string) *CallStack {
	child := &CallStack{
		ID:     uuid.New().String()[:8],
		Label:  label,
		parent: s,
	}
	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()
	return child
}

// Detach removes the node from its parent's child list.
func (s *CallStack) Detach() {
	p := s.parent
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == s {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// Parent returns the node this one was spawned from.
func (s *CallStack) Parent() *CallStack {
	return s.parent
}

// Children returns a copy of the live child nodes.
func (s *CallStack) Children() []*CallStack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CallStack, len(s.children))
	copy(out, s.children)
	return out
}

// Push appends a record to the local frame list.
func (s *CallStack) Push(ar *ActivationRecord) {
	s.mu.Lock()
	s.records = append(s.records, ar)
	s.mu.Unlock()
}

// Pop removes and returns the innermost local record.
func (s *CallStack) Pop() *ActivationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	if n == 0 {
		return nil
	}
	ar := s.records[n-1]
	s.records = s.records[:n-1]
	return ar
}

// Peek returns the innermost record visible from this node, falling back
// to ancestors when the local frame list is empty.
func (s *CallStack) Peek() *ActivationRecord {
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		if k := len(n.records); k > 0 {
			ar := n.records[k-1]
			n.mu.RUnlock()
			return ar
		}
		n.mu.RUnlock()
	}
	return nil
}

// Depth returns the number of frames visible from this node.
func (s *CallStack) Depth() int {
	d := 0
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		d += len(n.records)
		n.mu.RUnlock()
	}
	return d
}

// Root returns the bottom record of the tree, the program record.
func (s *CallStack) Root() *ActivationRecord {
	n := s
	for n.parent != nil {
		n = n.parent
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.records) == 0 {
		return nil
	}
	return n.records[0]
}

// Lookup resolves name innermost first, walking local frames then ancestors.
func (s *CallStack) Lookup(name string) (any, *ActivationRecord, bool) {
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		records := n.records
		n.mu.RUnlock()
		for i := len(records) - 1; i >= 0; i-- {
			if v, ok := records[i].Get(name); ok {
				return v, records[i], true
			}
		}
	}
	return nil, nil, false
}

// LookupUntil resolves name like Lookup but gives up after the first record
// whose kind is one of stop.
func (s *CallStack) LookupUntil(name string, stop ...RecordKind) (any, *ActivationRecord, bool) {
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		records := n.records
		n.mu.RUnlock()
		for i := len(records) - 1; i >= 0; i-- {
			if v, ok := records[i].Get(name); ok {
				return v, records[i], true
			}
			for _, k := range stop {
				if records[i].Kind == k {
					return nil, nil, false
				}
			}
		}
	}
	return nil, nil, false
}

// Nearest returns the innermost visible record whose kind is one of kinds.
func (s *CallStack) Nearest(kinds ...RecordKind) *ActivationRecord {
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		records := n.records
		n.mu.RUnlock()
		for i := len(records) - 1; i >= 0; i-- {
			for _, k := range kinds {
				if records[i].Kind == k {
					return records[i]
				}
			}
		}
	}
	return nil
}

// String renders the frames visible from this node, innermost first.
func (s *CallStack) String() string {
	var lines []string
	for n := s; n != nil; n = n.parent {
		n.mu.RLock()
		for i := len(n.records) - 1; i >= 0; i-- {
			lines = append(lines, n.records[i].String())
		}
		n.mu.RUnlock()
	}
	return "CALL STACK [" + s.Label + "]\n" + strings.Join(lines, "\n")
}

// CallNode is a serializable view of a call-stack subtree.
type CallNode struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Frames   []FrameView `json:"frames"`
	Children []*CallNode `json:"children,omitempty"`
}

// FrameView is a serializable view of one activation record.
type FrameView struct {
	Name     string         `json:"name"`
	Kind     RecordKind     `json:"kind"`
	Level    int            `json:"level"`
	Bindings map[string]any `json:"bindings,omitempty"`
}

// Snapshot returns the subtree rooted at this node.
func (s *CallStack) Snapshot() *CallNode {
	s.mu.RLock()
	node := &CallNode{ID: s.ID, Label: s.Label}
	for _, ar := range s.records {
		node.Frames = append(node.Frames, FrameView{
			Name:     ar.Name,
			Kind:     ar.Kind,
			Level:    ar.Level,
			Bindings: ar.Members(),
		})
	}
	children := make([]*CallStack, len(s.children))
	copy(children, s.children)
	s.mu.RUnlock()

	sort.SliceStable(children, func(i, j int) bool { return children[i].Label < children[j].Label })
	for _, c := range children {
		node.Children = append(node.Children, c.Snapshot())
	}
	return node
}
