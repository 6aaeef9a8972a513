package swarm

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event represents a procedure lifecycle event emitted by the interpreter.
type Event struct {
	Type      EventType  `json:"type"`
	RunID     string     `json:"run_id"`
	NodeID    string     `json:"node_id,omitempty"`
	Procedure string     `json:"procedure"`
	Kind      RecordKind `json:"kind"`
	Vehicle   string     `json:"vehicle,omitempty"`
	Timestamp time.Time  `json:"timestamp"`

	// For branch events
	Branch    int `json:"branch,omitempty"`
	Iteration int `json:"iteration,omitempty"`

	// For failure events
	Error string `json:"error,omitempty"`
}

// EventType identifies the kind of event.
type EventType string

const (
	EventStarted     EventType = "started"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
	EventGoalReached EventType = "goal_reached"
)

// EventSink receives interpreter events. Publish may be called from many
// goroutines at once.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Publish calls f.
func (f EventSinkFunc) Publish(e Event) {
	f(e)
}

// MultiSink fans events out to every sink.
type MultiSink []EventSink

// Publish forwards e to each sink in order.
func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

// JSONLinesSink writes each event as one JSON document per line.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// Publish encodes e. Write errors are dropped.
func (s *JSONLinesSink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(e)
}

// EventRecorder collects events in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *EventRecorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
