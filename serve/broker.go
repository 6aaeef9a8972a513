package serve

import (
	"sync"
	"sync/atomic"

	"github.com/everydev1618/swarm"
)

const (
	maxSubscribers = 50
	subscriberBuf  = 64
)

// Subscription is one SSE client's view of the event stream.
type Subscription struct {
	// C delivers matching events. It is closed on Unsubscribe or Close.
	C <-chan swarm.Event

	ch      chan swarm.Event
	runID   string
	dropped atomic.Int64
}

// RunID returns the run the subscription is limited to, or "" for all runs.
func (s *Subscription) RunID() string {
	return s.runID
}

// Dropped returns how many matching events were discarded because the
// subscriber fell behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) wants(e swarm.Event) bool {
	return s.runID == "" || s.runID == e.RunID
}

// EventBroker fans run events out to subscribers without ever blocking the
// interpreter: a full subscriber loses the event and its drop count grows.
type EventBroker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

var _ swarm.EventSink = (*EventBroker)(nil)

// NewEventBroker creates a new broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber for runID, or for every run when runID is
// empty. It returns nil when the broker is closed or full.
func (b *EventBroker) Subscribe(runID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(b.subs) >= maxSubscribers {
		return nil
	}
	ch := make(chan swarm.Event, subscriberBuf)
	sub := &Subscription{C: ch, ch: ch, runID: runID}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call after
// Close.
func (b *EventBroker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription and refuses new ones.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

// Publish delivers e to every subscriber whose filter matches.
func (b *EventBroker) Publish(e swarm.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
