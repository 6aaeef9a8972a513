package swarm

import (
	"context"
	"sort"
	"sync"
)

// Knowledge is the shared blackboard agents coordinate through.
// Each key owns a lock that is created on first use and never replaced.
type Knowledge struct {
	mu     sync.Mutex
	cells  map[string]*cell
	queues map[string]*Queue
}

type cell struct {
	mu    sync.Mutex
	value any
	set   bool
}

// NewKnowledge creates an empty blackboard.
func NewKnowledge() *Knowledge {
	return &Knowledge{
		cells:  make(map[string]*cell),
		queues: make(map[string]*Queue),
	}
}

func (k *Knowledge) cell(key string) *cell {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.cells[key]
	if !ok {
		c = &cell{}
		k.cells[key] = c
	}
	return c
}

// Locker returns the lock guarding key.
func (k *Knowledge) Locker(key string) sync.Locker {
	return &k.cell(key).mu
}

// Store writes value under key, taking the key's lock.
func (k *Knowledge) Store(key string, value any) {
	c := k.cell(key)
	c.mu.Lock()
	c.value, c.set = value, true
	c.mu.Unlock()
}

// Load reads key, taking the key's lock.
func (k *Knowledge) Load(key string) (any, bool) {
	c := k.cell(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.set
}

// StoreLocked writes value under key. The caller must hold the key's lock.
func (k *Knowledge) StoreLocked(key string, value any) {
	c := k.cell(key)
	c.value, c.set = value, true
}

// LoadLocked reads key. The caller must hold the key's lock.
func (k *Knowledge) LoadLocked(key string) (any, bool) {
	c := k.cell(key)
	return c.value, c.set
}

// Keys returns every key that has been written, sorted.
func (k *Knowledge) Keys() []string {
	k.mu.Lock()
	cells := make(map[string]*cell, len(k.cells))
	for key, c := range k.cells {
		cells[key] = c
	}
	k.mu.Unlock()

	var keys []string
	for key, c := range cells {
		c.mu.Lock()
		if c.set {
			keys = append(keys, key)
		}
		c.mu.Unlock()
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every written cell.
func (k *Knowledge) Snapshot() map[string]any {
	out := make(map[string]any)
	for _, key := range k.Keys() {
		if v, ok := k.Load(key); ok {
			out[key] = v
		}
	}
	return out
}

// Restore writes every entry of values into the blackboard.
func (k *Knowledge) Restore(values map[string]any) {
	for key, v := range values {
		k.Store(key, Normalize(v))
	}
}

// Queue returns the FIFO queue for key, creating it on first use.
func (k *Knowledge) Queue(key string) *Queue {
	k.mu.Lock()
	defer k.mu.Unlock()
	q, ok := k.queues[key]
	if !ok {
		q = NewQueue()
		k.queues[key] = q
	}
	return q
}

// Lockers hands out the lock for a key.
type Lockers interface {
	Locker(key string) sync.Locker
}

// LockSet acquires a group of keyed locks in lexicographic key order and
// releases them in reverse, so any two sets sharing keys cannot deadlock.
type LockSet struct {
	src  Lockers
	keys []string
	held []sync.Locker
}

// NewLockSet creates a set over the distinct keys, sorted.
func NewLockSet(src Lockers, keys ...string) *LockSet {
	seen := make(map[string]bool, len(keys))
	var sorted []string
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			sorted = append(sorted, key)
		}
	}
	sort.Strings(sorted)
	return &LockSet{src: src, keys: sorted}
}

// Keys returns the sorted keys of the set.
func (l *LockSet) Keys() []string {
	return l.keys
}

// Lock acquires every lock in order.
func (l *LockSet) Lock() {
	for _, key := range l.keys {
		m := l.src.Locker(key)
		m.Lock()
		l.held = append(l.held, m)
	}
}

// Unlock releases the held locks in reverse order.
func (l *LockSet) Unlock() {
	for i := len(l.held) - 1; i >= 0; i-- {
		l.held[i].Unlock()
	}
	l.held = l.held[:0]
}

// Queue is an unbounded FIFO whose Pop blocks until an item arrives.
type Queue struct {
	mu     sync.Mutex
	items  []any
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v and wakes one waiting Pop.
func (q *Queue) Push(v any) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes the oldest item, blocking until one is available, the queue
// is closed or ctx is done.
func (q *Queue) Pop(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every blocked Pop; queued items can still be drained.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}
