// Package store keeps the history of program runs in SQLite: one row per
// run, the procedure events it emitted and the knowledge it ended with.
package store

import (
	"time"

	"github.com/everydev1618/swarm"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store persists runs, events and knowledge snapshots for historical queries.
type Store interface {
	// Init creates tables if they don't exist.
	Init() error

	// Close closes the store.
	Close() error

	// InsertRun records the start of a run.
	InsertRun(r Run) error

	// FinishRun sets the final status of a run.
	FinishRun(runID, status, errMsg string) error

	// GetRun returns one run by id.
	GetRun(runID string) (*Run, error)

	// ListRuns returns recent runs, newest first.
	ListRuns(limit int) ([]Run, error)

	// InsertEvent records a procedure event.
	InsertEvent(e swarm.Event) error

	// ListEvents returns the events of a run in emission order.
	ListEvents(runID string) ([]RunEvent, error)

	// SaveKnowledge stores the knowledge a run ended with.
	SaveKnowledge(runID string, values map[string]any) error

	// LoadKnowledge returns the knowledge saved for a run.
	LoadKnowledge(runID string) (map[string]any, error)
}

// Run is one execution of a program.
type Run struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Program    string     `json:"program"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunEvent is a stored procedure event.
type RunEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	NodeID    string    `json:"node_id"`
	Procedure string    `json:"procedure"`
	Kind      string    `json:"kind"`
	Vehicle   string    `json:"vehicle,omitempty"`
	Branch    int       `json:"branch,omitempty"`
	Iteration int       `json:"iteration,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
