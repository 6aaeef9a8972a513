// Package schedule runs Swarm programs periodically on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a program run on a cron schedule.
type Job struct {
	Name    string `json:"name" yaml:"name"`
	Cron    string `json:"cron" yaml:"cron"`
	Program string `json:"program" yaml:"program"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// RunFunc executes one firing of a job.
type RunFunc func(ctx context.Context, job Job) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithTimeout bounds every firing. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// Scheduler fires jobs through a RunFunc. A job whose previous firing is
// still running is skipped.
type Scheduler struct {
	c       *cron.Cron
	run     RunFunc
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	jobs    []Job
	entries map[string]cron.EntryID // job name → cron entry ID
	fired   map[string]int
}

// NewScheduler creates a Scheduler that executes jobs with run.
func NewScheduler(run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		run:     run,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		fired:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.c = cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	return s
}

// Start begins the cron runner and blocks until ctx is cancelled. Firings
// in progress see ctx cancelled too.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.c.Start()
	s.logger.Info("scheduler started", "jobs", len(s.ListJobs()))
	<-ctx.Done()
	<-s.c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// AddJob adds a job to the cron runner.
// If a job with the same name already exists it is replaced.
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" {
		return errors.New("schedule needs a name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !job.Enabled {
		s.removeLocked(job.Name)
		s.jobs = append(s.jobs, job)
		return nil
	}

	entryID, err := s.c.AddFunc(job.Cron, s.makeFunc(job))
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", job.Cron, err)
	}

	s.removeLocked(job.Name)
	s.entries[job.Name] = entryID
	s.jobs = append(s.jobs, job)

	s.logger.Info("scheduler: job added", "name", job.Name, "cron", job.Cron, "program", job.Program)
	return nil
}

// RemoveJob removes a job from the cron runner.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(name) {
		return fmt.Errorf("schedule %q not found", name)
	}
	s.logger.Info("scheduler: job removed", "name", name)
	return nil
}

func (s *Scheduler) removeLocked(name string) bool {
	found := false
	if id, ok := s.entries[name]; ok {
		s.c.Remove(id)
		delete(s.entries, name)
		found = true
	}
	out := s.jobs[:0]
	for _, j := range s.jobs {
		if j.Name == name {
			found = true
			continue
		}
		out = append(out, j)
	}
	s.jobs = out
	return found
}

// ListJobs returns a snapshot of all current jobs.
func (s *Scheduler) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Next returns the next firing time of an enabled job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	e := s.c.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	if !e.Next.IsZero() {
		return e.Next, true
	}
	return e.Schedule.Next(time.Now()), true
}

// Fired returns how many times a job has been run.
func (s *Scheduler) Fired(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[name]
}

// RunNow fires a job immediately on the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	var job *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			j := s.jobs[i]
			job = &j
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("schedule %q not found", name)
	}
	return s.fire(*job)
}

// makeFunc returns the cron callback for a job.
func (s *Scheduler) makeFunc(job Job) func() {
	return func() {
		if err := s.fire(job); err != nil {
			s.logger.Warn("scheduler: run failed", "name", job.Name, "program", job.Program, "error", err)
		}
	}
}

func (s *Scheduler) fire(job Job) error {
	s.mu.Lock()
	ctx := s.ctx
	s.fired[job.Name]++
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("scheduler: firing job", "name", job.Name, "program", job.Program)
	start := time.Now()
	err := s.run(ctx, job)
	s.logger.Debug("scheduler: job finished", "name", job.Name, "duration", time.Since(start), "error", err)
	return err
}
