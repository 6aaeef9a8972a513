package serve

import (
	"time"
)

// RunRequest starts a program run.
type RunRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// RunResponse is the API representation of a run.
type RunResponse struct {
	RunID      string     `json:"run_id"`
	Program    string     `json:"program"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Active     bool       `json:"active"`
}

// CheckRequest asks for the static stages to be run over a program.
type CheckRequest struct {
	Source string `json:"source"`
}

// Diagnostic is a pipeline error.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Token   string `json:"token"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// CheckResponse is the result of a check.
type CheckResponse struct {
	OK         bool        `json:"ok"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
	Formatted  string      `json:"formatted,omitempty"`
}

// StatsResponse summarizes the server.
type StatsResponse struct {
	Runs          int    `json:"runs"`
	Events        int    `json:"events"`
	Snapshots     int    `json:"snapshots"`
	ActiveRuns    int    `json:"active_runs"`
	Subscribers   int    `json:"subscribers"`
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
