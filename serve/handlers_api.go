package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/swarm"
	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/store"
)

// --- Run Handlers ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, s.runToResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.runToResponse(*run))
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetRun(id); err != nil {
		writeStoreError(w, err)
		return
	}
	events, err := s.store.ListEvents(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleRunKnowledge(w http.ResponseWriter, r *http.Request) {
	values, err := s.store.LoadKnowledge(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// handleStartRun records a run and executes it in the background. The
// response is sent before the program finishes.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "source is required"})
		return
	}
	if req.Name == "" {
		req.Name = "inline"
	}

	runID := uuid.New().String()
	if err := s.store.InsertRun(store.Run{RunID: runID, Program: req.Name}); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	s.mu.Lock()
	s.active[runID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, runID, req.Source)

	run, err := s.store.GetRun(runID)
	if err != nil {
		writeJSON(w, http.StatusAccepted, RunResponse{RunID: runID, Program: req.Name, Status: store.StatusRunning, Active: true})
		return
	}
	writeJSON(w, http.StatusAccepted, s.runToResponse(*run))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()

	if !ok {
		if _, err := s.store.GetRun(id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "run is not active"})
		return
	}
	cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// execute runs one program and records its outcome.
func (s *Server) execute(ctx context.Context, runID, src string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		cancel := s.active[runID]
		delete(s.active, runID)
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()

	start := time.Now()
	interp, runErr := s.run(ctx, src,
		dsl.WithRunID(runID),
		dsl.WithEventSink(swarm.MultiSink{s.store, s.broker}),
	)

	status, msg := store.StatusCompleted, ""
	if runErr != nil {
		status, msg = store.StatusFailed, runErr.Error()
	}
	if err := s.store.FinishRun(runID, status, msg); err != nil {
		s.logger.Warn("record run failed", "run_id", runID, "error", err)
	}
	if interp != nil {
		if err := s.store.SaveKnowledge(runID, interp.Knowledge().Snapshot()); err != nil {
			s.logger.Warn("save knowledge failed", "run_id", runID, "error", err)
		}
	}
	s.logger.Info("run finished", "run_id", runID, "status", status, "duration", time.Since(start), "error", msg)
}

// --- Check Handler ---

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	prog, _, err := dsl.Check(req.Source)
	if err != nil {
		var e *dsl.Error
		if !errors.As(err, &e) {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, CheckResponse{Diagnostic: &Diagnostic{
			Stage:   string(e.Stage),
			Code:    string(e.Code),
			Token:   e.Token.String(),
			Line:    e.Token.Line,
			Column:  e.Token.Column,
			Message: e.Error(),
		}})
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{OK: true, Formatted: dsl.Format(prog)})
}

// --- Stats Handler ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	s.mu.Lock()
	active := len(s.active)
	s.mu.Unlock()

	uptime := time.Since(s.startedAt)
	writeJSON(w, http.StatusOK, StatsResponse{
		Runs:          st.Runs,
		Events:        st.Events,
		Snapshots:     st.Snapshots,
		ActiveRuns:    active,
		Subscribers:   s.broker.Subscribers(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
	})
}

// --- Helpers ---

func (s *Server) runToResponse(run store.Run) RunResponse {
	s.mu.Lock()
	_, active := s.active[run.RunID]
	s.mu.Unlock()

	return RunResponse{
		RunID:      run.RunID,
		Program:    run.Program,
		Status:     run.Status,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMs: run.Duration().Milliseconds(),
		Active:     active,
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
