// Package serve exposes Swarm program runs over an HTTP API with a live
// event stream.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/store"
)

// RunFunc executes a program. The server appends its own run id and event
// sink to opts. dsl.Run satisfies it.
type RunFunc func(ctx context.Context, src string, opts ...dsl.InterpreterOption) (*dsl.Interpreter, error)

// Config holds server configuration.
type Config struct {
	Addr string

	// RunTimeout bounds every run started through the API. Zero means none.
	RunTimeout time.Duration

	// MaxSourceBytes limits request bodies. Defaults to 1 MiB.
	MaxSourceBytes int64

	// Heartbeat is the interval of SSE keep-alive comments. Defaults to 30s.
	Heartbeat time.Duration
}

// Server is the HTTP server for the Swarm REST API.
type Server struct {
	store     *store.SQLiteStore
	run       RunFunc
	broker    *EventBroker
	cfg       Config
	logger    *slog.Logger
	startedAt time.Time

	// ctx outlives requests so runs continue after the POST returns.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Server. The store must already be initialized.
func New(st *store.SQLiteStore, run RunFunc, cfg Config) *Server {
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 1 << 20
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:     st,
		run:       run,
		broker:    NewEventBroker(),
		cfg:       cfg,
		logger:    slog.Default(),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]context.CancelFunc),
	}
}

// Broker returns the event broker runs publish to.
func (s *Server) Broker() *EventBroker {
	return s.broker
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return corsMiddleware(mux)
}

// Start listens for HTTP requests. It blocks until ctx is cancelled, then
// cancels active runs and waits for them to be recorded.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("swarm serve started", "addr", s.cfg.Addr)
		fmt.Printf("API: http://localhost%s/api/stats\n", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error.
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	case err := <-errCh:
		s.Shutdown()
		return err
	}

	// Close broker first: this closes all SSE subscriber channels,
	// unblocking their handlers so the HTTP server can drain cleanly.
	s.broker.Close()

	// Graceful shutdown with 5s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
	}
	s.Shutdown()
	return nil
}

// Shutdown cancels active runs and waits for them to finish.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// registerRoutes adds all API routes to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("GET /api/runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /api/runs/{id}/knowledge", s.handleRunKnowledge)
	mux.HandleFunc("POST /api/check", s.handleCheck)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// SSE
	mux.HandleFunc("GET /api/events", s.handleSSE)
}

// corsMiddleware adds permissive CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
