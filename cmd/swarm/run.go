package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/swarm"
	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/store"
)

// runOptions are the settings of one program execution, merged from the
// config file and the command line.
type runOptions struct {
	cfg          *swarm.Config
	scopes       bool
	stack        bool
	timeout      time.Duration
	latency      time.Duration
	knowledgeIn  string
	knowledgeOut string
	stdout       io.Writer
	stderr       io.Writer
}

// runFlags registers the flags shared by run and schedule.
type runFlags struct {
	config       *string
	db           *string
	scopes       *bool
	stack        *bool
	timeout      *time.Duration
	latency      *time.Duration
	knowledgeIn  *string
	knowledgeOut *string
	noHistory    *bool
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		config:       fs.String("config", swarm.DefaultConfigPath(), "Config file"),
		db:           fs.String("db", "", "SQLite run history (default from config)"),
		scopes:       fs.Bool("scopes", false, "Trace scope resolution during analysis"),
		stack:        fs.Bool("stack", false, "Trace call-stack pushes and pops"),
		timeout:      fs.Duration("timeout", 0, "Maximum execution time (0 = none)"),
		latency:      fs.Duration("latency", -1, "Simulated per-capability latency (default from config)"),
		knowledgeIn:  fs.String("knowledge-in", "", "Seed knowledge from a JSON or YAML file"),
		knowledgeOut: fs.String("knowledge-out", "", "Save final knowledge to a JSON or YAML file"),
		noHistory:    fs.Bool("no-history", false, "Do not record the run"),
	}
}

// options loads the config file and applies the flags over it.
func (f *runFlags) options() (*runOptions, error) {
	cfg, err := swarm.LoadConfig(*f.config)
	if err != nil {
		return nil, err
	}
	if *f.db != "" {
		cfg.Store.Path = *f.db
	}
	if *f.noHistory {
		cfg.Store.Disabled = true
	}

	o := &runOptions{
		cfg:          cfg,
		scopes:       *f.scopes || cfg.Trace.Scopes,
		stack:        *f.stack || cfg.Trace.Stack,
		timeout:      *f.timeout,
		knowledgeIn:  firstNonEmpty(*f.knowledgeIn, cfg.Knowledge.In),
		knowledgeOut: firstNonEmpty(*f.knowledgeOut, cfg.Knowledge.Out),
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
	if o.timeout == 0 {
		if o.timeout, err = cfg.RunTimeout(); err != nil {
			return nil, err
		}
	}
	o.latency = *f.latency
	if o.latency < 0 {
		if o.latency, err = cfg.ProviderLatency(); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// runCmd executes a Swarm program.
func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	rf := addRunFlags(fs)

	fs.Usage = func() {
		fmt.Println(`Usage: swarm run [options] <file>

Run a Swarm program. On failure the first diagnostic is printed as
"<CODE> -> <token>" and the exit status is 1.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  swarm run mission.swarm
  swarm run -scopes -stack mission.swarm
  swarm run -knowledge-in seed.yaml -knowledge-out final.json mission.swarm`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no program file specified")
		fs.Usage()
		os.Exit(1)
	}

	opts, err := rf.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := execute(context.Background(), fs.Arg(0), opts); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints the first diagnostic on stdout, or the raw error on
// stderr when it did not come from a pipeline stage.
func reportError(err error) {
	var e *dsl.Error
	if errors.As(err, &e) {
		fmt.Println(e.Error())
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// newLogger builds the process logger from the logging section. The
// returned close func releases the log file, if any.
func (o *runOptions) newLogger() (*slog.Logger, func(), error) {
	if o.cfg.Logging.File == "" {
		return o.cfg.Logging.NewLogger(o.stderr), func() {}, nil
	}
	f, err := os.OpenFile(o.cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return o.cfg.Logging.NewLogger(f), func() { f.Close() }, nil
}

// interpreterOptions builds a fresh provider, capability set and knowledge
// blackboard for one run.
func (o *runOptions) interpreterOptions(logger *slog.Logger) ([]dsl.InterpreterOption, *swarm.Knowledge, error) {
	var echo io.Writer
	if o.cfg.Provider.Echo {
		echo = o.stdout
	}
	provider := swarm.NewSimProvider(
		swarm.WithSpacing(o.cfg.Provider.Spacing),
		swarm.WithTakeOffHeight(o.cfg.Provider.Height),
		swarm.WithLatency(o.latency),
		swarm.WithJournal(swarm.NewJournal(echo)),
	)
	caps := swarm.NewCapabilities(swarm.WithMiddleware(swarm.LogCalls(logger)))
	if err := swarm.RegisterSimCapabilities(caps); err != nil {
		return nil, nil, err
	}

	k := swarm.NewKnowledge()
	k.Restore(o.cfg.Knowledge.Seed)
	if o.knowledgeIn != "" {
		values, err := swarm.NewFilePersistence(o.knowledgeIn).Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load knowledge: %w", err)
		}
		k.Restore(values)
	}

	opts := []dsl.InterpreterOption{
		dsl.WithProvider(provider),
		dsl.WithCapabilities(caps),
		dsl.WithLibraries(swarm.DefaultLibraries(o.stdout)),
		dsl.WithKnowledge(k),
		dsl.WithLogger(logger),
	}
	trace := slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if o.scopes {
		opts = append(opts, dsl.WithScopes(trace))
	}
	if o.stack {
		opts = append(opts, dsl.WithStackTrace(trace))
	}
	return opts, k, nil
}

// execute runs the program at path once and records it in the run history.
func execute(ctx context.Context, path string, o *runOptions) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	logger, closeLog, err := o.newLogger()
	if err != nil {
		return "", err
	}
	defer closeLog()

	opts, k, err := o.interpreterOptions(logger)
	if err != nil {
		return "", err
	}

	runID := uuid.New().String()
	sinks := swarm.MultiSink{}
	var st *store.SQLiteStore
	if !o.cfg.Store.Disabled {
		st, err = openStore(o.cfg.Store.Path)
		if err != nil {
			logger.Warn("run history disabled", "path", o.cfg.Store.Path, "error", err)
		} else {
			defer st.Close()
			if err := st.InsertRun(store.Run{RunID: runID, Program: path}); err != nil {
				logger.Warn("record run failed", "run_id", runID, "error", err)
			}
			sinks = append(sinks, st)
		}
	}
	opts = append(opts, dsl.WithEventSink(sinks), dsl.WithRunID(runID))

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	_, runErr := dsl.Run(ctx, string(src), opts...)

	if st != nil {
		status, msg := store.StatusCompleted, ""
		if runErr != nil {
			status, msg = store.StatusFailed, runErr.Error()
		}
		if err := st.FinishRun(runID, status, msg); err != nil {
			logger.Warn("record run failed", "run_id", runID, "error", err)
		}
		if err := st.SaveKnowledge(runID, k.Snapshot()); err != nil {
			logger.Warn("save knowledge failed", "run_id", runID, "error", err)
		}
	}
	if o.knowledgeOut != "" {
		if err := swarm.NewFilePersistence(o.knowledgeOut).Save(k.Snapshot()); err != nil {
			logger.Warn("save knowledge failed", "path", o.knowledgeOut, "error", err)
		}
	}
	return runID, runErr
}

func openStore(path string) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
