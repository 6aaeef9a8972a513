package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/everydev1618/swarm/dsl"
	"github.com/everydev1618/swarm/serve"
)

// serveCmd starts the REST API server.
func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":3001", "HTTP listen address")
	rf := addRunFlags(fs)

	fs.Usage = func() {
		fmt.Println(`Usage: swarm serve [options]

Start a REST API server that runs programs, records them in the run history
and streams their events over Server-Sent Events.

Endpoints:
  POST   /api/runs                 start a run {"name": "...", "source": "..."}
  GET    /api/runs                 list runs
  GET    /api/runs/{id}            one run
  DELETE /api/runs/{id}            cancel an active run
  GET    /api/runs/{id}/events     stored events of a run
  GET    /api/runs/{id}/knowledge  final knowledge of a run
  POST   /api/check                analyze a program {"source": "..."}
  GET    /api/stats                counts and uptime
  GET    /api/events[?run=id]      live event stream

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  swarm serve
  swarm serve --addr :8080 --timeout 1m`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	opts, err := rf.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog, err := opts.newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	st, err := openStore(opts.cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", opts.cfg.Store.Path, err)
		os.Exit(1)
	}
	defer st.Close()

	run := func(ctx context.Context, src string, extra ...dsl.InterpreterOption) (*dsl.Interpreter, error) {
		base, _, err := opts.interpreterOptions(logger)
		if err != nil {
			return nil, err
		}
		return dsl.Run(ctx, src, append(base, extra...)...)
	}
	srv := serve.New(st, run, serve.Config{Addr: *addr, RunTimeout: opts.timeout})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
