package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/everydev1618/swarm/schedule"
)

// scheduleCmd runs a program on a cron schedule until interrupted.
func scheduleCmd(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	cronExpr := fs.String("cron", "", "Cron expression (default from config)")
	now := fs.Bool("now", false, "Also run once immediately")
	rf := addRunFlags(fs)

	fs.Usage = func() {
		fmt.Println(`Usage: swarm schedule [options] <file>

Run a program periodically. Overlapping firings are skipped. Every run is
recorded in the run history.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  swarm schedule -cron "*/10 * * * *" mission.swarm
  swarm schedule -cron "@every 1m" -now mission.swarm`)
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
	expr := firstNonEmpty(*cronExpr, opts.cfg.Schedule.Cron)
	if expr == "" {
		fmt.Fprintln(os.Stderr, "Error: no cron expression (use -cron or schedule.cron in swarm.yaml)")
		os.Exit(1)
	}

	logger := opts.cfg.Logging.NewLogger(os.Stderr)
	// Each firing gets its own timeout from execute.
	runTimeout := opts.timeout
	opts.timeout = 0

	sched := schedule.NewScheduler(func(ctx context.Context, job schedule.Job) error {
		runID, err := execute(ctx, job.Program, opts)
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		logger.Info("scheduled run completed", "job", job.Name, "run_id", runID)
		return nil
	}, schedule.WithLogger(logger), schedule.WithTimeout(runTimeout))

	job := schedule.Job{
		Name:    filepath.Base(fs.Arg(0)),
		Cron:    expr,
		Program: fs.Arg(0),
		Enabled: true,
	}
	if err := sched.AddJob(job); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if next, ok := sched.Next(job.Name); ok {
		fmt.Printf("Scheduled %s (%s), next run at %s\n", job.Name, job.Cron, next.Format("15:04:05"))
	}
	if *now {
		go func() {
			if err := sched.RunNow(job.Name); err != nil {
				logger.Warn("immediate run failed", "job", job.Name, "error", err)
			}
		}()
	}

	sched.Start(ctx)
	fmt.Printf("\nStopped after %d runs.\n", sched.Fired(job.Name))
}
