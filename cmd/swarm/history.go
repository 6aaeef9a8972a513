package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/everydev1618/swarm"
	"github.com/everydev1618/swarm/store"
)

// historyCmd lists recorded runs, or the events of one run.
func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", swarm.DefaultDBPath(), "SQLite database path")
	limit := fs.Int("n", 20, "Number of runs to list")

	fs.Usage = func() {
		fmt.Println(`Usage: swarm history [options] [run-id]

Without a run id, list the most recent runs. With one, list its events.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  swarm history
  swarm history -n 5
  swarm history 5f0c7e0e-9a1d-4c38-9a43-1d7f2c0c7a11`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	st, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer st.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if fs.NArg() == 0 {
		runs, err := st.ListRuns(*limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return
		}
		fmt.Fprintln(tw, "RUN\tPROGRAM\tSTATUS\tSTARTED\tDURATION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RunID, r.Program, r.Status,
				r.StartedAt.Local().Format(time.DateTime), formatDuration(r))
		}
		return
	}

	runID := fs.Arg(0)
	run, err := st.GetRun(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	events, err := st.ListEvents(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s (%s) %s\n", run.RunID, run.Program, run.Status)
	if run.Error != "" {
		fmt.Printf("  %s\n", run.Error)
	}
	fmt.Println()
	fmt.Fprintln(tw, "TIME\tEVENT\tPROCEDURE\tKIND\tVEHICLE\tERROR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("15:04:05.000"),
			e.Type, e.Procedure, e.Kind, e.Vehicle, e.Error)
	}
}

func formatDuration(r store.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}
