package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/everydev1618/swarm"
)

// resetCmd deletes run history and saved knowledge.
func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	dbPath := fs.String("db", swarm.DefaultDBPath(), "SQLite database path")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")

	fs.Usage = func() {
		fmt.Println(`Usage: swarm reset [options]

Reset Swarm to a fresh state by deleting all data.

This will delete:
  - All recorded runs and their events
  - All knowledge snapshots
  - All knowledge files on disk (~/.swarm/knowledge/)

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  swarm reset
  swarm reset --yes`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	knowledgeDir := swarm.KnowledgePath()
	dbAbs, _ := filepath.Abs(*dbPath)

	var fileCount int
	filepath.Walk(knowledgeDir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			fileCount++
		}
		return nil
	})

	st, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %s: %v\n", dbAbs, err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("The following data will be deleted:")
	fmt.Println()
	for _, row := range []struct {
		label string
		count int
	}{
		{"Runs", stats.Runs},
		{"Events", stats.Events},
		{"Knowledge snapshots", stats.Snapshots},
	} {
		if row.count > 0 {
			fmt.Printf("  %-22s %d records\n", row.label, row.count)
		}
	}
	if fileCount > 0 {
		fmt.Printf("  %-22s %d files\n", "Knowledge files", fileCount)
	}
	fmt.Println()
	fmt.Printf("  Database: %s\n", dbAbs)
	fmt.Printf("  Knowledge: %s\n", knowledgeDir)
	fmt.Println()

	if stats.Runs+stats.Events+stats.Snapshots == 0 && fileCount == 0 {
		fmt.Println("Nothing to reset, already clean.")
		return
	}

	if !*yes {
		if !confirm("Are you sure you want to delete all of the above?") {
			fmt.Println("Aborted.")
			return
		}
		fmt.Println()
	}

	if err := st.Reset(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error clearing database: %v\n", err)
	} else {
		fmt.Println("  Cleared run history")
	}

	entries, err := os.ReadDir(knowledgeDir)
	if err == nil {
		for _, e := range entries {
			p := filepath.Join(knowledgeDir, e.Name())
			if err := os.RemoveAll(p); err != nil {
				fmt.Fprintf(os.Stderr, "  Error removing %s: %v\n", p, err)
			}
		}
		fmt.Printf("  Cleared knowledge (%d files)\n", fileCount)
	}

	fmt.Println()
	fmt.Println("Reset complete.")
}
