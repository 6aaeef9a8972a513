// Package main provides the Swarm CLI.
package main

import (
	"fmt"
	"os"
	"strings"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		runCmd(args)
	case "check":
		checkCmd(args)
	case "fmt":
		fmtCmd(args)
	case "history":
		historyCmd(args)
	case "schedule":
		scheduleCmd(args)
	case "serve":
		serveCmd(args)
	case "init":
		initCmd(args)
	case "reset":
		resetCmd(args)
	case "version":
		fmt.Printf("swarm %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		// swarm <file> is shorthand for swarm run <file>.
		if !strings.HasPrefix(cmd, "-") {
			if _, err := os.Stat(cmd); err == nil {
				runCmd(os.Args[1:])
				return
			}
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Swarm - multi-agent mission language

Usage:
  swarm <command> [options]
  swarm <file>

Commands:
  run       Run a Swarm program
  check     Lex, parse and analyze a program without running it
  fmt       Print a program in canonical form
  history   List past runs and their events
  schedule  Run a program periodically on a cron schedule
  serve     Start the REST API with a live event stream
  init      Write a default swarm.yaml to the Swarm home
  reset     Delete run history and saved knowledge
  version   Print version information
  help      Show this help message

Examples:
  swarm mission.swarm
  swarm run -stack -timeout 30s mission.swarm
  swarm check mission.swarm
  swarm schedule -cron "*/10 * * * *" mission.swarm

Run 'swarm <command> --help' for more information on a command.`)
}
