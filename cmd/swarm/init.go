package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/everydev1618/swarm"
)

// initCmd creates the Swarm home and writes a default swarm.yaml.
func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config without asking")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	home := swarm.Home()
	path := swarm.DefaultConfigPath()

	if err := swarm.EnsureHome(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", home, err)
		os.Exit(1)
	}

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Println("Found existing configuration at", path)
		if !confirm("Overwrite with defaults?") {
			fmt.Println("Keeping existing configuration.")
			return
		}
	}

	if err := swarm.DefaultConfig().Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Println("Wrote", path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  swarm check mission.swarm")
	fmt.Println("  swarm run mission.swarm")
	fmt.Println("  swarm history")
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return ans == "y" || ans == "yes"
	}
	return false
}
