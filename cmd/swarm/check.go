package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/everydev1618/swarm/dsl"
)

// checkCmd runs the static stages over a program.
func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	scopes := fs.Bool("scopes", false, "Trace scope resolution")

	fs.Usage = func() {
		fmt.Println(`Usage: swarm check [options] <file>

Lex, parse and analyze a program without running it.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no program file specified")
		fs.Usage()
		os.Exit(1)
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var opts []dsl.AnalyzerOption
	if *scopes {
		opts = append(opts, dsl.WithScopeTrace(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	if _, _, err := dsl.Check(string(src), opts...); err != nil {
		reportError(err)
		os.Exit(1)
	}
	fmt.Printf("%s: ok\n", fs.Arg(0))
}

// fmtCmd prints a program in canonical form.
func fmtCmd(args []string) {
	fs := flag.NewFlagSet("fmt", flag.ExitOnError)
	write := fs.Bool("w", false, "Write result to the source file instead of stdout")

	fs.Usage = func() {
		fmt.Println(`Usage: swarm fmt [options] <file>

Parse a program and print it in canonical form.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no program file specified")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	prog, err := dsl.Parse(string(src))
	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	out := dsl.Format(prog)
	if *write {
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(out)
}
