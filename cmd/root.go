// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"runshell/config"
	"runshell/internal/core"
	"runshell/internal/metrics"
	"runshell/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X runshell/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// cliOpts are switches that only make sense on the command line.
type cliOpts struct {
	showVersion bool
	showHelp    bool
	noStdin     bool
}

// Execute parses args and runs the appropriate runshell mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) error {
	// ── first pass: find the config file ─────────────────────────
	probe := config.Default()
	config.LoadFromEnv(probe)
	var opts cliOpts
	fs := newFlagSet(probe, &opts, stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.showHelp || len(args) == 0 {
		printUsage(fs, stderr)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "runshell %s\n", version)
		return nil
	}

	// ── layer: defaults < file < env < flags ─────────────────────
	cfg := config.Default()
	if probe.ConfigFile != "" {
		if err := config.LoadFile(probe.ConfigFile, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	layeredVerbose := cfg.Verbose
	fs = newFlagSet(cfg, &opts, stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	// CountVar always starts from zero.
	if !fs.Changed("verbose") {
		cfg.Verbose = layeredVerbose
	}

	// ── positional arguments ─────────────────────────────────────
	parsePositional(cfg, fs.Args())

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Fprint(stdout, cfg.String())
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	col := metrics.New()

	mode, err := core.Build(cfg, logger, col)
	if err != nil {
		return err
	}

	isTTY := stdin != nil && term.IsTerminal(int(stdin.Fd()))
	switch m := mode.(type) {
	case *core.RunMode:
		m.Stdout, m.ErrOut = stdout, stderr
		if !opts.noStdin && !isTTY && stdin != nil {
			core.WithInput(m, stdin)
		}
	case *core.InteractiveMode:
		m.Out = stdout
		if stdin != nil {
			m.In = stdin
		}
		m.Prompt = isTTY
	}

	runErr := mode.Run(ctx)
	if cfg.Stats {
		fmt.Fprintln(stderr, col.JSON())
	}
	return runErr
}

// newFlagSet binds every flag to cfg, so values already in cfg act as
// defaults and only flags given on the command line override them.
func newFlagSet(cfg *config.Config, opts *cliOpts, usageOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("runshell", flag.ContinueOnError)
	fs.SetOutput(usageOut)
	// Flags after the program belong to the program.
	fs.SetInterspersed(false)

	// ── child process ────────────────────────────────────────────
	fs.StringVarP(&cfg.CommandLine, "command-line", "c", cfg.CommandLine, "Raw command line passed to the program")
	fs.StringVarP(&cfg.Dir, "dir", "C", cfg.Dir, "Working directory of the program")
	fs.StringArrayVarP(&cfg.Env, "env", "e", cfg.Env, "Extra KEY=VALUE for the program (repeatable)")

	// ── I/O ──────────────────────────────────────────────────────
	fs.StringVarP(&cfg.Input, "input", "i", cfg.Input, "Text written to the program before reading")
	fs.BoolVarP(&opts.noStdin, "no-stdin", "n", false, "Do not forward piped stdin to the program")
	fs.StringVarP(&cfg.Encoding, "encoding", "E", cfg.Encoding, "Encoding of the program's streams")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Largest chunk returned by one read")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Limit on one read (0 = none)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Limit on one write (0 = none)")
	fs.DurationVar(&cfg.CloseTimeout, "close-timeout", cfg.CloseTimeout, "Limit on waiting for exit (0 = none)")
	fs.BoolVar(&cfg.Stderr, "stderr", cfg.Stderr, "Also print the program's stderr")

	// ── mode ─────────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Interactive, "interactive", "I", cfg.Interactive, "Drive sessions from a command prompt")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the effective configuration and exit")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML configuration file")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session metrics as JSON on exit")

	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, usageOut) }
	return fs
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional takes the program from the first argument and
// appends the rest to the command line, re-quoting words that contain
// blanks.
func parsePositional(cfg *config.Config, remaining []string) {
	if len(remaining) == 0 {
		return
	}
	cfg.Application = remaining[0]

	words := make([]string, 0, len(remaining))
	if cfg.CommandLine != "" {
		words = append(words, cfg.CommandLine)
	}
	for _, w := range remaining[1:] {
		words = append(words, quoteWord(w))
	}
	cfg.CommandLine = strings.Join(words, " ")
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `runshell – run a program over pipes v%s

Runs a child process with its stdin, stdout and stderr redirected
through pipes: input is written first, then output is read in chunks
until the program closes it.

Usage:
  runshell [options] <program> [args...]       Run a program
  runshell [options] -c "<command line>"       Run a command line
  runshell -I [options]                        Interactive session console

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  runshell /bin/ls -la                         List a directory
  echo hello | runshell tr a-z A-Z             Pipe data through a program
  runshell -i "select 1;" -c "sqlite3 :memory:" Write input, then read
  runshell -E windows-1252 %%ComSpec%% /c dir    Legacy code page console
  runshell -I                                  open/write/read/close by hand
`)
}
