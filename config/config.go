// Package config defines the runtime configuration for runshell and
// the layers that fill it: defaults, a TOML file, environment variables
// and, last, command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"runshell/internal/errors"
	"runshell/internal/host"
	"runshell/internal/shell"
	"runshell/internal/textenc"
	"runshell/util"
)

// Config holds every tuneable for one runshell invocation.
type Config struct {
	// ── Child process ────────────────────────────────────────────────
	Application string   // program path; may contain %NAME% or $NAME
	CommandLine string   // arguments, or the whole command when Application is empty
	Dir         string   // working directory of the child
	Env         []string // extra KEY=VALUE pairs for the child

	// ── I/O ──────────────────────────────────────────────────────────
	Input        string // text written to the child before reading
	Encoding     string
	ChunkSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CloseTimeout time.Duration
	Stderr       bool // also drain the child's stderr in run mode

	// ── Mode ─────────────────────────────────────────────────────────
	Interactive bool
	DryRun      bool

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	Stats      bool // print the metrics snapshot on exit
	ConfigFile string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Encoding:     DefaultEncoding,
		ChunkSize:    DefaultChunkSize,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		CloseTimeout: DefaultCloseTimeout,
	}
}

// SessionOptions converts the I/O settings into shell.Options.
func (c *Config) SessionOptions(logger *util.Logger) shell.Options {
	return shell.Options{
		Encoding:     c.Encoding,
		ChunkSize:    c.ChunkSize,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		Dir:          c.Dir,
		Env:          c.Env,
		Logger:       logger,
	}
}

// HostOptions converts the configuration into host.Options.
func (c *Config) HostOptions(logger *util.Logger) host.Options {
	return host.Options{
		Session:      c.SessionOptions(logger),
		CloseTimeout: c.CloseTimeout,
		Logger:       logger,
	}
}

// String renders the effective configuration, one setting per line.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "application:   %q\n", c.Application)
	fmt.Fprintf(&sb, "command line:  %q\n", c.CommandLine)
	if c.Dir != "" {
		fmt.Fprintf(&sb, "dir:           %s\n", c.Dir)
	}
	for _, kv := range c.Env {
		fmt.Fprintf(&sb, "env:           %s\n", kv)
	}
	fmt.Fprintf(&sb, "encoding:      %s\n", c.Encoding)
	fmt.Fprintf(&sb, "chunk size:    %d\n", c.ChunkSize)
	fmt.Fprintf(&sb, "read timeout:  %s\n", c.ReadTimeout)
	fmt.Fprintf(&sb, "write timeout: %s\n", c.WriteTimeout)
	fmt.Fprintf(&sb, "close timeout: %s\n", c.CloseTimeout)
	fmt.Fprintf(&sb, "input:         %d bytes\n", len(c.Input))
	fmt.Fprintf(&sb, "stderr:        %v\n", c.Stderr)
	fmt.Fprintf(&sb, "interactive:   %v\n", c.Interactive)
	return sb.String()
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError.
func (c *Config) Validate() error {
	if !c.Interactive && c.Application == "" && strings.TrimSpace(c.CommandLine) == "" {
		return &errors.ConfigError{
			Field:   "application",
			Message: "nothing to run",
			Hint:    "pass a program, e.g. runshell /bin/ls -la, or use --interactive",
		}
	}

	if c.Interactive && c.Input != "" {
		return &errors.ConfigError{
			Field:   "input",
			Value:   c.Input,
			Message: "--input has no effect in interactive mode",
			Hint:    "use the write command at the prompt instead",
		}
	}

	if c.ChunkSize < 1 || c.ChunkSize > util.DefaultBufSize {
		return &errors.ConfigError{
			Field:   "chunk-size",
			Value:   c.ChunkSize,
			Message: fmt.Sprintf("must be between 1 and %d", util.DefaultBufSize),
			Hint:    fmt.Sprintf("the default is %d", DefaultChunkSize),
		}
	}

	if _, err := textenc.Lookup(c.Encoding); err != nil {
		return &errors.ConfigError{
			Field:   "encoding",
			Value:   c.Encoding,
			Message: err.Error(),
			Hint:    "use a WHATWG or IANA name such as utf-8, utf-16le or windows-1252",
		}
	}

	for _, t := range []struct {
		field string
		d     time.Duration
	}{
		{"read-timeout", c.ReadTimeout},
		{"write-timeout", c.WriteTimeout},
		{"close-timeout", c.CloseTimeout},
	} {
		if t.d < 0 {
			return &errors.ConfigError{
				Field:   t.field,
				Value:   t.d,
				Message: "must not be negative",
				Hint:    "0 waits without limit",
			}
		}
	}

	for _, kv := range c.Env {
		if !strings.Contains(kv, "=") || strings.HasPrefix(kv, "=") {
			return &errors.ConfigError{
				Field:   "env",
				Value:   kv,
				Message: "expected KEY=VALUE",
			}
		}
	}

	return nil
}
