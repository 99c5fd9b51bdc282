package config

import (
	"time"

	"runshell/internal/shell"
	"runshell/internal/textenc"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultChunkSize is the largest chunk one read returns.
	DefaultChunkSize = shell.DefaultChunkSize

	// DefaultEncoding is the encoding of the child's streams.
	DefaultEncoding = textenc.Default

	// DefaultReadTimeout of 0 lets a read block until data or end of
	// stream.
	DefaultReadTimeout time.Duration = 0

	// DefaultWriteTimeout of 0 lets a write block until the child
	// drains its input.
	DefaultWriteTimeout time.Duration = 0

	// DefaultCloseTimeout of 0 makes close wait for the child without
	// limit.
	DefaultCloseTimeout time.Duration = 0

	// EnvPrefix is the prefix of every environment variable read by
	// LoadFromEnv.
	EnvPrefix = "RUNSHELL_"
)
