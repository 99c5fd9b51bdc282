// Package core is the orchestration layer.  It drives the host boundary
// through complete operational modes and provides a builder that
// selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	shell  →  registry  →  host  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point for
// cmd.Execute.
package core

import (
	"context"
	"fmt"
)

// Mode represents a complete operational mode of runshell (run one
// program, or drive sessions interactively).  Each mode owns its full
// lifecycle from spawning children to closing them.
type Mode interface {
	Run(ctx context.Context) error
}

// ExitError reports a child that exited with a nonzero status, so the
// CLI can exit with the same code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("child exited with status %d", e.Code)
}
