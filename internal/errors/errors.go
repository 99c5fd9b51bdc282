// Package errors provides domain-specific error types for runshell.
//
// These types carry structured context (operation, endpoint, program path)
// and map every failure onto a numeric OS error code so the host boundary
// can answer "what went wrong" long after the failing call returned.
package errors

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrInvalidHandle     = errors.New("invalid session handle")
	ErrProtocolViolation = errors.New("write after read: session input is closed")
	ErrEndOfStream       = fmt.Errorf("end of stream: %w", io.EOF)
	ErrSessionClosed     = errors.New("session is closed")
	ErrTimeout           = errors.New("operation timed out")
)

// ── Structured error types ───────────────────────────────────────────

// SpawnError represents a failure to start the child process.
type SpawnError struct {
	Op   string // "expand", "argv", "start"
	Path string // program path after expansion (may be empty)
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spawn %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("spawn %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// PipeError represents a failure on one pipe endpoint.
type PipeError struct {
	Op       string // "create", "read", "write", "close"
	Endpoint string // e.g. "parent-stdin-write"
	Err      error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("pipe %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *PipeError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapSpawn creates a SpawnError.
func WrapSpawn(op, path string, err error) *SpawnError {
	return &SpawnError{Op: op, Path: path, Err: err}
}

// WrapPipe creates a PipeError.
func WrapPipe(op, endpoint string, err error) *PipeError {
	return &PipeError{Op: op, Endpoint: endpoint, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsEndOfStream reports whether err means the child has no more output.
func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream) || errors.Is(err, io.EOF)
}

// IsSpawn reports whether err came from starting the child process.
func IsSpawn(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

// IsPipe reports whether err came from a pipe endpoint.
func IsPipe(err error) bool {
	var pe *PipeError
	return errors.As(err, &pe)
}

// ── OS codes ─────────────────────────────────────────────────────────

// CodeUnknown is reported for failures that carry no OS error number.
const CodeUnknown = -1

// Code maps err to the numeric OS error code reported by the host
// boundary.  A nil error is 0.  Errors that never reached the OS are
// mapped to the code the equivalent system call would have produced.
func Code(err error) int {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}

	switch {
	case errors.Is(err, ErrInvalidHandle),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrProtocolViolation),
		errors.Is(err, os.ErrClosed):
		return int(codeBadHandle)
	case IsEndOfStream(err):
		return int(codeBrokenPipe)
	case errors.Is(err, ErrTimeout), errors.Is(err, os.ErrDeadlineExceeded):
		return int(codeTimeout)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return int(codeNotFound)
	case errors.Is(err, os.ErrPermission):
		return int(codePermission)
	}
	return CodeUnknown
}

// FallbackMessage is returned by [Describe] when the platform cannot
// render a code.
const FallbackMessage = "problem formatting error message; raw error code returned"

// Describe returns the code for err together with the platform's
// message text for it, trimmed of surrounding whitespace.  A nil
// error yields (0, "").
func Describe(err error) (int, string) {
	code := Code(err)
	return code, Message(code)
}

// Message renders an OS error code with the platform message facility.
// Code 0 renders as the empty string.
func Message(code int) string {
	if code == 0 {
		return ""
	}
	if code < 0 {
		return FallbackMessage
	}
	msg, ok := formatMessage(code)
	if !ok || msg == "" {
		return FallbackMessage
	}
	return msg
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use runshell/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
