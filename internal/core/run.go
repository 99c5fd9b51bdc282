package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"runshell/internal/errors"
	"runshell/internal/host"
	"runshell/internal/registry"
	"runshell/util"
)

// RunMode runs one program to completion: it writes Input to the
// child, streams the child's output to Stdout until end of stream and
// closes the session.  A nonzero child exit status is returned as
// *ExitError.
type RunMode struct {
	Host        *host.Host
	Application string
	CommandLine string
	Input       io.Reader // written to the child before reading; may be nil
	Stderr      bool      // also drain the child's stderr after stdout
	Logger      *util.Logger

	// Stdout/ErrOut default to os.Stdout/os.Stderr when nil.
	// Override in tests for deterministic I/O.
	Stdout io.Writer
	ErrOut io.Writer
}

func (m *RunMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *RunMode) errOut() io.Writer {
	if m.ErrOut != nil {
		return m.ErrOut
	}
	return os.Stderr
}

// Run spawns the child and drives it through write, read and close.
func (m *RunMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.NewLogger(0)
	}
	h := m.Host
	handle, ok := h.OpenShell(m.Application, m.CommandLine)
	if !ok {
		return h.Err()
	}
	// Keep the session so the exit status is available after close.
	sess, _ := h.Registry().Get(registry.Handle(handle))

	if err := m.feed(handle); err != nil {
		m.Host.CloseShell(handle)
		return err
	}

	n, err := util.DrainChunks(func() (string, error) {
		chunk, ok := h.ReadShellDataContext(ctx, handle)
		if !ok {
			return "", h.Err()
		}
		return chunk, nil
	}, m.stdout())
	m.Logger.Verbose("read %d bytes from stdout", n)
	if err != nil {
		m.Host.CloseShell(handle)
		return fmt.Errorf("read: %w", err)
	}

	if m.Stderr {
		if _, err := util.DrainChunks(func() (string, error) {
			chunk, ok := h.ReadShellErrorContext(ctx, handle)
			if !ok {
				return "", h.Err()
			}
			return chunk, nil
		}, m.errOut()); err != nil {
			m.Host.CloseShell(handle)
			return fmt.Errorf("read stderr: %w", err)
		}
	}

	if !h.CloseShell(handle) {
		return fmt.Errorf("close: %w", h.Err())
	}

	if code := sess.ExitCode(); code != 0 {
		werr := sess.WaitErr()
		m.Logger.Verbose("child: %v", werr)
		// No status to pass on when a signal ended the child.
		if code < 0 && werr != nil {
			return fmt.Errorf("child: %w", werr)
		}
		return &ExitError{Code: code}
	}
	return nil
}

// feed copies Input to the child in one write.
func (m *RunMode) feed(handle int) error {
	if m.Input == nil {
		return nil
	}
	data, err := io.ReadAll(m.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if !m.Host.WriteShellData(handle, string(data)) {
		err := m.Host.Err()
		// A child that exits without reading its input is not a failure
		// of the run; its output is still there to collect.
		if errors.Is(err, os.ErrClosed) || isBrokenPipe(err) {
			m.Logger.Verbose("child stopped reading input: %v", err)
			return nil
		}
		return fmt.Errorf("write: %w", err)
	}
	m.Logger.Verbose("wrote %d bytes to stdin", len(data))
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Code(err) == errors.Code(errors.ErrEndOfStream)
}
