// Package host is the boundary an embedding interpreter calls into.
//
// Every function reports success as a plain bool (the host's Nil/True)
// and never returns an error value; the reason for the most recent
// failure is kept on the Host and retrieved with GetLastShellError.  A
// successful call clears it.
package host

import (
	"context"
	"sync"
	"time"

	"runshell/internal/errors"
	"runshell/internal/metrics"
	"runshell/internal/registry"
	"runshell/internal/shell"
	"runshell/util"
)

// Options configure a Host.
type Options struct {
	Session      shell.Options // applied to every session opened
	CloseTimeout time.Duration // bound on CloseShell's wait; 0 waits forever
	Logger       *util.Logger
	Metrics      *metrics.Collector
}

// Host owns one session registry and the last-error slot.
type Host struct {
	reg          *registry.Registry
	sessOpts     shell.Options
	closeTimeout time.Duration
	logger       *util.Logger
	metrics      *metrics.Collector

	mu      sync.Mutex
	lastErr error
}

// New creates a Host with an empty registry.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	so := opts.Session
	if so.Logger == nil {
		so.Logger = opts.Logger
	}
	if so.Metrics == nil {
		so.Metrics = opts.Metrics
	}
	return &Host{
		reg:          registry.New(opts.Logger, opts.Metrics),
		sessOpts:     so,
		closeTimeout: opts.CloseTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Registry exposes the underlying registry.
func (h *Host) Registry() *registry.Registry { return h.reg }

// Metrics returns the collector shared by every session, which may be nil.
func (h *Host) Metrics() *metrics.Collector { return h.metrics }

// OpenShell starts application with commandLine and returns its handle.
// On failure it returns (0, false).
func (h *Host) OpenShell(application, commandLine string) (int, bool) {
	s, err := shell.Open(application, commandLine, h.sessOpts)
	if err != nil {
		h.metrics.SpawnFailed()
		h.metrics.RecordError(err.Error())
		h.record(err)
		return int(registry.NoHandle), false
	}
	h.record(nil)
	return int(h.reg.Open(s)), true
}

// CloseShell waits for the child behind handle to exit and releases
// the session.  The handle is invalid afterwards whatever the result.
func (h *Host) CloseShell(handle int) bool {
	ctx := context.Background()
	if h.closeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.closeTimeout)
		defer cancel()
	}
	return h.record(h.reg.CloseContext(ctx, registry.Handle(handle)))
}

// WriteShellData sends data to the child's stdin.  It fails once the
// session has been read from.
func (h *Host) WriteShellData(handle int, data string) bool {
	s, err := h.reg.Lookup(registry.Handle(handle))
	if err != nil {
		return h.record(err)
	}
	return h.record(s.Write(data))
}

// ReadShellData returns the next chunk of the child's stdout.  The
// second result is false both on failure and at end of stream; in the
// latter case GetLastShellError reports a broken pipe.
func (h *Host) ReadShellData(handle int) (string, bool) {
	return h.ReadShellDataContext(context.Background(), handle)
}

// ReadShellDataContext is ReadShellData that gives up when ctx ends.
func (h *Host) ReadShellDataContext(ctx context.Context, handle int) (string, bool) {
	return h.read(ctx, handle, (*shell.Session).ReadContext)
}

// ReadShellError is ReadShellData for the child's stderr.
func (h *Host) ReadShellError(handle int) (string, bool) {
	return h.ReadShellErrorContext(context.Background(), handle)
}

// ReadShellErrorContext is ReadShellError that gives up when ctx ends.
func (h *Host) ReadShellErrorContext(ctx context.Context, handle int) (string, bool) {
	return h.read(ctx, handle, (*shell.Session).ReadErrorContext)
}

func (h *Host) read(ctx context.Context, handle int, fn func(*shell.Session, context.Context) (string, error)) (string, bool) {
	s, err := h.reg.Lookup(registry.Handle(handle))
	if err != nil {
		return "", h.record(err)
	}
	chunk, err := fn(s, ctx)
	if !h.record(err) {
		return "", false
	}
	return chunk, true
}

// GetLastShellError returns the OS code and message of the most recent
// failure, or (0, "") if the last call succeeded.
func (h *Host) GetLastShellError() (int, string) {
	return errors.Describe(h.Err())
}

// Err returns the full error behind GetLastShellError.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Shutdown closes every remaining session.  Input still open is ended
// first, so a child waiting on it can exit.
func (h *Host) Shutdown(ctx context.Context) error {
	for _, handle := range h.reg.Handles() {
		if s, ok := h.reg.Get(handle); ok && s.State() == shell.StateRunning {
			if err := s.CloseInput(); err != nil {
				h.logger.Debug("shutdown: handle %d: %v", handle, err)
			}
		}
	}
	err := h.reg.CloseAll(ctx)
	if err != nil {
		h.logger.Warn("shutdown: %v", err)
	}
	return err
}

// record stores err as the last error and reports whether it was nil.
func (h *Host) record(err error) bool {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
	if err != nil {
		h.logger.Debug("boundary call failed: %v", err)
	}
	return err == nil
}
