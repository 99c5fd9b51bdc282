// Package registry maps integer handles to live shell sessions.
//
// Handles are issued from a counter that starts at 1 and only grows, so
// a closed handle is never handed out again for the life of the
// Registry.  The map is guarded by a mutex that is never held across a
// blocking session call.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"runshell/internal/errors"
	"runshell/internal/metrics"
	"runshell/internal/shell"
	"runshell/util"
)

// Handle identifies a session within one Registry.
type Handle int

// NoHandle is never issued; it is what a failed open reports.
const NoHandle Handle = 0

// Registry owns every session it has issued a handle for.
type Registry struct {
	mu       sync.Mutex
	sessions map[Handle]*shell.Session
	next     Handle

	logger  *util.Logger
	metrics *metrics.Collector
}

// New creates an empty registry.  Both arguments may be nil.
func New(logger *util.Logger, m *metrics.Collector) *Registry {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Registry{
		sessions: make(map[Handle]*shell.Session),
		next:     1,
		logger:   logger,
		metrics:  m,
	}
}

// Open takes ownership of s and returns its new handle.
func (r *Registry) Open(s *shell.Session) Handle {
	r.mu.Lock()
	h := r.next
	r.next++
	r.sessions[h] = s
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Verbose("handle %d -> pid %d", h, s.Pid())
	return h
}

// Get returns the session for h.
func (r *Registry) Get(h Handle) (*shell.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[h]
	return s, ok
}

// Lookup is Get with an error suitable for returning to a caller.
func (r *Registry) Lookup(h Handle) (*shell.Session, error) {
	s, ok := r.Get(h)
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, errors.ErrInvalidHandle)
	}
	return s, nil
}

// Close removes h and closes its session, waiting for the child to
// exit.  The entry is gone even when closing the session fails.
func (r *Registry) Close(h Handle) error {
	return r.CloseContext(context.Background(), h)
}

// CloseContext is Close with the wait for the child bounded by ctx.
func (r *Registry) CloseContext(ctx context.Context, h Handle) error {
	s, err := r.remove(h)
	if err != nil {
		return err
	}
	return r.closeSession(ctx, h, s)
}

// CloseAll removes every entry and closes the sessions concurrently.
// It returns the joined close errors.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	taken := r.sessions
	r.sessions = make(map[Handle]*shell.Session)
	r.mu.Unlock()

	if len(taken) == 0 {
		return nil
	}
	r.logger.Verbose("closing %d sessions", len(taken))

	p := pool.New().WithErrors()
	for h, s := range taken {
		p.Go(func() error {
			return r.closeSession(ctx, h, s)
		})
	}
	return p.Wait()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Handles returns the open handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	hs := make([]Handle, 0, len(r.sessions))
	for h := range r.sessions {
		hs = append(hs, h)
	}
	r.mu.Unlock()

	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

func (r *Registry) remove(h Handle) (*shell.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[h]
	if !ok {
		return nil, fmt.Errorf("close handle %d: %w", h, errors.ErrInvalidHandle)
	}
	delete(r.sessions, h)
	return s, nil
}

func (r *Registry) closeSession(ctx context.Context, h Handle, s *shell.Session) error {
	r.metrics.SessionClosed()
	if err := s.CloseContext(ctx); err != nil {
		r.logger.Warn("handle %d: %v", h, err)
		return fmt.Errorf("close handle %d: %w", h, err)
	}
	r.logger.Verbose("handle %d closed", h)
	return nil
}
