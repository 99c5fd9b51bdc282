package shell

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"runshell/internal/errors"
)

// Endpoint names, as they appear in errors and logs.
const (
	ChildStdinRead   = "child-stdin-read"
	ParentStdinWrite = "parent-stdin-write"
	ChildStdoutWrite = "child-stdout-write"
	ParentStdoutRead = "parent-stdout-read"
	ChildStderrWrite = "child-stderr-write"
	ParentStderrRead = "parent-stderr-read"
)

// Endpoint is one owned end of a pipe.  Close releases the underlying
// file exactly once; every later call returns the first result.  A nil
// *Endpoint is closed.
type Endpoint struct {
	name   string
	f      *os.File
	once   sync.Once
	closed atomic.Bool
	err    error
}

func newEndpoint(name string, f *os.File) *Endpoint {
	return &Endpoint{name: name, f: f}
}

// Name identifies the endpoint, e.g. "parent-stdout-read".
func (e *Endpoint) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// File returns the underlying file.  It must not be closed directly.
func (e *Endpoint) File() *os.File {
	if e == nil {
		return nil
	}
	return e.f
}

// Closed reports whether Close has been called.
func (e *Endpoint) Closed() bool {
	return e == nil || e.closed.Load()
}

// Close releases the endpoint.
func (e *Endpoint) Close() error {
	if e == nil {
		return nil
	}
	e.once.Do(func() {
		e.closed.Store(true)
		if e.f != nil {
			if err := e.f.Close(); err != nil {
				e.err = errors.WrapPipe("close", e.name, err)
			}
		}
	})
	return e.err
}

// pipeSet holds the six endpoints of a session's three pipes.
type pipeSet struct {
	childStdinR, parentStdinW   *Endpoint
	childStdoutW, parentStdoutR *Endpoint
	childStderrW, parentStderrR *Endpoint
}

// newPipeSet allocates three pipes.  os.Pipe marks both ends
// close-on-exec, so nothing leaks into the child except the three
// ends explicitly bound to its stdio.  On failure every end created so
// far is released.
func newPipeSet() (*pipeSet, error) {
	p := &pipeSet{}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.WrapPipe("create", "stdin", err)
	}
	p.childStdinR, p.parentStdinW = newEndpoint(ChildStdinRead, r), newEndpoint(ParentStdinWrite, w)

	r, w, err = os.Pipe()
	if err != nil {
		p.closeAll()
		return nil, errors.WrapPipe("create", "stdout", err)
	}
	p.parentStdoutR, p.childStdoutW = newEndpoint(ParentStdoutRead, r), newEndpoint(ChildStdoutWrite, w)

	r, w, err = os.Pipe()
	if err != nil {
		p.closeAll()
		return nil, errors.WrapPipe("create", "stderr", err)
	}
	p.parentStderrR, p.childStderrW = newEndpoint(ParentStderrRead, r), newEndpoint(ChildStderrWrite, w)

	return p, nil
}

func (p *pipeSet) all() []*Endpoint {
	return []*Endpoint{
		p.childStdinR, p.parentStdinW,
		p.childStdoutW, p.parentStdoutR,
		p.childStderrW, p.parentStderrR,
	}
}

// closeAll releases every endpoint regardless of state and reports
// every failure.
func (p *pipeSet) closeAll() error {
	var errs []error
	for _, e := range p.all() {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openCount returns how many endpoints are still open.
func (p *pipeSet) openCount() int {
	n := 0
	for _, e := range p.all() {
		if !e.Closed() {
			n++
		}
	}
	return n
}

func (p *pipeSet) String() string {
	return fmt.Sprintf("pipes(%d open)", p.openCount())
}
