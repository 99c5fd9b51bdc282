// Package shell runs one child process with its standard streams
// redirected through pipes.
//
// A Session follows a strict half-duplex protocol: while Running the
// caller may Write to the child's stdin any number of times; the first
// Read closes the input side (the child sees end of input) and moves
// the session to Draining, after which output can be read chunk by
// chunk until end of stream.  Close waits for the child to exit and
// releases all six pipe endpoints.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"runshell/internal/errors"
	"runshell/internal/metrics"
	"runshell/internal/textenc"
	"runshell/util"
)

// DefaultChunkSize is the most a single Read returns: the 504 byte host
// string buffer less its terminator.
const DefaultChunkSize = 503

// Options tune a session.  The zero value is usable.
type Options struct {
	Encoding     string        // child stream encoding; "" means UTF-8
	ChunkSize    int           // max raw bytes per Read; 0 means DefaultChunkSize
	ReadTimeout  time.Duration // per-Read limit; 0 blocks until data or EOF
	WriteTimeout time.Duration // per-Write limit; 0 blocks until written
	Dir          string        // child working directory
	Env          []string      // extra KEY=VALUE pairs appended to os.Environ
	Logger       *util.Logger
	Metrics      *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = util.NewLogger(0)
	}
	return o
}

// Session is one child process and its three redirected pipes.  All
// methods are safe for concurrent use; Write, Read and Close on one
// session are serialised.
type Session struct {
	mu     sync.Mutex
	state  atomic.Int32
	pipes  *pipeSet
	cmd    *exec.Cmd
	argv   []string
	exited chan struct{}

	codec     *textenc.Codec
	stdoutDec *textenc.StreamDecoder
	stderrDec *textenc.StreamDecoder
	opts      Options

	errMu   sync.Mutex
	lastErr error
	waitErr error
}

// Open starts application with the given command line.  Environment
// references in application ($NAME, ${NAME}, %NAME%) are expanded
// first.  When application is empty the first word of commandLine names
// the program.  On failure nothing is left running or open.
func Open(application, commandLine string, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	codec, err := textenc.Lookup(opts.Encoding)
	if err != nil {
		return nil, errors.WrapSpawn("encoding", application, err)
	}

	path, argv, err := buildArgv(application, commandLine)
	if err != nil {
		return nil, err
	}

	pipes, err := newPipeSet()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Args = argv
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Stdin = pipes.childStdinR.File()
	cmd.Stdout = pipes.childStdoutW.File()
	cmd.Stderr = pipes.childStderrW.File()
	configureCommand(cmd, commandLine)

	if err := cmd.Start(); err != nil {
		pipes.closeAll() //nolint:errcheck
		return nil, errors.WrapSpawn("start", path, err)
	}

	s := &Session{
		pipes:     pipes,
		cmd:       cmd,
		argv:      argv,
		exited:    make(chan struct{}),
		codec:     codec,
		stdoutDec: codec.NewStreamDecoder(),
		stderrDec: codec.NewStreamDecoder(),
		opts:      opts,
	}
	s.state.Store(int32(StateRunning))

	// Reap the child as soon as it exits; Close only has to wait on the
	// channel.
	go func() {
		err := cmd.Wait()
		s.errMu.Lock()
		s.waitErr = err
		s.errMu.Unlock()
		close(s.exited)
	}()

	opts.Logger.Verbose("spawned pid %d: %s", cmd.Process.Pid, strings.Join(argv, " "))
	return s, nil
}

// buildArgv expands the application path and splits the command line.
func buildArgv(application, commandLine string) (string, []string, error) {
	var path string
	if application != "" {
		path = util.ExpandEnv(application)
		if path == "" {
			return "", nil, errors.WrapSpawn("expand", application,
				fmt.Errorf("application %q expands to an empty path", application))
		}
	}

	words, err := splitCommandLine(commandLine)
	if err != nil {
		return "", nil, errors.WrapSpawn("argv", path, err)
	}

	if path != "" {
		return path, append([]string{path}, words...), nil
	}
	if len(words) == 0 {
		return "", nil, errors.WrapSpawn("argv", "",
			fmt.Errorf("no application and an empty command line"))
	}
	return words[0], words, nil
}

// ── Accessors ────────────────────────────────────────────────────────

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Pid returns the child's process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Args returns the argv the child was started with.
func (s *Session) Args() []string { return append([]string(nil), s.argv...) }

// Encoding returns the name of the child stream encoding.
func (s *Session) Encoding() string { return s.codec.Name() }

// Exited is closed once the child process has terminated.
func (s *Session) Exited() <-chan struct{} { return s.exited }

// ExitCode returns the child's exit status, or -1 while it is running
// or if it was killed by a signal.
func (s *Session) ExitCode() int {
	select {
	case <-s.exited:
		return s.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// WaitErr returns the error cmd.Wait reported once the child exited
// (nil for a zero exit status).
func (s *Session) WaitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.waitErr
}

// LastError returns the error of the most recent failed operation on
// this session, or nil if the last operation succeeded.
func (s *Session) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// ── Write ────────────────────────────────────────────────────────────

// Write encodes data and appends it to the child's stdin.  It is only
// valid before the first Read.
func (s *Session) Write(data string) error {
	return s.WriteContext(context.Background(), data)
}

// WriteContext is Write bounded by ctx and the session WriteTimeout.
func (s *Session) WriteContext(ctx context.Context, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.State(); {
	case st == StateClosed:
		return s.fail(fmt.Errorf("write: %w", errors.ErrSessionClosed))
	case !st.CanWrite():
		return s.fail(fmt.Errorf("write: %w", errors.ErrProtocolViolation))
	}

	b, err := s.codec.Encode(data)
	if err != nil {
		return s.fail(errors.WrapPipe("encode", ParentStdinWrite, err))
	}

	ep := s.pipes.parentStdinW
	stop := s.armDeadline(ctx, s.opts.WriteTimeout, ep.File().SetWriteDeadline)
	n, err := ep.File().Write(b)
	stop()
	s.opts.Metrics.BytesWrittenToChild(int64(n))
	if err != nil {
		return s.fail(s.ioError(ctx, "write", ep, err))
	}

	s.opts.Logger.Debug("pid %d: wrote %d bytes", s.Pid(), n)
	s.clearErr()
	return nil
}

// CloseInput ends the child's input the way the first Read does,
// without reading anything.  Write fails afterwards.
func (s *Session) CloseInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return s.fail(fmt.Errorf("close input: %w", errors.ErrSessionClosed))
	}
	if err := s.beginDraining(); err != nil {
		return s.fail(err)
	}
	s.clearErr()
	return nil
}

// ── Read ─────────────────────────────────────────────────────────────

// Read returns the next chunk of the child's stdout.  The first call
// closes the child's input; after it Write always fails.  At end of
// stream Read returns an error matching errors.ErrEndOfStream.
func (s *Session) Read() (string, error) {
	return s.ReadContext(context.Background())
}

// ReadContext is Read bounded by ctx and the session ReadTimeout.  A
// timed out read consumes nothing and may be retried.
func (s *Session) ReadContext(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return "", s.fail(fmt.Errorf("read: %w", errors.ErrSessionClosed))
	}
	if err := s.beginDraining(); err != nil {
		return "", s.fail(err)
	}
	return s.readChunk(ctx, s.pipes.parentStdoutR, s.stdoutDec)
}

// ReadError returns the next chunk of the child's stderr.  Like Read it
// closes the child's input on first use.
func (s *Session) ReadError() (string, error) {
	return s.ReadErrorContext(context.Background())
}

// ReadErrorContext is ReadError bounded by ctx and the session
// ReadTimeout.
func (s *Session) ReadErrorContext(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return "", s.fail(fmt.Errorf("read stderr: %w", errors.ErrSessionClosed))
	}
	if err := s.beginDraining(); err != nil {
		return "", s.fail(err)
	}
	if err := s.pipes.childStderrW.Close(); err != nil {
		return "", s.fail(err)
	}
	return s.readChunk(ctx, s.pipes.parentStderrR, s.stderrDec)
}

// beginDraining performs the one-way Running → Draining transition:
// our copy of the child's stdout write end must go or the read side
// never sees end of stream, and closing our stdin write end tells the
// child its input is over.  The state moves first, so even a failed
// close leaves writing disabled.
func (s *Session) beginDraining() error {
	if s.State() == StateRunning {
		s.state.Store(int32(StateDraining))
		s.opts.Logger.Debug("pid %d: draining, input closed", s.Pid())
	}
	if err := s.pipes.childStdoutW.Close(); err != nil {
		return err
	}
	return s.pipes.parentStdinW.Close()
}

func (s *Session) readChunk(ctx context.Context, ep *Endpoint, dec *textenc.StreamDecoder) (string, error) {
	buf := util.GetBuf(s.opts.ChunkSize)
	defer util.PutBuf(buf)

	stop := s.armDeadline(ctx, s.opts.ReadTimeout, ep.File().SetReadDeadline)
	defer stop()

	for {
		n, err := ep.File().Read(*buf)
		if n > 0 {
			s.opts.Metrics.ChunkRead(int64(n))
			text, derr := dec.Decode((*buf)[:n], false)
			if derr != nil {
				return "", s.fail(errors.WrapPipe("decode", ep.Name(), derr))
			}
			if text != "" {
				s.clearErr()
				return text, nil
			}
			// Only part of a character so far; the rest is on its way.
			continue
		}
		if err == nil || err == io.EOF {
			if dec.Pending() > 0 {
				text, derr := dec.Decode(nil, true)
				if derr != nil {
					return "", s.fail(errors.WrapPipe("decode", ep.Name(), derr))
				}
				if text != "" {
					s.clearErr()
					return text, nil
				}
			}
			return "", s.fail(fmt.Errorf("read %s: %w", ep.Name(), errors.ErrEndOfStream))
		}
		return "", s.fail(s.ioError(ctx, "read", ep, err))
	}
}

// ── Close ────────────────────────────────────────────────────────────

// Close waits, without limit, for the child to exit and then releases
// every endpoint.  Closing a closed session is a no-op.
func (s *Session) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext is Close with the wait bounded by ctx.  When ctx ends
// first the endpoints are still released and ErrTimeout is returned;
// the child is left running and reaped whenever it exits.  The child
// is never signalled.
func (s *Session) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}

	var err error
	select {
	case <-s.exited:
	case <-ctx.Done():
		err = fmt.Errorf("close: waiting for pid %d: %w", s.Pid(), errors.ErrTimeout)
	}

	if cerr := s.pipes.closeAll(); cerr != nil {
		s.opts.Logger.Debug("pid %d: releasing endpoints: %v", s.Pid(), cerr)
	}
	s.state.Store(int32(StateClosed))

	if err != nil {
		s.opts.Logger.Warn("pid %d still running after close", s.Pid())
		return s.fail(err)
	}
	s.opts.Logger.Verbose("pid %d exited with status %d", s.Pid(), s.ExitCode())
	s.clearErr()
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// armDeadline applies the earlier of ctx's deadline and now+timeout to
// an endpoint, and unblocks the pending call if ctx is cancelled.  The
// returned func clears the deadline again; once it returns, a late
// cancellation can no longer touch the endpoint.  Files that do not
// support deadlines simply block.
func (s *Session) armDeadline(ctx context.Context, timeout time.Duration, set func(time.Time) error) func() {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if deadline.IsZero() && ctx.Done() == nil {
		return func() {}
	}

	if !deadline.IsZero() {
		if err := set(deadline); err != nil {
			s.opts.Logger.Debug("deadline unsupported: %v", err)
			return func() {}
		}
	}

	if ctx.Done() == nil {
		return func() { set(time.Time{}) } //nolint:errcheck
	}

	fired := make(chan struct{})
	stopWatch := context.AfterFunc(ctx, func() {
		set(time.Unix(1, 0)) //nolint:errcheck
		close(fired)
	})
	return func() {
		if !stopWatch() {
			// Cancelled meanwhile: let the past deadline land before
			// clearing it.
			<-fired
		}
		set(time.Time{}) //nolint:errcheck
	}
}

// ioError classifies a failed read or write on ep.
func (s *Session) ioError(ctx context.Context, op string, ep *Endpoint, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if cerr := ctx.Err(); cerr != nil && !errors.Is(cerr, context.DeadlineExceeded) {
			return fmt.Errorf("%s %s: %w", op, ep.Name(), cerr)
		}
		return fmt.Errorf("%s %s: %w", op, ep.Name(), errors.ErrTimeout)
	}
	return errors.WrapPipe(op, ep.Name(), err)
}

func (s *Session) fail(err error) error {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
	if !errors.IsEndOfStream(err) {
		s.opts.Metrics.RecordError(err.Error())
	}
	s.opts.Logger.Debug("session error: %v", err)
	return err
}

func (s *Session) clearErr() {
	s.errMu.Lock()
	s.lastErr = nil
	s.errMu.Unlock()
}
