package shell

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/text/transform"

	"runshell/internal/errors"
	"runshell/internal/metrics"
	"runshell/internal/textenc"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
}

// drain reads until the session reports end of stream.
func drain(t *testing.T, s *Session) string {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := s.Read()
		if err != nil {
			if !errors.Is(err, errors.ErrEndOfStream) {
				t.Fatalf("Read: %v", err)
			}
			return sb.String()
		}
		sb.WriteString(chunk)
	}
}

func mustOpen(t *testing.T, app, cmdline string, opts Options) *Session {
	t.Helper()
	s, err := Open(app, cmdline, opts)
	if err != nil {
		t.Fatalf("Open(%q, %q): %v", app, cmdline, err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSession_ReadWithoutWrite(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'echo hello'`, Options{})

	if s.State() != StateRunning {
		t.Fatalf("state = %s, want running", s.State())
	}
	if got := drain(t, s); got != "hello\n" {
		t.Errorf("output = %q, want %q", got, "hello\n")
	}
	if s.State() != StateDraining {
		t.Errorf("state = %s, want draining", s.State())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
}

func TestSession_WritesAccumulateInOrder(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "", "cat", Options{})

	for _, line := range []string{"alpha\n", "beta\n", "gamma\n"} {
		if err := s.Write(line); err != nil {
			t.Fatalf("Write(%q): %v", line, err)
		}
	}
	if got := drain(t, s); got != "alpha\nbeta\ngamma\n" {
		t.Errorf("output = %q", got)
	}
}

func TestSession_WriteAfterReadFails(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "", "cat", Options{})

	if _, err := s.Read(); !errors.Is(err, errors.ErrEndOfStream) {
		t.Fatalf("Read on empty cat: err = %v, want end of stream", err)
	}
	err := s.Write("too late\n")
	if !errors.Is(err, errors.ErrProtocolViolation) {
		t.Fatalf("Write after Read: err = %v, want protocol violation", err)
	}
	if s.LastError() != err {
		t.Errorf("LastError = %v, want %v", s.LastError(), err)
	}
	if code := errors.Code(err); code == 0 {
		t.Error("protocol violation should carry a nonzero code")
	}
}

func TestSession_ChunkedRead(t *testing.T) {
	skipOnWindows(t)
	col := metrics.New()
	s := mustOpen(t, "/bin/sh", `-c 'i=0; while [ $i -lt 300 ]; do printf 0123456789; i=$((i+1)); done'`,
		Options{ChunkSize: 100, Metrics: col})

	var sb strings.Builder
	chunks := 0
	for {
		chunk, err := s.Read()
		if err != nil {
			break
		}
		if len(chunk) > 100 {
			t.Fatalf("chunk of %d bytes exceeds chunk size", len(chunk))
		}
		chunks++
		sb.WriteString(chunk)
	}
	if sb.Len() != 3000 {
		t.Fatalf("total = %d bytes, want 3000", sb.Len())
	}
	if chunks < 30 {
		t.Errorf("chunks = %d, want at least 30", chunks)
	}
	if col.TotalBytesRead() != 3000 {
		t.Errorf("metrics bytes read = %d", col.TotalBytesRead())
	}
}

func TestSession_DefaultChunkSize(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'head -c 2000 /dev/zero | tr "\000" x'`, Options{})

	first, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) > DefaultChunkSize {
		t.Errorf("first chunk = %d bytes, want <= %d", len(first), DefaultChunkSize)
	}
	rest := drain(t, s)
	if got := len(first) + len(rest); got != 2000 {
		t.Errorf("total = %d, want 2000", got)
	}
}

func TestSession_DirectoryListing(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.dat"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	want, err := exec.Command("ls", "-a", dir).Output()
	if err != nil {
		t.Fatal(err)
	}

	s := mustOpen(t, "", "ls -a "+dir, Options{})
	if got := drain(t, s); got != string(want) {
		t.Errorf("listing = %q, want %q", got, want)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", s.ExitCode())
	}
}

func TestSession_ReadError(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'echo out; echo oops 1>&2'`, Options{})

	var sb strings.Builder
	for {
		chunk, err := s.ReadError()
		if err != nil {
			if !errors.IsEndOfStream(err) {
				t.Fatalf("ReadError: %v", err)
			}
			break
		}
		sb.WriteString(chunk)
	}
	if sb.String() != "oops\n" {
		t.Errorf("stderr = %q, want %q", sb.String(), "oops\n")
	}
	if got := drain(t, s); got != "out\n" {
		t.Errorf("stdout = %q, want %q", got, "out\n")
	}
}

func TestSession_Encoding(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "", "cat", Options{Encoding: "utf-16le"})

	if err := s.Write("héllo"); err != nil {
		t.Fatal(err)
	}
	if got := drain(t, s); got != "héllo" {
		t.Errorf("round trip = %q, want %q", got, "héllo")
	}
	if s.Encoding() != "utf-16le" {
		t.Errorf("encoding = %q", s.Encoding())
	}
}

func TestSession_ReadTimeout(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'sleep 1; echo late'`, Options{ReadTimeout: 50 * time.Millisecond})

	_, err := s.Read()
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if s.State() != StateDraining {
		t.Errorf("state = %s, want draining", s.State())
	}
}

func TestSession_ReadContextCancel(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'sleep 1'`, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := s.ReadContext(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// TestSession_ReadAfterCancelledRead verifies that cancelling a read's
// context after the read returned leaves later reads unaffected.
func TestSession_ReadAfterCancelledRead(t *testing.T) {
	skipOnWindows(t)
	if testing.Short() {
		t.Skip("spawns many children")
	}

	for i := 0; i < 50; i++ {
		s := mustOpen(t, "/bin/sh", `-c 'printf aaaa; sleep 0.05; printf bbbb'`, Options{ChunkSize: 4})

		ctx, cancel := context.WithCancel(context.Background())
		first, err := s.ReadContext(ctx)
		cancel()
		if err != nil {
			t.Fatalf("iteration %d: ReadContext: %v", i, err)
		}
		if got := first + drain(t, s); got != "aaaabbbb" {
			t.Fatalf("iteration %d: output = %q", i, got)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("iteration %d: Close: %v", i, err)
		}
	}
}

// truncating holds back everything and fails once told the input ended.
type truncating struct{ transform.NopResetter }

func (truncating) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	if !atEOF {
		return 0, 0, transform.ErrShortSrc
	}
	return 0, 0, errors.New("truncated sequence")
}

func TestSession_ReadFlushFailure(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'printf ab'`, Options{})
	s.stdoutDec = textenc.NewStreamDecoder("truncating", truncating{})

	_, err := s.Read()
	var pe *errors.PipeError
	if !errors.As(err, &pe) || pe.Op != "decode" {
		t.Fatalf("err = %v, want decode PipeError", err)
	}
	if errors.Is(err, errors.ErrEndOfStream) {
		t.Error("a failed flush must not look like end of stream")
	}
	if s.LastError() == nil {
		t.Error("LastError not set")
	}
}

func TestSession_CloseInput(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "", "cat", Options{})

	if err := s.Write("kept\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.CloseInput(); err != nil {
		t.Fatalf("CloseInput: %v", err)
	}
	if s.State() != StateDraining {
		t.Errorf("state = %s, want draining", s.State())
	}
	if err := s.Write("late"); !errors.Is(err, errors.ErrProtocolViolation) {
		t.Errorf("Write after CloseInput: %v", err)
	}
	if got := drain(t, s); got != "kept\n" {
		t.Errorf("output = %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.CloseContext(ctx); err != nil {
		t.Fatalf("CloseContext: %v", err)
	}
	if err := s.CloseInput(); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("CloseInput after Close: %v", err)
	}
}

func TestSession_CloseContextTimeout(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'sleep 1'`, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.CloseContext(ctx)
	if !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
	if n := s.pipes.openCount(); n != 0 {
		t.Errorf("%d endpoints still open", n)
	}

	select {
	case <-s.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("child was not reaped")
	}
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'exit 3'`, Options{})

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := s.pipes.openCount(); n != 0 {
		t.Errorf("%d endpoints still open", n)
	}
	if s.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", s.ExitCode())
	}
	if s.LastError() != nil {
		t.Errorf("LastError = %v, want nil", s.LastError())
	}

	// Second close is a no-op.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := s.Write("x"); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Write after Close: %v", err)
	}
	if _, err := s.Read(); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Read after Close: %v", err)
	}
}

func TestSession_SuccessClearsLastError(t *testing.T) {
	skipOnWindows(t)
	s := mustOpen(t, "/bin/sh", `-c 'echo one'`, Options{})

	if _, err := s.Read(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(); err == nil {
		t.Fatal("expected end of stream")
	}
	if s.LastError() == nil {
		t.Fatal("LastError should be set after end of stream")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.LastError() != nil {
		t.Errorf("LastError = %v after successful Close", s.LastError())
	}
}

func TestOpen_Failures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name    string
		app     string
		cmdline string
		op      string
	}{
		{"missing executable", "/nonexistent/runshell-test-prog", "", "start"},
		{"missing on PATH", "", "runshell-no-such-program-xyz", "start"},
		{"empty expansion", "$RUNSHELL_TEST_DEFINITELY_UNSET", "", "expand"},
		{"empty command", "", "   ", "argv"},
		{"bad quoting", "", `echo "open`, "argv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.app, tt.cmdline, Options{})
			if err == nil {
				s.Close() //nolint:errcheck
				t.Fatal("expected error")
			}
			if s != nil {
				t.Error("no session may be returned on failure")
			}
			var se *errors.SpawnError
			if !errors.As(err, &se) {
				t.Fatalf("err = %T %v, want *SpawnError", err, err)
			}
			if se.Op != tt.op {
				t.Errorf("op = %q, want %q", se.Op, tt.op)
			}
			code, msg := errors.Describe(err)
			if code == 0 || msg == "" {
				t.Errorf("Describe = (%d, %q), want nonzero code and message", code, msg)
			}
		})
	}
}

func TestOpen_MissingExecutableCode(t *testing.T) {
	skipOnWindows(t)
	_, err := Open("/nonexistent/runshell-test-prog", "", Options{})
	if got := errors.Code(err); got != int(syscall.ENOENT) {
		t.Errorf("code = %d, want ENOENT (%d)", got, syscall.ENOENT)
	}
}

func TestOpen_ExpandsEnvironment(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("RUNSHELL_TEST_SH", "/bin/sh")

	for _, app := range []string{"%RUNSHELL_TEST_SH%", "$RUNSHELL_TEST_SH"} {
		t.Run(app, func(t *testing.T) {
			s := mustOpen(t, app, `-c 'echo expanded'`, Options{})
			if got := s.Args()[0]; got != "/bin/sh" {
				t.Errorf("argv[0] = %q, want /bin/sh", got)
			}
			if got := drain(t, s); got != "expanded\n" {
				t.Errorf("output = %q", got)
			}
		})
	}
}

func TestOpen_UnknownEncoding(t *testing.T) {
	if _, err := Open("", "cat", Options{Encoding: "klingon-8"}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestOpen_EnvAndDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	s := mustOpen(t, "/bin/sh", `-c 'echo $RUNSHELL_EXTRA; pwd'`, Options{
		Env: []string{"RUNSHELL_EXTRA=present"},
		Dir: dir,
	})

	got := drain(t, s)
	real, _ := filepath.EvalSymlinks(dir)
	if !strings.HasPrefix(got, "present\n") {
		t.Errorf("output = %q, want env var echoed", got)
	}
	if !strings.Contains(got, dir) && !strings.Contains(got, real) {
		t.Errorf("output = %q, want working dir %q", got, dir)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateCreated:  "created",
		StateRunning:  "running",
		StateDraining: "draining",
		StateClosed:   "closed",
		State(42):     "unknown",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", st, st.String(), want)
		}
	}
	if !StateRunning.CanWrite() || StateDraining.CanWrite() {
		t.Error("only running sessions accept writes")
	}
	if !StateDraining.CanRead() || StateClosed.CanRead() {
		t.Error("running and draining sessions accept reads")
	}
}

func TestEndpoint_CloseOnce(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	e := newEndpoint(ParentStdoutRead, r)
	if e.Closed() {
		t.Fatal("new endpoint reports closed")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !e.Closed() {
		t.Error("endpoint should report closed")
	}

	var nilEndpoint *Endpoint
	if err := nilEndpoint.Close(); err != nil || !nilEndpoint.Closed() {
		t.Error("nil endpoint must be closed and Close must succeed")
	}
}
