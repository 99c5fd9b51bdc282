package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"runshell/internal/errors"
	"runshell/internal/host"
	"runshell/internal/registry"
	"runshell/util"
)

// InteractiveMode is a line-oriented console over the host boundary.
// Each input line is one command:
//
//	open APP [CMDLINE]   start a child; APP may be "" to take it from CMDLINE
//	write H TEXT         send TEXT plus a newline; a quoted TEXT is unescaped and sent as is
//	read H               print the next stdout chunk
//	readerr H            print the next stderr chunk
//	readall H            print stdout until end of stream
//	close H              wait for the child and release the session
//	error                print the last error code and message
//	list                 show open handles
//	stats                print the metrics snapshot
//	help                 list commands
//	quit                 close every session and leave
//
// Sessions still open when the input ends have their input ended and
// are closed.
type InteractiveMode struct {
	Host         *host.Host
	CloseTimeout time.Duration // bound on the final shutdown; 0 waits forever
	Prompt       bool          // print "runshell> " before each command
	Logger       *util.Logger

	// In/Out default to os.Stdin/os.Stdout when nil.
	In  io.Reader
	Out io.Writer
}

const prompt = "runshell> "

func (m *InteractiveMode) in() io.Reader {
	if m.In != nil {
		return m.In
	}
	return os.Stdin
}

func (m *InteractiveMode) out() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}

// Run reads commands until quit, end of input or ctx is cancelled.
func (m *InteractiveMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.NewLogger(0)
	}
	defer m.shutdown(ctx)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(m.in())
		sc.Buffer(make([]byte, 0, 4096), util.DefaultBufSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	w := m.out()
	for {
		if m.Prompt {
			fmt.Fprint(w, prompt)
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read command: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := m.exec(ctx, w, line); quit {
				return nil
			}
		}
	}
}

func (m *InteractiveMode) shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if m.CloseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.CloseTimeout)
		defer cancel()
	}
	m.Host.Shutdown(ctx) //nolint:errcheck
}

// exec runs one command line and reports whether the loop should stop.
func (m *InteractiveMode) exec(ctx context.Context, w io.Writer, line string) bool {
	verb, rest := cutWord(strings.TrimSpace(line))
	h := m.Host

	switch strings.ToLower(verb) {
	case "":
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprintln(w, "commands: open APP [CMDLINE] | write H TEXT | read H | readerr H | readall H | close H | error | list | stats | quit")

	case "open":
		app, cmdline := cutWord(rest)
		app = unquote(app)
		if handle, ok := h.OpenShell(app, cmdline); ok {
			fmt.Fprintf(w, "%d\n", handle)
		} else {
			m.printError(w)
		}

	case "write":
		handle, text, ok := m.handleArg(w, rest)
		if !ok {
			break
		}
		if strings.HasPrefix(text, `"`) {
			text = unquote(text)
		} else {
			text += "\n"
		}
		if h.WriteShellData(handle, text) {
			fmt.Fprintln(w, "ok")
		} else {
			m.printError(w)
		}

	case "read", "readerr":
		handle, _, ok := m.handleArg(w, rest)
		if !ok {
			break
		}
		read := h.ReadShellDataContext
		if verb == "readerr" {
			read = h.ReadShellErrorContext
		}
		if chunk, ok := read(ctx, handle); ok {
			fmt.Fprint(w, chunk)
			if !strings.HasSuffix(chunk, "\n") {
				fmt.Fprintln(w)
			}
		} else {
			m.printError(w)
		}

	case "readall":
		handle, _, ok := m.handleArg(w, rest)
		if !ok {
			break
		}
		_, err := util.DrainChunks(func() (string, error) {
			if chunk, ok := h.ReadShellDataContext(ctx, handle); ok {
				return chunk, nil
			}
			return "", h.Err()
		}, w)
		if err != nil {
			m.printError(w)
		}

	case "close":
		handle, _, ok := m.handleArg(w, rest)
		if !ok {
			break
		}
		if h.CloseShell(handle) {
			fmt.Fprintln(w, "ok")
		} else {
			m.printError(w)
		}

	case "error":
		code, msg := h.GetLastShellError()
		if code == 0 {
			fmt.Fprintln(w, "0")
		} else {
			fmt.Fprintf(w, "%d %s\n", code, msg)
		}

	case "list":
		for _, hd := range h.Registry().Handles() {
			s, ok := h.Registry().Get(hd)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%d\tpid %d\t%s\t%s\n", hd, s.Pid(), s.State(), strings.Join(s.Args(), " "))
		}

	case "stats":
		fmt.Fprintln(w, h.Metrics().JSON())

	default:
		fmt.Fprintf(w, "unknown command %q (try help)\n", verb)
	}
	return false
}

// handleArg parses the leading handle of rest.
func (m *InteractiveMode) handleArg(w io.Writer, rest string) (int, string, bool) {
	word, tail := cutWord(rest)
	n, err := strconv.Atoi(word)
	if err != nil || registry.Handle(n) == registry.NoHandle {
		fmt.Fprintf(w, "expected a handle, got %q\n", word)
		return 0, "", false
	}
	return n, tail, true
}

func (m *InteractiveMode) printError(w io.Writer) {
	err := m.Host.Err()
	code, msg := errors.Describe(err)
	if errors.IsEndOfStream(err) {
		fmt.Fprintf(w, "nil (end of stream, %d %s)\n", code, msg)
		return
	}
	fmt.Fprintf(w, "nil (%d %s)\n", code, msg)
	m.Logger.Verbose("%v", err)
}

// cutWord splits s at the first whitespace outside double quotes.
func cutWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	inQuote, escaped := false, false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case (r == ' ' || r == '\t') && !inQuote:
			return s[:i], strings.TrimLeft(s[i+1:], " \t")
		}
	}
	return s, ""
}

// unquote strips Go-style double quotes, leaving anything else as is.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
