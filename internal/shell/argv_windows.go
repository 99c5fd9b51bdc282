//go:build windows

package shell

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
)

// splitCommandLine breaks a command line into words the way
// CommandLineToArgvW does.  Only the first word is used to find the
// program; the line itself reaches CreateProcess untouched.
func splitCommandLine(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	words, err := windows.DecomposeCommandLine(line)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", line, err)
	}
	return words, nil
}
