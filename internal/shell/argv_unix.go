//go:build !windows

package shell

import (
	"fmt"

	"github.com/mattn/go-shellwords"
)

// splitCommandLine breaks a command line into words with POSIX shell
// quoting.  No expansion is done, and shell operators such as | or ;
// are refused rather than silently cutting the line short.
func splitCommandLine(line string) ([]string, error) {
	p := shellwords.NewParser()
	words, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", line, err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("split %q: shell operator at offset %d; run the line through a shell", line, p.Position)
	}
	if len(words) == 0 {
		return nil, nil
	}
	return words, nil
}
