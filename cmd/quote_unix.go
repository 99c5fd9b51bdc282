//go:build !windows

package cmd

import "strings"

// quoteWord protects w for the POSIX command line splitter, which
// also stops at unquoted shell operators.
func quoteWord(w string) string {
	if w != "" && !strings.ContainsAny(w, " \t\n\"'\\$;&|<>()`") {
		return w
	}
	return "'" + strings.ReplaceAll(w, "'", `'"'"'`) + "'"
}
