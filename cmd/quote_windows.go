//go:build windows

package cmd

import "syscall"

// quoteWord protects w the way CreateProcess command lines expect.
func quoteWord(w string) string {
	return syscall.EscapeArg(w)
}
