//go:build unix

package errors

import (
	"strings"

	"golang.org/x/sys/unix"
)

const (
	codeBadHandle  = unix.EBADF
	codeBrokenPipe = unix.EPIPE
	codeTimeout    = unix.ETIMEDOUT
	codeNotFound   = unix.ENOENT
	codePermission = unix.EACCES
)

// formatMessage looks the code up in the errno table.  Numbers with no
// symbolic name are treated as unformattable.
func formatMessage(code int) (string, bool) {
	errno := unix.Errno(code)
	if unix.ErrnoName(errno) == "" {
		return "", false
	}
	return strings.TrimSpace(errno.Error()), true
}
