//go:build windows

package errors

import (
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	codeBadHandle  = windows.ERROR_INVALID_HANDLE
	codeBrokenPipe = windows.ERROR_BROKEN_PIPE
	codeTimeout    = syscall.Errno(258) // WAIT_TIMEOUT
	codeNotFound   = windows.ERROR_FILE_NOT_FOUND
	codePermission = windows.ERROR_ACCESS_DENIED
)

// formatMessage asks the system message table for the text of code.
func formatMessage(code int) (string, bool) {
	buf := make([]uint16, 512)
	flags := uint32(windows.FORMAT_MESSAGE_FROM_SYSTEM | windows.FORMAT_MESSAGE_IGNORE_INSERTS)
	n, err := windows.FormatMessage(flags, 0, uint32(code), 0, buf, nil)
	if err != nil || n == 0 {
		return "", false
	}
	return strings.TrimSpace(windows.UTF16ToString(buf[:n])), true
}
