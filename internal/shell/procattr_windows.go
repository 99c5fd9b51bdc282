//go:build windows

package shell

import (
	"os/exec"
	"syscall"
)

// configureCommand hands the command line to CreateProcess untouched,
// so cmd.exe style switches such as "/c dir" keep their quoting, and
// keeps the child from opening a console window of its own.
func configureCommand(cmd *exec.Cmd, commandLine string) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:    commandLine,
		HideWindow: true,
	}
}
