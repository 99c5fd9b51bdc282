//go:build !windows

package shell

import "os/exec"

// configureCommand is a no-op on POSIX: argv was already split from
// the command line.
func configureCommand(cmd *exec.Cmd, commandLine string) {}
