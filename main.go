// runshell - run a child process over redirected pipes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"runshell/cmd"
	"runshell/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		var ee *core.ExitError
		if errors.As(err, &ee) {
			cancel()
			os.Exit(ee.Code)
		}
		fmt.Fprintf(os.Stderr, "runshell: %v\n", err)
		os.Exit(1)
	}
}
