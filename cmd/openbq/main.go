package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"openbq/internal/services"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "1.0"

// Exit codes: 1 for runtime failures, 2 when the job was rejected before
// dispatch.
const (
	exitFailure  = 1
	exitRejected = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if services.IsFatal(err) {
		return exitRejected
	}
	return exitFailure
}
