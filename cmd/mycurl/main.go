// Command mycurl fetches URLs over plain HTTP/1.1.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr, defaultDeps())
	if err := cmd.ExecuteContext(ctx); err != nil {
		// Failed exchanges are already reported one by one.
		if !errors.Is(err, ErrExchangesFailed) {
			newPrinter(os.Stdout, os.Stderr, false, false).failure(err)
		}
		stop()
		os.Exit(1)
	}
}
