// Command reflux reads values from a live-reloading configuration file.
//
//	reflux get app.conf app.name app.maxConnections
//	reflux watch app.conf --key app.name --interval 2s
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
