package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JSH-Team/mediabatch/cmd"
)

// Version information set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Set version information in cmd package
	cmd.SetVersion(Version, BuildTime, GitCommit)

	// The first signal cancels a running batch at the next tick; a second one
	// exits immediately.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
		force := make(chan os.Signal, 1)
		signal.Notify(force, syscall.SIGINT, syscall.SIGTERM)
		<-force
		os.Exit(130)
	}()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
