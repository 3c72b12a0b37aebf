// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/agentxen/cmd"
)

// main is the entry point for the AgentXen host when built from the module root.
// cmd/agentxen adds panic capture on top of the same command tree.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	if err := cmd.Execute(ctx); err != nil && ctx.Err() == nil {
		stop()
		os.Exit(1)
	}
}
