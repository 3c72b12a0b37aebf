// File: cmd/agentxen/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/agentxen/cmd"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

// panicLogFile sits next to the default log file; the browser decides the
// working directory, so a relative path would land somewhere unpredictable.
const panicLogFile = "~/.agentxen/panic.log"

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
)

// main is the entry point of the application.
func main() {
	// The Sentinel - Global Panic Handler
	defer handlePanic()

	// Browsers send SIGTERM when the extension disconnects.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			osExit(0)
		} else {
			osExit(1)
		}
	}
}

// handlePanic records an unrecovered panic to the panic log and exits non-zero.
func handlePanic() {
	if r := recover(); r != nil {
		// Ensure logs are flushed before proceeding.
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())

		path, err := observability.ResolveLogFile(panicLogFile)
		if err == nil {
			err = osWriteFile(path, []byte(panicMessage), 0o644)
		}
		if err != nil {
			// If logging fails, print to stderr as a fallback.
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return // Return facilitates testing when osExit is mocked.
		}

		fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", path)
		osExit(1)
	}
}
