// File: cmd/repl.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/host"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

const (
	replPrompt         = "> "
	replCleanupTimeout = 15 * time.Second
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Drive the browser agent from the terminal",
		Long: `Starts the same agent the extension talks to, but reads commands from the
terminal one line at a time. Type 'quit' or 'exit' to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("repl")
			return runREPL(cmd.Context(), newController(cfg, logger), cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
}

// runREPL feeds lines from in to ctrl until quit, end of input, or ctx is done.
func runREPL(ctx context.Context, ctrl host.Controller, in io.Reader, out io.Writer, logger *zap.Logger) error {
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replCleanupTimeout)
		defer cancel()
		ctrl.Cleanup(cleanupCtx)
	}()

	if !ctrl.Initialize(ctx) {
		return errors.New("failed to initialize agent; run 'agentxen doctor' for details")
	}
	fmt.Fprintln(out, "AgentXen ready. Type a command, or 'quit' to exit.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A terminal read cannot be interrupted, so lines arrive from a goroutine
	// and a signal can still end the session.
	var scanErr error
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	for {
		fmt.Fprint(out, replPrompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				if scanErr != nil {
					return fmt.Errorf("failed to read command: %w", scanErr)
				}
				return nil
			}
			text := strings.TrimSpace(line)
			switch strings.ToLower(text) {
			case "":
				continue
			case "quit", "exit", "q":
				return nil
			}
			logger.Debug("Terminal command", zap.String("command", text))
			printCommandResult(out, ctrl.ProcessCommand(ctx, text))
		}
	}
}

func printCommandResult(out io.Writer, result schemas.CommandResult) {
	if !result.Succeeded() {
		fmt.Fprintf(out, "Error: %s\n", result.Error)
		return
	}
	fmt.Fprintf(out, "Executed %d actions\n", len(result.Results))
	for _, r := range result.Results {
		switch {
		case r.Status == schemas.StatusError:
			fmt.Fprintf(out, "  %s failed: %s\n", r.Action, r.Error)
		case r.Content != "":
			fmt.Fprintf(out, "  %s: %s\n", r.Action, r.Content)
		}
	}
	if result.Plan != nil && result.Plan.Explanation != "" {
		fmt.Fprintf(out, "  %s\n", result.Plan.Explanation)
	}
}
