// File: cmd/logs.go
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentxen/internal/observability"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		file   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the host's log file",
		Long: `The browser owns the host's stdin and stdout, so the log file is the way to
see what the host is doing. Use --follow while reproducing a problem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Logger.LogFile
			}
			if file == "" {
				return errors.New("no log file configured (logger.log_file)")
			}
			path, err := observability.ResolveLogFile(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printLastLines(out, path, lines); err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followLog(cmd, out, path)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of existing lines to print (0 prints all)")
	cmd.Flags().StringVar(&file, "file", "", "log file to read (default from logger.log_file)")
	return cmd
}

// printLastLines prints the final n lines of the file, or all of them when n is zero.
func printLastLines(out io.Writer, path string, n int) error {
	t, err := tail.TailFile(path, tail.Config{
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer t.Cleanup()

	var ring []string
	for line := range t.Lines {
		if line.Err != nil {
			return fmt.Errorf("failed to read log file: %w", line.Err)
		}
		ring = append(ring, line.Text)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	for _, l := range ring {
		fmt.Fprintln(out, l)
	}
	return nil
}

// followLog prints lines appended after the current end of the file until
// the command's context is cancelled.
func followLog(cmd *cobra.Command, out io.Writer, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow log file: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read log file: %w", line.Err)
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}
