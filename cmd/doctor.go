// File: cmd/doctor.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/internal/agent"
	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/llmclient"
	"github.com/xkilldash9x/agentxen/internal/manifest"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

// Swapped in tests.
var (
	newLLMClient = llmclient.NewClient
	lookPath     = exec.LookPath
)

const defaultProbeTimeout = 30 * time.Second

// check is one line of the doctor report.
type check struct {
	name   string
	detail string
	err    error
}

func newDoctorCmd() *cobra.Command {
	var (
		browserName string
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the model, the browser and the manifest are ready",
		Long: `Reports whether the configured language model answers, whether a
Chrome-family browser can be found, and whether the native messaging manifest
is installed and points at an existing binary. Exits non-zero when any check
fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			mcfg := cfg.Manifest
			if browserName != "" {
				mcfg.Browser = browserName
			}
			logger := observability.GetLogger().Named("doctor")

			checks := []check{
				checkModel(cmd.Context(), cfg.LLM, logger),
				checkBrowser(cfg.Browser),
				checkManifest(mcfg, dir, logger),
			}
			return report(cmd.OutOrStdout(), checks)
		},
	}

	cmd.Flags().StringVar(&browserName, "browser", "", "browser whose manifest to check (default from manifest.browser)")
	cmd.Flags().StringVar(&dir, "dir", "", "manifest directory (default is the browser's per-user location)")
	return cmd
}

func checkModel(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) check {
	c := check{name: "Language model", detail: fmt.Sprintf("%s %s", cfg.Provider, cfg.Model)}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := newLLMClient(ctx, cfg, logger)
	if err != nil {
		c.err = err
		return c
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug("Failed to close language model client", zap.Error(err))
		}
	}()
	c.err = agent.ProbeLLM(ctx, client)
	return c
}

// browserCandidates mirrors the names and install locations chromedp searches.
func browserCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"google-chrome", "chromium",
		}
	case "windows":
		return []string{"chrome", "chrome.exe", `C:\Program Files\Google\Chrome\Application\chrome.exe`}
	default:
		return []string{"headless_shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "google-chrome-beta"}
	}
}

func checkBrowser(cfg config.BrowserConfig) check {
	c := check{name: "Browser"}
	if cfg.ExecPath != "" {
		c.detail = cfg.ExecPath
		if _, err := os.Stat(cfg.ExecPath); err != nil {
			c.err = fmt.Errorf("browser.exec_path is not usable: %w", err)
		}
		return c
	}
	for _, name := range browserCandidates(runtime.GOOS) {
		if path, err := lookPath(name); err == nil {
			c.detail = path
			return c
		}
	}
	c.err = errors.New("no Chrome or Chromium binary found; install one or set browser.exec_path")
	return c
}

func checkManifest(cfg config.ManifestConfig, dir string, logger *zap.Logger) check {
	inst := manifest.NewInstaller(cfg, logger)
	inst.Dir = dir

	m, path, err := inst.Load()
	c := check{name: "Native messaging manifest", detail: path, err: err}
	if errors.Is(err, manifest.ErrNotInstalled) {
		c.err = fmt.Errorf("%w; run 'agentxen install-manifest'", err)
	}
	if err == nil {
		c.detail = fmt.Sprintf("%s -> %s", path, m.Path)
	}
	return c
}

func report(w io.Writer, checks []check) error {
	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Fprintf(w, "[fail] %s: %v\n", c.name, c.err)
			continue
		}
		fmt.Fprintf(w, "[ok]   %s: %s\n", c.name, c.detail)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	fmt.Fprintln(w, "Ready to use.")
	return nil
}
