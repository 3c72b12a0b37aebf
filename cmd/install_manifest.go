// File: cmd/install_manifest.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentxen/internal/manifest"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

// osExecutable is swapped in tests.
var osExecutable = os.Executable

func newInstallManifestCmd() *cobra.Command {
	var (
		browserName string
		dir         string
		hostPath    string
		uninstall   bool
	)

	cmd := &cobra.Command{
		Use:   "install-manifest",
		Short: "Register agentxen as a native messaging host for the current user",
		Long: `Writes the native messaging manifest that lets the browser extension launch
this binary. Firefox manifests list allowed extension ids; Chrome and Chromium
manifests list allowed origins (manifest.allowed_origins).`,
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

			inst := manifest.NewInstaller(mcfg, observability.GetLogger())
			inst.Dir = dir

			if uninstall {
				path, err := inst.Uninstall()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Manifest removed: %s\n", path)
				return nil
			}

			if hostPath == "" {
				if hostPath, err = currentExecutable(); err != nil {
					return err
				}
			}
			absPath, err := filepath.Abs(hostPath)
			if err != nil {
				return fmt.Errorf("failed to resolve host path: %w", err)
			}

			path, err := inst.Install(absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manifest installed: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&browserName, "browser", "", "target browser: firefox, chrome or chromium (default from manifest.browser)")
	cmd.Flags().StringVar(&dir, "dir", "", "manifest directory (default is the browser's per-user location)")
	cmd.Flags().StringVar(&hostPath, "path", "", "host executable to register (default is this binary)")
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "remove the manifest instead of writing it")
	return cmd
}

func currentExecutable() (string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("failed to find executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
