// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/host"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

// resetForTest isolates a test from the real home directory, working
// directory config files and the global logger. It returns the fake home.
func resetForTest(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	homedir.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("AGENTXEN_LOGGER_CONSOLE", "false")

	cfgFile = ""
	originalController := newController
	originalExecutable := osExecutable
	originalLLMClient := newLLMClient
	originalLookPath := lookPath

	observability.ResetForTest()
	t.Cleanup(func() {
		newController = originalController
		osExecutable = originalExecutable
		newLLMClient = originalLLMClient
		lookPath = originalLookPath
		observability.ResetForTest()
		homedir.Reset()
	})
	return home
}

// executeCommand runs a fresh command tree and returns what it wrote to stdout.
func executeCommand(t *testing.T, ctx context.Context, in io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetIn(in)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// stubController replaces the real controller factory and records the config it saw.
func stubController(ctrl host.Controller) **config.Config {
	var seen *config.Config
	newController = func(cfg *config.Config, logger *zap.Logger) host.Controller {
		seen = cfg
		return ctrl
	}
	return &seen
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
