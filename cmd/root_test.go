// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/mocks"
	"github.com/xkilldash9x/agentxen/internal/nativemsg"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, context.Background(), strings.NewReader(""), "--version")
	require.NoError(t, err)
	assert.Equal(t, "agentxen version "+Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, context.Background(), strings.NewReader(""), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agentxen version "+Version)
}

func TestRootCmd_RunsHostOverStdio(t *testing.T) {
	// Browsers launch the host with their own arguments.
	launches := map[string][]string{
		"no arguments": {},
		"firefox":      {"/home/user/.mozilla/native-messaging-hosts/agentxen.json", "agentxen@zen-browser.local"},
		"chromium":     {"chrome-extension://abcdefghijklmnop/", "--parent-window=0"},
	}

	for name, args := range launches {
		t.Run(name, func(t *testing.T) {
			resetForTest(t)
			ctrl := new(mocks.MockController)
			ctrl.On("Initialize", mock.Anything).Return(true).Once()
			ctrl.On("Ready").Return(true)
			ctrl.On("ProcessCommand", mock.Anything, "hello").
				Return(schemas.CommandResult{Status: schemas.StatusSuccess, Results: []schemas.ActionResult{}}).Once()
			ctrl.On("Cleanup", mock.Anything).Return().Once()
			stubController(ctrl)

			var in bytes.Buffer
			require.NoError(t, nativemsg.NewEncoder(&in, 0).Encode(nativemsg.NewCommand("hello")))

			out, err := executeCommand(t, context.Background(), &in, args...)
			require.NoError(t, err)

			dec := nativemsg.NewDecoder(strings.NewReader(out), 0)
			var types []nativemsg.MessageType
			for {
				msg, err := dec.Decode()
				if errors.Is(err, nativemsg.ErrEndOfStream) {
					break
				}
				require.NoError(t, err, "stdout must only contain frames")
				types = append(types, msg.Type)
			}
			assert.Equal(t, []nativemsg.MessageType{nativemsg.MsgTypeStatus, nativemsg.MsgTypeStatus, nativemsg.MsgTypeResult}, types)
			ctrl.AssertExpectations(t)
		})
	}
}

func TestRootCmd_ConfigFileAndEnv(t *testing.T) {
	home := resetForTest(t)
	ctrl := new(mocks.MockController)
	ctrl.On("Initialize", mock.Anything).Return(false)
	ctrl.On("Cleanup", mock.Anything).Return()
	seen := stubController(ctrl)

	configFile := writeFile(t, home, "custom.yaml", `
llm:
  provider: ollama
  model: llama3.2:1b
agent:
  max_history_turns: 10
host:
  max_outbound_bytes: 524288
`)
	t.Setenv("AGENTXEN_BROWSER_HEADLESS", "true")

	_, err := executeCommand(t, context.Background(), strings.NewReader(""), "--config", configFile)
	require.NoError(t, err)

	cfg := *seen
	require.NotNil(t, cfg)
	assert.Equal(t, config.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3.2:1b", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Agent.MaxHistoryTurns)
	assert.Equal(t, 524288, cfg.Host.MaxOutboundBytes)
	assert.True(t, cfg.Browser.Headless)
}

func TestRootCmd_ConfigFromHomeDirectory(t *testing.T) {
	home := resetForTest(t)
	ctrl := new(mocks.MockController)
	ctrl.On("Initialize", mock.Anything).Return(false)
	ctrl.On("Cleanup", mock.Anything).Return()
	seen := stubController(ctrl)

	dir := filepath.Join(home, ".agentxen")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, dir, "config.yaml", "llm:\n  model: phi3\n")

	_, err := executeCommand(t, context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	require.NotNil(t, *seen)
	assert.Equal(t, "phi3", (*seen).LLM.Model)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	resetForTest(t)
	t.Setenv("AGENTXEN_LLM_PROVIDER", "bogus")
	stubController(new(mocks.MockController))

	_, err := executeCommand(t, context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
}

func TestRootCmd_UnreadableConfigFile(t *testing.T) {
	home := resetForTest(t)
	bad := writeFile(t, home, "bad.yaml", "llm: [unterminated")

	_, err := executeCommand(t, context.Background(), strings.NewReader(""), "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}
