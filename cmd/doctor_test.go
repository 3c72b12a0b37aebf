// File: cmd/doctor_test.go
package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/mocks"
)

// stubLLM makes the doctor talk to llm instead of a real provider.
func stubLLM(llm schemas.LLMClient, err error) {
	newLLMClient = func(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		return llm, err
	}
}

func isHello(req schemas.ChatRequest) bool {
	return len(req.Messages) == 1 && req.Messages[0].Content == "Hello"
}

func TestDoctorCmd_AllChecksPass(t *testing.T) {
	home := resetForTest(t)
	chrome := writeFile(t, home, "chrome", "#!/bin/sh\n")
	exe := writeFile(t, home, "agentxen", "#!/bin/sh\n")
	dir := filepath.Join(home, "hosts")
	configFile := writeFile(t, home, "config.yaml", "browser:\n  exec_path: "+chrome+"\n")

	llm := new(mocks.MockLLMClient)
	llm.On("Chat", mock.Anything, mock.MatchedBy(isHello)).Return("Hi there", nil).Once()
	llm.On("Close").Return(nil).Once()
	stubLLM(llm, nil)

	_, err := executeCommand(t, context.Background(), strings.NewReader(""),
		"--config", configFile, "install-manifest", "--dir", dir, "--path", exe)
	require.NoError(t, err)

	out, err := executeCommand(t, context.Background(), strings.NewReader(""),
		"--config", configFile, "doctor", "--dir", dir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "[ok]   Language model: ollama")
	assert.Contains(t, out, "[ok]   Browser: "+chrome)
	assert.Contains(t, out, "[ok]   Native messaging manifest: "+filepath.Join(dir, "agentxen.json")+" -> "+exe)
	assert.True(t, strings.HasSuffix(out, "Ready to use.\n"))
	llm.AssertExpectations(t)
}

func TestDoctorCmd_ReportsEveryFailure(t *testing.T) {
	home := resetForTest(t)
	lookPath = func(name string) (string, error) { return "", errors.New("not found") }

	llm := new(mocks.MockLLMClient)
	llm.On("Chat", mock.Anything, mock.Anything).Return("", errors.New("connection refused")).Once()
	llm.On("Close").Return(nil).Once()
	stubLLM(llm, nil)

	out, err := executeCommand(t, context.Background(), strings.NewReader(""),
		"doctor", "--dir", filepath.Join(home, "hosts"))
	require.Error(t, err)
	assert.Equal(t, "3 of 3 checks failed", err.Error())

	assert.Contains(t, out, "[fail] Language model: language model is not reachable: connection refused")
	assert.Contains(t, out, "[fail] Browser: no Chrome or Chromium binary found")
	assert.Contains(t, out, "[fail] Native messaging manifest: manifest not installed; run 'agentxen install-manifest'")
	assert.NotContains(t, out, "Ready to use.")
	llm.AssertExpectations(t)
}

func TestDoctorCmd_BrowserFoundOnPath(t *testing.T) {
	resetForTest(t)
	var asked []string
	lookPath = func(name string) (string, error) {
		asked = append(asked, name)
		if len(asked) == 2 {
			return "/opt/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	c := checkBrowser(config.BrowserConfig{})
	require.NoError(t, c.err)
	assert.Equal(t, "/opt/bin/"+asked[1], c.detail)
}

func TestDoctorCmd_ClientCreationFails(t *testing.T) {
	resetForTest(t)
	stubLLM(nil, errors.New("gemini requires an API key"))

	c := checkModel(context.Background(), config.LLMModelConfig{Provider: config.ProviderGemini, Model: "gemini-2.0-flash"}, zap.NewNop())
	require.Error(t, c.err)
	assert.Contains(t, c.err.Error(), "API key")
	assert.Equal(t, "gemini gemini-2.0-flash", c.detail)
}

func TestDoctorCmd_BrokenExecPath(t *testing.T) {
	c := checkBrowser(config.BrowserConfig{ExecPath: filepath.Join(t.TempDir(), "missing-chrome")})
	require.Error(t, c.err)
	assert.Contains(t, c.err.Error(), "browser.exec_path is not usable")
}
