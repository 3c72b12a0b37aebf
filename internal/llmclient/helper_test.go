package llmclient

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
)

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidLLMConfig returns a valid LLMModelConfig for testing purposes.
func getValidLLMConfig(provider config.LLMProvider) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    provider,
		APIKey:      "test-api-key",
		Model:       "test-model",
		APITimeout:  5 * time.Second,
		Temperature: 0.1,
	}
}

// createTestRequest provides a standard planning-style conversation.
func createTestRequest() schemas.ChatRequest {
	return schemas.ChatRequest{
		Messages: []schemas.ConversationTurn{
			{Role: schemas.RoleSystem, Content: "You are a browser automation assistant."},
			{Role: schemas.RoleUser, Content: "open example.com"},
			{Role: schemas.RoleAssistant, Content: `{"actions":[{"type":"navigate","url":"https://example.com"}]}`},
			{Role: schemas.RoleUser, Content: "take a screenshot"},
		},
		Options: schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	}
}
