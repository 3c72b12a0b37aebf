package llmclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "{\"actions\":[{\"type\":\"screenshot\"}]}"}
	}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

// setupOpenAIClient rigs up an OpenAIClient pointed at a mock HTTP server.
func setupOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := setupTestLogger(t)
	cfg := getValidLLMConfig(config.ProviderOllama)
	cfg.Endpoint = server.URL + "/v1" // no trailing slash on purpose

	client, err := NewOpenAIClient(cfg, logger)
	require.NoError(t, err)
	return client
}

func TestOpenAIClient_Chat_Success(t *testing.T) {
	var captured map[string]interface{}
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	})

	text, err := client.Chat(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"actions":[{"type":"screenshot"}]}`, text)

	require.NotNil(t, captured)
	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, captured["response_format"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 4)
	var roles []string
	for _, m := range messages {
		roles = append(roles, m.(map[string]interface{})["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestOpenAIClient_Chat_NoJSONModeWhenNotRequested(t *testing.T) {
	var captured map[string]interface{}
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	})

	req := schemas.ChatRequest{Messages: []schemas.ConversationTurn{{Role: schemas.RoleUser, Content: "Hello"}}}
	_, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	_, present := captured["response_format"]
	assert.False(t, present)
}

func TestOpenAIClient_Chat_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"model not loaded","type":"server_error"}}`)
	})

	_, err := client.Chat(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion request failed")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_Chat_NoChoices(t *testing.T) {
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":0,"model":"test-model","choices":[]}`)
	})

	_, err := client.Chat(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAIClient_Chat_RespectsTimeout(t *testing.T) {
	release := make(chan struct{})
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.config.APITimeout = 50 * time.Millisecond

	_, err := client.Chat(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIClient_Chat_RejectsUnknownRole(t *testing.T) {
	client := setupOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})

	req := schemas.ChatRequest{Messages: []schemas.ConversationTurn{{Role: "tool", Content: "x"}}}
	_, err := client.Chat(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported role 'tool'")
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidLLMConfig(config.ProviderOpenAI)
	cfg.APIKey = ""

	_, err := NewOpenAIClient(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
