// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API. It backs
// both the openai and the ollama providers.
type OpenAIClient struct {
	client *openai.Client
	config config.LLMModelConfig
	logger *zap.Logger
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for provider '%s'", cfg.Provider)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Failures surface to the user immediately; nothing is retried.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		// Relative request paths only resolve under the API root with a trailing slash.
		base := cfg.Endpoint
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
		logger: logger.Named("llm_client.openai").With(zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model)),
	}, nil
}

// Chat sends the conversation as a single chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req schemas.ChatRequest) (string, error) {
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(c.config.Model),
		Temperature: openai.F(req.Options.Temperature),
	}
	if req.Options.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(req.Options.MaxTokens))
	}
	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		)
	}

	if c.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.APITimeout)
		defer cancel()
	}

	startTime := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("Chat completion request failed.", zap.Duration("duration", duration), zap.Error(err))
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	c.logger.Debug("Chat completion received.",
		zap.Duration("duration", duration),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
	)
	return completion.Choices[0].Message.Content, nil
}

// Close is a no-op; the underlying HTTP client holds no dedicated resources.
func (c *OpenAIClient) Close() error {
	return nil
}

func toOpenAIMessages(turns []schemas.ConversationTurn) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for i, turn := range turns {
		switch turn.Role {
		case schemas.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case schemas.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case schemas.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			return nil, fmt.Errorf("message %d has unsupported role '%s'", i, turn.Role)
		}
	}
	return messages, nil
}
