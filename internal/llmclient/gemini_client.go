// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
)

// GeminiClient implements schemas.LLMClient on top of the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	config config.LLMModelConfig
	logger *zap.Logger
}

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: cfg,
		logger: logger.Named("llm_client.gemini").With(zap.String("model", cfg.Model)),
	}, nil
}

// Chat sends the conversation to generateContent. A system turn becomes the
// system instruction; assistant turns are replayed with the model role.
func (c *GeminiClient) Chat(ctx context.Context, req schemas.ChatRequest) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.Options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for i, turn := range req.Messages {
		switch turn.Role {
		case schemas.RoleSystem:
			system = append(system, turn.Content)
		case schemas.RoleUser:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		case schemas.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		default:
			return "", fmt.Errorf("message %d has unsupported role '%s'", i, turn.Role)
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("Gemini generateContent request failed.", zap.Duration("duration", duration), zap.Error(err))
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini response contained no text")
	}
	c.logger.Debug("Gemini response received.", zap.Duration("duration", duration))
	return text, nil
}

// Close is a no-op; the SDK client has nothing to release.
func (c *GeminiClient) Close() error {
	return nil
}
