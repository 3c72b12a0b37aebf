// -- internal/llmclient/factory.go --
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/config"
)

// DefaultOllamaEndpoint is Ollama's OpenAI-compatible API root.
const DefaultOllamaEndpoint = "http://localhost:11434/v1/"

// NewClient is a factory function that creates an LLMClient based on the configuration.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		if cfg.Endpoint == "" {
			cfg.Endpoint = DefaultOllamaEndpoint
		}
		if cfg.APIKey == "" {
			// Ollama ignores the key but the Authorization header must be well formed.
			cfg.APIKey = "ollama"
		}
		return NewOpenAIClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderOllama, config.ProviderOpenAI, config.ProviderGemini)
	}
}
