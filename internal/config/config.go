// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	LLM      LLMModelConfig `mapstructure:"llm" yaml:"llm"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Host     HostConfig     `mapstructure:"host" yaml:"host"`
	Manifest ManifestConfig `mapstructure:"manifest" yaml:"manifest"`
}

// LoggerConfig holds all the configuration for the logger. Console output
// goes to stderr; stdout belongs to the native-messaging channel.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	Console     bool        `mapstructure:"console" yaml:"console"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the type for LLM providers.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for the planning model.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// BrowserConfig controls the automated browser session.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	Maximized         bool           `mapstructure:"maximized" yaml:"maximized"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// AgentConfig tunes the planner and executor.
type AgentConfig struct {
	// MaxHistoryTurns bounds the replayed conversation. Zero disables the bound.
	MaxHistoryTurns int `mapstructure:"max_history_turns" yaml:"max_history_turns"`
	// CommandTimeout caps one full plan-and-execute cycle. Zero disables it.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// HostConfig bounds the native-messaging frames.
type HostConfig struct {
	MaxInboundBytes  int `mapstructure:"max_inbound_bytes" yaml:"max_inbound_bytes"`
	MaxOutboundBytes int `mapstructure:"max_outbound_bytes" yaml:"max_outbound_bytes"`
}

// ManifestConfig describes the native-messaging host registration.
type ManifestConfig struct {
	Name              string   `mapstructure:"name" yaml:"name"`
	Description       string   `mapstructure:"description" yaml:"description"`
	Browser           string   `mapstructure:"browser" yaml:"browser"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// SetDefaults populates the viper instance with every default value.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "agentxen")
	v.SetDefault("logger.console", true)
	v.SetDefault("logger.log_file", "~/.agentxen/agentxen-native.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderOllama))
	v.SetDefault("llm.model", "gemma:1b")
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 0)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.maximized", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "60s")

	// -- Agent --
	v.SetDefault("agent.max_history_turns", 40)
	v.SetDefault("agent.command_timeout", "0s")

	// -- Host --
	v.SetDefault("host.max_inbound_bytes", 64*1024*1024)
	v.SetDefault("host.max_outbound_bytes", 1024*1024)

	// -- Manifest --
	v.SetDefault("manifest.name", "agentxen")
	v.SetDefault("manifest.description", "AgentXen Native Messaging Host")
	v.SetDefault("manifest.browser", "firefox")
	v.SetDefault("manifest.allowed_extensions", []string{"agentxen@zen-browser.local"})
	v.SetDefault("manifest.allowed_origins", []string{})
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("llm.api_key", "AGENTXEN_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Providers keep their own conventional variables as a fallback.
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.Agent.MaxHistoryTurns < 0 {
		return fmt.Errorf("agent.max_history_turns must not be negative")
	}
	if c.Agent.CommandTimeout < 0 {
		return fmt.Errorf("agent.command_timeout must not be negative")
	}
	if err := c.Host.Validate(); err != nil {
		return fmt.Errorf("host configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the LLM settings.
func (l *LLMModelConfig) Validate() error {
	switch l.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the browser timeouts.
func (b *BrowserConfig) Validate() error {
	if b.ActionTimeout <= 0 {
		return fmt.Errorf("action_timeout must be a positive duration")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the frame size limits.
func (h *HostConfig) Validate() error {
	if h.MaxOutboundBytes <= 0 {
		return fmt.Errorf("max_outbound_bytes must be a positive integer")
	}
	if h.MaxInboundBytes < h.MaxOutboundBytes {
		return fmt.Errorf("max_inbound_bytes must be at least max_outbound_bytes")
	}
	return nil
}
