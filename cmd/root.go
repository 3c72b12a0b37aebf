// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/agent"
	"github.com/xkilldash9x/agentxen/internal/browser"
	"github.com/xkilldash9x/agentxen/internal/config"
	"github.com/xkilldash9x/agentxen/internal/host"
	"github.com/xkilldash9x/agentxen/internal/llmclient"
	"github.com/xkilldash9x/agentxen/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

var cfgFile string

// newController builds the session controller the host drives. Tests swap it out.
var newController = func(cfg *config.Config, logger *zap.Logger) host.Controller {
	deps := agent.Dependencies{
		NewLLM: func(ctx context.Context) (schemas.LLMClient, error) {
			return llmclient.NewClient(ctx, cfg.LLM, logger)
		},
		Driver: browser.NewChromeDriver(cfg.Browser, logger),
	}
	genOpts := schemas.GenerationOptions{
		Temperature: float64(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	return agent.NewController(deps, cfg.Agent, genOpts, logger)
}

// NewRootCommand returns a fresh command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentxen",
		Short: "AgentXen native messaging host for browser automation.",
		Long: `AgentXen is launched by the browser as a native messaging host. It reads
commands from the extension on stdin, plans browser actions with a language
model, runs them in its own browser window, and answers on stdout.`,
		Version: Version,
		// Browsers pass the manifest path and extension id (Firefox) or the
		// caller origin and --parent-window (Chromium).
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		// stdout carries frames; nothing else may be printed there.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "agentxen", Console: true})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runHost(cmd.Context(), cfg, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.agentxen/config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newInstallManifestCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newReplCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		// Logging goes to stderr and the log file, never stdout.
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// runHost serves the native messaging protocol until the extension disconnects.
func runHost(ctx context.Context, cfg *config.Config, args []string, in io.Reader, out io.Writer) error {
	logger := observability.GetLogger()
	logger.Info("Starting AgentXen native host",
		zap.String("version", Version),
		zap.String("provider", string(cfg.LLM.Provider)),
		zap.String("model", cfg.LLM.Model),
		zap.Strings("launch_args", args))

	h := host.New(newController(cfg, logger), in, out, cfg.Host, logger)
	return h.Run(ctx)
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".agentxen"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AGENTXEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
