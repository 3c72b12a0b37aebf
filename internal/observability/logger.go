// File: internal/observability/logger.go
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/agentxen/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const (
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorReset   = "\x1b[0m"
)

var ansiByName = map[string]string{
	"red":     colorRed,
	"green":   colorGreen,
	"yellow":  colorYellow,
	"blue":    colorBlue,
	"magenta": colorMagenta,
	"cyan":    colorCyan,
	"white":   colorWhite,
}

// Initialize installs the global logger the first time it is called; later
// calls are no-ops until ResetForTest. Entries go to console (when non-nil)
// and to the rotating JSON file named by cfg.LogFile (when set).
//
// console must never be os.Stdout. The extension reads framed messages there.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				level.SetLevel(zap.InfoLevel)
			}
		}

		logger := zap.New(zapcore.NewTee(buildCores(cfg, console, level)...), loggerOptions(cfg)...)
		logger = logger.Named(cfg.ServiceName)
		globalLogger.Store(logger)

		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// InitializeLogger is Initialize with stderr as the console when cfg.Console is set.
func InitializeLogger(cfg config.LoggerConfig) {
	var console zapcore.WriteSyncer
	if cfg.Console {
		console = zapcore.Lock(os.Stderr)
	}
	Initialize(cfg, console)
}

func buildCores(cfg config.LoggerConfig, console zapcore.WriteSyncer, level zapcore.LevelEnabler) []zapcore.Core {
	cores := make([]zapcore.Core, 0, 2)
	if console != nil {
		cores = append(cores, zapcore.NewCore(consoleEncoder(cfg), console, level))
	}
	if cfg.LogFile == "" {
		return cores
	}

	path, err := ResolveLogFile(cfg.LogFile)
	if err != nil {
		// No logger exists yet to report this.
		fmt.Fprintln(os.Stderr, "Warning: log file disabled:", err)
		return cores
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(rotator), level))
}

func loggerOptions(cfg config.LoggerConfig) []zap.Option {
	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return opts
}

// ResolveLogFile expands a leading "~" and makes sure the parent directory exists.
func ResolveLogFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand log file path %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return expanded, nil
}

// ResetForTest clears the global logger so the next Initialize takes effect.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return ec
}

// jsonEncoder is used by the log file regardless of cfg.Format, so that
// `agentxen logs` output can be piped into jq.
func jsonEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// consoleEncoder renders single-line entries with a coloured level and a
// dotted component name ("agentxen.host."). Any format other than "console"
// falls back to JSON.
func consoleEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return jsonEncoder()
	}
	ec := baseEncoderConfig()
	ec.EncodeLevel = levelPalette(cfg.Colors)
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

func levelPalette(colors config.ColorConfig) zapcore.LevelEncoder {
	palette := map[zapcore.Level]string{
		zapcore.DebugLevel:  ansiByName[colors.Debug],
		zapcore.InfoLevel:   ansiByName[colors.Info],
		zapcore.WarnLevel:   ansiByName[colors.Warn],
		zapcore.ErrorLevel:  ansiByName[colors.Error],
		zapcore.DPanicLevel: ansiByName[colors.DPanic],
		zapcore.PanicLevel:  ansiByName[colors.Panic],
		zapcore.FatalLevel:  ansiByName[colors.Fatal],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := level.CapitalString()
		if color := palette[level]; color != "" {
			name = color + name + colorReset
		}
		enc.AppendString(name)
	}
}

// GetLogger returns the global logger, or a development logger on stderr when
// Initialize has not run yet.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	fallback, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	fallback.Warn("Global logger requested before initialization; using fallback.")
	return fallback.Named("fallback")
}

// Sync flushes buffered entries. Errors from syncing a terminal or pipe are
// expected on some platforms and are not reported.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	err := logger.Sync()
	if err == nil || ignorableSyncError(err) {
		return
	}
	fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
}

func ignorableSyncError(err error) bool {
	msg := err.Error()
	for _, fragment := range []string{"sync /dev/stderr", "invalid argument", "operation not supported", "inappropriate ioctl"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
