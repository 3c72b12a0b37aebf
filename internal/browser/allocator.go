// internal/browser/allocator.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/agentxen/internal/config"
)

// allocatorFlags computes the command-line flags layered on top of chromedp's
// defaults. It is split out from DefaultAllocatorOptions so the result can be
// inspected; chromedp options are opaque closures.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	// Required on hardened systems and inside containers.
	flags := map[string]interface{}{
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
	}

	// chromedp defaults to headless; a false value removes the flag.
	for _, key := range []string{"headless", "hide-scrollbars", "mute-audio"} {
		flags[key] = cfg.Headless
	}

	if cfg.Maximized && !cfg.Headless {
		flags["start-maximized"] = true
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", w, h)
	}

	// Add additional flags from the config file's 'args' slice.
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		// Handle boolean flags (e.g., --no-zygote)
		key, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			flags[key] = true
			continue
		}
		flags[key] = value
	}
	return flags
}

// DefaultAllocatorOptions builds the chromedp allocator options for cfg.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	// Start with chromedp defaults
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for key, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(key, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}
