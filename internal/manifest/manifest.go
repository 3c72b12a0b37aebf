// internal/manifest/manifest.go
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Browser selects the manifest flavour and install location.
type Browser string

const (
	BrowserFirefox  Browser = "firefox"
	BrowserChrome   Browser = "chrome"
	BrowserChromium Browser = "chromium"
)

// ErrUnsupportedPlatform is returned where the browser discovers hosts
// through something other than a manifest directory (the Windows registry).
var ErrUnsupportedPlatform = errors.New("no manifest directory for this browser on this platform")

// Browsers only accept lowercase dotted names.
var hostNamePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// Manifest is the native messaging host registration file.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
}

// Build validates cfg and returns the manifest for the host binary at executable.
func Build(cfg config.ManifestConfig, executable string) (*Manifest, error) {
	if !hostNamePattern.MatchString(cfg.Name) {
		return nil, fmt.Errorf("invalid host name %q: only lowercase letters, digits, underscores and dots are allowed", cfg.Name)
	}
	if !filepath.IsAbs(executable) {
		return nil, fmt.Errorf("host path must be absolute, got %q", executable)
	}

	m := &Manifest{
		Name:        cfg.Name,
		Description: cfg.Description,
		Path:        executable,
		Type:        "stdio",
	}

	switch Browser(strings.ToLower(cfg.Browser)) {
	case BrowserFirefox:
		if len(cfg.AllowedExtensions) == 0 {
			return nil, errors.New("firefox manifests need at least one entry in manifest.allowed_extensions")
		}
		m.AllowedExtensions = cfg.AllowedExtensions
	case BrowserChrome, BrowserChromium:
		if len(cfg.AllowedOrigins) == 0 {
			return nil, errors.New("chromium manifests need at least one entry in manifest.allowed_origins")
		}
		for _, origin := range cfg.AllowedOrigins {
			if !strings.HasPrefix(origin, "chrome-extension://") || !strings.HasSuffix(origin, "/") {
				return nil, fmt.Errorf("invalid allowed origin %q: expected chrome-extension://<id>/", origin)
			}
		}
		m.AllowedOrigins = cfg.AllowedOrigins
	default:
		return nil, fmt.Errorf("unsupported browser %q", cfg.Browser)
	}
	return m, nil
}

// HostDir returns the per-user directory the browser reads manifests from.
func HostDir(browser Browser, goos string) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	var parts []string
	switch browser {
	case BrowserFirefox:
		switch goos {
		case "darwin":
			parts = []string{"Library", "Application Support", "Mozilla", "NativeMessagingHosts"}
		case "windows":
			parts = []string{"AppData", "Roaming", "Mozilla", "NativeMessagingHosts"}
		default:
			parts = []string{".mozilla", "native-messaging-hosts"}
		}
	case BrowserChrome:
		switch goos {
		case "darwin":
			parts = []string{"Library", "Application Support", "Google", "Chrome", "NativeMessagingHosts"}
		case "windows":
			return "", fmt.Errorf("%s on %s: %w", browser, goos, ErrUnsupportedPlatform)
		default:
			parts = []string{".config", "google-chrome", "NativeMessagingHosts"}
		}
	case BrowserChromium:
		switch goos {
		case "darwin":
			parts = []string{"Library", "Application Support", "Chromium", "NativeMessagingHosts"}
		case "windows":
			return "", fmt.Errorf("%s on %s: %w", browser, goos, ErrUnsupportedPlatform)
		default:
			parts = []string{".config", "chromium", "NativeMessagingHosts"}
		}
	default:
		return "", fmt.Errorf("unsupported browser %q", browser)
	}
	return filepath.Join(append([]string{home}, parts...)...), nil
}

// Installer writes and removes manifests.
type Installer struct {
	cfg    config.ManifestConfig
	logger *zap.Logger
	// Dir overrides the browser's default manifest directory when set.
	Dir string
}

// NewInstaller creates an Installer for cfg.
func NewInstaller(cfg config.ManifestConfig, logger *zap.Logger) *Installer {
	return &Installer{cfg: cfg, logger: logger.Named("manifest")}
}

// Path returns where the manifest file lives.
func (i *Installer) Path() (string, error) {
	dir := i.Dir
	if dir == "" {
		var err error
		dir, err = HostDir(Browser(strings.ToLower(i.cfg.Browser)), runtime.GOOS)
		if err != nil {
			return "", err
		}
	} else {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return "", fmt.Errorf("failed to expand manifest directory: %w", err)
		}
		dir = expanded
	}
	return filepath.Join(dir, i.cfg.Name+".json"), nil
}

// Install writes the manifest pointing at executable, replacing any existing one.
func (i *Installer) Install(executable string) (string, error) {
	m, err := Build(i.cfg, executable)
	if err != nil {
		return "", err
	}
	path, err := i.Path()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	i.logger.Info("Native messaging manifest installed", zap.String("path", path), zap.String("host", executable))
	return path, nil
}

// Uninstall removes the manifest. A missing file is not an error.
func (i *Installer) Uninstall() (string, error) {
	path, err := i.Path()
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove manifest: %w", err)
	}
	i.logger.Info("Native messaging manifest removed", zap.String("path", path))
	return path, nil
}

// ErrNotInstalled is returned by Load when no manifest exists at Path.
var ErrNotInstalled = errors.New("manifest not installed")

// Load reads the installed manifest and checks that the host it names exists.
// The returned path is set even when an error is returned.
func (i *Installer) Load() (*Manifest, string, error) {
	path, err := i.Path()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, path, ErrNotInstalled
	}
	if err != nil {
		return nil, path, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, path, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Name != i.cfg.Name {
		return &m, path, fmt.Errorf("manifest registers %q, expected %q", m.Name, i.cfg.Name)
	}
	if _, err := os.Stat(m.Path); err != nil {
		return &m, path, fmt.Errorf("registered host %s is not usable: %w", m.Path, err)
	}
	return &m, path, nil
}
