package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Defaults.
const (
	DefaultMaxRequestCount = 100
	DefaultMaxBodySize     = 1 << 20
	DefaultQueueSize       = 1024
	DefaultBackend         = "file"
	DefaultFileName        = "requests.json"
	DefaultSQLiteFileName  = "requests.db"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all recorder settings.
type Config struct {
	// MaxRequestCount bounds the number of retained records.
	MaxRequestCount int `mapstructure:"maxRequestCount" yaml:"maxRequestCount" json:"maxRequestCount"`
	// MaxBodySize caps captured request and response bodies, in bytes.
	MaxBodySize int64 `mapstructure:"maxBodySize" yaml:"maxBodySize" json:"maxBodySize"`
	// QueueSize bounds the store's pending mutation queue.
	QueueSize int `mapstructure:"queueSize" yaml:"queueSize" json:"queueSize"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture" json:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

// StorageConfig selects where the log is persisted.
type StorageConfig struct {
	// Backend is file, sqlite or memory.
	Backend  string `mapstructure:"backend" yaml:"backend" json:"backend"`
	DataDir  string `mapstructure:"dataDir" yaml:"dataDir" json:"dataDir"`
	FileName string `mapstructure:"fileName" yaml:"fileName,omitempty" json:"fileName,omitempty"`
}

// CaptureConfig restricts which requests are recorded. Hosts and paths are
// doublestar glob patterns. When is an expr-lang boolean expression over
// method, scheme, host, path and url.
type CaptureConfig struct {
	IncludeHosts []string `mapstructure:"includeHosts" yaml:"includeHosts,omitempty" json:"includeHosts,omitempty"`
	ExcludeHosts []string `mapstructure:"excludeHosts" yaml:"excludeHosts,omitempty" json:"excludeHosts,omitempty"`
	IncludePaths []string `mapstructure:"includePaths" yaml:"includePaths,omitempty" json:"includePaths,omitempty"`
	ExcludePaths []string `mapstructure:"excludePaths" yaml:"excludePaths,omitempty" json:"excludePaths,omitempty"`
	When         string   `mapstructure:"when" yaml:"when,omitempty" json:"when,omitempty"`
}

// IsZero reports whether no capture restriction is configured.
func (c CaptureConfig) IsZero() bool {
	return len(c.IncludeHosts) == 0 && len(c.ExcludeHosts) == 0 &&
		len(c.IncludePaths) == 0 && len(c.ExcludePaths) == 0 &&
		strings.TrimSpace(c.When) == ""
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxRequestCount: DefaultMaxRequestCount,
		MaxBodySize:     DefaultMaxBodySize,
		QueueSize:       DefaultQueueSize,
		Storage: StorageConfig{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration. Errors wrap ErrInvalid and name the
// offending field.
func (c Config) Validate() error {
	if c.MaxRequestCount <= 0 {
		return fmt.Errorf("%w: maxRequestCount must be positive, got %d", ErrInvalid, c.MaxRequestCount)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("%w: maxBodySize must not be negative, got %d", ErrInvalid, c.MaxBodySize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queueSize must be positive, got %d", ErrInvalid, c.QueueSize)
	}
	switch c.Storage.Backend {
	case "", "file", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: storage.backend %q (want file, sqlite or memory)", ErrInvalid, c.Storage.Backend)
	}
	for field, patterns := range map[string][]string{
		"capture.includeHosts": c.Capture.IncludeHosts,
		"capture.excludeHosts": c.Capture.ExcludeHosts,
		"capture.includePaths": c.Capture.IncludePaths,
		"capture.excludePaths": c.Capture.ExcludePaths,
	} {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("%w: %s pattern %q", ErrInvalid, field, p)
			}
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// StoragePath returns the file the configured backend persists to.
func (c Config) StoragePath() string {
	dir := c.Storage.DataDir
	if dir == "" {
		dir = DefaultDataDir()
	}
	name := c.Storage.FileName
	if name == "" {
		name = DefaultFileName
		if c.Storage.Backend == "sqlite" {
			name = DefaultSQLiteFileName
		}
	}
	return filepath.Join(dir, name)
}

// DefaultDataDir returns the default data directory following XDG base directory conventions.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "wiretap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".wiretap", "data")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "wiretap")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "wiretap")
		}
		return filepath.Join(home, "AppData", "Local", "wiretap")
	}
	return filepath.Join(home, ".local", "share", "wiretap")
}

// DefaultConfigDir returns the default config directory following XDG base directory conventions.
func DefaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "wiretap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".wiretap", "config")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Preferences", "wiretap")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "wiretap")
		}
		return filepath.Join(home, "AppData", "Roaming", "wiretap")
	}
	return filepath.Join(home, ".config", "wiretap")
}
