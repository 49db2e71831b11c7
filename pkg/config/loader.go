package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "WIRETAP"

// Common errors for configuration loading/saving.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// DefaultConfigFile is the config file looked up when no path is given.
func DefaultConfigFile() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the configuration from path, applies WIRETAP_* environment
// overrides and validates the result. An empty path falls back to
// DefaultConfigFile when it exists and to pure defaults otherwise.
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}
	if _, err := os.Stat(path); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
			return v, nil
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		case errors.Is(err, os.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("maxRequestCount", d.MaxRequestCount)
	v.SetDefault("maxBodySize", d.MaxBodySize)
	v.SetDefault("queueSize", d.QueueSize)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dataDir", d.Storage.DataDir)
	v.SetDefault("storage.fileName", d.Storage.FileName)
	// Capture keys have no default; binding them keeps env overrides working
	// without turning absent lists into empty ones.
	for _, key := range []string{
		"capture.includeHosts", "capture.excludeHosts",
		"capture.includePaths", "capture.excludePaths",
		"capture.when",
	} {
		_ = v.BindEnv(key)
	}
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watcher holds the current configuration and reloads it when the file
// changes on disk.
type Watcher struct {
	mu  sync.RWMutex
	cfg Config
}

// Current returns the most recently loaded valid configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

func (w *Watcher) set(cfg Config) {
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
}

// Watch loads the configuration at path and watches it for changes.
// onChange is called with every successfully reloaded configuration; an
// invalid edit is logged and the previous configuration is kept.
func Watch(path string, log *slog.Logger, onChange func(Config)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: watch requires a config file", ErrFileNotFound)
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{cfg: cfg}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			if log != nil {
				log.Warn("config reload failed", "path", e.Name, "error", err)
			}
			return
		}
		w.set(next)
		if log != nil {
			log.Info("config reloaded", "path", e.Name)
		}
		if onChange != nil {
			onChange(next)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveToFile writes the configuration as YAML using atomic rename.
// Creates parent directories if they don't exist.
func SaveToFile(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
