package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

// Backend names accepted by the backend setting
const (
	BackendAuto  = "auto"
	BackendX11   = "x11"
	BackendGnome = "gnome"
)

// ScreenshotConfig controls how dwell screenshots are produced
type ScreenshotConfig struct {
	Quality int           `json:"quality" yaml:"quality" mapstructure:"quality"`
	Scale   float64       `json:"scale" yaml:"scale" mapstructure:"scale"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Caption bool          `json:"caption" yaml:"caption" mapstructure:"caption"`
}

// Config represents the application configuration.
// The poll interval and the activity log location are fixed and not part of it.
type Config struct {
	ServerPort int              `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	LogLevel   string           `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Backend    string           `json:"backend" yaml:"backend" mapstructure:"backend"`
	Screenshot ScreenshotConfig `json:"screenshot" yaml:"screenshot" mapstructure:"screenshot"`
}

// Defaults returns the configuration written on first run
func Defaults() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		Backend:    BackendAuto,
		Screenshot: ScreenshotConfig{
			Quality: 80,
			Scale:   1.0,
			Timeout: 5 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.ServerPort)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}

	switch c.Backend {
	case BackendAuto, BackendX11, BackendGnome:
	default:
		return fmt.Errorf("invalid backend: %s (use: auto, x11, gnome)", c.Backend)
	}

	if c.Screenshot.Quality < 1 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("screenshot quality must be between 1 and 100, got %d", c.Screenshot.Quality)
	}
	if c.Screenshot.Scale <= 0 || c.Screenshot.Scale > 1 {
		return fmt.Errorf("screenshot scale must be in (0, 1], got %v", c.Screenshot.Scale)
	}
	if c.Screenshot.Timeout <= 0 {
		return fmt.Errorf("screenshot timeout must be positive, got %v", c.Screenshot.Timeout)
	}

	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/focuslog/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "focuslog", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile means
// the default path. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(actualConfigPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	m := &Manager{
		configPath: actualConfigPath,
		v:          v,
	}

	if _, err := os.Stat(actualConfigPath); os.IsNotExist(err) {
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return m, nil
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("screenshot.quality", d.Screenshot.Quality)
	v.SetDefault("screenshot.scale", d.Screenshot.Scale)
	v.SetDefault("screenshot.timeout", d.Screenshot.Timeout)
	v.SetDefault("screenshot.caption", d.Screenshot.Caption)
}

// load reads the configuration from disk
func (m *Manager) load() error {
	if err := m.v.ReadInConfig(); err != nil {
		return err
	}
	return m.decode()
}

func (m *Manager) decode() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Value returns the raw value stored under key and whether the key is known
func (m *Manager) Value(key string) (interface{}, bool) {
	if !m.v.IsSet(key) {
		return nil, false
	}
	return m.v.Get(key), true
}

// Set parses value for key, validates the result and persists it
func (m *Manager) Set(key, value string) error {
	var parsed interface{}

	switch key {
	case "server_port", "screenshot.quality":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		parsed = n
	case "screenshot.scale":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		parsed = f
	case "screenshot.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		parsed = d
	case "screenshot.caption":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		parsed = b
	case "log_level", "backend":
		parsed = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	previous := m.v.Get(key)
	m.v.Set(key, parsed)
	if err := m.decode(); err != nil {
		m.v.Set(key, previous)
		return err
	}

	return m.Save()
}

// SetPort overrides the server port for this process without saving
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = Defaults()
	}
	m.config.ServerPort = port
}

// SetLogLevel overrides the log level for this process without saving
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = Defaults()
	}
	m.config.LogLevel = level
}

// Watch reloads the file when it changes on disk and hands the new
// configuration to fn. Invalid edits are logged and ignored.
func (m *Manager) Watch(fn func(*Config)) {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		log := logger.WithComponent("config")
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := m.load(); err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("path", e.Name).Msg("Config reloaded")
		fn(m.Get())
	})
	m.v.WatchConfig()
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
