package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TOOLGATE_GATEWAY_PORT.
const EnvPrefix = "TOOLGATE"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file, if present, over the defaults and then
// applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	v := newViper(configPath)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to the config file, creating its directory.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolvePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("logging", cfg.Logging)
	v.Set("gateway", cfg.Gateway)
	v.Set("middleware", cfg.Middleware)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("hooks", cfg.Hooks)
	v.Set("tools", cfg.Tools)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolvePath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolvePath() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".toolgate", "toolgate.json"), nil
}

// newViper registers every scalar default so AutomaticEnv can override keys
// that are absent from the file.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("gateway.port", d.Gateway.Port)
	v.SetDefault("gateway.host", d.Gateway.Host)
	v.SetDefault("gateway.shared_secret", d.Gateway.SharedSecret)
	v.SetDefault("middleware.rate_limit.enabled", d.Middleware.RateLimit.Enabled)
	v.SetDefault("middleware.rate_limit.per_minute", d.Middleware.RateLimit.PerMinute)
	v.SetDefault("middleware.rate_limit.burst", d.Middleware.RateLimit.Burst)
	v.SetDefault("middleware.rate_limit.per_user", d.Middleware.RateLimit.PerUser)
	v.SetDefault("middleware.timeout_ms", d.Middleware.TimeoutMs)
	v.SetDefault("middleware.log_args", d.Middleware.LogArgs)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
	v.SetDefault("hooks.enabled", d.Hooks.Enabled)

	return v
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
