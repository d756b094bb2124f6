package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main toolgate configuration
type Config struct {
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Gateway    GatewayConfig    `json:"gateway" mapstructure:"gateway"`
	Middleware MiddlewareConfig `json:"middleware" mapstructure:"middleware"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
	Tracing    TracingConfig    `json:"tracing" mapstructure:"tracing"`
	Hooks      HooksConfig      `json:"hooks" mapstructure:"hooks"`
	Tools      ToolsConfig      `json:"tools" mapstructure:"tools"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
	// AllowedOrigins restricts WebSocket origins. Empty allows all.
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// MiddlewareConfig selects the standard middleware stack applied to every tool.
type MiddlewareConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	TimeoutMs int             `json:"timeout_ms" mapstructure:"timeout_ms"`
	// LogArgs logs redacted call arguments at debug level.
	LogArgs bool `json:"log_args" mapstructure:"log_args"`
}

// Timeout returns TimeoutMs as a duration.
func (m MiddlewareConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// RateLimitConfig holds per-tool token bucket settings
type RateLimitConfig struct {
	Enabled   bool `json:"enabled" mapstructure:"enabled"`
	PerMinute int  `json:"per_minute" mapstructure:"per_minute"`
	Burst     int  `json:"burst" mapstructure:"burst"`
	PerUser   bool `json:"per_user" mapstructure:"per_user"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// HooksConfig holds shell lifecycle hooks
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Hooks   []HookConfig `json:"hooks" mapstructure:"hooks"`
}

// HookConfig declares one shell hook
type HookConfig struct {
	ID        string   `json:"id" mapstructure:"id"`
	Event     string   `json:"event" mapstructure:"event"`
	Script    string   `json:"script" mapstructure:"script"`
	Tools     []string `json:"tools" mapstructure:"tools"`
	TimeoutMs int      `json:"timeout_ms" mapstructure:"timeout_ms"`
	Enabled   bool     `json:"enabled" mapstructure:"enabled"`
}

// ToolsConfig controls the built-in tools
type ToolsConfig struct {
	// Disabled lists built-in tools that are not registered.
	Disabled []string `json:"disabled" mapstructure:"disabled"`
}

// IsDisabled reports whether name is listed in Disabled.
func (t ToolsConfig) IsDisabled(name string) bool {
	for _, d := range t.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Middleware: MiddlewareConfig{
			RateLimit: RateLimitConfig{
				Enabled:   false,
				PerMinute: 60,
			},
			TimeoutMs: 30000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "toolgate",
			SampleRatio: 1,
		},
		Hooks: HooksConfig{
			Enabled: false,
			Hooks:   []HookConfig{},
		},
		Tools: ToolsConfig{
			Disabled: []string{},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
