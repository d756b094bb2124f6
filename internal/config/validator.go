package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/toolgate/pkg/hooks"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks if the configuration is valid. All problems are reported.
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway port must be between 0 and 65535, got %d", c.Gateway.Port))
	}

	rl := c.Middleware.RateLimit
	if rl.Enabled && rl.PerMinute <= 0 {
		errs = append(errs, fmt.Errorf("middleware.rate_limit.per_minute must be positive when enabled, got %d", rl.PerMinute))
	}
	if rl.Burst < 0 {
		errs = append(errs, fmt.Errorf("middleware.rate_limit.burst cannot be negative, got %d", rl.Burst))
	}
	if c.Middleware.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("middleware.timeout_ms cannot be negative, got %d", c.Middleware.TimeoutMs))
	}

	if c.Tracing.Enabled {
		if strings.TrimSpace(c.Tracing.ServiceName) == "" {
			errs = append(errs, fmt.Errorf("tracing.service_name is required when tracing is enabled"))
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio))
		}
	}

	for i, hook := range c.Hooks.Hooks {
		name := hook.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if !hooks.IsKnownEvent(hook.Event) {
			errs = append(errs, fmt.Errorf("hook %s: unknown event %q", name, hook.Event))
		}
		if strings.TrimSpace(hook.Script) == "" {
			errs = append(errs, fmt.Errorf("hook %s: script is required", name))
		}
		if hook.TimeoutMs < 0 {
			errs = append(errs, fmt.Errorf("hook %s: timeout_ms cannot be negative", name))
		}
	}

	return errors.Join(errs...)
}

// ValidateLogLevel validates log level
func ValidateLogLevel(level string) error {
	for _, valid := range validLogLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLogLevels, ", "))
}
