package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/toolgate/internal/config"
	"github.com/harun/toolgate/internal/logger"
	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/coretools"
	"github.com/harun/toolgate/pkg/hooks"
	"github.com/harun/toolgate/pkg/middleware"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const tracerName = "github.com/harun/toolgate"

// runtime is the process wiring shared by the tools and serve commands.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	hooks    *hooks.Manager
	registry *toolexecutor.Registry
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newRuntime(cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		log:      log,
		logger:   log.GetZerolog(),
		registry: toolexecutor.NewRegistry(log.GetZerolog()),
	}

	if cfg.Metrics.Enabled {
		rt.metrics = metrics.NewMetrics()
	}

	if err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}); err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	hookList := make([]hooks.Hook, 0, len(cfg.Hooks.Hooks))
	for _, h := range cfg.Hooks.Hooks {
		hookList = append(hookList, hooks.Hook{
			ID:      h.ID,
			Event:   h.Event,
			Script:  h.Script,
			Tools:   h.Tools,
			Timeout: time.Duration(h.TimeoutMs) * time.Millisecond,
			Enabled: h.Enabled,
		})
	}
	rt.hooks, err = hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   hookList,
		Logger:  rt.logger,
	})
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to initialize hooks: %w", err)
	}

	return rt, nil
}

// registerTools registers the built-in tools with the configured middleware
// and hooks, plus any extra hooks supplied by the caller.
func (rt *runtime) registerTools(extra ...toolexecutor.Hooks) error {
	toolLogger := rt.log.Component("tools")
	mw := middleware.Options{
		Logger:  &toolLogger,
		Metrics: rt.metrics,
		RateLimit: middleware.RateLimitConfig{
			Enabled:   rt.cfg.Middleware.RateLimit.Enabled,
			PerMinute: rt.cfg.Middleware.RateLimit.PerMinute,
			Burst:     rt.cfg.Middleware.RateLimit.Burst,
			PerUser:   rt.cfg.Middleware.RateLimit.PerUser,
		},
		Timeout: rt.cfg.Middleware.Timeout(),
	}
	if rt.cfg.Middleware.LogArgs {
		mw.Redactor = rt.log.Redactor()
		if mw.Redactor == nil {
			mw.Redactor = logger.NewRedactor()
		}
	}
	if rt.cfg.Tracing.Enabled {
		mw.TracerName = tracerName
	}

	var toolHooks []toolexecutor.Hooks
	if rt.hooks.Count() > 0 {
		toolHooks = append(toolHooks, rt.hooks.ToolHooks())
	}
	toolHooks = append(toolHooks, extra...)

	_, err := coretools.Register(rt.registry, coretools.Options{
		Middleware: mw,
		Hooks:      toolHooks,
		Disabled:   rt.cfg.Tools.Disabled,
		Logger:     toolLogger,
	})
	return err
}

func (rt *runtime) Close() {
	if rt.cfg.Tracing.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
	_ = rt.log.Close()
}
