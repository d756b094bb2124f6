package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls the process tracer provider.
type Config struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	ServiceName string  `mapstructure:"service_name" json:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"`
}

// DefaultConfig returns tracing disabled with full sampling once enabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "toolgate",
		SampleRatio: 1,
	}
}

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// InitOpenTelemetry installs a process-wide tracer provider sampling every
// span. Only the first call has an effect.
func InitOpenTelemetry(serviceName string) error {
	return Init(Config{Enabled: true, ServiceName: serviceName, SampleRatio: 1})
}

// Init installs a process-wide tracer provider built from cfg. Extra span
// processors (exporters) are attached to it. Only the first call has an
// effect; a disabled config leaves the global no-op provider in place.
func Init(cfg Config, processors ...sdktrace.SpanProcessor) error {
	if !cfg.Enabled {
		return nil
	}

	providerOnce.Do(func() {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(cfg.ServiceName),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
			sdktrace.WithResource(res),
		}
		for _, p := range processors {
			opts = append(opts, sdktrace.WithSpanProcessor(p))
		}
		tp := sdktrace.NewTracerProvider(opts...)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return providerErr
}

// ShutdownOpenTelemetry flushes and shuts down the global tracer provider.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on the named tracer and records its trace ID in ctx
// when none is present yet.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
