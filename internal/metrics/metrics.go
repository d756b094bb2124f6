package metrics

import (
	"net/http"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution statuses recorded on tool_executions_total.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	ToolExecutionsTotal      *prometheus.CounterVec
	ToolExecutionDuration    *prometheus.HistogramVec
	ToolExecutionErrorsTotal *prometheus.CounterVec
	ToolPolicyDenialsTotal   *prometheus.CounterVec
	ToolRateLimitedTotal     *prometheus.CounterVec
	ToolsRegistered          prometheus.Gauge

	GatewayConnectionsActive prometheus.Gauge
	GatewayRequestsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions that reached the middleware chain",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		ToolExecutionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_execution_errors_total",
				Help: "Total number of tool execution errors",
			},
			[]string{"tool_name", "error_code"},
		),
		ToolPolicyDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_policy_denials_total",
				Help: "Total number of calls rejected before execution",
			},
			[]string{"tool_name", "code"},
		),
		ToolRateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_rate_limited_total",
				Help: "Total number of calls short-circuited by the rate limiter",
			},
			[]string{"tool_name"},
		),
		ToolsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tools_registered",
				Help: "Number of tools in the registry",
			},
		),

		GatewayConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_connections_active",
				Help: "Number of open WebSocket connections",
			},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total number of JSON-RPC requests",
			},
			[]string{"method", "transport"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)
	m.registry.MustRegister(m.ToolExecutionErrorsTotal)
	m.registry.MustRegister(m.ToolPolicyDenialsTotal)
	m.registry.MustRegister(m.ToolRateLimitedTotal)
	m.registry.MustRegister(m.ToolsRegistered)

	m.registry.MustRegister(m.GatewayConnectionsActive)
	m.registry.MustRegister(m.GatewayRequestsTotal)
}

// ObserveExecution records one pass through a tool's middleware chain.
func (m *Metrics) ObserveExecution(toolName string, duration time.Duration, err error) {
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
	if err != nil {
		m.ToolExecutionsTotal.WithLabelValues(toolName, StatusError).Inc()
		code := toolexecutor.ErrorCode(err)
		if code == "" {
			code = toolexecutor.CodeExecution
		}
		m.ToolExecutionErrorsTotal.WithLabelValues(toolName, code).Inc()
		return
	}
	m.ToolExecutionsTotal.WithLabelValues(toolName, StatusSuccess).Inc()
}

// ObserveRateLimited records a call the rate limiter short-circuited.
func (m *Metrics) ObserveRateLimited(toolName string) {
	m.ToolExecutionsTotal.WithLabelValues(toolName, StatusRateLimited).Inc()
	m.ToolRateLimitedTotal.WithLabelValues(toolName).Inc()
}

// ObserveOutcome records the result of Tool.Execute as seen by a caller.
// Only rejections that never reach the chain are counted here; the chain
// itself is measured by ObserveExecution.
func (m *Metrics) ObserveOutcome(toolName string, err error) {
	switch code := toolexecutor.ErrorCode(err); code {
	case toolexecutor.CodeValidation, toolexecutor.CodeRiskViolation, toolexecutor.CodeConfirmationRequired:
		m.ToolPolicyDenialsTotal.WithLabelValues(toolName, code).Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
