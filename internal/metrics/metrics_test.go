package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())

	assert.NotNil(t, m.ToolExecutionsTotal)
	assert.NotNil(t, m.ToolExecutionDuration)
	assert.NotNil(t, m.ToolExecutionErrorsTotal)
	assert.NotNil(t, m.ToolPolicyDenialsTotal)
	assert.NotNil(t, m.ToolRateLimitedTotal)
	assert.NotNil(t, m.ToolsRegistered)
	assert.NotNil(t, m.GatewayConnectionsActive)
	assert.NotNil(t, m.GatewayRequestsTotal)
}

func TestObserveExecution(t *testing.T) {
	m := NewMetrics()

	m.ObserveExecution("get_weather", 10*time.Millisecond, nil)
	m.ObserveExecution("get_weather", 5*time.Millisecond, errors.New("upstream"))
	m.ObserveExecution("get_weather", time.Millisecond, &toolexecutor.RiskViolationError{ToolName: "get_weather"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("get_weather", StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("get_weather", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionErrorsTotal.WithLabelValues("get_weather", toolexecutor.CodeExecution)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionErrorsTotal.WithLabelValues("get_weather", toolexecutor.CodeRiskViolation)))
}

func TestObserveRateLimited(t *testing.T) {
	m := NewMetrics()

	m.ObserveRateLimited("transfer_funds")
	m.ObserveRateLimited("transfer_funds")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolRateLimitedTotal.WithLabelValues("transfer_funds")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("transfer_funds", StatusRateLimited)))
}

func TestObserveOutcome(t *testing.T) {
	m := NewMetrics()

	m.ObserveOutcome("delete_user", &toolexecutor.RiskViolationError{ToolName: "delete_user"})
	m.ObserveOutcome("transfer_funds", &toolexecutor.ConfirmationRequiredError{ToolName: "transfer_funds"})
	m.ObserveOutcome("get_weather", &toolexecutor.ValidationError{ToolName: "get_weather"})
	m.ObserveOutcome("get_weather", &toolexecutor.ExecutionError{ToolName: "get_weather"})
	m.ObserveOutcome("get_weather", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolPolicyDenialsTotal.WithLabelValues("delete_user", toolexecutor.CodeRiskViolation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolPolicyDenialsTotal.WithLabelValues("transfer_funds", toolexecutor.CodeConfirmationRequired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolPolicyDenialsTotal.WithLabelValues("get_weather", toolexecutor.CodeValidation)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ToolPolicyDenialsTotal.WithLabelValues("get_weather", toolexecutor.CodeExecution)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveExecution("get_weather", time.Millisecond, nil)
	m.ToolsRegistered.Set(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "tool_executions_total")
	assert.Contains(t, body, "tool_execution_duration_seconds")
	assert.Contains(t, body, "tools_registered 3")
}
