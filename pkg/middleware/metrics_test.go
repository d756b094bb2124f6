package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	limiter, err := RateLimit(RateLimitConfig{PerMinute: 1, Burst: 1})
	require.NoError(t, err)

	fail := false
	h := toolexecutor.Chain(func(ctx context.Context, call *toolexecutor.Call) (interface{}, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	}, Metrics(m), limiter)

	_, err = h(context.Background(), &toolexecutor.Call{ToolName: "a"})
	require.NoError(t, err)

	_, err = h(context.Background(), &toolexecutor.Call{ToolName: "a"})
	require.NoError(t, err)

	fail = true
	_, err = h(context.Background(), &toolexecutor.Call{ToolName: "b"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("a", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolRateLimitedTotal.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("b", metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionErrorsTotal.WithLabelValues("b", toolexecutor.CodeExecution)))
}
