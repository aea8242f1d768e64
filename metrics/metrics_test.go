package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestObserveQueueDepthSetsAllStates(t *testing.T) {
	m := New()
	m.ObserveQueueDepth(3, 2, 10, 1, 0, 0)

	require.Equal(t, float64(3), gaugeValue(t, m.QueueDepth.WithLabelValues("waiting")))
	require.Equal(t, float64(2), gaugeValue(t, m.QueueDepth.WithLabelValues("active")))
	require.Equal(t, float64(10), gaugeValue(t, m.QueueDepth.WithLabelValues("completed")))
	require.Equal(t, float64(1), gaugeValue(t, m.QueueDepth.WithLabelValues("failed")))
}

func TestSyncGatewayStatsSetsConnectionsAndEvents(t *testing.T) {
	m := New()
	m.SyncGatewayStats(map[string]int64{"/jobs": 4}, map[string]int64{"job": 7})

	require.Equal(t, float64(4), gaugeValue(t, m.GatewayConnections.WithLabelValues("/jobs")))
	require.Equal(t, float64(7), gaugeValue(t, m.GatewayEvents.WithLabelValues("job")))
}

func TestWorkerPoolGaugesAreIndependentlySettable(t *testing.T) {
	m := New()
	m.WorkerPoolSize.Set(3)
	m.WorkerPoolRecommended.Set(5)

	require.Equal(t, float64(3), gaugeValue(t, m.WorkerPoolSize))
	require.Equal(t, float64(5), gaugeValue(t, m.WorkerPoolRecommended))
}
