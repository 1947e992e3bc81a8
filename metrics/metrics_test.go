package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewCollectorRegistersEveryInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	require.NotNil(t, c)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 7)
}

func TestCountersIncrementIndependently(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.IncTotal()
	c.IncTotal()
	c.IncProcessed()
	c.IncTimedOut()
	c.IncCheckedOut()

	families, err := reg.Gather()
	require.NoError(t, err)

	counters := make(map[string]float64)
	for _, f := range families {
		if f.GetType() == dto.MetricType_COUNTER {
			counters[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(2), counters["httpengine_requests_total"])
	require.Equal(t, float64(1), counters["httpengine_requests_processed_total"])
	require.Equal(t, float64(1), counters["httpengine_requests_timed_out_total"])
	require.Equal(t, float64(1), counters["httpengine_requests_checked_out_total"])
}

func TestNilCollectorMethodsAreNoops(t *testing.T) {
	var c *metrics.Collector
	require.NotPanics(t, func() {
		c.IncTotal()
		c.IncProcessed()
		c.IncTimedOut()
		c.IncCheckedOut()
		c.SetReadyPoolDepth(3)
		c.SetHandleTableLive(3)
		c.ObserveCommitLatency(time.Millisecond)
	})
}
