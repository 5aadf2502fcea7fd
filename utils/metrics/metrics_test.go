package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.NotNil(t, Registry())
	assert.Same(t, Registry(), Registry())
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics("test_engine", reg)
	require.NotNil(t, m)

	m.Ticks.Inc()
	m.Ticks.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Ticks))
	assert.Equal(t, float64(2), CounterValue(m.Ticks))

	m.Candidates.WithLabelValues("triangle").Add(3)
	m.Candidates.WithLabelValues("multihop").Add(4)
	assert.Equal(t, float64(7), CounterVecTotal(m.Candidates, "triangle", "multihop", "bridge_spread"))

	m.TickDuration.Observe(0.01)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_engine_ticks_total")
	assert.Contains(t, names, "test_engine_tick_duration_seconds")
}

func TestEngineMetricsUnregistered(t *testing.T) {
	// two unregistered sets never collide
	a := NewEngineMetrics("test_engine", nil)
	b := NewEngineMetrics("test_engine", nil)

	a.DroppedTicks.Inc()
	assert.Equal(t, float64(1), CounterValue(a.DroppedTicks))
	assert.Equal(t, float64(0), CounterValue(b.DroppedTicks))
}
