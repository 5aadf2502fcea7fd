package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var registry = prometheus.NewRegistry()

// Registry is the process-wide registry the CLI registers instruments with
func Registry() *prometheus.Registry {
	return registry
}

// EngineMetrics instruments the per-tick pipeline
type EngineMetrics struct {
	Candidates    *prometheus.CounterVec
	Priced        prometheus.Counter
	Excluded      *prometheus.CounterVec
	Batches       prometheus.Counter
	Unplanned     prometheus.Counter
	Ticks         prometheus.Counter
	DroppedTicks  prometheus.Counter
	DegradedTicks prometheus.Counter
	TickDuration  prometheus.Histogram
}

// NewEngineMetrics creates the engine instruments. reg may be nil, in which
// case the instruments are not registered anywhere.
func NewEngineMetrics(namespace string, reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Total number of enumerated candidates by route kind",
		}, []string{"kind"}),
		Priced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priced_opportunities_total",
			Help:      "Total number of candidates that survived pricing",
		}),
		Excluded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excluded_candidates_total",
			Help:      "Total number of candidates excluded during pricing by reason",
		}, []string{"reason"}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches planned",
		}),
		Unplanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unplanned_opportunities_total",
			Help:      "Total number of priced opportunities that fit no batch",
		}),
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of completed ticks",
		}),
		DroppedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_ticks_total",
			Help:      "Total number of snapshots dropped because a tick was in flight",
		}),
		DegradedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_ticks_total",
			Help:      "Total number of ticks where an enumerator ran out of budget",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time taken to turn a snapshot into a plan",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

// CounterValue reads the current total of a counter
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil || m.Counter == nil {
		return 0
	}
	return m.Counter.GetValue()
}

// CounterVecTotal sums a counter vector across the given label values
func CounterVecTotal(v *prometheus.CounterVec, labels ...string) float64 {
	var total float64
	for _, l := range labels {
		total += CounterValue(v.WithLabelValues(l))
	}
	return total
}
