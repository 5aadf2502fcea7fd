// Package monitor samples Go runtime statistics for long-running commands.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Stats is one runtime sample
type Stats struct {
	Goroutines  int     `json:"goroutines"`
	HeapObjects uint64  `json:"heap_objects"`
	HeapAlloc   uint64  `json:"heap_alloc"`
	GCPauseMs   float64 `json:"gc_pause_ms"`
	NumGC       uint32  `json:"num_gc"`
}

// RuntimeMonitor periodically publishes runtime statistics as gauges
type RuntimeMonitor struct {
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.RWMutex
	last Stats

	metrics struct {
		goroutines  prometheus.Gauge
		heapObjects prometheus.Gauge
		heapAlloc   prometheus.Gauge
		gcPause     prometheus.Gauge
	}
}

// NewRuntimeMonitor creates a monitor sampling every interval. reg may be nil
// to leave the gauges unregistered.
func NewRuntimeMonitor(namespace string, interval time.Duration, reg prometheus.Registerer, logger *zap.Logger) *RuntimeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}

	m := &RuntimeMonitor{
		logger:   logger.Named("monitor"),
		interval: interval,
	}

	factory := promauto.With(reg)
	m.metrics.goroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "runtime",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
	m.metrics.heapObjects = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "runtime",
		Name:      "heap_objects",
		Help:      "Current number of heap objects",
	})
	m.metrics.heapAlloc = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "runtime",
		Name:      "heap_alloc_bytes",
		Help:      "Current heap allocation in bytes",
	})
	m.metrics.gcPause = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "runtime",
		Name:      "gc_pause_milliseconds",
		Help:      "Duration of the most recent GC pause",
	})

	return m
}

// Start samples until ctx is cancelled or Stop is called
func (m *RuntimeMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.Sample()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sample()
			}
		}
	}()
}

// Stop halts sampling and waits for the sampler to exit
func (m *RuntimeMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Sample reads the runtime statistics and updates the gauges
func (m *RuntimeMonitor) Sample() Stats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s := Stats{
		Goroutines:  runtime.NumGoroutine(),
		HeapObjects: memStats.HeapObjects,
		HeapAlloc:   memStats.HeapAlloc,
		GCPauseMs:   float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / float64(time.Millisecond),
		NumGC:       memStats.NumGC,
	}

	m.metrics.goroutines.Set(float64(s.Goroutines))
	m.metrics.heapObjects.Set(float64(s.HeapObjects))
	m.metrics.heapAlloc.Set(float64(s.HeapAlloc))
	m.metrics.gcPause.Set(s.GCPauseMs)

	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
	return s
}

// Last returns the most recent sample
func (m *RuntimeMonitor) Last() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Log writes the most recent sample at info level
func (m *RuntimeMonitor) Log() {
	s := m.Last()
	m.logger.Info("Runtime stats",
		zap.Int("goroutines", s.Goroutines),
		zap.Uint64("heap_objects", s.HeapObjects),
		zap.Uint64("heap_alloc", s.HeapAlloc),
		zap.Float64("gc_pause_ms", s.GCPauseMs),
		zap.Uint32("num_gc", s.NumGC))
}
