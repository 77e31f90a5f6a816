// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector keeps lightweight in-process counters for the stats endpoint
type MetricsCollector struct {
	startTime time.Time

	requestsTotal  int64
	requestsFailed int64

	generationsTotal     int64
	generationsFailed    int64
	generationsSingle    int64
	generationsMultiStep int64

	exportsTotal  int64
	exportsFailed int64

	providerCalls    int64
	providerFailures int64

	mu              sync.Mutex
	generationNanos int64
	generationCount int64
}

var (
	metricsInstance *MetricsCollector
	metricsOnce     sync.Once
)

// GetMetrics returns the process-wide collector
func GetMetrics() *MetricsCollector {
	metricsOnce.Do(func() {
		metricsInstance = &MetricsCollector{startTime: time.Now()}
	})
	return metricsInstance
}

// RecordRequest counts an API request and whether it failed
func (m *MetricsCollector) RecordRequest(failed bool) {
	atomic.AddInt64(&m.requestsTotal, 1)
	if failed {
		atomic.AddInt64(&m.requestsFailed, 1)
	}
}

// RecordGeneration counts a generation attempt with its mode and duration
func (m *MetricsCollector) RecordGeneration(singleCall bool, duration time.Duration, failed bool) {
	atomic.AddInt64(&m.generationsTotal, 1)
	if singleCall {
		atomic.AddInt64(&m.generationsSingle, 1)
	} else {
		atomic.AddInt64(&m.generationsMultiStep, 1)
	}
	if failed {
		atomic.AddInt64(&m.generationsFailed, 1)
		return
	}

	m.mu.Lock()
	m.generationNanos += duration.Nanoseconds()
	m.generationCount++
	m.mu.Unlock()
}

// RecordExport counts an export attempt
func (m *MetricsCollector) RecordExport(failed bool) {
	atomic.AddInt64(&m.exportsTotal, 1)
	if failed {
		atomic.AddInt64(&m.exportsFailed, 1)
	}
}

// RecordProviderCall counts one model invocation
func (m *MetricsCollector) RecordProviderCall(failed bool) {
	atomic.AddInt64(&m.providerCalls, 1)
	if failed {
		atomic.AddInt64(&m.providerFailures, 1)
	}
}

// Snapshot returns a point-in-time view suitable for JSON rendering
func (m *MetricsCollector) Snapshot() map[string]interface{} {
	m.mu.Lock()
	var avgMillis float64
	if m.generationCount > 0 {
		avgMillis = float64(m.generationNanos) / float64(m.generationCount) / 1e6
	}
	m.mu.Unlock()

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"requests": map[string]int64{
			"total":  atomic.LoadInt64(&m.requestsTotal),
			"failed": atomic.LoadInt64(&m.requestsFailed),
		},
		"generations": map[string]interface{}{
			"total":           atomic.LoadInt64(&m.generationsTotal),
			"failed":          atomic.LoadInt64(&m.generationsFailed),
			"single_call":     atomic.LoadInt64(&m.generationsSingle),
			"multi_step":      atomic.LoadInt64(&m.generationsMultiStep),
			"avg_duration_ms": avgMillis,
		},
		"exports": map[string]int64{
			"total":  atomic.LoadInt64(&m.exportsTotal),
			"failed": atomic.LoadInt64(&m.exportsFailed),
		},
		"provider": map[string]int64{
			"calls":    atomic.LoadInt64(&m.providerCalls),
			"failures": atomic.LoadInt64(&m.providerFailures),
		},
	}
}
