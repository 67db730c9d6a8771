package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "murmur_mock"

// metrics tracks what the mock server streamed. Each Server owns its own
// registry so several can run in one process.
type metrics struct {
	registry *prometheus.Registry

	streamsActive  prometheus.Gauge
	streamsTotal   *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
	streamDuration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "streams_active",
			Help:      "Number of replies currently being streamed",
		}),
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "streams_total",
			Help:      "Total number of streamed replies by outcome",
		}, []string{"outcome"}), // outcome: done, error, aborted
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total number of events written by type",
		}, []string{"type"}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from first to last event of a reply",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}

	m.registry.MustRegister(m.streamsActive, m.streamsTotal, m.eventsTotal, m.streamDuration)
	return m
}

// streamStarted marks a reply as in flight and returns the function that
// records its end.
func (m *metrics) streamStarted() func(outcome string) {
	start := time.Now()
	m.streamsActive.Inc()
	return func(outcome string) {
		m.streamsActive.Dec()
		m.streamsTotal.WithLabelValues(outcome).Inc()
		m.streamDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *metrics) eventWritten(eventType string) {
	m.eventsTotal.WithLabelValues(eventType).Inc()
}
