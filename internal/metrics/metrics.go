package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the transcription service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AudioSeconds    *prometheus.CounterVec

	// Decoder metrics
	GenerationsTotal   *prometheus.CounterVec
	DecodeSteps        prometheus.Histogram
	GenerationDuration prometheus.Histogram

	DebugSaveFailures prometheus.Counter

	// Websocket metrics
	StreamsActive prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every metric registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "moonshine"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of transcription requests by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end transcription request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"channel"},
	)

	audioSeconds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_seconds_total",
			Help:      "Total seconds of audio submitted for transcription",
		},
		[]string{"channel"},
	)

	generationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Completed decode loops by stop reason",
		},
		[]string{"stop"},
	)

	decodeSteps := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_steps",
			Help:      "Decoder steps executed per generation",
			Buckets:   []float64{6, 12, 24, 48, 96, 194, 448},
		},
	)

	generationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Encoder plus decode loop duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	debugSaveFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debug_save_failures_total",
			Help:      "Debug audio archives that could not be written",
		},
	)

	streamsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_streams_active",
			Help:      "Number of open websocket transcription streams",
		},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		audioSeconds,
		generationsTotal,
		decodeSteps,
		generationDuration,
		debugSaveFailures,
		streamsActive,
	)

	return &Metrics{
		registry:           registry,
		RequestsTotal:      requestsTotal,
		RequestDuration:    requestDuration,
		AudioSeconds:       audioSeconds,
		GenerationsTotal:   generationsTotal,
		DecodeSteps:        decodeSteps,
		GenerationDuration: generationDuration,
		DebugSaveFailures:  debugSaveFailures,
		StreamsActive:      streamsActive,
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a finished request. outcome is "ok" or an error kind.
func (m *Metrics) RecordRequest(channel, outcome string, duration time.Duration, audioSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(channel, outcome).Inc()
	m.RequestDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if audioSeconds > 0 {
		m.AudioSeconds.WithLabelValues(channel).Add(audioSeconds)
	}
}

// ObserveGeneration records one decode loop.
func (m *Metrics) ObserveGeneration(steps int, stoppedOnEOS bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	stop := "budget"
	if stoppedOnEOS {
		stop = "eos"
	}
	m.GenerationsTotal.WithLabelValues(stop).Inc()
	m.DecodeSteps.Observe(float64(steps))
	m.GenerationDuration.Observe(elapsed.Seconds())
}

// DebugSaveFailed counts a debug archive write that was dropped.
func (m *Metrics) DebugSaveFailed() {
	if m == nil {
		return
	}
	m.DebugSaveFailures.Inc()
}

// StreamOpened records a websocket stream starting.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamsActive.Inc()
}

// StreamClosed records a websocket stream ending.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.StreamsActive.Dec()
}
