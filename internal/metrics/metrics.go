// Package metrics provides the Prometheus collectors for the recognition pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all Prometheus metrics for recognition sessions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesTotal           prometheus.Counter
	MissedDetectionsTotal prometheus.Counter
	DetectorErrorsTotal   prometheus.Counter
	WindowsTotal          *prometheus.CounterVec
	RejectedTotal         prometheus.Counter
	TransitionsTotal      *prometheus.CounterVec
	ClassificationErrors  prometheus.Counter
	ClassifyDuration      prometheus.Histogram
	Confidence            prometheus.Gauge
	SessionRunning        prometheus.Gauge
}

// New creates the session metrics and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_frames_total",
		Help: "Total number of frames fed to a running session.",
	})
	m.MissedDetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_missed_detections_total",
		Help: "Frames where no hand was found, including detector errors.",
	})
	m.DetectorErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_detector_errors_total",
		Help: "Landmark extraction failures treated as absence.",
	})
	m.WindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signbridge_windows_total",
			Help: "Full windows partitioned by outcome (classified, skipped, dropped, replaced).",
		},
		[]string{"outcome"},
	)
	m.RejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_low_confidence_total",
		Help: "Predictions rejected for falling below the confidence threshold.",
	})
	m.TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signbridge_transitions_total",
			Help: "Committed label transitions partitioned by new label.",
		},
		[]string{"label"},
	)
	m.ClassificationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signbridge_classification_errors_total",
		Help: "Fatal classification failures that stopped a session.",
	})
	m.ClassifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "signbridge_classify_duration_seconds",
		Help:    "Time taken to classify one window.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})
	m.Confidence = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signbridge_display_confidence",
		Help: "Confidence of the currently displayed label.",
	})
	m.SessionRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signbridge_session_running",
		Help: "Whether a recognition session is running (1) or not (0).",
	})
}

// RecordFrame counts one fed frame and whether a hand was missing.
func (m *Metrics) RecordFrame(missed, detectorErr bool) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	if missed {
		m.MissedDetectionsTotal.Inc()
	}
	if detectorErr {
		m.DetectorErrorsTotal.Inc()
	}
}

// RecordWindow counts a full window by outcome.
func (m *Metrics) RecordWindow(outcome string) {
	if m == nil {
		return
	}
	m.WindowsTotal.WithLabelValues(outcome).Inc()
}

// RecordClassification records the latency of a classifier call and its result.
func (m *Metrics) RecordClassification(seconds float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ClassificationErrors.Inc()
		return
	}
	m.ClassifyDuration.Observe(seconds)
}

// RecordRejected counts a low-confidence prediction.
func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.RejectedTotal.Inc()
}

// RecordTransition counts a committed transition to label.
func (m *Metrics) RecordTransition(label string, confidence float64) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(label).Inc()
	m.Confidence.Set(confidence)
}

// SetConfidence updates the displayed confidence.
func (m *Metrics) SetConfidence(confidence float64) {
	if m == nil {
		return
	}
	m.Confidence.Set(confidence)
}

// SetRunning flags whether a session is running.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SessionRunning.Set(1)
	} else {
		m.SessionRunning.Set(0)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.FramesTotal.Desc()
	ch <- m.MissedDetectionsTotal.Desc()
	ch <- m.DetectorErrorsTotal.Desc()
	m.WindowsTotal.Describe(ch)
	ch <- m.RejectedTotal.Desc()
	m.TransitionsTotal.Describe(ch)
	ch <- m.ClassificationErrors.Desc()
	ch <- m.ClassifyDuration.Desc()
	ch <- m.Confidence.Desc()
	ch <- m.SessionRunning.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.FramesTotal
	ch <- m.MissedDetectionsTotal
	ch <- m.DetectorErrorsTotal
	m.WindowsTotal.Collect(ch)
	ch <- m.RejectedTotal
	m.TransitionsTotal.Collect(ch)
	ch <- m.ClassificationErrors
	ch <- m.ClassifyDuration
	ch <- m.Confidence
	ch <- m.SessionRunning
}
