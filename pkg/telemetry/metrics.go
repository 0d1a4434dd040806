// Package telemetry holds the Prometheus metrics recorded by the frame
// pipeline, the acquisition workers and the event buses.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for blinkbreak.
type Metrics struct {
	// Frame pipeline
	FramesProcessed prometheus.Counter
	StepDuration    prometheus.Histogram
	WindowsSkipped  *prometheus.CounterVec
	ControlEvents   *prometheus.CounterVec
	Gauge           prometheus.Gauge

	// SSVEP reducers
	ReducerFlushes     *prometheus.CounterVec
	PeakToPeak         *prometheus.HistogramVec
	RecoveryInsertions *prometheus.CounterVec
	Verdicts           *prometheus.CounterVec

	// Acquisition
	BufferLength *prometheus.GaugeVec
	SensorRate   *prometheus.GaugeVec
	SensorStatus *prometheus.GaugeVec

	// Trials
	TrialsCompleted prometheus.Counter

	// Event buses
	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	ErrorsReported  *prometheus.CounterVec
}

var (
	defaultMu      sync.Mutex
	defaultMetrics *Metrics
)

// InitMetrics registers the metrics with registry, or with the default
// registerer if registry is nil. Registering twice on the same registry
// panics, so tests pass a fresh prometheus.NewRegistry().
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	// A frame at 60 fps has about 16ms; buckets run from 10µs to 50ms.
	stepBuckets := []float64{
		0.00001, 0.00002, 0.00005,
		0.0001, 0.0002, 0.0005,
		0.001, 0.002, 0.005,
		0.01, 0.0167, 0.05,
	}

	// Occipital amplitudes are in volts, typically tens of microvolts.
	p2pBuckets := prometheus.ExponentialBuckets(1e-6, 2, 12)

	return &Metrics{
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "blinkbreak_frames_processed_total",
			Help: "Frames run through the pipeline step",
		}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "blinkbreak_frame_step_duration_seconds",
			Help:    "Time spent in one pipeline step",
			Buckets: stepBuckets,
		}),
		WindowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_windows_skipped_total",
			Help: "Detector or reducer windows skipped, by component and reason",
		}, []string{"component", "reason"}),
		ControlEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_control_events_total",
			Help: "Blink control events emitted, by direction",
		}, []string{"direction"}),
		Gauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "blinkbreak_paddle_gauge_percent",
			Help: "Share of the planned paddle steps taken",
		}),

		ReducerFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_reducer_flushes_total",
			Help: "SSVEP reducer flushes, by stimulus side",
		}, []string{"side"}),
		PeakToPeak: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blinkbreak_reducer_peak_to_peak_volts",
			Help:    "Peak-to-peak amplitude of flushed batches",
			Buckets: p2pBuckets,
		}, []string{"lobe", "side"}),
		RecoveryInsertions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_reducer_recovery_insertions_total",
			Help: "Samples appended by the reducer error-recovery rule",
		}, []string{"side"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_ssvep_verdicts_total",
			Help: "Threshold-crossing classifications",
		}, []string{"verdict"}),

		BufferLength: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "blinkbreak_sensor_buffer_samples",
			Help: "Samples held per channel",
		}, []string{"channel"}),
		SensorRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "blinkbreak_sensor_rate_hz",
			Help: "Effective sample rate estimated from arrivals",
		}, []string{"source"}),
		SensorStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "blinkbreak_sensor_status",
			Help: "0 disconnected, 1 connected, 2 acquiring",
		}, []string{"source"}),

		TrialsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "blinkbreak_trials_completed_total",
			Help: "Calibration trials completed",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_events_published_total",
			Help: "Events published, by bus and type",
		}, []string{"bus", "event_type"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_events_dropped_total",
			Help: "Event deliveries dropped for slow subscribers",
		}, []string{"bus", "event_type"}),
		ErrorsReported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blinkbreak_errors_total",
			Help: "Errors absorbed by the pipeline, by code",
		}, []string{"code"}),
	}
}

// Default returns a process-wide instance registered with the default
// registerer, creating it on first use.
func Default() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = InitMetrics(nil)
	}
	return defaultMetrics
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Observe records the elapsed time in seconds to the given histogram.
func (t *Timer) Observe(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
