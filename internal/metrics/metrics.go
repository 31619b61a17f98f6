// Package metrics provides Prometheus collectors for the synthesis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tts_playground"

// Label values.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultCorrupt = "corrupt"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups       *prometheus.CounterVec
	cacheWriteFailures *prometheus.CounterVec
	remoteCalls        *prometheus.CounterVec
	pacingWait         prometheus.Counter
	synthesisDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of audio cache lookups",
			},
			[]string{"purpose", "result"}, // result: hit, miss, corrupt
		),
		cacheWriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_failures_total",
				Help:      "Total number of audio cache writes that failed and were skipped",
			},
			[]string{"purpose"},
		),
		remoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of remote speech synthesis calls",
			},
			[]string{"outcome"}, // outcome: success, error
		),
		pacingWait: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pacing_wait_seconds_total",
				Help:      "Total time spent waiting for the request rate ceiling",
			},
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Duration of whole synthesis requests in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
	}

	collectors := []prometheus.Collector{
		m.cacheLookups,
		m.cacheWriteFailures,
		m.remoteCalls,
		m.pacingWait,
		m.synthesisDuration,
	}

	for _, collector := range collectors {
		err := reg.Register(collector)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CacheLookup records the result of a cache lookup for purpose.
func (m *Metrics) CacheLookup(purpose, result string) {
	if m == nil {
		return
	}

	m.cacheLookups.WithLabelValues(purpose, result).Inc()
}

// CacheWriteFailed records a skipped cache write.
func (m *Metrics) CacheWriteFailed(purpose string) {
	if m == nil {
		return
	}

	m.cacheWriteFailures.WithLabelValues(purpose).Inc()
}

// RemoteCall records one remote synthesis call.
func (m *Metrics) RemoteCall(outcome string) {
	if m == nil {
		return
	}

	m.remoteCalls.WithLabelValues(outcome).Inc()
}

// PacingWait adds time spent waiting on the rate ceiling.
func (m *Metrics) PacingWait(d time.Duration) {
	if m == nil {
		return
	}

	m.pacingWait.Add(d.Seconds())
}

// ObserveSynthesis records the duration of a whole synthesis request.
func (m *Metrics) ObserveSynthesis(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.synthesisDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}

	return OutcomeSuccess
}
