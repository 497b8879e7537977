// Package metrics exposes Prometheus collectors for update check cycles,
// retrievals and installs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
	OutcomeFailed  = "failed"
)

var (
	// Check metrics
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_update_checks_total",
			Help: "Total number of update checks by checker and outcome",
		},
		[]string{"checker", "outcome"},
	)

	CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_update_check_duration_seconds",
			Help:    "Time taken by a single checker to produce its results",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"checker"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_update_cycle_duration_seconds",
			Help:    "Time taken by a full check cycle including consolidation",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpdatesAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_updates_available",
			Help: "Number of components with an update available after the last cycle",
		},
	)

	// Retrieval and install metrics
	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_update_retrievals_total",
			Help: "Total number of update retrievals by outcome",
		},
		[]string{"outcome"},
	)

	InstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_update_installs_total",
			Help: "Total number of update installs by component kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		CheckDuration,
		CycleDuration,
		UpdatesAvailable,
		RetrievalsTotal,
		InstallsTotal,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds on o.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
