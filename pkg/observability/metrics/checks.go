package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docprobe"

// Outcome label values for docprobe_check_assertions_total.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
)

// CheckCollectors groups the per-check metrics.
type CheckCollectors struct {
	assertions *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastRun    prometheus.Gauge
}

func newCheckCollectors() *CheckCollectors {
	return &CheckCollectors{
		assertions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_assertions_total",
				Help:      "Assertions evaluated per check, by outcome.",
			},
			[]string{"check", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_failures_total",
				Help:      "Failed checks by failure kind.",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Time spent in each check's operation.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"check"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last checklist run finished.",
		}),
	}
}

// ObserveCheck records one executed check. kind is empty when nothing failed.
func (c *CheckCollectors) ObserveCheck(check string, passed, failed int, kind string, took time.Duration) {
	if c == nil {
		return
	}
	if passed > 0 {
		c.assertions.WithLabelValues(check, OutcomePass).Add(float64(passed))
	}
	if failed > 0 {
		c.assertions.WithLabelValues(check, OutcomeFail).Add(float64(failed))
	}
	if kind != "" {
		c.failures.WithLabelValues(kind).Inc()
	}
	c.duration.WithLabelValues(check).Observe(took.Seconds())
}

// MarkRunFinished sets the last-run gauge to t.
func (c *CheckCollectors) MarkRunFinished(t time.Time) {
	if c == nil {
		return
	}
	c.lastRun.Set(float64(t.Unix()))
}
