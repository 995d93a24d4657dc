// Package metrics exposes checklist results as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry owns a private Prometheus registry holding the check collectors.
type Registry struct {
	registry *prometheus.Registry
	checks   *CheckCollectors
}

// NewRegistry creates a registry with the check collectors and Go runtime metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	checks := newCheckCollectors()
	reg.MustRegister(checks.assertions, checks.failures, checks.duration, checks.lastRun)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry: reg,
		checks:   checks,
	}
}

// Checks returns the collectors the checklist runner records into.
func (r *Registry) Checks() *CheckCollectors {
	return r.checks
}

// Register registers an additional collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// Handler exposes the registry in Prometheus text or OpenMetrics format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the current values to a Pushgateway under job, replacing the previous
// push for the same grouping.
func (r *Registry) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if url == "" {
		return fmt.Errorf("pushgateway URL is required")
	}
	if job == "" {
		return fmt.Errorf("pushgateway job is required")
	}
	pusher := push.New(url, job).Gatherer(r.registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
