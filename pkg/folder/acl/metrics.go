package acl

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for permission resolution.
//
// All metrics use the "arbor_acl_" prefix. Methods handle a nil receiver
// gracefully, so a nil *Metrics acts as a no-op when metrics are disabled.
type Metrics struct {
	// ResolutionDuration tracks time to resolve an effective permission.
	ResolutionDuration prometheus.Histogram

	// ResolutionTotal counts resolutions by outcome.
	// Labels: result=[visible, hidden]
	ResolutionTotal *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics creates and registers ACL Prometheus metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. The function
// is idempotent: metrics are registered exactly once even if called
// multiple times.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			ResolutionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "arbor_acl_resolution_duration_seconds",
					Help:    "Time to resolve an effective folder permission",
					Buckets: prometheus.DefBuckets,
				},
			),
			ResolutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arbor_acl_resolution_total",
					Help: "Total permission resolutions by outcome",
				},
				[]string{"result"},
			),
		}

		registerer.MustRegister(
			m.ResolutionDuration,
			m.ResolutionTotal,
		)

		metricsInstance = m
	})

	return metricsInstance
}

// ObserveResolution records one resolution with its duration and outcome.
func (m *Metrics) ObserveResolution(duration time.Duration, eff Effective) {
	if m == nil {
		return
	}
	m.ResolutionDuration.Observe(duration.Seconds())
	if eff.Visible() {
		m.ResolutionTotal.WithLabelValues("visible").Inc()
	} else {
		m.ResolutionTotal.WithLabelValues("hidden").Inc()
	}
}
