package folder

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics tracks Prometheus metrics for name reservations.
//
// All metrics use the "arbor_reservation_" prefix. Methods handle a nil
// receiver gracefully, so a nil *ReservationMetrics acts as a no-op.
type ReservationMetrics struct {
	// ClaimTotal counts claims by outcome.
	// Labels: result=[claimed, conflict]
	ClaimTotal *prometheus.CounterVec

	// SweepDeletedTotal counts reservation rows removed by sweeps.
	SweepDeletedTotal prometheus.Counter
}

var (
	reservationMetricsOnce     sync.Once
	reservationMetricsInstance *ReservationMetrics
)

// NewReservationMetrics creates and registers reservation metrics.
// Idempotent; nil registerer selects prometheus.DefaultRegisterer.
func NewReservationMetrics(registerer prometheus.Registerer) *ReservationMetrics {
	reservationMetricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &ReservationMetrics{
			ClaimTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "arbor_reservation_claim_total",
					Help: "Total name reservation claims by outcome",
				},
				[]string{"result"},
			),
			SweepDeletedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "arbor_reservation_sweep_deleted_total",
					Help: "Total expired reservation rows removed by sweeps",
				},
			),
		}

		registerer.MustRegister(m.ClaimTotal, m.SweepDeletedTotal)
		reservationMetricsInstance = m
	})

	return reservationMetricsInstance
}

// ObserveClaim records one claim attempt.
func (m *ReservationMetrics) ObserveClaim(claimed bool) {
	if m == nil {
		return
	}
	if claimed {
		m.ClaimTotal.WithLabelValues("claimed").Inc()
	} else {
		m.ClaimTotal.WithLabelValues("conflict").Inc()
	}
}

// ObserveSweep records the row count removed by one sweep.
func (m *ReservationMetrics) ObserveSweep(deleted int64) {
	if m == nil {
		return
	}
	m.SweepDeletedTotal.Add(float64(deleted))
}
