package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ReserveMetrics records reserve engine activity for the /metrics endpoint.
type ReserveMetrics struct {
	purchases     prometheus.Counter
	loansOpened   prometheus.Counter
	loansClosed   prometheus.Counter
	stabilization *prometheus.CounterVec
	inversionFail prometheus.Counter
}

var (
	reserveMetricsOnce sync.Once
	reserveRegistry    *ReserveMetrics
)

// Reserve returns the lazily-initialised reserve metrics registry.
func Reserve() *ReserveMetrics {
	reserveMetricsOnce.Do(func() {
		reserveRegistry = &ReserveMetrics{
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reserve",
				Subsystem: "curve",
				Name:      "purchases_total",
				Help:      "Total bonding-curve purchases settled.",
			}),
			loansOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reserve",
				Subsystem: "loans",
				Name:      "opened_total",
				Help:      "Total collateralized positions opened.",
			}),
			loansClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reserve",
				Subsystem: "loans",
				Name:      "closed_total",
				Help:      "Total positions redeemed and tombstoned.",
			}),
			stabilization: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reserve",
				Subsystem: "stabilizer",
				Name:      "actions_total",
				Help:      "Stabilization attempts segmented by direction and outcome.",
			}, []string{"direction", "outcome"}),
			inversionFail: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reserve",
				Subsystem: "curve",
				Name:      "inversion_failures_total",
				Help:      "Curve inversions that exceeded the tranche cap.",
			}),
		}
		prometheus.MustRegister(
			reserveRegistry.purchases,
			reserveRegistry.loansOpened,
			reserveRegistry.loansClosed,
			reserveRegistry.stabilization,
			reserveRegistry.inversionFail,
		)
	})
	return reserveRegistry
}

// RecordPurchase counts one settled purchase.
func (m *ReserveMetrics) RecordPurchase() {
	if m == nil {
		return
	}
	m.purchases.Inc()
}

// RecordLoanOpened counts one opened position.
func (m *ReserveMetrics) RecordLoanOpened() {
	if m == nil {
		return
	}
	m.loansOpened.Inc()
}

// RecordLoanClosed counts one redeemed position.
func (m *ReserveMetrics) RecordLoanClosed() {
	if m == nil {
		return
	}
	m.loansClosed.Inc()
}

// RecordStabilization counts one inflate/deflate attempt with its outcome.
func (m *ReserveMetrics) RecordStabilization(direction, outcome string) {
	if m == nil {
		return
	}
	m.stabilization.WithLabelValues(direction, outcome).Inc()
}

// RecordInversionFailure counts one capped-out curve inversion.
func (m *ReserveMetrics) RecordInversionFailure() {
	if m == nil {
		return
	}
	m.inversionFail.Inc()
}
