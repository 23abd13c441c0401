package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type RentalsMetrics struct {
	settlements *prometheus.CounterVec
	failures    *prometheus.CounterVec
	claims      prometheus.Counter
	nonceBumps  *prometheus.CounterVec
	relayed     *prometheus.CounterVec
	volume      *prometheus.CounterVec
}

var (
	rentalsOnce     sync.Once
	rentalsRegistry *RentalsMetrics
)

func Rentals() *RentalsMetrics {
	rentalsOnce.Do(func() {
		rentalsRegistry = &RentalsMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentals_settlements_total",
				Help: "Count of settled rentals by entry path and kind (new or extension).",
			}, []string{"path", "kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentals_failures_total",
				Help: "Count of rejected rentals calls by stable error identifier.",
			}, []string{"reason"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rentals_claims_total",
				Help: "Count of assets claimed back by their lessor.",
			}),
			nonceBumps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentals_nonce_bumps_total",
				Help: "Count of nonce increments by scope.",
			}, []string{"scope"}),
			relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentals_meta_transactions_total",
				Help: "Count of relayed meta transactions by outcome.",
			}, []string{"outcome"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rentals_payment_volume",
				Help: "Cumulative payment volume settled, split by recipient role.",
			}, []string{"recipient"}),
		}
		prometheus.MustRegister(
			rentalsRegistry.settlements,
			rentalsRegistry.failures,
			rentalsRegistry.claims,
			rentalsRegistry.nonceBumps,
			rentalsRegistry.relayed,
			rentalsRegistry.volume,
		)
	})
	return rentalsRegistry
}

func (m *RentalsMetrics) ObserveSettlement(path string, extension bool) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	kind := "new"
	if extension {
		kind = "extension"
	}
	m.settlements.WithLabelValues(path, kind).Inc()
}

func (m *RentalsMetrics) ObserveFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.failures.WithLabelValues(reason).Inc()
}

func (m *RentalsMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

func (m *RentalsMetrics) ObserveNonceBump(scope string) {
	if m == nil {
		return
	}
	m.nonceBumps.WithLabelValues(scope).Inc()
}

func (m *RentalsMetrics) ObserveRelay(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "reverted"
	}
	m.relayed.WithLabelValues(outcome).Inc()
}

// ObservePayment records settled amounts. Values beyond float64 precision are
// approximated, which is acceptable for dashboards.
func (m *RentalsMetrics) ObservePayment(lessorShare, collectorShare float64) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues("lessor").Add(lessorShare)
	m.volume.WithLabelValues("collector").Add(collectorShare)
}
