package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRentalsMetricsCounters(t *testing.T) {
	m := Rentals()
	before := testutil.ToFloat64(m.settlements.WithLabelValues("listing", "extension"))
	m.ObserveSettlement("listing", true)
	after := testutil.ToFloat64(m.settlements.WithLabelValues("listing", "extension"))
	if after-before != 1 {
		t.Fatalf("expected extension counter to increase by 1, got %v", after-before)
	}

	beforeFail := testutil.ToFloat64(m.failures.WithLabelValues("unknown"))
	m.ObserveFailure("")
	if got := testutil.ToFloat64(m.failures.WithLabelValues("unknown")); got-beforeFail != 1 {
		t.Fatalf("expected unknown failure counter to increase")
	}
}

func TestRentalsMetricsNilSafe(t *testing.T) {
	var m *RentalsMetrics
	m.ObserveSettlement("offer", false)
	m.ObserveFailure("X")
	m.ObserveClaim()
	m.ObserveNonceBump("signer")
	m.ObserveRelay(true)
	m.ObservePayment(1, 2)
}
