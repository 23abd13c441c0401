package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRPCMetricsLabelsByStatus(t *testing.T) {
	m := RPC()
	before := testutil.ToFloat64(m.requests.WithLabelValues("rentals", "rentals_claim", "422"))
	m.Observe("rentals", "rentals_claim", 422, 5*time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("rentals", "rentals_claim", "422")); got-before != 1 {
		t.Fatalf("expected one 422 request, got %v", got-before)
	}

	throttled := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "rate_limit"))
	m.RecordThrottle("", "rate_limit")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "rate_limit")); got-throttled != 1 {
		t.Fatalf("expected throttle under the unknown module")
	}

	streams := testutil.ToFloat64(m.streams)
	m.StreamOpened()
	m.StreamClosed()
	if testutil.ToFloat64(m.streams) != streams {
		t.Fatalf("stream gauge did not return to %v", streams)
	}
}

func TestChainMetricsRecordBlock(t *testing.T) {
	m := Chain()
	failed := testutil.ToFloat64(m.calls.WithLabelValues("failed"))
	ok := testutil.ToFloat64(m.calls.WithLabelValues("success"))
	m.RecordBlock(12, 3, 1)
	if got := testutil.ToFloat64(m.calls.WithLabelValues("failed")); got-failed != 1 {
		t.Fatalf("expected one failed call, got %v", got-failed)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("success")); got-ok != 2 {
		t.Fatalf("expected two successful calls, got %v", got-ok)
	}
	if testutil.ToFloat64(m.height) != 12 {
		t.Fatalf("height gauge not updated")
	}

	events := testutil.ToFloat64(m.events.WithLabelValues("rentals.asset_rented"))
	m.RecordEvent("Rentals.Asset_Rented")
	if got := testutil.ToFloat64(m.events.WithLabelValues("rentals.asset_rented")); got-events != 1 {
		t.Fatalf("expected normalized event type counter")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var rpc *RPCMetrics
	rpc.Observe("m", "x", 200, time.Second)
	rpc.RecordThrottle("m", "r")
	rpc.StreamOpened()
	rpc.StreamClosed()
	var chain *ChainMetrics
	chain.RecordBlock(1, 1, 0)
	chain.RecordEvent("x")
}
