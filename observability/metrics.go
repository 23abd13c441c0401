package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics tracks JSON-RPC traffic by module and method.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	streams   prometheus.Gauge
}

// ChainMetrics tracks sealed blocks, applied calls and committed events.
type ChainMetrics struct {
	blocks *prometheus.CounterVec
	calls  *prometheus.CounterVec
	events *prometheus.CounterVec
	height prometheus.Gauge
}

var (
	rpcOnce    sync.Once
	rpcMetrics *RPCMetrics

	chainOnce    sync.Once
	chainMetrics *ChainMetrics
)

// RPC returns the process-wide RPC metrics, registering them on first use.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcMetrics = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentalchain",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by module, method and HTTP status.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rentalchain",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "JSON-RPC handler latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentalchain",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests refused by a throttling policy.",
			}, []string{"module", "reason"}),
			streams: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rentalchain",
				Subsystem: "rpc",
				Name:      "event_streams",
				Help:      "Open websocket event streams.",
			}),
		}
		prometheus.MustRegister(rpcMetrics.requests, rpcMetrics.latency, rpcMetrics.throttles, rpcMetrics.streams)
	})
	return rpcMetrics
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}

// Observe records a served request with the HTTP status written for it.
func (m *RPCMetrics) Observe(module, method string, status int, took time.Duration) {
	if m == nil {
		return
	}
	module, method = orUnknown(module), orUnknown(method)
	m.requests.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(module, method).Observe(took.Seconds())
}

// RecordThrottle counts a request refused for reason, e.g. "rate_limit".
func (m *RPCMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(orUnknown(module), orUnknown(reason)).Inc()
}

// StreamOpened counts a websocket event stream as live.
func (m *RPCMetrics) StreamOpened() {
	if m != nil {
		m.streams.Inc()
	}
}

// StreamClosed releases a stream counted by StreamOpened.
func (m *RPCMetrics) StreamClosed() {
	if m != nil {
		m.streams.Dec()
	}
}

// Chain returns the process-wide chain metrics, registering them on first use.
func Chain() *ChainMetrics {
	chainOnce.Do(func() {
		chainMetrics = &ChainMetrics{
			blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentalchain",
				Subsystem: "chain",
				Name:      "blocks_sealed_total",
				Help:      "Sealed blocks, split into genesis and regular blocks.",
			}, []string{"kind"}),
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentalchain",
				Subsystem: "chain",
				Name:      "calls_total",
				Help:      "Calls sealed into blocks by receipt status.",
			}, []string{"status"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentalchain",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed chain events by type.",
			}, []string{"type"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rentalchain",
				Subsystem: "chain",
				Name:      "height",
				Help:      "Height of the last sealed block.",
			}),
		}
		prometheus.MustRegister(chainMetrics.blocks, chainMetrics.calls, chainMetrics.events, chainMetrics.height)
	})
	return chainMetrics
}

// RecordBlock records a sealed block holding calls, failed of which reverted.
func (m *ChainMetrics) RecordBlock(height uint64, calls, failed int) {
	if m == nil {
		return
	}
	kind := "block"
	if height == 0 {
		kind = "genesis"
	}
	m.blocks.WithLabelValues(kind).Inc()
	m.calls.WithLabelValues("success").Add(float64(calls - failed))
	m.calls.WithLabelValues("failed").Add(float64(failed))
	m.height.Set(float64(height))
}

// RecordEvent counts one committed event of the given type.
func (m *ChainMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(orUnknown(strings.ToLower(eventType))).Inc()
}
