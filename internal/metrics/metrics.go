// Package metrics exposes Prometheus collectors for the RPC surface and the
// praise and membership components.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kudos"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	rpcInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight RPC calls.",
		},
	)

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of RPC calls by procedure and result code.",
		},
		[]string{"procedure", "code"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of RPC calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"procedure"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "rate_limited_total",
			Help:      "RPC calls rejected by the per-user rate limiter.",
		},
		[]string{"procedure"},
	)

	praiseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "praise",
			Name:      "send_total",
			Help:      "SendPraise outcomes: sent, cooldown, not_members, invalid, conflict, error.",
		},
		[]string{"outcome"},
	)

	membershipEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "membership",
			Name:      "events_total",
			Help:      "Successful membership transitions by event.",
		},
		[]string{"event"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Praise stats cache lookups by result: hit, miss, error.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		rpcInFlight,
		rpcRequests,
		rpcDuration,
		rateLimited,
		praiseOutcomes,
		membershipEvents,
		cacheLookups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RPCStarted marks an RPC as in flight and returns the function that records
// its completion.
func RPCStarted() func(procedure, code string) {
	start := time.Now()
	rpcInFlight.Inc()
	return func(procedure, code string) {
		rpcInFlight.Dec()
		rpcRequests.WithLabelValues(procedure, code).Inc()
		rpcDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
	}
}

// RecordRateLimited counts a call rejected by the rate limiter.
func RecordRateLimited(procedure string) {
	rateLimited.WithLabelValues(procedure).Inc()
}

// RecordPraise counts a SendPraise outcome.
func RecordPraise(outcome string) {
	praiseOutcomes.WithLabelValues(outcome).Inc()
}

// RecordMembershipEvent counts a membership transition such as "join" or "kick".
func RecordMembershipEvent(event string) {
	membershipEvents.WithLabelValues(event).Inc()
}

// RecordCacheLookup counts a stats cache lookup.
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
