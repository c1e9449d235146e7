// Package metrics exports cache, coalescer, offline worker and relay
// counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. It satisfies ttlcache.Metrics,
// coalesce.Metrics, fincache.Metrics and relay.Metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	// TTL cache
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheEvicted prometheus.Counter
	CacheExpired prometheus.Counter

	// Coalescer
	CallsTotal  *prometheus.CounterVec
	CallsShared prometheus.Counter

	// Offline worker
	ResponsesServed *prometheus.CounterVec

	// Relay
	RelayRequests *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that found a live entry",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found nothing or an expired entry",
		}),
		CacheEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries dropped to stay under capacity",
		}),
		CacheExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "expirations_total",
			Help:      "Entries removed after their TTL elapsed",
		}),

		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coalesce",
			Name:      "calls_total",
			Help:      "Coalesced calls by whether the result was shared",
		}, []string{"shared"}),
		CallsShared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coalesce",
			Name:      "shared_total",
			Help:      "Calls answered by another caller's network request",
		}),

		ResponsesServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "responses_total",
			Help:      "Responses served by the offline worker by strategy and source",
		}, []string{"strategy", "source"}),

		RelayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Requests answered by the CORS relay by method and status code",
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) Hit()    { m.CacheHits.Inc() }
func (m *Metrics) Miss()   { m.CacheMisses.Inc() }
func (m *Metrics) Evict()  { m.CacheEvicted.Inc() }
func (m *Metrics) Expire() { m.CacheExpired.Inc() }

// Coalesced records one coalescer call.
func (m *Metrics) Coalesced(shared bool) {
	if shared {
		m.CallsTotal.WithLabelValues("true").Inc()
		m.CallsShared.Inc()
		return
	}
	m.CallsTotal.WithLabelValues("false").Inc()
}

// Served records one response of the offline worker.
func (m *Metrics) Served(strategy, source string) {
	m.ResponsesServed.WithLabelValues(strategy, source).Inc()
}

// Relayed records one request answered by the relay.
func (m *Metrics) Relayed(method string, status int) {
	m.RelayRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
