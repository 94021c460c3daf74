package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "advisor_bff"

// Metrics records gateway behaviour: tag cache efficiency and the latency of
// calls to the record store and the advisor service. It satisfies
// cache.Observer, store.Observer and advisor.Observer.
type Metrics struct {
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	upstreamLat *prometheus.HistogramVec
	upstreamErr *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors on reg. pendingCount, when not
// nil, backs a gauge of chats awaiting an assistant reply.
func NewMetrics(reg prometheus.Registerer, pendingCount func() int) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Gateway queries answered from the tag cache.",
		}, []string{"endpoint"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Gateway queries that went to a collaborator.",
		}, []string{"endpoint"}),
		upstreamLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of calls to the record store and advisor service.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"service", "op", "status"}),
		upstreamErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "failures_total",
			Help:      "Upstream calls that failed in transport or answered 5xx.",
		}, []string{"service", "op"}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.upstreamLat, m.upstreamErr)

	if pendingCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_chats",
			Help:      "Chats currently waiting on an assistant reply.",
		}, func() float64 { return float64(pendingCount()) }))
	}
	return m
}

// CacheHit counts a cache hit for endpoint.
func (m *Metrics) CacheHit(endpoint string) { m.cacheHits.WithLabelValues(endpoint).Inc() }

// CacheMiss counts a cache miss for endpoint.
func (m *Metrics) CacheMiss(endpoint string) { m.cacheMisses.WithLabelValues(endpoint).Inc() }

// ObserveUpstream records one outbound call. Status 0 means the request never
// got a response.
func (m *Metrics) ObserveUpstream(service, op string, status int, elapsed time.Duration) {
	m.upstreamLat.WithLabelValues(service, op, statusLabel(status)).Observe(elapsed.Seconds())
	if status == 0 || status >= 500 {
		m.upstreamErr.WithLabelValues(service, op).Inc()
	}
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
