package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CacheCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.CacheMiss("getUserChats")
	m.CacheHit("getUserChats")
	m.CacheHit("getUserChats")
	m.CacheHit("getCourses")

	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("getUserChats")); got != 2 {
		t.Fatalf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cacheMisses.WithLabelValues("getUserChats")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("getCourses")); got != 1 {
		t.Fatalf("course hits = %v, want 1", got)
	}
}

func TestMetrics_ObserveUpstream(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), nil)

	m.ObserveUpstream("store", "GET /chats", 200, 20*time.Millisecond)
	m.ObserveUpstream("advisor", "POST /chat", 502, time.Second)
	m.ObserveUpstream("advisor", "POST /chat", 0, time.Second)
	m.ObserveUpstream("store", "GET /chats/:id", 404, time.Millisecond)

	if n := testutil.CollectAndCount(m.upstreamLat); n != 4 {
		t.Fatalf("latency series = %d, want 4", n)
	}
	if got := testutil.ToFloat64(m.upstreamErr.WithLabelValues("advisor", "POST /chat")); got != 2 {
		t.Fatalf("advisor failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.upstreamErr.WithLabelValues("store", "GET /chats/:id")); got != 0 {
		t.Fatalf("404 counted as failure: %v", got)
	}
}

func TestMetrics_PendingGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 0
	NewMetrics(reg, func() int { return n })

	n = 3
	expected := `
# HELP advisor_bff_pending_chats Chats currently waiting on an assistant reply.
# TYPE advisor_bff_pending_chats gauge
advisor_bff_pending_chats 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "advisor_bff_pending_chats"); err != nil {
		t.Fatal(err)
	}
}

func TestStatusLabel(t *testing.T) {
	if statusLabel(0) != "error" || statusLabel(503) != "503" {
		t.Fatalf("unexpected labels %q %q", statusLabel(0), statusLabel(503))
	}
}
