package graphcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rebuild outcomes recorded in the result label.
const (
	resultOK    = "ok"
	resultError = "error"
	resultStale = "stale"
)

// metrics holds the cache's Prometheus collectors. A nil *metrics records
// nothing.
type metrics struct {
	rebuilds *prometheus.CounterVec
	duration *prometheus.HistogramVec
	nodes    *prometheus.GaugeVec
	edges    *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papergraph",
			Name:      "rebuilds_total",
			Help:      "Graph rebuilds by graph and result (ok, error, stale)",
		}, []string{"graph", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "papergraph",
			Name:      "rebuild_duration_seconds",
			Help:      "Time from snapshot fetch to installed graph",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"graph"}),
		nodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "papergraph",
			Name:      "graph_nodes",
			Help:      "Keys in the cached graph",
		}, []string{"graph"}),
		edges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "papergraph",
			Name:      "graph_edges",
			Help:      "Edges in the cached graph",
		}, []string{"graph"}),
	}
}

func (m *metrics) observe(k Kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(k.String(), result).Inc()
	if result == resultOK {
		m.duration.WithLabelValues(k.String()).Observe(elapsed.Seconds())
	}
}

func (m *metrics) size(k Kind, nodes, edges int) {
	if m == nil {
		return
	}
	m.nodes.WithLabelValues(k.String()).Set(float64(nodes))
	m.edges.WithLabelValues(k.String()).Set(float64(edges))
}
