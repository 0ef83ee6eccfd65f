package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry      *prometheus.Registry
	writesTotal   *prometheus.CounterVec
	queriesTotal  *prometheus.CounterVec
	replaysTotal  prometheus.Counter
	purchaseState prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buymyroom_writes_total",
		Help: "On-chain write submissions by operation kind and outcome",
	}, []string{"kind", "status"})

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buymyroom_queries_total",
		Help: "Contract reads by operation kind and outcome",
	}, []string{"kind", "status"})

	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buymyroom_journal_replays_total",
		Help: "Write requests answered from the submission journal",
	})

	purchase := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "buymyroom_purchase_state",
		Help: "Current purchase machine state (0 idle through 4 buying)",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(writes, queries, replays, purchase)

	return &metricsRegistry{
		registry:      r,
		writesTotal:   writes,
		queriesTotal:  queries,
		replaysTotal:  replays,
		purchaseState: purchase,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incWrite(kind, status string) {
	m.writesTotal.WithLabelValues(kind, status).Inc()
}

func (m *metricsRegistry) incQuery(kind, status string) {
	m.queriesTotal.WithLabelValues(kind, status).Inc()
}

func (m *metricsRegistry) incReplay() {
	m.replaysTotal.Inc()
}

func (m *metricsRegistry) setPurchaseState(state int) {
	m.purchaseState.Set(float64(state))
}
