// Package metrics holds the Prometheus collectors for the proxy and the quest views.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/questcard/internal/quest"
)

// Metrics holds all collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	ProxyRequests *prometheus.CounterVec
	QuestFetches  *prometheus.CounterVec
	FetchDuration prometheus.Histogram
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcard_proxy_requests_total",
				Help: "Requests forwarded to the upstream quest API, by response status",
			},
			[]string{"status"},
		),
		QuestFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcard_quest_fetches_total",
				Help: "Quest fetches settled by views, by final state",
			},
			[]string{"state"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "questcard_quest_fetch_duration_seconds",
				Help:    "Time from issuing a quest fetch to its commit",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// ObserveProxy records one proxied request.
func (m *Metrics) ObserveProxy(status int) {
	m.ProxyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// CommitHook returns a view hook recording fetch outcomes.
func (m *Metrics) CommitHook() quest.CommitHook {
	return func(c quest.Commit) {
		m.QuestFetches.WithLabelValues(c.State.String()).Inc()
		m.FetchDuration.Observe(c.Duration.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
