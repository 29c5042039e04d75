package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution tiers, used as metric label values.
const (
	tierSession    = "session"
	tierPersistent = "persistent"
	tierKnowledge  = "knowledge_base"
	tierScrape     = "scrape"
	tierStale      = "stale_fallback"
	tierEstimate   = "estimate"
)

// Metrics counts resolutions per tier and adapter failures. Registered on an
// injected registerer so tests can use throwaway registries.
type Metrics struct {
	resolveTotal    *prometheus.CounterVec
	adapterFailures *prometheus.CounterVec
	staleRefreshes  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		resolveTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tankodb_resolve_total",
			Help: "Resolutions completed, by the tier that produced the result.",
		}, []string{"tier"}),
		adapterFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tankodb_adapter_failures_total",
			Help: "Adapter fetches that returned an error or timed out.",
		}, []string{"adapter"}),
		staleRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tankodb_stale_refresh_total",
			Help: "Cache entries found stale and re-resolved.",
		}),
	}
}

func (m *Metrics) resolved(tier string) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) adapterFailed(adapter string) {
	if m == nil {
		return
	}
	m.adapterFailures.WithLabelValues(adapter).Inc()
}

func (m *Metrics) staleFound() {
	if m == nil {
		return
	}
	m.staleRefreshes.Inc()
}
