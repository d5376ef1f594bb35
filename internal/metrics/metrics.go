// Package metrics holds the Prometheus collectors for lookups, manual
// loading and page rendering. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	MatchesTotal     *prometheus.CounterVec
	ManualsLoaded    *prometheus.GaugeVec
	RenderCacheTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfref_searches_total",
				Help: "Total number of token lookups",
			},
			[]string{"action", "outcome"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfref_search_duration_seconds",
				Help:    "Lookup duration in seconds, including cold manual loads",
				Buckets: prometheus.ExponentialBuckets(0.005, 3, 9),
			},
			[]string{"action"},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfref_matches_total",
				Help: "Total number of heading matches returned",
			},
			[]string{"action"},
		),
		ManualsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pdfref_manuals_loaded",
				Help: "Manuals loaded per architecture key",
			},
			[]string{"arch"},
		),
		RenderCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfref_render_cache_total",
				Help: "Rendered page cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.SearchesTotal,
		m.SearchDuration,
		m.MatchesTotal,
		m.ManualsLoaded,
		m.RenderCacheTotal,
	)
	return m
}

// ObserveSearch records one finished lookup.
func (m *Metrics) ObserveSearch(action, outcome string, matches int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(action, outcome).Inc()
	m.SearchDuration.WithLabelValues(action).Observe(elapsed.Seconds())
	m.MatchesTotal.WithLabelValues(action).Add(float64(matches))
}

func (m *Metrics) SetManuals(arch string, n int) {
	if m == nil {
		return
	}
	m.ManualsLoaded.WithLabelValues(arch).Set(float64(n))
}

func (m *Metrics) RenderCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RenderCacheTotal.WithLabelValues(result).Inc()
}
