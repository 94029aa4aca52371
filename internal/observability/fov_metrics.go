package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FOVMetrics tracks health of the foveated context pipeline.
type FOVMetrics struct {
	tokensBySection  prometheus.GaugeVec
	compressions     prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	summaryFallbacks prometheus.Counter
	expansions       prometheus.CounterVec
}

var (
	defaultFOVMetrics     *FOVMetrics
	defaultFOVMetricsOnce sync.Once
)

// NewFOVMetrics builds a FOVMetrics recorder using the default registry.
func NewFOVMetrics() *FOVMetrics {
	defaultFOVMetricsOnce.Do(func() {
		defaultFOVMetrics = newFOVMetrics(prometheus.DefaultRegisterer)
	})
	return defaultFOVMetrics
}

// NewFOVMetricsWithRegisterer allows tests to provide a dedicated registry.
func NewFOVMetricsWithRegisterer(reg prometheus.Registerer) *FOVMetrics {
	return newFOVMetrics(reg)
}

func newFOVMetrics(reg prometheus.Registerer) *FOVMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &FOVMetrics{
		tokensBySection: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "tokens_by_section",
			Help:      "Approximate tokens per buffer section for the most recent context build",
		}, []string{"section"}),
		compressions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "episodic_compression_total",
			Help:      "Number of cascade compression passes applied to the episodic buffer",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "summary_cache_hit_total",
			Help:      "Number of summary requests served from the cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "summary_cache_miss_total",
			Help:      "Number of summary requests that required an LLM round-trip",
		}),
		summaryFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "summary_fallback_total",
			Help:      "Number of summarization failures recovered by truncation fallback",
		}),
		expansions: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "fov",
			Name:      "expansion_total",
			Help:      "Number of context expansions performed, by search scope",
		}, []string{"scope"}),
	}
}

// RecordSectionTokens publishes the rendered size of one buffer section.
func (m *FOVMetrics) RecordSectionTokens(section string, tokens int) {
	if m == nil {
		return
	}
	m.tokensBySection.WithLabelValues(section).Set(float64(tokens))
}

// RecordCompression counts one cascade compression pass.
func (m *FOVMetrics) RecordCompression() {
	if m == nil {
		return
	}
	m.compressions.Inc()
}

// RecordCacheHit counts a summary served from cache.
func (m *FOVMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a summary that needed the LLM.
func (m *FOVMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordSummaryFallback counts a truncation fallback after an LLM failure.
func (m *FOVMetrics) RecordSummaryFallback() {
	if m == nil {
		return
	}
	m.summaryFallbacks.Inc()
}

// RecordExpansion counts one expansion by scope label.
func (m *FOVMetrics) RecordExpansion(scope string) {
	if m == nil {
		return
	}
	m.expansions.WithLabelValues(scope).Inc()
}
