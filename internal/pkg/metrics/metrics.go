// Package metrics exposes the Prometheus instrumentation shared by the
// generation pipeline.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application collectors. One instance is wired through
// the app; tests may build their own to avoid global registration clashes.
type Registry struct {
	reg *prometheus.Registry

	StoriesGenerated     prometheus.Counter
	CritiquesStored      prometheus.Counter
	Syntheses            *prometheus.CounterVec
	EmbeddingCacheHits   prometheus.Counter
	EmbeddingCacheMisses prometheus.Counter
	ProviderRequests     *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		StoriesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuentacuentos_stories_generated_total",
			Help: "Stories produced by the generation pipeline.",
		}),
		CritiquesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuentacuentos_critiques_total",
			Help: "Critiques appended to the critique log.",
		}),
		Syntheses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cuentacuentos_syntheses_total",
			Help: "Lesson synthesis runs by result.",
		}, []string{"result"}),
		EmbeddingCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuentacuentos_embedding_cache_hits_total",
			Help: "Theme embedding cache hits.",
		}),
		EmbeddingCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cuentacuentos_embedding_cache_misses_total",
			Help: "Theme embedding cache misses.",
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cuentacuentos_provider_requests_total",
			Help: "Upstream AI provider calls by task and outcome.",
		}, []string{"task", "outcome"}),
	}
}

// Handler returns the gin handler serving the /metrics endpoint.
func (r *Registry) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
