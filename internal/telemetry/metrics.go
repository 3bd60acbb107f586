package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "asgard"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	buildsTotal    *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram
	cachedViews    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &Metrics{
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of view renderer builds",
		}, []string{"status"}),

		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of view builds by stage",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Renderer cache lookups by result",
		}, []string{"result"}),

		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Total number of document renders",
		}, []string{"status"}),

		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Document render duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		cachedViews: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_views",
			Help:      "Number of views with a cached renderer",
		}),
	}
}

func (m *Metrics) Build(status string) {
	if m == nil {
		return
	}
	m.buildsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Render(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(status).Inc()
	m.renderDuration.Observe(d.Seconds())
}

func (m *Metrics) CachedViews(n int) {
	if m == nil {
		return
	}
	m.cachedViews.Set(float64(n))
}
