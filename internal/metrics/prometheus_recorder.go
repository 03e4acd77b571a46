package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	detectionDuration *prom.HistogramVec
	buildDuration     prom.Histogram
	pagesQueued       prom.Counter
	assetsQueued      prom.Counter
	cacheOutcomes     *prom.CounterVec
	invalidations     *prom.CounterVec
	buildOutcomes     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.detectionDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitegen",
			Name:      "detection_duration_seconds",
			Help:      "Duration of incremental work detection phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitegen",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.pagesQueued = prom.NewCounter(prom.CounterOpts{
			Namespace: "sitegen",
			Name:      "pages_queued_total",
			Help:      "Pages queued for rebuild across all builds",
		})
		pr.assetsQueued = prom.NewCounter(prom.CounterOpts{
			Namespace: "sitegen",
			Name:      "assets_queued_total",
			Help:      "Assets queued for reprocessing across all builds",
		})
		pr.cacheOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitegen",
			Name:      "cache_outcomes_total",
			Help:      "Build cache lookups by hit/miss",
		}, []string{"outcome"})
		pr.invalidations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitegen",
			Name:      "registry_invalidations_total",
			Help:      "Cache registry invalidations by reason",
		}, []string{"reason"})
		pr.buildOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitegen",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		reg.MustRegister(pr.detectionDuration, pr.buildDuration, pr.pagesQueued,
			pr.assetsQueued, pr.cacheOutcomes, pr.invalidations, pr.buildOutcomes)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveDetectionDuration(phase string, d time.Duration) {
	if p == nil || p.detectionDuration == nil {
		return
	}
	p.detectionDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddPagesQueued(n int) {
	if p == nil || p.pagesQueued == nil {
		return
	}
	p.pagesQueued.Add(float64(n))
}

func (p *PrometheusRecorder) AddAssetsQueued(n int) {
	if p == nil || p.assetsQueued == nil {
		return
	}
	p.assetsQueued.Add(float64(n))
}

func (p *PrometheusRecorder) IncCacheOutcome(hit bool) {
	if p == nil || p.cacheOutcomes == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRegistryInvalidation(reason string) {
	if p == nil || p.invalidations == nil {
		return
	}
	p.invalidations.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(outcome).Inc()
}
