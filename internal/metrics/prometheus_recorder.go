package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry           *prom.Registry
	conversionDuration prom.Histogram
	conversionNodes    prom.Histogram
	conversionTargets  prom.Histogram
	transformResults   *prom.CounterVec
	stageDuration      *prom.HistogramVec
	hydrationOutcomes  *prom.CounterVec
	hydrationRetries   prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry is created when reg is nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.conversionDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "wpblock2html",
		Name:      "conversion_duration_seconds",
		Help:      "Duration of block tree conversions",
		Buckets:   prom.DefBuckets,
	})
	pr.conversionNodes = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "wpblock2html",
		Name:      "conversion_nodes",
		Help:      "Block nodes per conversion",
		Buckets:   prom.ExponentialBuckets(1, 4, 8),
	})
	pr.conversionTargets = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "wpblock2html",
		Name:      "conversion_hydration_targets",
		Help:      "Hydration targets emitted per conversion",
		Buckets:   prom.ExponentialBuckets(1, 4, 6),
	})
	pr.transformResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "wpblock2html",
		Name:      "transform_results_total",
		Help:      "Per-block transform outcomes",
	}, []string{"block_type", "result"})
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "wpblock2html",
		Name:      "optimize_stage_duration_seconds",
		Help:      "Duration of individual SSR optimization stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.hydrationOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "wpblock2html",
		Name:      "hydration_outcomes_total",
		Help:      "Terminal hydration outcomes per target",
	}, []string{"outcome"})
	pr.hydrationRetries = prom.NewCounter(prom.CounterOpts{
		Namespace: "wpblock2html",
		Name:      "hydration_retries_total",
		Help:      "Hydration retry attempts",
	})

	reg.MustRegister(
		pr.conversionDuration,
		pr.conversionNodes,
		pr.conversionTargets,
		pr.transformResults,
		pr.stageDuration,
		pr.hydrationOutcomes,
		pr.hydrationRetries,
	)
	return pr
}

func (pr *PrometheusRecorder) ObserveConversionDuration(d time.Duration) {
	pr.conversionDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveConversionNodes(n int) {
	pr.conversionNodes.Observe(float64(n))
}

func (pr *PrometheusRecorder) ObserveConversionTargets(n int) {
	pr.conversionTargets.Observe(float64(n))
}

func (pr *PrometheusRecorder) IncTransformResult(blockType string, result ResultLabel) {
	pr.transformResults.WithLabelValues(blockType, string(result)).Inc()
}

func (pr *PrometheusRecorder) ObserveOptimizeStageDuration(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncHydrationOutcome(outcome string) {
	pr.hydrationOutcomes.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) IncHydrationRetry() {
	pr.hydrationRetries.Inc()
}

// Handler returns an HTTP handler exposing the recorder's registry, for the
// watch daemon's metrics endpoint.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{})
}
