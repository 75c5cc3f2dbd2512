// Package metrics defines observability hooks for conversion, optimization,
// and hydration, with Prometheus and no-op implementations.
package metrics

import "time"

// ResultLabel enumerates per-block transform result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFallback ResultLabel = "fallback"
	ResultError    ResultLabel = "error"
)

// Recorder defines observability hooks for conversion and hydration metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveConversionDuration(d time.Duration)
	ObserveConversionNodes(n int)
	ObserveConversionTargets(n int)
	IncTransformResult(blockType string, result ResultLabel)
	ObserveOptimizeStageDuration(stage string, d time.Duration)
	IncHydrationOutcome(outcome string) // outcome: hydrated|failed|cleaned
	IncHydrationRetry()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveConversionDuration(time.Duration)          {}
func (NoopRecorder) ObserveConversionNodes(int)                       {}
func (NoopRecorder) ObserveConversionTargets(int)                     {}
func (NoopRecorder) IncTransformResult(string, ResultLabel)           {}
func (NoopRecorder) ObserveOptimizeStageDuration(string, time.Duration) {}
func (NoopRecorder) IncHydrationOutcome(string)                       {}
func (NoopRecorder) IncHydrationRetry()                               {}
