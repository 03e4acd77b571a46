// Package metrics defines the observability hooks for the incremental
// build engine, with a Prometheus-backed implementation.
package metrics

import "time"

// Recorder defines the hooks emitted per build. All methods must be safe
// on the NoopRecorder, allowing optional injection.
type Recorder interface {
	ObserveDetectionDuration(phase string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	AddPagesQueued(n int)
	AddAssetsQueued(n int)
	IncCacheOutcome(hit bool)
	IncRegistryInvalidation(reason string)
	IncBuildOutcome(outcome string) // success|failed
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDetectionDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)             {}
func (NoopRecorder) AddPagesQueued(int)                             {}
func (NoopRecorder) AddAssetsQueued(int)                            {}
func (NoopRecorder) IncCacheOutcome(bool)                           {}
func (NoopRecorder) IncRegistryInvalidation(string)                 {}
func (NoopRecorder) IncBuildOutcome(string)                         {}
