package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveDetectionDuration("early", time.Second)
	r.ObserveBuildDuration(time.Second)
	r.AddPagesQueued(3)
	r.AddAssetsQueued(1)
	r.IncCacheOutcome(true)
	r.IncRegistryInvalidation("config_changed")
	r.IncBuildOutcome("success")
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveDetectionDuration("early", 100*time.Millisecond)
	r.AddPagesQueued(5)
	r.IncCacheOutcome(false)
	r.IncRegistryInvalidation("template_changed")
	r.IncBuildOutcome("success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, want := range []string{
		"sitegen_detection_duration_seconds",
		"sitegen_pages_queued_total",
		"sitegen_cache_outcomes_total",
	} {
		if !found[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.ObserveDetectionDuration("early", time.Second)
	r.AddPagesQueued(1)
	r.IncBuildOutcome("failed")
}
