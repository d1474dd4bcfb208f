package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveSessionGathers(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	ObserveSession("watch", 2*time.Second, OutcomeSuccess)
	ObserveSession("record", -time.Second, OutcomeError)
	AddLinesScanned(100)
	AddSamples("numeric", 10)
	IncAlert("bt_rssi")
	AddComparisonAnomalies(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"device_sentinel_sessions_total",
		"device_sentinel_session_seconds",
		"device_sentinel_lines_scanned_total",
		"device_sentinel_samples_extracted_total",
		"device_sentinel_alerts_total",
		"device_sentinel_comparison_anomalies_total",
	} {
		if !names[want] {
			t.Fatalf("metric family %s not gathered (got %v)", want, names)
		}
	}
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	// Negative deltas would panic a Prometheus counter.
	AddLinesScanned(-5)
	AddSamples("numeric", 0)
	AddComparisonAnomalies(-1)
}
