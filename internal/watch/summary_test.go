package watch

import "testing"

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != nil {
		t.Fatalf("expected nil for quiet session, got %v", got)
	}
}

func TestSummarizeRollsUpPerMetric(t *testing.T) {
	alerts := []Alert{
		{TS: 1.0, Metric: "bt_rssi", Value: -90, ZScore: -3.2},
		{TS: 2.0, Metric: "bt_notification_interval_ms", Value: 400, ZScore: 4.0},
		{TS: 3.0, Metric: "bt_rssi", Value: -95, ZScore: -5.5},
		{TS: 4.0, Metric: "bt_rssi", Value: -88, ZScore: 2.9},
	}

	got := Summarize(alerts)
	if len(got) != 2 {
		t.Fatalf("summaries = %d, want 2", len(got))
	}

	// Noisiest metric first.
	if got[0].Metric != "bt_rssi" || got[0].Alerts != 3 {
		t.Fatalf("first summary = %+v", got[0])
	}
	if got[0].MaxAbsZ != 5.5 {
		t.Fatalf("max |z| = %v, want 5.5", got[0].MaxAbsZ)
	}
	if got[0].LastValue != -88 || got[0].LastTS != 4.0 {
		t.Fatalf("last alert = %+v", got[0])
	}

	if got[1].Metric != "bt_notification_interval_ms" || got[1].Alerts != 1 {
		t.Fatalf("second summary = %+v", got[1])
	}
}

func TestSummarizeTieBreaksByName(t *testing.T) {
	alerts := []Alert{
		{Metric: "zephyr_heap_free_bytes", ZScore: 3},
		{Metric: "bt_mtu", ZScore: 3},
	}
	got := Summarize(alerts)
	if got[0].Metric != "bt_mtu" || got[1].Metric != "zephyr_heap_free_bytes" {
		t.Fatalf("tie break order = %v, %v", got[0].Metric, got[1].Metric)
	}
}
