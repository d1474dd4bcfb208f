package baseline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/extract"
)

func TestRecordCapturesAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.log")
	// Pre-existing content must not count; the recorder seeks to EOF.
	if err := os.WriteFile(path, []byte("[00:00:01.000] Interval: 999 ms\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	rec := NewRecorder(path, 500*time.Millisecond, nil, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.Errorf("open log: %v", err)
			return
		}
		defer f.Close()
		for i := 0; i < 5; i++ {
			time.Sleep(30 * time.Millisecond)
			if _, err := f.WriteString("[00:00:02.000] Interval: 100 ms\n"); err != nil {
				t.Errorf("append: %v", err)
				return
			}
		}
	}()

	b, err := rec.Record(context.Background(), "dev-1", nil)
	<-done
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if b.Version != SchemaVersion || b.Device != "dev-1" || b.LogSource != path {
		t.Fatalf("baseline header = %+v", b)
	}
	if b.TotalLinesScanned != 5 {
		t.Fatalf("lines scanned = %d, want 5", b.TotalLinesScanned)
	}

	interval, ok := b.Metrics["bt_notification_interval_ms"]
	if !ok {
		t.Fatalf("interval metric missing")
	}
	if interval.Count != 5 || interval.Mean != 100.0 {
		t.Fatalf("interval stats = %+v", interval)
	}

	// Every registry metric must appear, quiet ones with count zero.
	if len(b.Metrics) != extract.DefaultRegistry().Len() {
		t.Fatalf("metrics map has %d entries, want %d", len(b.Metrics), extract.DefaultRegistry().Len())
	}
	if mtu := b.Metrics["bt_mtu"]; mtu.Count != 0 {
		t.Fatalf("quiet metric count = %d", mtu.Count)
	}
}

func TestRecordMissingLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-created.log")
	rec := NewRecorder(path, 50*time.Millisecond, nil, 10*time.Millisecond)

	b, err := rec.Record(context.Background(), "dev-1", nil)
	if err != nil {
		t.Fatalf("record over missing file: %v", err)
	}
	if b.TotalLinesScanned != 0 {
		t.Fatalf("lines scanned = %d, want 0", b.TotalLinesScanned)
	}
	for name, s := range b.Metrics {
		if s.Count != 0 {
			t.Fatalf("metric %s has count %d on missing file", name, s.Count)
		}
	}
}

func TestRecordCancelReturnsPartialWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.log")
	rec := NewRecorder(path, time.Hour, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := rec.Record(ctx, "dev-1", nil)
	if err != nil {
		t.Fatalf("cancelled record returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("record ignored cancellation, ran %v", elapsed)
	}
}

func TestRecordProgressCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.log")
	rec := NewRecorder(path, 100*time.Millisecond, nil, 10*time.Millisecond)

	calls := 0
	_, err := rec.Record(context.Background(), "dev-1", func(elapsed time.Duration) {
		calls++
		if elapsed < 0 {
			t.Errorf("negative elapsed %v", elapsed)
		}
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if calls == 0 {
		t.Fatalf("progress callback never fired")
	}
}
