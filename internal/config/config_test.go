package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  logPath: /tmp/device.log
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeWatch {
		t.Fatalf("mode = %q, want watch", cfg.Mode)
	}
	if cfg.Server.Address != ":8085" || cfg.Server.GracefulTimeout != 10*time.Second {
		t.Fatalf("server defaults = %+v", cfg.Server)
	}
	if cfg.Watch.ThresholdSigma != 2.5 || cfg.Watch.Window != 20 || cfg.Watch.MinSamples != 30 {
		t.Fatalf("watch defaults = %+v", cfg.Watch)
	}
	if cfg.Compare.SigmaThreshold != 3.0 || cfg.Compare.RateThreshold != 3.0 {
		t.Fatalf("compare defaults = %+v", cfg.Compare)
	}
	if cfg.Compare.IgnoreNewOccurrences || cfg.Compare.FlagDisappeared {
		t.Fatalf("occurrence knobs not at defaults: %+v", cfg.Compare)
	}
	if cfg.Record.Duration != 60*time.Second {
		t.Fatalf("record defaults = %+v", cfg.Record)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
mode: record
device:
  name: nrf5340-dk
  logPath: /var/log/device.log
record:
  duration: 2m
  outputPath: /data/baseline.json
watch:
  metrics: [bt_rssi, bt_mtu]
  thresholdSigma: 3.5
logging:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeRecord || cfg.Device.Name != "nrf5340-dk" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Record.Duration != 2*time.Minute || cfg.Record.OutputPath != "/data/baseline.json" {
		t.Fatalf("record = %+v", cfg.Record)
	}
	if len(cfg.Watch.Metrics) != 2 || cfg.Watch.ThresholdSigma != 3.5 {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
	// Unset file keys keep their defaults.
	if cfg.Watch.Window != 20 {
		t.Fatalf("window = %d, want default 20", cfg.Watch.Window)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode: watch
device:
  logPath: /var/log/device.log
`)
	t.Setenv("SENTINEL_MODE", "compare")
	t.Setenv("SENTINEL_DEVICE_LOG_PATH", "/other/device.log")
	t.Setenv("SENTINEL_WATCH_METRICS", "bt_rssi, log_error")
	t.Setenv("SENTINEL_WATCH_THRESHOLD_SIGMA", "4.0")
	t.Setenv("SENTINEL_COMPARE_BASELINE", "/data/baseline.json")
	t.Setenv("SENTINEL_COMPARE_FLAG_DISAPPEARED", "true")
	t.Setenv("SENTINEL_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeCompare || cfg.Device.LogPath != "/other/device.log" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.Watch.Metrics) != 2 || cfg.Watch.Metrics[1] != "log_error" {
		t.Fatalf("watch metrics = %v", cfg.Watch.Metrics)
	}
	if cfg.Watch.ThresholdSigma != 4.0 {
		t.Fatalf("threshold = %v", cfg.Watch.ThresholdSigma)
	}
	if !cfg.Compare.FlagDisappeared || cfg.Compare.BaselinePath != "/data/baseline.json" {
		t.Fatalf("compare = %+v", cfg.Compare)
	}
	if !cfg.Logging.JSON {
		t.Fatalf("log format override not applied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRequiresLogPath(t *testing.T) {
	path := writeConfig(t, `mode: watch`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing device.logPath")
	}
}

func TestValidateCompareNeedsBaseline(t *testing.T) {
	path := writeConfig(t, `
mode: compare
device:
  logPath: /tmp/device.log
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for compare mode without baselinePath")
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
mode: replay
device:
  logPath: /tmp/device.log
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
