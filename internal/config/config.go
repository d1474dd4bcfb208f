package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to run the sentinel engine.
type Config struct {
	Mode     string         `yaml:"mode"`
	Server   ServerConfig   `yaml:"server"`
	Device   DeviceConfig   `yaml:"device"`
	Patterns PatternsConfig `yaml:"patterns"`
	Record   RecordConfig   `yaml:"record"`
	Watch    WatchConfig    `yaml:"watch"`
	Compare  CompareConfig  `yaml:"compare"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP status listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DeviceConfig identifies the monitored device and its log file.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	LogPath string `yaml:"logPath"`
}

// PatternsConfig controls metric pattern selection: an optional YAML
// pattern pack merged over the built-ins, and an optional whitelist
// restricting extraction to the named metrics.
type PatternsConfig struct {
	Path    string   `yaml:"path"`
	Metrics []string `yaml:"metrics"`
}

// RecordConfig controls baseline recording sessions.
type RecordConfig struct {
	Duration     time.Duration `yaml:"duration"`
	PollInterval time.Duration `yaml:"pollInterval"`
	OutputPath   string        `yaml:"outputPath"`
}

// WatchConfig controls streaming EWMA watch sessions.
type WatchConfig struct {
	Metrics        []string      `yaml:"metrics"`
	ThresholdSigma float64       `yaml:"thresholdSigma"`
	Window         int           `yaml:"window"`
	MinSamples     int           `yaml:"minSamples"`
	Duration       time.Duration `yaml:"duration"`
	PollInterval   time.Duration `yaml:"pollInterval"`
}

// CompareConfig controls baseline comparison sessions.
type CompareConfig struct {
	BaselinePath         string        `yaml:"baselinePath"`
	ReportPath           string        `yaml:"reportPath"`
	Duration             time.Duration `yaml:"duration"`
	PollInterval         time.Duration `yaml:"pollInterval"`
	SigmaThreshold       float64       `yaml:"sigmaThreshold"`
	RateThreshold        float64       `yaml:"rateThreshold"`
	IgnoreNewOccurrences bool          `yaml:"ignoreNewOccurrences"`
	FlagDisappeared      bool          `yaml:"flagDisappeared"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Modes the engine can run in.
const (
	ModeWatch   = "watch"
	ModeRecord  = "record"
	ModeCompare = "compare"
)

// Load initialises Config from a YAML file and optional environment
// overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Mode: ModeWatch,
		Server: ServerConfig{
			Address:         ":8085",
			GracefulTimeout: 10 * time.Second,
		},
		Record: RecordConfig{
			Duration:     60 * time.Second,
			PollInterval: 100 * time.Millisecond,
			OutputPath:   "baselines/baseline.json",
		},
		Watch: WatchConfig{
			ThresholdSigma: 2.5,
			Window:         20,
			MinSamples:     30,
			PollInterval:   100 * time.Millisecond,
		},
		Compare: CompareConfig{
			Duration:       60 * time.Second,
			PollInterval:   100 * time.Millisecond,
			SigmaThreshold: 3.0,
			RateThreshold:  3.0,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeWatch, ModeRecord, ModeCompare:
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", cfg.Mode, ModeWatch, ModeRecord, ModeCompare)
	}
	if cfg.Device.LogPath == "" {
		return fmt.Errorf("device.logPath is required")
	}
	if cfg.Mode == ModeCompare && cfg.Compare.BaselinePath == "" {
		return fmt.Errorf("compare.baselinePath is required in compare mode")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("SENTINEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("SENTINEL_DEVICE_LOG_PATH"); v != "" {
		cfg.Device.LogPath = v
	}
	if v := os.Getenv("SENTINEL_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}
	if v := os.Getenv("SENTINEL_WATCH_METRICS"); v != "" {
		cfg.Watch.Metrics = splitList(v)
	}
	if v := os.Getenv("SENTINEL_WATCH_THRESHOLD_SIGMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Watch.ThresholdSigma = f
		}
	}
	if v := os.Getenv("SENTINEL_WATCH_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Watch.Window = n
		}
	}
	if v := os.Getenv("SENTINEL_WATCH_MIN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Watch.MinSamples = n
		}
	}
	if v := os.Getenv("SENTINEL_WATCH_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Duration = d
		}
	}
	if v := os.Getenv("SENTINEL_RECORD_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Record.Duration = d
		}
	}
	if v := os.Getenv("SENTINEL_RECORD_OUTPUT"); v != "" {
		cfg.Record.OutputPath = v
	}
	if v := os.Getenv("SENTINEL_COMPARE_BASELINE"); v != "" {
		cfg.Compare.BaselinePath = v
	}
	if v := os.Getenv("SENTINEL_COMPARE_REPORT"); v != "" {
		cfg.Compare.ReportPath = v
	}
	if v := os.Getenv("SENTINEL_COMPARE_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Compare.Duration = d
		}
	}
	if v := os.Getenv("SENTINEL_COMPARE_SIGMA_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Compare.SigmaThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_COMPARE_RATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Compare.RateThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_COMPARE_FLAG_DISAPPEARED"); v != "" {
		cfg.Compare.FlagDisappeared = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
