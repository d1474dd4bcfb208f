package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/baseline"
	"github.com/sentinelstack/device-sentinel/internal/compare"
	"github.com/sentinelstack/device-sentinel/internal/config"
	"github.com/sentinelstack/device-sentinel/internal/extract"
	"github.com/sentinelstack/device-sentinel/internal/metrics"
	"github.com/sentinelstack/device-sentinel/internal/utils"
	"github.com/sentinelstack/device-sentinel/internal/watch"
)

// RegistryFromConfig builds the pattern registry for a deployment: the
// built-in table, merged with an optional YAML pattern pack, optionally
// filtered to a metric whitelist.
func RegistryFromConfig(cfg config.PatternsConfig) (*extract.Registry, error) {
	registry := extract.DefaultRegistry()

	defs, err := extract.LoadPatternFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	if len(defs) > 0 {
		registry, err = registry.Merge(defs)
		if err != nil {
			return nil, err
		}
	}

	if len(cfg.Metrics) > 0 {
		filtered := registry.Filter(cfg.Metrics)
		if filtered.Len() == 0 {
			return nil, fmt.Errorf("no registered metrics match %v", cfg.Metrics)
		}
		registry = filtered
	}
	return registry, nil
}

// Status is the session snapshot served by the HTTP status endpoint.
type Status struct {
	Mode              string `json:"mode"`
	Device            string `json:"device"`
	LogSource         string `json:"log_source"`
	Sessions          int    `json:"sessions"`
	LastOutcome       string `json:"last_outcome,omitempty"`
	LastFinished      string `json:"last_finished,omitempty"`
	AlertsEmitted     int    `json:"alerts_emitted"`
	LastAnomalyCount  int    `json:"last_anomaly_count"`
	P95SessionSeconds float64 `json:"p95_session_seconds"`
}

// SessionService orchestrates record, compare, and watch sessions for
// the daemon, observing Prometheus metrics and keeping a status
// snapshot. Sessions run one at a time per service instance; the only
// shared resource underneath is the read-only log file.
type SessionService struct {
	logger    *slog.Logger
	cfg       *config.Config
	extractor *extract.Extractor
	latencies *utils.LatencyTracker

	mu     sync.RWMutex
	status Status
}

// NewSessionService constructs the session facade.
func NewSessionService(logger *slog.Logger, cfg *config.Config, registry *extract.Registry) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		logger:    logger,
		cfg:       cfg,
		extractor: extract.NewExtractor(registry),
		latencies: utils.NewLatencyTracker(256),
		status: Status{
			Mode:      cfg.Mode,
			Device:    cfg.Device.Name,
			LogSource: cfg.Device.LogPath,
		},
	}
}

// RunRecord records one baseline window and persists it to the
// configured output path.
func (s *SessionService) RunRecord(ctx context.Context) (baseline.Baseline, error) {
	start := time.Now()
	recorder := baseline.NewRecorder(
		s.cfg.Device.LogPath,
		s.cfg.Record.Duration,
		s.extractor,
		s.cfg.Record.PollInterval,
	)

	b, err := recorder.Record(ctx, s.cfg.Device.Name, nil)
	if err != nil {
		s.finishSession(config.ModeRecord, start, metrics.OutcomeError, 0, 0)
		return baseline.Baseline{}, utils.NewAppError("record", "record baseline", err)
	}

	if err := baseline.Save(b, s.cfg.Record.OutputPath); err != nil {
		s.finishSession(config.ModeRecord, start, metrics.OutcomeError, 0, 0)
		return baseline.Baseline{}, utils.NewAppError("record", "save baseline", err)
	}

	s.observeWindow(b)
	s.finishSession(config.ModeRecord, start, metrics.OutcomeSuccess, 0, 0)
	s.logger.Info("baseline recorded",
		slog.String("output", s.cfg.Record.OutputPath),
		slog.Int("lines_scanned", b.TotalLinesScanned),
		slog.Int("metrics_observed", countObserved(b)),
		slog.Int("metrics_total", len(b.Metrics)),
	)
	return b, nil
}

// RunCompare loads the configured baseline, records a fresh window of
// the same shape, and writes the comparison report when a report path
// is configured.
func (s *SessionService) RunCompare(ctx context.Context) (compare.Report, error) {
	start := time.Now()

	base, err := baseline.Load(s.cfg.Compare.BaselinePath)
	if err != nil {
		s.finishSession(config.ModeCompare, start, metrics.OutcomeError, 0, 0)
		return compare.Report{}, utils.NewAppError("compare", "load baseline", err)
	}
	if age := utils.AgeOf(base.RecordedAt); age > 0 {
		s.logger.Debug("baseline loaded",
			slog.String("path", s.cfg.Compare.BaselinePath),
			slog.Duration("age", age),
		)
	}

	comparator := compare.New(compare.Config{
		Baseline:             base,
		BaselinePath:         s.cfg.Compare.BaselinePath,
		LogPath:              s.cfg.Device.LogPath,
		Duration:             s.cfg.Compare.Duration,
		PollInterval:         s.cfg.Compare.PollInterval,
		SigmaThreshold:       s.cfg.Compare.SigmaThreshold,
		RateThreshold:        s.cfg.Compare.RateThreshold,
		IgnoreNewOccurrences: s.cfg.Compare.IgnoreNewOccurrences,
		FlagDisappeared:      s.cfg.Compare.FlagDisappeared,
		Extractor:            s.extractor,
	})

	report, err := comparator.Compare(ctx, s.cfg.Device.Name, nil)
	if err != nil {
		s.finishSession(config.ModeCompare, start, metrics.OutcomeError, 0, 0)
		return compare.Report{}, utils.NewAppError("compare", "compare window", err)
	}

	if s.cfg.Compare.ReportPath != "" {
		if err := report.Save(s.cfg.Compare.ReportPath); err != nil {
			s.finishSession(config.ModeCompare, start, metrics.OutcomeError, 0, report.AnomalyCount)
			return compare.Report{}, utils.NewAppError("compare", "save report", err)
		}
	}

	metrics.AddComparisonAnomalies(report.AnomalyCount)
	s.finishSession(config.ModeCompare, start, metrics.OutcomeSuccess, 0, report.AnomalyCount)
	s.logger.Info("comparison finished",
		slog.String("baseline", s.cfg.Compare.BaselinePath),
		slog.Int("anomalies", report.AnomalyCount),
		slog.Bool("passed", report.Passed),
	)
	return report, nil
}

// RunWatch runs one streaming watch session: one watcher goroutine per
// configured metric, alerts multiplexed to stdout as JSON Lines. The
// session ends when the watch duration elapses or the context is
// cancelled; either way the collected alerts are returned.
func (s *SessionService) RunWatch(ctx context.Context) ([]watch.Alert, error) {
	if len(s.cfg.Watch.Metrics) == 0 {
		return nil, utils.NewAppError("watch", "no metrics configured", nil)
	}

	start := time.Now()

	var mu sync.Mutex
	var alerts []watch.Alert
	encoder := json.NewEncoder(os.Stdout)

	onAlert := func(a watch.Alert) {
		mu.Lock()
		defer mu.Unlock()
		alerts = append(alerts, a)
		metrics.IncAlert(a.Metric)
		if err := encoder.Encode(a); err != nil {
			s.logger.Warn("alert write failed", slog.Any("error", err))
		}
	}

	watchers := make([]*watch.Watcher, 0, len(s.cfg.Watch.Metrics))
	for _, metric := range s.cfg.Watch.Metrics {
		w, err := watch.NewWatcher(watch.Config{
			LogPath:        s.cfg.Device.LogPath,
			Metric:         metric,
			ThresholdSigma: s.cfg.Watch.ThresholdSigma,
			Window:         s.cfg.Watch.Window,
			MinSamples:     s.cfg.Watch.MinSamples,
			Duration:       s.cfg.Watch.Duration,
			PollInterval:   s.cfg.Watch.PollInterval,
			Registry:       s.extractor.Registry(),
			OnAlert:        onAlert,
		})
		if err != nil {
			s.finishSession(config.ModeWatch, start, metrics.OutcomeError, 0, 0)
			return nil, utils.NewAppError("watch", "configure watcher", err)
		}
		watchers = append(watchers, w)
	}

	var wg sync.WaitGroup
	for _, w := range watchers {
		wg.Add(1)
		go func(w *watch.Watcher) {
			defer wg.Done()
			w.Watch(ctx)
		}(w)
	}
	wg.Wait()

	for _, summary := range watch.Summarize(alerts) {
		s.logger.Info("watch summary",
			slog.String("metric", summary.Metric),
			slog.Int("alerts", summary.Alerts),
			slog.Float64("max_abs_z", summary.MaxAbsZ),
			slog.Float64("last_value", summary.LastValue),
		)
	}

	s.finishSession(config.ModeWatch, start, metrics.OutcomeSuccess, len(alerts), 0)
	return alerts, nil
}

// Status returns a copy of the current session snapshot.
func (s *SessionService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.P95SessionSeconds = s.latencies.Percentile(95).Seconds()
	return st
}

func (s *SessionService) finishSession(mode string, start time.Time, outcome string, alertCount, anomalyCount int) {
	duration := time.Since(start)
	metrics.ObserveSession(mode, duration, outcome)
	s.latencies.Observe(duration)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Sessions++
	s.status.LastOutcome = outcome
	s.status.LastFinished = utils.NowRFC3339()
	s.status.AlertsEmitted += alertCount
	s.status.LastAnomalyCount = anomalyCount
}

// observeWindow feeds a recorded window's totals into Prometheus.
func (s *SessionService) observeWindow(b baseline.Baseline) {
	metrics.AddLinesScanned(b.TotalLinesScanned)
	for _, stats := range b.Metrics {
		metrics.AddSamples(stats.Kind.String(), stats.Count)
	}
}

func countObserved(b baseline.Baseline) int {
	n := 0
	for _, stats := range b.Metrics {
		if stats.Count > 0 {
			n++
		}
	}
	return n
}
