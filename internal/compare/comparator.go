// Package compare judges a live recording window against a previously
// saved baseline and produces a structured anomaly report.
package compare

import (
	"context"
	"math"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/baseline"
	"github.com/sentinelstack/device-sentinel/internal/extract"
	"github.com/sentinelstack/device-sentinel/internal/utils"
)

// minStd floors baseline deviations and rates in ratio denominators.
const minStd = 0.001

const (
	defaultSigmaThreshold = 3.0
	defaultRateThreshold  = 3.0
)

const (
	// DirectionHigh marks a current mean significantly above baseline.
	DirectionHigh = "high"
	// DirectionLow marks a current mean significantly below baseline.
	DirectionLow = "low"
)

// Config holds comparator settings. Zero thresholds fall back to
// defaults. The zero value of the two occurrence knobs encodes the
// default policy: a metric that never fired in the baseline but fires
// now is flagged (often the exact failure signature being hunted), while
// a metric that goes quiet is not.
type Config struct {
	Baseline     baseline.Baseline
	BaselinePath string
	LogPath      string
	Duration     time.Duration
	PollInterval time.Duration

	SigmaThreshold float64
	RateThreshold  float64
	// IgnoreNewOccurrences disables flagging metrics with baseline
	// count zero that appear in the current window.
	IgnoreNewOccurrences bool
	// FlagDisappeared flags metrics with a nonzero baseline count that
	// vanish from the current window.
	FlagDisappeared bool

	Extractor *extract.Extractor
}

// Comparator records a fresh window with the same duration and registry
// as the saved baseline, then scores every metric against it.
type Comparator struct {
	cfg Config
}

// New constructs a comparator, applying default thresholds and registry.
func New(cfg Config) *Comparator {
	if cfg.SigmaThreshold <= 0 {
		cfg.SigmaThreshold = defaultSigmaThreshold
	}
	if cfg.RateThreshold <= 0 {
		cfg.RateThreshold = defaultRateThreshold
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.NewExtractor(nil)
	}
	return &Comparator{cfg: cfg}
}

// Compare records the current window and returns the per-metric report.
// Context cancellation shortens the window; whatever was gathered is
// still compared, because insufficient data resolves to not-anomalous
// rather than to an error.
func (c *Comparator) Compare(ctx context.Context, device string, progress func(elapsed time.Duration)) (Report, error) {
	recorder := baseline.NewRecorder(c.cfg.LogPath, c.cfg.Duration, c.cfg.Extractor, c.cfg.PollInterval)
	current, err := recorder.Record(ctx, device, progress)
	if err != nil {
		return Report{}, err
	}
	return c.Against(current, device), nil
}

// Against scores an already-recorded current window against the
// configured baseline. Splitting this from Compare lets two saved
// windows be diffed offline.
func (c *Comparator) Against(current baseline.Baseline, device string) Report {
	metrics := make(map[string]MetricComparison, c.cfg.Extractor.Registry().Len())
	anomalyCount := 0

	for _, name := range c.cfg.Extractor.Registry().Names() {
		pattern, _ := c.cfg.Extractor.Registry().Lookup(name)
		base := c.cfg.Baseline.Metrics[name]
		cur := current.Metrics[name]

		var cmp MetricComparison
		if pattern.Kind == extract.KindOccurrence {
			cmp = c.compareOccurrence(base, cur)
		} else {
			cmp = c.compareNumeric(base, cur)
		}
		if cmp.Anomalous {
			anomalyCount++
		}
		metrics[name] = cmp
	}

	return Report{
		Device:             device,
		BaselinePath:       c.cfg.BaselinePath,
		BaselineRecordedAt: c.cfg.Baseline.RecordedAt,
		ComparedAt:         utils.NowRFC3339(),
		DurationS:          c.cfg.Duration.Seconds(),
		AnomalyCount:       anomalyCount,
		Passed:             anomalyCount == 0,
		Metrics:            metrics,
	}
}

// compareNumeric scores a mean shift in baseline-sigma units. A window
// with no samples on either side is sparsity, never evidence of anomaly.
func (c *Comparator) compareNumeric(base, cur baseline.MetricStats) MetricComparison {
	cmp := MetricComparison{
		Kind:          extract.KindNumeric,
		BaselineCount: base.Count,
		CurrentCount:  cur.Count,
		BaselineMean:  base.Mean,
		BaselineStd:   base.Std,
		CurrentMean:   cur.Mean,
		CurrentStd:    cur.Std,
	}

	if base.Count == 0 || cur.Count == 0 {
		return cmp
	}

	z := (cur.Mean - base.Mean) / math.Max(base.Std, minStd)
	cmp.ZScore = &z
	if math.Abs(z) > c.cfg.SigmaThreshold {
		cmp.Anomalous = true
		direction := DirectionHigh
		if z < 0 {
			direction = DirectionLow
		}
		cmp.Direction = &direction
	}
	return cmp
}

// compareOccurrence scores a rate change. Four branches: both quiet,
// newly appearing, disappeared, and both present.
func (c *Comparator) compareOccurrence(base, cur baseline.MetricStats) MetricComparison {
	cmp := MetricComparison{
		Kind:               extract.KindOccurrence,
		BaselineCount:      base.Count,
		CurrentCount:       cur.Count,
		BaselineRatePerMin: base.RatePerMin,
		CurrentRatePerMin:  cur.RatePerMin,
	}

	switch {
	case base.Count == 0 && cur.Count == 0:
		// Quiet on both sides.
	case base.Count == 0:
		cmp.Anomalous = !c.cfg.IgnoreNewOccurrences
	case cur.Count == 0:
		cmp.Anomalous = c.cfg.FlagDisappeared
		zero := 0.0
		cmp.RateRatio = &zero
	default:
		ratio := cur.RatePerMin / math.Max(base.RatePerMin, minStd)
		cmp.RateRatio = &ratio
		cmp.Anomalous = ratio > c.cfg.RateThreshold
	}
	return cmp
}
