package compare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sentinelstack/device-sentinel/internal/extract"
)

// MetricComparison is the per-metric verdict of a baseline-vs-live run.
// Numeric metrics compare means in baseline-sigma units; occurrence
// metrics compare rates. Nil pointer fields mean the figure could not be
// computed for this window and serialize as JSON null.
type MetricComparison struct {
	Kind          extract.Kind
	BaselineCount int
	CurrentCount  int
	Anomalous     bool

	// Numeric
	BaselineMean float64
	BaselineStd  float64
	CurrentMean  float64
	CurrentStd   float64
	ZScore       *float64
	Direction    *string

	// Occurrence
	BaselineRatePerMin float64
	CurrentRatePerMin  float64
	RateRatio          *float64
}

type numericComparisonJSON struct {
	Kind          extract.Kind `json:"kind"`
	BaselineCount int          `json:"baseline_count"`
	CurrentCount  int          `json:"current_count"`
	Anomalous     bool         `json:"anomalous"`
	BaselineMean  float64      `json:"baseline_mean"`
	BaselineStd   float64      `json:"baseline_std"`
	CurrentMean   float64      `json:"current_mean"`
	CurrentStd    float64      `json:"current_std"`
	ZScore        *float64     `json:"z_score"`
	Direction     *string      `json:"direction"`
}

type occurrenceComparisonJSON struct {
	Kind               extract.Kind `json:"kind"`
	BaselineCount      int          `json:"baseline_count"`
	CurrentCount       int          `json:"current_count"`
	Anomalous          bool         `json:"anomalous"`
	BaselineRatePerMin float64      `json:"baseline_rate_per_min"`
	CurrentRatePerMin  float64      `json:"current_rate_per_min"`
	RateRatio          *float64     `json:"rate_ratio"`
}

// MarshalJSON writes the kind-dependent wire form.
func (c MetricComparison) MarshalJSON() ([]byte, error) {
	if c.Kind == extract.KindOccurrence {
		return json.Marshal(occurrenceComparisonJSON{
			Kind:               c.Kind,
			BaselineCount:      c.BaselineCount,
			CurrentCount:       c.CurrentCount,
			Anomalous:          c.Anomalous,
			BaselineRatePerMin: c.BaselineRatePerMin,
			CurrentRatePerMin:  c.CurrentRatePerMin,
			RateRatio:          c.RateRatio,
		})
	}
	return json.Marshal(numericComparisonJSON{
		Kind:          c.Kind,
		BaselineCount: c.BaselineCount,
		CurrentCount:  c.CurrentCount,
		Anomalous:     c.Anomalous,
		BaselineMean:  c.BaselineMean,
		BaselineStd:   c.BaselineStd,
		CurrentMean:   c.CurrentMean,
		CurrentStd:    c.CurrentStd,
		ZScore:        c.ZScore,
		Direction:     c.Direction,
	})
}

// UnmarshalJSON accepts either wire form.
func (c *MetricComparison) UnmarshalJSON(data []byte) error {
	var kindOnly struct {
		Kind extract.Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &kindOnly); err != nil {
		return err
	}

	if kindOnly.Kind == extract.KindOccurrence {
		var aux occurrenceComparisonJSON
		if err := json.Unmarshal(data, &aux); err != nil {
			return err
		}
		*c = MetricComparison{
			Kind:               aux.Kind,
			BaselineCount:      aux.BaselineCount,
			CurrentCount:       aux.CurrentCount,
			Anomalous:          aux.Anomalous,
			BaselineRatePerMin: aux.BaselineRatePerMin,
			CurrentRatePerMin:  aux.CurrentRatePerMin,
			RateRatio:          aux.RateRatio,
		}
		return nil
	}

	var aux numericComparisonJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = MetricComparison{
		Kind:          aux.Kind,
		BaselineCount: aux.BaselineCount,
		CurrentCount:  aux.CurrentCount,
		Anomalous:     aux.Anomalous,
		BaselineMean:  aux.BaselineMean,
		BaselineStd:   aux.BaselineStd,
		CurrentMean:   aux.CurrentMean,
		CurrentStd:    aux.CurrentStd,
		ZScore:        aux.ZScore,
		Direction:     aux.Direction,
	}
	return nil
}

// Report is the full comparison outcome. Metrics always carries every
// registry metric, anomalous or not, so automated runs can audit the
// whole profile rather than just the verdict.
type Report struct {
	Device             string                      `json:"device"`
	BaselinePath       string                      `json:"baseline_path"`
	BaselineRecordedAt string                      `json:"baseline_recorded_at"`
	ComparedAt         string                      `json:"compared_at"`
	DurationS          float64                     `json:"duration_s"`
	AnomalyCount       int                         `json:"anomaly_count"`
	Passed             bool                        `json:"passed"`
	Metrics            map[string]MetricComparison `json:"metrics"`
}

// Save writes the report as an indented JSON document, creating parent
// directories as needed.
func (r Report) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
