package baseline

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/extract"
)

// MetricStats summarises one metric over a recording window.
//
// Percentiles are present iff at least one numeric sample was observed.
// Occurrence metrics keep mean/std/min/max fixed at zero and never carry
// percentiles; their signal is count and rate_per_min. A count of zero
// means the metric stayed quiet during the window, which is sparsity,
// not an error.
type MetricStats struct {
	Kind       extract.Kind
	Count      int
	Mean       float64
	Std        float64
	Min        float64
	Max        float64
	P50        *float64
	P95        *float64
	P99        *float64
	RatePerMin float64
}

type numericStatsJSON struct {
	Kind       extract.Kind `json:"kind"`
	Count      int          `json:"count"`
	RatePerMin float64      `json:"rate_per_min"`
	Mean       float64      `json:"mean"`
	Std        float64      `json:"std"`
	Min        float64      `json:"min"`
	Max        float64      `json:"max"`
	P50        *float64     `json:"p50,omitempty"`
	P95        *float64     `json:"p95,omitempty"`
	P99        *float64     `json:"p99,omitempty"`
}

type occurrenceStatsJSON struct {
	Kind       extract.Kind `json:"kind"`
	Count      int          `json:"count"`
	RatePerMin float64      `json:"rate_per_min"`
}

// MarshalJSON writes the kind-dependent wire form: occurrence metrics
// carry only count and rate, numeric metrics add the distribution
// fields with percentiles omitted when absent.
func (s MetricStats) MarshalJSON() ([]byte, error) {
	if s.Kind == extract.KindOccurrence {
		return json.Marshal(occurrenceStatsJSON{
			Kind:       s.Kind,
			Count:      s.Count,
			RatePerMin: s.RatePerMin,
		})
	}
	return json.Marshal(numericStatsJSON{
		Kind:       s.Kind,
		Count:      s.Count,
		RatePerMin: s.RatePerMin,
		Mean:       s.Mean,
		Std:        s.Std,
		Min:        s.Min,
		Max:        s.Max,
		P50:        s.P50,
		P95:        s.P95,
		P99:        s.P99,
	})
}

// UnmarshalJSON accepts either wire form; missing numeric fields decode
// to zero values and absent percentiles stay absent.
func (s *MetricStats) UnmarshalJSON(data []byte) error {
	var aux numericStatsJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = MetricStats{
		Kind:       aux.Kind,
		Count:      aux.Count,
		RatePerMin: aux.RatePerMin,
		Mean:       aux.Mean,
		Std:        aux.Std,
		Min:        aux.Min,
		Max:        aux.Max,
		P50:        aux.P50,
		P95:        aux.P95,
		P99:        aux.P99,
	}
	return nil
}

// Baseline is a recorded statistical profile of a device log window.
// Every metric known to the extractor registry appears in Metrics, even
// with count zero; it is read-only once returned.
type Baseline struct {
	Version           string                 `json:"version"`
	Device            string                 `json:"device"`
	LogSource         string                 `json:"log_source"`
	RecordedAt        string                 `json:"recorded_at"`
	DurationS         float64                `json:"duration_s"`
	TotalLinesScanned int                    `json:"total_lines_scanned"`
	Metrics           map[string]MetricStats `json:"metrics"`
}

// occurrenceStats builds stats for a match-counted metric.
func occurrenceStats(count int, duration time.Duration) MetricStats {
	return MetricStats{
		Kind:       extract.KindOccurrence,
		Count:      count,
		RatePerMin: ratePerMin(count, duration),
	}
}

// numericStats builds stats for a value-bearing metric. A single sample
// degenerates to std=0 with all percentiles pinned to the value, which
// avoids variance math on one point.
func numericStats(values []float64, duration time.Duration) MetricStats {
	n := len(values)
	switch n {
	case 0:
		return MetricStats{Kind: extract.KindNumeric}
	case 1:
		v := values[0]
		return MetricStats{
			Kind:       extract.KindNumeric,
			Count:      1,
			Mean:       v,
			Min:        v,
			Max:        v,
			P50:        ptr(v),
			P95:        ptr(v),
			P99:        ptr(v),
			RatePerMin: ratePerMin(1, duration),
		}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range sorted {
		mean += v
	}
	mean /= float64(n)

	// Sample (Bessel-corrected) standard deviation.
	ss := 0.0
	for _, v := range sorted {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))

	return MetricStats{
		Kind:       extract.KindNumeric,
		Count:      n,
		Mean:       mean,
		Std:        std,
		Min:        sorted[0],
		Max:        sorted[n-1],
		P50:        ptr(quantile(sorted, 0.50)),
		P95:        ptr(quantile(sorted, 0.95)),
		P99:        ptr(quantile(sorted, 0.99)),
		RatePerMin: ratePerMin(n, duration),
	}
}

// quantile computes percentile p in [0,1] over pre-sorted data using the
// inclusive rank-interpolation convention; every percentile in this
// system goes through here.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func ratePerMin(count int, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(count) / duration.Minutes()
}

func ptr(v float64) *float64 {
	return &v
}
