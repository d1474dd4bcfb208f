package baseline

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/extract"
)

func TestNumericStatsSingleSample(t *testing.T) {
	s := numericStats([]float64{42.0}, time.Minute)
	if s.Count != 1 || s.Mean != 42.0 || s.Std != 0 {
		t.Fatalf("single-sample stats = %+v", s)
	}
	if s.P50 == nil || s.P95 == nil || s.P99 == nil {
		t.Fatalf("single-sample percentiles missing: %+v", s)
	}
	if *s.P50 != 42.0 || *s.P95 != 42.0 || *s.P99 != 42.0 {
		t.Fatalf("single-sample percentiles = %v %v %v, want 42", *s.P50, *s.P95, *s.P99)
	}
}

func TestNumericStatsConstantStream(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 7.5
	}
	s := numericStats(values, time.Minute)
	if s.Std != 0 {
		t.Fatalf("constant stream std = %v, want 0", s.Std)
	}
	if math.IsNaN(s.Mean) || math.IsNaN(s.Std) {
		t.Fatalf("NaN in constant-stream stats: %+v", s)
	}
}

func TestNumericStatsDistribution(t *testing.T) {
	// 1..5: mean 3, sample std sqrt(2.5), inclusive p50 = 3.
	s := numericStats([]float64{5, 3, 1, 4, 2}, time.Minute)
	if s.Count != 5 || s.Mean != 3.0 {
		t.Fatalf("stats = %+v", s)
	}
	if math.Abs(s.Std-math.Sqrt(2.5)) > 1e-12 {
		t.Fatalf("std = %v, want %v", s.Std, math.Sqrt(2.5))
	}
	if s.Min != 1 || s.Max != 5 {
		t.Fatalf("min/max = %v/%v", s.Min, s.Max)
	}
	if *s.P50 != 3.0 {
		t.Fatalf("p50 = %v, want 3", *s.P50)
	}
	// rank = 0.95*4 = 3.8 -> 4 + 0.8*(5-4) = 4.8
	if math.Abs(*s.P95-4.8) > 1e-12 {
		t.Fatalf("p95 = %v, want 4.8", *s.P95)
	}
	if s.RatePerMin != 5.0 {
		t.Fatalf("rate = %v, want 5", s.RatePerMin)
	}
}

func TestNumericStatsEmpty(t *testing.T) {
	s := numericStats(nil, time.Minute)
	if s.Count != 0 || s.P50 != nil || s.P95 != nil || s.P99 != nil {
		t.Fatalf("empty stats = %+v", s)
	}
}

func TestOccurrenceStatsRate(t *testing.T) {
	s := occurrenceStats(30, 2*time.Minute)
	if s.Count != 30 || s.RatePerMin != 15.0 {
		t.Fatalf("occurrence stats = %+v", s)
	}
	if s.Kind != extract.KindOccurrence {
		t.Fatalf("kind = %v", s.Kind)
	}
}

func TestRatePerMinZeroDuration(t *testing.T) {
	if got := ratePerMin(10, 0); got != 0 {
		t.Fatalf("rate at zero duration = %v", got)
	}
}

func TestQuantileInclusive(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	// rank = 0.5*3 = 1.5 -> midpoint of 20 and 30.
	if got := quantile(sorted, 0.50); got != 25.0 {
		t.Fatalf("p50 = %v, want 25", got)
	}
	if got := quantile(sorted, 0.0); got != 10.0 {
		t.Fatalf("p0 = %v, want 10", got)
	}
	if got := quantile(sorted, 1.0); got != 40.0 {
		t.Fatalf("p100 = %v, want 40", got)
	}
}

func TestOccurrenceJSONOmitsDistribution(t *testing.T) {
	data, err := json.Marshal(occurrenceStats(4, time.Minute))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, field := range []string{"mean", "std", "min", "max", "p50"} {
		if strings.Contains(s, `"`+field+`"`) {
			t.Fatalf("occurrence JSON carries %q: %s", field, s)
		}
	}
	if !strings.Contains(s, `"kind":"occurrence"`) {
		t.Fatalf("kind missing from %s", s)
	}
}

func TestNumericJSONRoundTrip(t *testing.T) {
	orig := numericStats([]float64{1, 2, 3, 4, 5}, time.Minute)
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back MetricStats
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Mean != orig.Mean || back.Std != orig.Std || back.Count != orig.Count {
		t.Fatalf("round trip changed stats: %+v vs %+v", back, orig)
	}
	if back.P95 == nil || *back.P95 != *orig.P95 {
		t.Fatalf("round trip lost p95")
	}
}

func TestZeroCountJSONHasNoPercentiles(t *testing.T) {
	data, err := json.Marshal(numericStats(nil, time.Minute))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back MetricStats
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.P50 != nil || back.P95 != nil || back.P99 != nil {
		t.Fatalf("absent percentiles resurfaced: %+v", back)
	}
}
