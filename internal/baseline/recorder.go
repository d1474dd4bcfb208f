package baseline

import (
	"context"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/extract"
	"github.com/sentinelstack/device-sentinel/internal/tail"
	"github.com/sentinelstack/device-sentinel/internal/utils"
)

const defaultPollInterval = 100 * time.Millisecond

// Recorder tails a device log for a fixed window and aggregates
// per-metric statistics into a Baseline. It seeks to the current end of
// file before starting, so only lines appended during the window count.
type Recorder struct {
	logPath      string
	duration     time.Duration
	pollInterval time.Duration
	extractor    *extract.Extractor
}

// NewRecorder constructs a recorder. A nil extractor falls back to the
// default registry; a non-positive pollInterval uses the default rate.
func NewRecorder(logPath string, duration time.Duration, extractor *extract.Extractor, pollInterval time.Duration) *Recorder {
	if extractor == nil {
		extractor = extract.NewExtractor(nil)
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Recorder{
		logPath:      logPath,
		duration:     duration,
		pollInterval: pollInterval,
		extractor:    extractor,
	}
}

// Record blocks for the configured duration, polling the log and
// extracting samples. Cancelling the context ends the window early and
// returns the statistics gathered so far; it is a normal exit, not an
// error. The optional progress callback fires once per poll cycle with
// the elapsed time.
func (r *Recorder) Record(ctx context.Context, device string, progress func(elapsed time.Duration)) (Baseline, error) {
	offset := tail.Size(r.logPath)

	values := make(map[string][]float64)
	occurrences := make(map[string]int)
	totalLines := 0

	start := time.Now()
	deadline := start.Add(r.duration)

	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-timer.C:
		}

		var lines []string
		lines, offset = tail.ReadNew(r.logPath, offset)
		totalLines += len(lines)
		for i, line := range lines {
			for _, sample := range r.extractor.ExtractLine(line, i) {
				pattern, ok := r.extractor.Registry().Lookup(sample.Metric)
				if !ok {
					continue
				}
				if pattern.Kind == extract.KindOccurrence {
					occurrences[sample.Metric]++
				} else {
					values[sample.Metric] = append(values[sample.Metric], sample.Value)
				}
			}
		}

		if progress != nil {
			progress(time.Since(start))
		}
		timer.Reset(r.pollInterval)
	}

	metrics := make(map[string]MetricStats, r.extractor.Registry().Len())
	for _, name := range r.extractor.Registry().Names() {
		pattern, _ := r.extractor.Registry().Lookup(name)
		if pattern.Kind == extract.KindOccurrence {
			metrics[name] = occurrenceStats(occurrences[name], r.duration)
		} else {
			metrics[name] = numericStats(values[name], r.duration)
		}
	}

	return Baseline{
		Version:           SchemaVersion,
		Device:            device,
		LogSource:         r.logPath,
		RecordedAt:        utils.NowRFC3339(),
		DurationS:         r.duration.Seconds(),
		TotalLinesScanned: totalLines,
		Metrics:           metrics,
	}, nil
}
