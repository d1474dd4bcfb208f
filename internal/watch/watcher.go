package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sentinelstack/device-sentinel/internal/extract"
	"github.com/sentinelstack/device-sentinel/internal/tail"
)

const (
	defaultThresholdSigma = 2.5
	defaultWindow         = 20
	defaultMinSamples     = 30
	defaultPollInterval   = 100 * time.Millisecond
)

// Alert is emitted when a warm estimator sees a sample whose z-score
// exceeds the configured threshold. The mean and sigma it carries are
// the pre-update values the sample was judged against; an Alert is
// immutable once constructed.
type Alert struct {
	TS        float64 `json:"ts"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	EWMAMean  float64 `json:"ewma_mean"`
	EWMASigma float64 `json:"ewma_sigma"`
	ZScore    float64 `json:"z_score"`
	Threshold float64 `json:"threshold"`
	RawLine   string  `json:"raw_line"`
}

// Config holds watcher settings. Zero values fall back to defaults; only
// LogPath and Metric are required.
type Config struct {
	LogPath        string
	Metric         string
	ThresholdSigma float64
	Window         int
	MinSamples     int
	// Duration bounds the watch loop; zero means run until the context
	// is cancelled.
	Duration     time.Duration
	PollInterval time.Duration
	Registry     *extract.Registry
	// OnAlert receives each alert synchronously. When nil, alerts are
	// written as one JSON object per line to Out (stdout by default).
	OnAlert func(Alert)
	Out     io.Writer
}

// Watcher tails a device log and runs streaming EWMA anomaly detection
// over a single metric. Each watcher owns its estimator; run one watcher
// per metric, concurrently if desired, with no shared mutable state.
type Watcher struct {
	cfg       Config
	extractor *extract.Extractor
	state     EWMAState
}

// NewWatcher validates the watched metric against the registry before
// any I/O happens; an unknown name fails fast with the valid set.
func NewWatcher(cfg Config) (*Watcher, error) {
	if cfg.Registry == nil {
		cfg.Registry = extract.DefaultRegistry()
	}
	if _, ok := cfg.Registry.Lookup(cfg.Metric); !ok {
		return nil, fmt.Errorf("unknown metric %q, available: %s",
			cfg.Metric, strings.Join(cfg.Registry.SortedNames(), ", "))
	}
	if cfg.ThresholdSigma <= 0 {
		cfg.ThresholdSigma = defaultThresholdSigma
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	return &Watcher{
		cfg: cfg,
		// Matching only the watched metric keeps per-line work small.
		extractor: extract.NewExtractor(cfg.Registry.Filter([]string{cfg.Metric})),
		state:     NewEWMAState(cfg.Window),
	}, nil
}

// Watch tails the log until the configured duration elapses or the
// context is cancelled, whichever comes first. Both are normal exits
// returning every alert emitted so far. Tailing starts at the current
// end of file.
func (w *Watcher) Watch(ctx context.Context) []Alert {
	var alerts []Alert
	offset := tail.Size(w.cfg.LogPath)

	var deadline time.Time
	if w.cfg.Duration > 0 {
		deadline = time.Now().Add(w.cfg.Duration)
	}

	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	encoder := json.NewEncoder(w.cfg.Out)

	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return alerts
		}

		select {
		case <-ctx.Done():
			return alerts
		case <-timer.C:
		}

		var lines []string
		lines, offset = tail.ReadNew(w.cfg.LogPath, offset)
		for _, line := range lines {
			for _, sample := range w.extractor.ExtractLine(line, 0) {
				if sample.Metric != w.cfg.Metric {
					continue
				}
				alert, fired := w.observe(sample.Value, line)
				if !fired {
					continue
				}
				alerts = append(alerts, alert)
				if w.cfg.OnAlert != nil {
					w.cfg.OnAlert(alert)
				} else if err := encoder.Encode(alert); err != nil {
					// Alert delivery failure must not kill the loop.
					continue
				}
			}
		}

		timer.Reset(w.cfg.PollInterval)
	}
}

// observe folds one observation into the estimator and decides whether
// it fires an alert. The z-score is computed against the pre-update
// mean and sigma so a spike never pollutes the statistic used to judge
// it, and cold-start samples update the estimator without alerting.
func (w *Watcher) observe(x float64, rawLine string) (Alert, bool) {
	prevMean := w.state.Mean
	prevSigma := w.state.Sigma()

	w.state.Update(x)

	if !w.state.Warm(w.cfg.MinSamples) {
		return Alert{}, false
	}

	z := (x - prevMean) / math.Max(prevSigma, MinSigma)
	if math.Abs(z) <= w.cfg.ThresholdSigma {
		return Alert{}, false
	}

	return Alert{
		TS:        float64(time.Now().UnixNano()) / 1e9,
		Metric:    w.cfg.Metric,
		Value:     x,
		EWMAMean:  prevMean,
		EWMASigma: prevSigma,
		ZScore:    z,
		Threshold: w.cfg.ThresholdSigma,
		RawLine:   strings.TrimRight(rawLine, "\r\n"),
	}, true
}

// State returns a copy of the current estimator state.
func (w *Watcher) State() EWMAState {
	return w.state
}
