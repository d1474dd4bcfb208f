package watch

import (
	"math"
	"sort"
)

// MetricSummary aggregates the alerts a session emitted for one metric.
type MetricSummary struct {
	Metric    string
	Alerts    int
	MaxAbsZ   float64
	LastValue float64
	LastTS    float64
}

// Summarize rolls a session's alerts up per metric, ordered by alert
// count descending so the noisiest metric leads the end-of-session log
// line. Returns nil for a quiet session.
func Summarize(alerts []Alert) []MetricSummary {
	if len(alerts) == 0 {
		return nil
	}

	byMetric := make(map[string]*MetricSummary)
	for _, alert := range alerts {
		s, ok := byMetric[alert.Metric]
		if !ok {
			s = &MetricSummary{Metric: alert.Metric}
			byMetric[alert.Metric] = s
		}
		s.Alerts++
		if absZ := math.Abs(alert.ZScore); absZ > s.MaxAbsZ {
			s.MaxAbsZ = absZ
		}
		if alert.TS >= s.LastTS {
			s.LastTS = alert.TS
			s.LastValue = alert.Value
		}
	}

	summaries := make([]MetricSummary, 0, len(byMetric))
	for _, s := range byMetric {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Alerts != summaries[j].Alerts {
			return summaries[i].Alerts > summaries[j].Alerts
		}
		return summaries[i].Metric < summaries[j].Metric
	})
	return summaries
}
