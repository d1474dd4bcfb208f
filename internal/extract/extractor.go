package extract

import (
	"strconv"
)

// Sample is a single metric observation pulled out of one log line.
// Occurrence samples always carry value 1.0.
type Sample struct {
	Metric    string
	Value     float64
	RawLine   string
	LineIndex int
}

// Extractor matches registry patterns against raw device log lines and
// produces typed samples. It holds no mutable state and may be shared.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor over the supplied registry, falling
// back to the default registry when nil.
func NewExtractor(registry *Registry) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Extractor{registry: registry}
}

// Registry exposes the extractor's pattern registry.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// ExtractLine matches every registered pattern against a single line and
// returns the resulting samples in registry order. A numeric pattern
// whose capture fails to parse is dropped silently; an unattended
// monitor must survive malformed device output.
func (e *Extractor) ExtractLine(line string, lineIndex int) []Sample {
	var samples []Sample
	for _, p := range e.registry.patterns {
		m := p.Regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		var value float64
		switch {
		case p.Kind == KindOccurrence:
			value = 1.0
		case p.Name == TimestampMetric:
			v, ok := timestampSeconds(m)
			if !ok {
				continue
			}
			value = v
		default:
			if len(m) < 2 {
				continue
			}
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			value = v
		}

		samples = append(samples, Sample{
			Metric:    p.Name,
			Value:     value,
			RawLine:   line,
			LineIndex: lineIndex,
		})
	}
	return samples
}

// ExtractLines runs ExtractLine over a batch, indexing lines from zero.
func (e *Extractor) ExtractLines(lines []string) []Sample {
	var samples []Sample
	for i, line := range lines {
		samples = append(samples, e.ExtractLine(line, i)...)
	}
	return samples
}

// timestampSeconds converts [HH:MM:SS.mmm] capture groups into total
// fractional seconds.
func timestampSeconds(m []string) (float64, bool) {
	if len(m) < 4 {
		return 0, false
	}
	h, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	s, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return h*3600 + min*60 + s, true
}
