package watch

import "math"

// MinSigma floors the standard deviation used in z-score denominators so
// an estimator that has only seen constant values cannot blow up the
// score into NaN or infinity.
const MinSigma = 0.001

// EWMAState is the per-metric running estimator for the exponentially
// weighted moving average and variance. Each watcher owns exactly one
// state per watched metric and is the only writer to it.
type EWMAState struct {
	Mean     float64
	Variance float64
	NSamples int
	Alpha    float64
}

// NewEWMAState derives the smoothing factor from the configured window:
// alpha = 2/(window+1). A larger window adapts more slowly and holds a
// steadier baseline.
func NewEWMAState(window int) EWMAState {
	if window < 1 {
		window = 1
	}
	return EWMAState{Alpha: 2.0 / float64(window+1)}
}

// Update folds observation x into the estimator and returns the updated
// mean and sigma. The first sample seeds the mean directly with zero
// variance.
func (s *EWMAState) Update(x float64) (mean, sigma float64) {
	if s.NSamples == 0 {
		s.Mean = x
		s.Variance = 0
	} else {
		prevMean := s.Mean
		s.Mean = s.Alpha*x + (1-s.Alpha)*s.Mean
		diff := x - prevMean
		s.Variance = (1 - s.Alpha) * (s.Variance + s.Alpha*diff*diff)
	}
	s.NSamples++
	return s.Mean, s.Sigma()
}

// Sigma returns the current standard deviation estimate.
func (s *EWMAState) Sigma() float64 {
	return math.Sqrt(s.Variance)
}

// Warm reports whether the estimator has left its cold-start phase.
// This is the single COLD→WARM transition predicate; alerts fire only
// once it holds.
func (s *EWMAState) Warm(minSamples int) bool {
	return s.NSamples >= minSamples
}
