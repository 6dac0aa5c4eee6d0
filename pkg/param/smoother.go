package param

import "math"

// SmoothingType selects a Smoother's interpolation shape.
type SmoothingType int

const (
	LinearSmoothing SmoothingType = iota
	ExponentialSmoothing
	LogarithmicSmoothing
)

// Smoother ramps a plain value toward a target over a configured rate,
// avoiding the zipper noise a stepped parameter change would otherwise
// produce. Rate is expressed in samples for Linear/Logarithmic, and as a
// one-pole coefficient in (0, 1) for Exponential.
type Smoother struct {
	kind      SmoothingType
	current   float64
	target    float64
	rate      float64
	threshold float64
	smoothing bool

	step float64

	logCurrent float64
	logTarget  float64
	logStep    float64
}

// NewSmoother builds a Smoother of the given kind and rate.
func NewSmoother(kind SmoothingType, rate float64) *Smoother {
	return &Smoother{kind: kind, rate: rate, threshold: 0.0001}
}

// SetTarget retargets the smoother. A target within threshold of the
// current target is ignored to avoid restarting a ramp for noise.
func (s *Smoother) SetTarget(target float64) {
	if math.Abs(target-s.target) < s.threshold {
		return
	}
	s.target = target
	s.smoothing = true

	switch s.kind {
	case LinearSmoothing:
		if s.rate > 0 {
			s.step = (target - s.current) / s.rate
		}
	case LogarithmicSmoothing:
		const minVal = 0.001
		cur, tgt := s.current, target
		if cur < minVal {
			cur = minVal
		}
		if tgt < minVal {
			tgt = minVal
		}
		s.logCurrent = math.Log(cur)
		s.logTarget = math.Log(tgt)
		if s.rate > 0 {
			s.logStep = (s.logTarget - s.logCurrent) / s.rate
		}
	}
}

// Next advances the smoother by one sample and returns the new current
// value.
func (s *Smoother) Next() float64 {
	if !s.smoothing {
		return s.current
	}
	switch s.kind {
	case ExponentialSmoothing:
		s.current += (s.target - s.current) * (1.0 - s.rate)
		if math.Abs(s.current-s.target) < s.threshold {
			s.current = s.target
			s.smoothing = false
		}
	case LinearSmoothing:
		s.current += s.step
		if (s.step > 0 && s.current >= s.target) || (s.step < 0 && s.current <= s.target) {
			s.current = s.target
			s.smoothing = false
		}
	case LogarithmicSmoothing:
		s.logCurrent += s.logStep
		if (s.logStep > 0 && s.logCurrent >= s.logTarget) || (s.logStep < 0 && s.logCurrent <= s.logTarget) {
			s.current = s.target
			s.smoothing = false
		} else {
			s.current = math.Exp(s.logCurrent)
		}
	}
	return s.current
}

// Process fills dst with one smoothed value per sample.
func (s *Smoother) Process(dst []float32) {
	for i := range dst {
		dst[i] = float32(s.Next())
	}
}

// IsSmoothing reports whether the smoother has not yet reached its
// target.
func (s *Smoother) IsSmoothing() bool { return s.smoothing }

// Reset snaps the smoother to value without ramping.
func (s *Smoother) Reset(value float64) {
	s.current = value
	s.target = value
	s.smoothing = false
}

// SetRate updates the smoothing rate.
func (s *Smoother) SetRate(rate float64) { s.rate = rate }

// RateForTime sets a sample-count (Linear/Logarithmic) or one-pole
// coefficient (Exponential) rate for the given duration at sr samples
// per second.
func (s *Smoother) RateForTime(sr float64, seconds float64) {
	switch s.kind {
	case ExponentialSmoothing:
		s.SetRate(math.Exp(-6.908 / (sr * seconds)))
	default:
		s.SetRate(sr * seconds)
	}
}
