package dsp

import "math"

// AGC is a single-channel feed-forward automatic gain control / compressor
// used as the capture pipeline's AGC stage (SPEC_FULL.md §4.10). It tracks
// short-term RMS and adjusts a multiplicative gain toward a target level
// with asymmetric attack/release, the same shape as rustyguts-bken's
// agc.AGC, adapted to plug into this codec's batch-oriented capture loop
// instead of a fixed 960-sample frame callback.
type AGC struct {
	target float64
	gain   float64
}

const (
	defaultTarget = 0.20
	minGain       = 0.1
	maxGain       = 10.0
	attackCoeff   = 0.80
	releaseCoeff  = 0.02
	minRMS        = 0.001
)

// NewAGC returns an AGC at unity gain targeting the default RMS level.
func NewAGC() *AGC {
	return &AGC{target: defaultTarget, gain: 1.0}
}

// SetTarget maps level in [0, 100] onto a target RMS in [0.01, 0.50].
func (a *AGC) SetTarget(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	a.target = 0.01 + float64(level)/100.0*0.49
}

// Process applies the current gain to buf in place and updates the gain
// estimate from buf's RMS.
func (a *AGC) Process(buf []float32) {
	if len(buf) == 0 {
		return
	}

	rms := rmsOf(buf)
	for i, s := range buf {
		v := s * float32(a.gain)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		buf[i] = v
	}

	if rms < minRMS {
		return
	}

	desired := a.target / rms
	if desired < minGain {
		desired = minGain
	} else if desired > maxGain {
		desired = maxGain
	}

	coeff := releaseCoeff
	if desired < a.gain {
		coeff = attackCoeff
	}
	a.gain += coeff * (desired - a.gain)
}

// Gain returns the current linear gain multiplier.
func (a *AGC) Gain() float64 { return a.gain }

// Reset restores unity gain without changing the target.
func (a *AGC) Reset() { a.gain = 1.0 }

func rmsOf(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	mean := sum / float64(len(buf))
	return math.Sqrt(mean)
}
