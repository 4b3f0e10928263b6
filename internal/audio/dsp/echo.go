package dsp

import "sync"

// Echo cancellation tuning, chosen for 48kHz/960-sample (20ms) frames:
// DefaultDelay covers typical DAC+acoustic-path+ADC latency, DefaultTaps
// covers residual delay/room response after the bulk delay, DefaultStep
// is a conservative NLMS step size.
const (
	DefaultDelay = 1920
	DefaultTaps  = 480
	DefaultStep  = 0.1
)

// EchoCanceller is an NLMS acoustic echo canceller: the playback pipeline
// feeds it the most recent rendered frame (FeedReference), the capture
// pipeline runs captured frames through Process after peak normalization
// and the high-pass filter and before AGC (SPEC_FULL.md §4.10 step 4). Grounded on rustyguts-bken's
// aec.AEC; same NLMS filter, renamed to this module's AUDIO_OPUS
// terminology (Process/FeedReference instead of Process/FeedFarEnd).
type EchoCanceller struct {
	mu      sync.Mutex
	enabled bool

	weights []float64
	taps    int
	step    float64

	ref       []float32
	head      int
	ringLen   int
	delay     int
	frameSize int
}

// NewEchoCanceller builds an EchoCanceller sized for frameSize-sample
// frames (960 at 48kHz/20ms).
func NewEchoCanceller(frameSize int) *EchoCanceller {
	ringLen := frameSize + DefaultDelay + DefaultTaps
	return &EchoCanceller{
		enabled:   true,
		weights:   make([]float64, DefaultTaps),
		taps:      DefaultTaps,
		step:      DefaultStep,
		ref:       make([]float32, ringLen),
		ringLen:   ringLen,
		delay:     DefaultDelay,
		frameSize: frameSize,
	}
}

// SetEnabled enables or disables cancellation, resetting filter weights on
// re-enable so adaptation starts clean.
func (e *EchoCanceller) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
	if enabled {
		for i := range e.weights {
			e.weights[i] = 0
		}
	}
}

// FeedReference records the most recently rendered playback frame as the
// far-end signal. Called from the playback pipeline's device callback,
// at the sink rather than at decode time, per SPEC_FULL.md §4.11 step 3.
func (e *EchoCanceller) FeedReference(frame []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range frame {
		e.ref[e.head] = s
		e.head = (e.head + 1) % e.ringLen
	}
}

// Process cancels the estimated echo out of a captured frame in place.
func (e *EchoCanceller) Process(frame []float32) {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}

	window := e.frameSize + e.taps - 1
	snapshot := make([]float32, window)
	start := e.head - e.frameSize - e.delay - e.taps + 1
	for j := range snapshot {
		idx := ((start+j)%e.ringLen + 3*e.ringLen) % e.ringLen
		snapshot[j] = e.ref[idx]
	}
	e.mu.Unlock()

	for i := range frame {
		base := i + e.taps - 1

		var estimate, energy float64
		for k := 0; k < e.taps; k++ {
			x := float64(snapshot[base-k])
			estimate += e.weights[k] * x
			energy += x * x
		}

		residual := float64(frame[i]) - estimate
		if energy > 1e-10 {
			scaled := e.step * residual / energy
			for k := 0; k < e.taps; k++ {
				e.weights[k] += scaled * float64(snapshot[base-k])
			}
		}
		frame[i] = float32(residual)
	}
}
