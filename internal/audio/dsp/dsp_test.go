package dsp

import (
	"math"
	"testing"
)

func TestHighPassAttenuatesDC(t *testing.T) {
	hp := NewHighPass(80, 48000)
	buf := make([]float32, 2000)
	for i := range buf {
		buf[i] = 1.0 // pure DC
	}
	hp.Process(buf)
	tail := buf[len(buf)-100:]
	var maxAbs float32
	for _, v := range tail {
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	if maxAbs > 0.05 {
		t.Fatalf("expected DC to be attenuated after settling, got residual %v", maxAbs)
	}
}

func TestHighPassPassesHighFrequency(t *testing.T) {
	hp := NewHighPass(80, 48000)
	buf := make([]float32, 2000)
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * 4000 * float64(i) / 48000))
	}
	hp.Process(buf)
	tail := buf[len(buf)-500:]
	var peak float32
	for _, v := range tail {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak < 0.5 {
		t.Fatalf("expected a 4kHz tone to pass mostly unattenuated, got peak %v", peak)
	}
}

func TestHighPassResetClearsState(t *testing.T) {
	hp := NewHighPass(80, 48000)
	buf := []float32{1, 1, 1, 1}
	hp.Process(buf)
	hp.Reset()
	if hp.z1 != 0 || hp.z2 != 0 {
		t.Fatalf("expected Reset to zero internal state")
	}
}

func TestAGCBoostsQuietSignalTowardTarget(t *testing.T) {
	agc := NewAGC()
	agc.SetTarget(50) // target RMS ~0.255
	buf := make([]float32, 960)
	for i := range buf {
		buf[i] = 0.01
	}
	for iter := 0; iter < 200; iter++ {
		frame := make([]float32, 960)
		copy(frame, buf)
		agc.Process(frame)
	}
	if agc.Gain() <= 1.0 {
		t.Fatalf("expected gain to rise above unity for a quiet signal, got %v", agc.Gain())
	}
}

func TestAGCResetRestoresUnityGain(t *testing.T) {
	agc := NewAGC()
	loud := make([]float32, 960)
	for i := range loud {
		loud[i] = 0.9
	}
	agc.Process(loud)
	agc.Reset()
	if agc.Gain() != 1.0 {
		t.Fatalf("expected Reset to restore unity gain, got %v", agc.Gain())
	}
}

func TestAGCNeverExceedsClip(t *testing.T) {
	agc := NewAGC()
	for iter := 0; iter < 50; iter++ {
		buf := make([]float32, 960)
		for i := range buf {
			buf[i] = 0.05
		}
		agc.Process(buf)
		for _, v := range buf {
			if v > 1.0 || v < -1.0 {
				t.Fatalf("AGC output exceeded [-1,1]: %v", v)
			}
		}
	}
}
