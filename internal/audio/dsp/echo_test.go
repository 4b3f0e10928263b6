package dsp

import "testing"

func TestEchoCancellerReducesKnownEcho(t *testing.T) {
	ec := NewEchoCanceller(960)

	ref := make([]float32, 960)
	for i := range ref {
		if i%2 == 0 {
			ref[i] = 0.5
		} else {
			ref[i] = -0.5
		}
	}

	var firstResidual, lastResidual float64
	for iter := 0; iter < 400; iter++ {
		ec.FeedReference(ref)
		captured := make([]float32, 960)
		copy(captured, ref) // captured signal is pure echo of ref, no near-end speech
		ec.Process(captured)

		var sum float64
		for _, v := range captured {
			sum += float64(v) * float64(v)
		}
		if iter == 0 {
			firstResidual = sum
		}
		lastResidual = sum
	}

	if lastResidual >= firstResidual {
		t.Fatalf("expected residual echo energy to shrink as the filter adapts: first=%v last=%v", firstResidual, lastResidual)
	}
}

func TestEchoCancellerDisabledPassesThrough(t *testing.T) {
	ec := NewEchoCanceller(960)
	ec.SetEnabled(false)

	frame := make([]float32, 960)
	for i := range frame {
		frame[i] = 0.3
	}
	orig := append([]float32(nil), frame...)
	ec.Process(frame)
	for i := range frame {
		if frame[i] != orig[i] {
			t.Fatalf("expected disabled canceller to leave frame untouched at %d", i)
		}
	}
}
