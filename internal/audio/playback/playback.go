// Package playback implements the audio playback pipeline of
// SPEC_FULL.md §4.11: decode each Opus frame out of an AUDIO_OPUS_BATCH
// envelope, concatenate PCM, submit it to a jitter ring, and feed the same
// PCM to the echo canceller's reference input at the device sink (not at
// decode time) so the AEC sees the actual output timing. Grounded on
// rustyguts-bken's AudioEngine.playbackLoop (decode -> mix -> write ->
// FeedFarEnd ordering), generalized from its per-sender jitter buffer to
// this spec's single fixed-capacity PCM ring (one peer per connection).
package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/audio/dsp"
	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/logger"
)

const opusFrameSamples = 960 // 20ms @ 48kHz

// Decoder abstracts gopkg.in/hraban/opus.v2's *opus.Decoder for testing.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Sink abstracts the platform audio output device: Write is called from
// the device callback with the PCM about to be rendered.
type Sink interface {
	Write(pcm []float32) error
}

// ring is a small fixed-capacity PCM buffer standing in for the teacher's
// bounded outbound-queue idiom (conn.Connection.outboundQueue), applied
// here to decoded playback PCM instead of outbound wire bytes.
type ring struct {
	mu  sync.Mutex
	buf []float32
}

func (r *ring) push(pcm []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, pcm...)
	const maxBuffered = opusFrameSamples * 16
	if len(r.buf) > maxBuffered {
		r.buf = r.buf[len(r.buf)-maxBuffered:]
	}
}

// drain removes and returns up to n samples, padding with silence if the
// ring holds less than n (underrun).
func (r *ring) drain(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, n)
	avail := len(r.buf)
	if avail > n {
		avail = n
	}
	copy(out, r.buf[:avail])
	r.buf = r.buf[avail:]
	return out
}

// Pipeline decodes inbound AUDIO_OPUS_BATCH envelopes and drives the
// device output callback.
type Pipeline struct {
	decoder Decoder
	sink    Sink
	ref     atomic.Pointer[dsp.EchoCanceller] // weak back-pointer; nil-checked on every use

	jitter ring

	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Pipeline. ref may be nil if echo cancellation is disabled.
func New(decoder Decoder, sink Sink, ref *dsp.EchoCanceller) *Pipeline {
	p := &Pipeline{decoder: decoder, sink: sink, stopped: make(chan struct{})}
	p.ref.Store(ref)
	return p
}

// OnAudioOpusBatch is an internal/dispatch.Handler bound to
// codec.TypeAudioOpusBatch.
func (p *Pipeline) OnAudioOpusBatch(env codec.Envelope) error {
	batch, err := codec.DecodeAudioBatch(env.Payload)
	if err != nil {
		return err
	}
	var offset int
	pcm := make([]int16, opusFrameSamples)
	var concatenated []float32
	for i := 0; i < batch.FrameCount; i++ {
		size := int(batch.FrameSizes[i])
		frame := batch.OpusBytes[offset : offset+size]
		offset += size

		n, err := p.decoder.Decode(frame, pcm)
		if err != nil {
			logger.Warn("opus decode failed, skipping frame", "error", err)
			continue
		}
		for _, s := range pcm[:n] {
			concatenated = append(concatenated, float32(s)/32768.0)
		}
	}
	p.jitter.push(concatenated)
	return nil
}

// RunDeviceCallback simulates the platform output callback: every period,
// drain one frame's worth of PCM from the jitter ring, hand it to the
// sink, and feed the same samples to the echo canceller's reference input
// at the sink — the timing that makes AEC correct despite jitter-buffer
// latency (SPEC_FULL.md §4.11 step 3).
func (p *Pipeline) RunDeviceCallback(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case <-ticker.C:
			frame := p.jitter.drain(opusFrameSamples)
			if err := p.sink.Write(frame); err != nil {
				logger.Warn("playback device write failed", "error", err)
			}
			if ref := p.ref.Load(); ref != nil {
				ref.FeedReference(frame)
			}
		}
	}
}

// Shutdown nulls the AEC reference and waits a grace period so any
// in-flight device callback observes the null before the pipeline is torn
// down, per SPEC_FULL.md §4.11's 500ms shutdown grace period.
func (p *Pipeline) Shutdown(grace time.Duration) {
	p.stopOnce.Do(func() {
		p.ref.Store(nil)
		close(p.stopped)
	})
	time.Sleep(grace)
}
