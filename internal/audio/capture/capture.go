// Package capture implements the audio capture pipeline of SPEC_FULL.md
// §4.10: poll the microphone ring buffer, batch-timeout flush, peak-
// normalize, run the HPF/AEC/AGC chain, encode to Opus, and batch frames
// onto the send queue. Grounded on rustyguts-bken's AudioEngine.captureLoop
// (AEC -> gate/AGC -> encode -> channel-send shape), generalized from its
// fixed 20ms device callback to this spec's poll-with-batch-timeout loop
// and its per-frame channel send to an 8-frame AUDIO_OPUS_BATCH.
package capture

import (
	"context"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/audio/dsp"
	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/errors"
	"github.com/alxayo/ascii-chat-go/internal/logger"
	"github.com/alxayo/ascii-chat-go/internal/sendqueue"
)

const (
	sampleRate       = 48000
	opusFrameSamples = 960               // 20ms @ 48kHz
	maxReadSamples   = 4 * opusFrameSamples // 3840, up to 4 Opus frames per read
	batchTimeout     = 40 * time.Millisecond
	opusMaxPacketLen = 1275 // RFC 6716 max Opus packet size
)

// Source abstracts the platform microphone ring buffer: Poll returns
// whatever float32 samples are currently available without blocking (may
// be empty), mirroring the spec's "poll available samples" step.
type Source interface {
	Poll() []float32
}

// Encoder abstracts gopkg.in/hraban/opus.v2's *opus.Encoder for testing,
// the same narrowing rustyguts-bken's audio.go applies to its own
// opusEncoder interface.
type Encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// Pipeline runs one capture iteration per Run loop pass.
type Pipeline struct {
	src      Source
	encoder  Encoder
	out      *sendqueue.Queue
	clientID uint32
	// CodecOptions returns the wire-encode options (compression level,
	// live cipher) to use for the next batch. Supplied by the caller so
	// it can reflect the transport's current crypto state.
	CodecOptions func() codec.Options

	hpf *dsp.HighPass
	aec *dsp.EchoCanceller
	agc *dsp.AGC

	partial      []float32
	partialStart time.Time

	batch      codec.AudioBatch
	batchStart time.Time
}

// New builds a Pipeline. aec may be nil if echo cancellation is disabled.
func New(src Source, encoder Encoder, out *sendqueue.Queue, aec *dsp.EchoCanceller, clientID uint32) *Pipeline {
	return &Pipeline{
		src:          src,
		encoder:      encoder,
		out:          out,
		clientID:     clientID,
		CodecOptions: func() codec.Options { return codec.Options{} },
		hpf:          dsp.NewHighPass(80, sampleRate),
		aec:          aec,
		agc:          dsp.NewAGC(),
	}
}

// Run executes the capture loop until ctx is cancelled, flushing any
// partial batch before returning. Intended to be spawned as a
// workerpool.Task.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flushBatch()
			return
		case <-ticker.C:
			p.iterate()
		}
	}
}

func (p *Pipeline) iterate() {
	samples := p.src.Poll()
	if len(samples) == 0 {
		if len(p.partial) > 0 && time.Since(p.partialStart) >= batchTimeout {
			p.encodeAndAccumulate(p.partial)
			p.partial = nil
		}
		if p.batch.FrameCount > 0 && time.Since(p.batchStart) >= batchTimeout {
			p.flushBatch()
		}
		return
	}
	if len(p.partial) == 0 {
		p.partialStart = time.Now()
	}
	p.partial = append(p.partial, samples...)
	for len(p.partial) >= maxReadSamples {
		p.encodeAndAccumulate(p.partial[:maxReadSamples])
		p.partial = append([]float32(nil), p.partial[maxReadSamples:]...)
		p.partialStart = time.Now()
	}
}

func (p *Pipeline) encodeAndAccumulate(samples []float32) {
	buf := append([]float32(nil), samples...)
	peakNormalize(buf)
	p.hpf.Process(buf)
	if p.aec != nil {
		p.aec.Process(buf)
	}
	p.agc.Process(buf)

	pcm := make([]int16, len(buf))
	for i, s := range buf {
		pcm[i] = floatToPCM16(s)
	}

	if p.batch.FrameCount == 0 {
		p.batchStart = time.Now()
	}

	opusBuf := make([]byte, opusMaxPacketLen)
	n, err := p.encoder.Encode(pcm, opusBuf)
	if err != nil {
		logger.Warn("opus encode failed, dropping frame", "error", errors.NewDeviceError("capture.encode", err))
		return
	}
	if n == 0 {
		return // DTX: encoder produced a silence frame, skip it
	}

	idx := p.batch.FrameCount
	p.batch.FrameSizes[idx] = uint16(n)
	p.batch.OpusBytes = append(p.batch.OpusBytes, opusBuf[:n]...)
	p.batch.FrameCount++

	if p.batch.FrameCount >= codec.MaxOpusFramesPerBatch || time.Since(p.batchStart) >= batchTimeout {
		p.flushBatch()
	}
}

func (p *Pipeline) flushBatch() {
	if p.batch.FrameCount == 0 {
		return
	}
	batchPayload := codec.EncodeAudioBatch(p.batch)
	p.batch = codec.AudioBatch{}

	envelope, err := codec.Encode(codec.TypeAudioOpusBatch, p.clientID, batchPayload, p.CodecOptions())
	if err != nil {
		logger.Warn("failed to encode audio batch envelope", "error", err)
		return
	}
	p.out.TrySend(sendqueue.Item{Kind: "audio_batch", Bytes: envelope})
}

func peakNormalize(buf []float32) {
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak <= 1.0 {
		return
	}
	scale := 0.99 / peak
	for i := range buf {
		buf[i] *= scale
	}
}

func floatToPCM16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767)
}
