// Package video implements the video ingress handler of SPEC_FULL.md §4.9:
// decompress and CRC-verify the Frame Record carried in an ASCII_FRAME
// envelope's payload, client-side frame-rate limiting, first-frame/
// SERVER_STATE-triggered terminal reset, and render-to-stdout. The
// envelope's own CRC32/compression (internal/codec.Decode) only covers the
// wire record as a whole; the Frame Record is a nested sub-format (mirrors
// internal/codec/audiobatch.go's AUDIO_OPUS_BATCH handling) with its own
// checksum over the decompressed ASCII payload, so OnFrame must parse and
// verify it independently before rendering.
package video

import (
	"bufio"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/config"
	"github.com/alxayo/ascii-chat-go/internal/logger"
	"github.com/alxayo/ascii-chat-go/internal/metrics"
)

// resetSequence clears the screen and homes the cursor, mirroring a
// full-screen terminal reset.
const resetSequence = "\x1b[2J\x1b[H"

// Handler renders ASCII_FRAME envelopes to an output writer, rate-limited
// to the configured fps and reset on the first frame of a connection or
// whenever the participant count changes.
type Handler struct {
	out *bufio.Writer

	mu           sync.Mutex
	limiter      *rate.Limiter
	limiterFPS   int
	needsReset   bool
	lastState    uint32
	haveState    bool
	snapshotMode bool
	snapshotAt   time.Time
	snapshotSet  bool
	shutdownSent bool

	// RequestShutdown is invoked once, after rendering the frame that
	// crosses the configured snapshot delay. When nil, no shutdown is
	// requested; SnapshotMode still bypasses the frame-rate limiter.
	RequestShutdown func()
}

// New builds a Handler writing to w (typically os.Stdout), sized for the
// fps limit in s. OnFrame reads the snapshot-mode settings from the current
// config snapshot on every frame.
func New(w io.Writer, s *config.Snapshot) *Handler {
	h := &Handler{
		out:          bufio.NewWriter(w),
		needsReset:   true,
		snapshotMode: s.SnapshotMode,
	}
	h.setFPS(s.FPSLimit)
	return h
}

func (h *Handler) setFPS(fps int) {
	if fps <= 0 {
		fps = 1
	}
	h.limiterFPS = fps
	h.limiter = rate.NewLimiter(rate.Limit(fps), 1)
}

// OnFrame is an internal/dispatch.Handler bound to codec.TypeASCIIFrame.
// Steps 1-3 (parse Frame Record header, decompress, CRC32-verify) happen
// here before rate-limiting and rendering; a checksum mismatch drops the
// frame with a single log line and counts it separately from rate-limiter
// drops rather than tearing down the connection (SPEC_FULL.md §8's
// malformed-CRC scenario).
func (h *Handler) OnFrame(env codec.Envelope) error {
	_, payload, err := codec.DecodeFrame(env.Payload)
	if err != nil {
		if codec.IsFrameChecksumMismatch(err) {
			logger.WarnRateLimited("video.frame_crc", "dropping frame with bad checksum", "error", err)
			metrics.VideoFramesDroppedCRC.Inc()
		} else {
			logger.WarnRateLimited("video.frame_malformed", "dropping malformed frame record", "error", err)
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := config.Get()
	if s.FPSLimit != h.limiterFPS {
		h.setFPS(s.FPSLimit)
	}

	if !s.SnapshotMode && !h.limiter.Allow() {
		metrics.VideoFramesDroppedRate.Inc()
		return nil
	}

	if h.needsReset {
		h.needsReset = false
		h.out.WriteString(resetSequence)
	}

	h.out.Write(payload)
	if err := h.out.Flush(); err != nil {
		return err
	}
	metrics.VideoFramesRendered.Inc()

	if s.SnapshotMode {
		if !h.snapshotSet {
			h.snapshotSet = true
			h.snapshotAt = time.Now()
		}
		if !h.shutdownSent && time.Since(h.snapshotAt) >= time.Duration(s.SnapshotDelay)*time.Second {
			h.shutdownSent = true
			if h.RequestShutdown != nil {
				h.RequestShutdown()
			}
		}
	}
	return nil
}

// OnServerState is an internal/dispatch.Handler bound to
// codec.TypeServerState. It tracks the active-participant count so the
// next rendered frame knows whether to force a reset.
func (h *Handler) OnServerState(env codec.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	count, ok := decodeParticipantCount(env.Payload)
	if !ok {
		logger.Warn("malformed SERVER_STATE payload", "len", len(env.Payload))
		return nil
	}
	if h.haveState && count != h.lastState {
		h.needsReset = true // force a reset before the next rendered frame
	}
	h.lastState = count
	h.haveState = true
	return nil
}

func decodeParticipantCount(payload []byte) (uint32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3]), true
}
