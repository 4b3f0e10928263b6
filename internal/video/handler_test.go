package video

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/config"
)

func frameEnv(payload string) codec.Envelope {
	return frameEnvCompressed(payload, 0)
}

// frameEnvCompressed builds an ASCII_FRAME envelope carrying a well-formed
// Frame Record for payload, compressed at the given zstd level (0 disables
// compression) — mirrors how a real sender would build the envelope this
// handler is tested against.
func frameEnvCompressed(payload string, level int) codec.Envelope {
	rec, err := codec.EncodeFrame(80, 24, []byte(payload), level)
	if err != nil {
		panic(err)
	}
	return codec.Envelope{Type: codec.TypeASCIIFrame, Payload: rec}
}

func serverStateEnv(count uint32) codec.Envelope {
	b := []byte{byte(count >> 24), byte(count >> 16), byte(count >> 8), byte(count)}
	return codec.Envelope{Type: codec.TypeServerState, Payload: b}
}

func TestFirstFrameEmitsResetSequence(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 1000})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	if err := h.OnFrame(frameEnv("hello")); err != nil {
		t.Fatalf("OnFrame: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, resetSequence) {
		t.Fatalf("expected output to start with reset sequence, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected frame payload in output, got %q", out)
	}
}

func TestSecondFrameNoResetUnlessStateChanges(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 1000})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	// FPSLimit 1000 admits one frame per millisecond, so each frame below
	// waits out that interval to be rendered rather than rate-limited.
	h.OnFrame(frameEnv("a"))
	buf.Reset()
	time.Sleep(2 * time.Millisecond)
	h.OnFrame(frameEnv("b"))
	if strings.Contains(buf.String(), resetSequence) {
		t.Fatalf("expected no reset on second frame without a state change, got %q", buf.String())
	}

	h.OnServerState(serverStateEnv(1))
	buf.Reset()
	time.Sleep(2 * time.Millisecond)
	h.OnFrame(frameEnv("c"))
	if strings.Contains(buf.String(), resetSequence) {
		t.Fatalf("first observed SERVER_STATE should not itself force a reset, got %q", buf.String())
	}

	h.OnServerState(serverStateEnv(2))
	buf.Reset()
	time.Sleep(2 * time.Millisecond)
	h.OnFrame(frameEnv("d"))
	if !strings.Contains(buf.String(), resetSequence) {
		t.Fatalf("expected reset after a participant-count change, got %q", buf.String())
	}
}

func TestFrameRateLimiterDropsExcessFrames(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 5})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	rendered := 0
	for i := 0; i < 50; i++ {
		before := buf.Len()
		h.OnFrame(frameEnv("x"))
		if buf.Len() > before {
			rendered++
		}
	}
	if rendered >= 50 {
		t.Fatalf("expected the rate limiter to drop some frames, rendered all %d", rendered)
	}
}

func TestCompressedFrameRoundTrip(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 1000})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	payload := strings.Repeat("x", 1000)
	env := frameEnvCompressed(payload, 19)
	header, decoded, err := codec.DecodeFrame(env.Payload)
	if err != nil {
		t.Fatalf("sanity DecodeFrame: %v", err)
	}
	if header.CompressedSize == 0 || header.CompressedSize >= header.OriginalSize {
		t.Fatalf("expected the fixture to actually compress, header=%+v", header)
	}
	if string(decoded) != payload {
		t.Fatalf("sanity decode mismatch")
	}

	if err := h.OnFrame(env); err != nil {
		t.Fatalf("OnFrame: %v", err)
	}
	if !strings.Contains(buf.String(), payload) {
		t.Fatalf("expected decompressed payload in rendered output")
	}
}

func TestMalformedCRCFrameIsDroppedNotRendered(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 1000})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	env := frameEnv("hello")
	env.Payload[12] ^= 0xFF // checksum occupies header bytes [12:16]; flip one

	if err := h.OnFrame(env); err != nil {
		t.Fatalf("OnFrame should drop, not error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected the malformed frame to be dropped entirely, got %q", buf.String())
	}

	// The handler must keep working normally afterward.
	if err := h.OnFrame(frameEnv("ok")); err != nil {
		t.Fatalf("OnFrame after drop: %v", err)
	}
	if !strings.Contains(buf.String(), "ok") {
		t.Fatalf("expected a subsequent well-formed frame to render")
	}
}

func TestSnapshotModeTriggersShutdownAfterDelay(t *testing.T) {
	config.Init(&config.Snapshot{FPSLimit: 1000, SnapshotMode: true, SnapshotDelay: 0})
	defer config.Shutdown()

	var buf bytes.Buffer
	h := New(&buf, config.Get())

	fired := make(chan struct{})
	h.RequestShutdown = func() { close(fired) }

	h.OnFrame(frameEnv("one"))
	time.Sleep(time.Millisecond)
	h.OnFrame(frameEnv("two"))

	select {
	case <-fired:
	default:
		t.Fatalf("expected RequestShutdown to fire once the snapshot delay elapsed")
	}
}
