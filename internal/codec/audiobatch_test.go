package codec

import (
	"bytes"
	"testing"
)

func TestAudioBatchRoundTrip(t *testing.T) {
	frames := [][]byte{[]byte("aa"), []byte("bbb"), []byte("c")}
	var b AudioBatch
	b.FrameCount = len(frames)
	var all []byte
	for i, f := range frames {
		b.FrameSizes[i] = uint16(len(f))
		all = append(all, f...)
	}
	b.OpusBytes = all

	payload := EncodeAudioBatch(b)
	got, err := DecodeAudioBatch(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FrameCount != len(frames) {
		t.Fatalf("frame count mismatch: got %d want %d", got.FrameCount, len(frames))
	}
	off := 0
	for i, f := range frames {
		size := int(got.FrameSizes[i])
		if !bytes.Equal(got.OpusBytes[off:off+size], f) {
			t.Fatalf("frame %d mismatch", i)
		}
		off += size
	}
}

func TestAudioBatchRejectsTruncatedPayload(t *testing.T) {
	payload := []byte{2, 0, 5, 0, 5} // declares two 5-byte frames, no data
	if _, err := DecodeAudioBatch(payload); err == nil {
		t.Fatalf("expected decode to reject a truncated batch")
	}
}

func TestAudioBatchRejectsOversizedFrameCount(t *testing.T) {
	payload := []byte{MaxOpusFramesPerBatch + 1}
	if _, err := DecodeAudioBatch(payload); err == nil {
		t.Fatalf("expected decode to reject frame_count beyond the cap")
	}
}
