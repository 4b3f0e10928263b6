package codec

import (
	"bytes"
	"testing"
)

func TestFrameRoundTripUncompressed(t *testing.T) {
	payload := []byte("hello ascii art")
	rec, err := EncodeFrame(80, 24, payload, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	header, got, err := DecodeFrame(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if header.Flags&FrameFlagCompressed != 0 {
		t.Fatalf("expected no compression flag at level 0")
	}
	if header.Width != 80 || header.Height != 24 {
		t.Fatalf("unexpected dimensions: %+v", header)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q want %q", got, payload)
	}
}

func TestFrameRoundTripCompressed(t *testing.T) {
	payload := bytes.Repeat([]byte("ascii-frame-body "), 100)
	rec, err := EncodeFrame(80, 24, payload, 9)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	header, got, err := DecodeFrame(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if header.Flags&FrameFlagCompressed == 0 {
		t.Fatalf("expected a repetitive payload above threshold to compress")
	}
	if header.CompressedSize >= header.OriginalSize {
		t.Fatalf("expected compressed_size < original_size, got %+v", header)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch after decompression")
	}
}

func TestFrameDecodeRejectsChecksumMismatch(t *testing.T) {
	rec, err := EncodeFrame(80, 24, []byte("hello"), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec[12] ^= 0xFF // checksum occupies header bytes [12:16]

	_, _, err = DecodeFrame(rec)
	if err == nil {
		t.Fatalf("expected checksum mismatch to be rejected")
	}
	if !IsFrameChecksumMismatch(err) {
		t.Fatalf("expected IsFrameChecksumMismatch to recognize the error, got %v", err)
	}
}

func TestFrameDecodeRejectsTruncatedHeader(t *testing.T) {
	_, _, err := DecodeFrame([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected a too-short record to be rejected")
	}
	if IsFrameChecksumMismatch(err) {
		t.Fatalf("a truncated header is not a checksum mismatch")
	}
}
