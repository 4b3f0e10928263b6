package codec

import (
	"encoding/binary"
	stderrors "errors"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// FrameFlagCompressed marks a Frame Record's payload as zstd-compressed,
// independent of the envelope-level FlagCompressed this record's ASCII_FRAME
// envelope may or may not carry.
const FrameFlagCompressed uint8 = 1 << 0

// FrameHeaderLen is the fixed size, in bytes, of a FrameHeader:
// width(2) | height(2) | original_size(4) | compressed_size(4) | checksum(4) | flags(1).
const FrameHeaderLen = 2 + 2 + 4 + 4 + 4 + 1

// FrameHeader is the fixed-size prefix of an ASCII_FRAME envelope's payload
// (spec.md §3's Frame Record). checksum is the CRC32 of the decompressed
// payload, always — never of the wire bytes — so a receiver can verify
// integrity after decompression regardless of whether FrameFlagCompressed
// is set.
type FrameHeader struct {
	Width          uint16
	Height         uint16
	OriginalSize   uint32
	CompressedSize uint32
	Checksum       uint32
	Flags          uint8
}

func (h FrameHeader) compressed() bool {
	return h.Flags&FrameFlagCompressed != 0
}

// EncodeFrame serializes a FrameHeader followed by wire bytes for payload:
// compressed via the given zstd level when level > 0 and doing so actually
// shrinks the payload, otherwise stored as-is. checksum is always computed
// over the uncompressed payload.
func EncodeFrame(width, height uint16, payload []byte, level int) ([]byte, error) {
	h := FrameHeader{
		Width:        width,
		Height:       height,
		OriginalSize: uint32(len(payload)),
		Checksum:     crc32Of(payload),
	}

	wire := payload
	if level > 0 && len(payload) > CompressThreshold {
		enc, err := encoderForLevel(level)
		if err != nil {
			return nil, errors.NewCompressionError("codec.encode_frame", err)
		}
		compressed := enc.EncodeAll(payload, nil)
		if len(compressed) < len(payload) {
			wire = compressed
			h.Flags |= FrameFlagCompressed
		}
	}
	h.CompressedSize = uint32(len(wire))

	out := make([]byte, FrameHeaderLen+len(wire))
	encodeFrameHeader(out, h)
	copy(out[FrameHeaderLen:], wire)
	return out, nil
}

// DecodeFrame parses a Frame Record, decompressing the payload when
// FrameFlagCompressed is set and verifying its CRC32 against header.checksum
// before returning it. Mirrors DecodeAudioBatch's validate-then-extract
// shape for the analogous sub-format.
func DecodeFrame(record []byte) (FrameHeader, []byte, error) {
	if len(record) < FrameHeaderLen {
		return FrameHeader{}, nil, errors.NewProtocolError("codec.decode_frame", errFrameBadHeader)
	}
	h := decodeFrameHeader(record)

	wireSize := h.CompressedSize
	if !h.compressed() {
		wireSize = h.OriginalSize
	}
	if uint32(len(record)-FrameHeaderLen) != wireSize {
		return FrameHeader{}, nil, errors.NewProtocolError("codec.decode_frame", errFrameBadHeader)
	}
	wire := record[FrameHeaderLen:]

	payload := wire
	if h.compressed() {
		decoded, err := sharedDecoder().DecodeAll(wire, nil)
		if err != nil {
			return FrameHeader{}, nil, errors.NewCompressionError("codec.decode_frame", errDecompressFailed)
		}
		payload = decoded
	}
	if uint32(len(payload)) != h.OriginalSize {
		return FrameHeader{}, nil, errors.NewProtocolError("codec.decode_frame", errFrameBadHeader)
	}

	if crc32Of(payload) != h.Checksum {
		return h, nil, errors.NewProtocolError("codec.decode_frame", errFrameCrcMismatch)
	}
	return h, payload, nil
}

// IsFrameChecksumMismatch reports whether err was returned by DecodeFrame
// because the decompressed payload's CRC32 didn't match header.checksum,
// as distinct from a structurally malformed header.
func IsFrameChecksumMismatch(err error) bool {
	return stderrors.Is(err, errFrameCrcMismatch)
}

func encodeFrameHeader(dst []byte, h FrameHeader) {
	binary.BigEndian.PutUint16(dst[0:2], h.Width)
	binary.BigEndian.PutUint16(dst[2:4], h.Height)
	binary.BigEndian.PutUint32(dst[4:8], h.OriginalSize)
	binary.BigEndian.PutUint32(dst[8:12], h.CompressedSize)
	binary.BigEndian.PutUint32(dst[12:16], h.Checksum)
	dst[16] = h.Flags
}

func decodeFrameHeader(src []byte) FrameHeader {
	return FrameHeader{
		Width:          binary.BigEndian.Uint16(src[0:2]),
		Height:         binary.BigEndian.Uint16(src[2:4]),
		OriginalSize:   binary.BigEndian.Uint32(src[4:8]),
		CompressedSize: binary.BigEndian.Uint32(src[8:12]),
		Checksum:       binary.BigEndian.Uint32(src[12:16]),
		Flags:          src[16],
	}
}
