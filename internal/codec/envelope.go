package codec

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// Envelope is the decoded, in-memory form of one wire record.
// Decode restores Payload to its decompressed form before
// returning, so callers downstream of Decode never see compressed bytes.
type Envelope struct {
	Type     PacketType
	Flags    Flags
	ClientID uint32
	Payload  []byte
}

// header is the fixed-size portion of the wire record, decoded first so
// the length field is known before the variable-size payload is read —
// mirrors the teacher's basic-header-then-message-header staged parse in
// internal/rtmp/chunk.header.go.
type header struct {
	magic    uint32
	typ      PacketType
	flags    Flags
	clientID uint32
	length   uint32
	crc      uint32
}

func encodeHeader(dst []byte, h header) {
	binary.BigEndian.PutUint32(dst[0:4], h.magic)
	binary.BigEndian.PutUint16(dst[4:6], uint16(h.typ))
	binary.BigEndian.PutUint16(dst[6:8], uint16(h.flags))
	binary.BigEndian.PutUint32(dst[8:12], h.clientID)
	binary.BigEndian.PutUint32(dst[12:16], h.length)
	binary.BigEndian.PutUint32(dst[16:20], h.crc)
}

func decodeHeader(src []byte) header {
	return header{
		magic:    binary.BigEndian.Uint32(src[0:4]),
		typ:      PacketType(binary.BigEndian.Uint16(src[4:6])),
		flags:    Flags(binary.BigEndian.Uint16(src[6:8])),
		clientID: binary.BigEndian.Uint32(src[8:12]),
		length:   binary.BigEndian.Uint32(src[12:16]),
		crc:      binary.BigEndian.Uint32(src[16:20]),
	}
}

// ParseHeader validates and decodes just the fixed header, used by callers
// that need the length before deciding how many more bytes to read off the
// transport (e.g. the ingress dispatcher, SPEC_FULL.md §4.8).
func ParseHeader(src []byte) (length uint32, err error) {
	if len(src) < HeaderLen {
		return 0, errors.NewProtocolError("codec.parse_header", errBadMagic)
	}
	h := decodeHeader(src)
	if h.magic != Magic {
		return 0, errors.NewProtocolError("codec.parse_header", errBadMagic)
	}
	if h.length > MaxEnvelopeLen {
		return 0, errors.NewProtocolError("codec.parse_header", errOversized)
	}
	return h.length, nil
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
