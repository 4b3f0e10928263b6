// Package codec implements the on-wire envelope framing described in
// SPEC_FULL.md §4.6: a fixed header, optional zstd compression, optional
// AEAD encryption, and a CRC32 integrity check. It generalizes the
// teacher's internal/rtmp/chunk package — which parses and serializes
// RTMP's FMT0-3 chunk headers with a single contiguous-buffer discipline —
// from chunked, stream-context-dependent framing to one self-contained
// record per envelope.
package codec

import "fmt"

// Magic is the fixed 4-byte tag every envelope begins with.
const Magic uint32 = 0x41434843 // "ACHC"

// MaxEnvelopeLen bounds the payload length field against runaway
// allocations from a malicious or corrupted peer (SPEC_FULL.md §6).
const MaxEnvelopeLen = 16 << 20

// CompressThreshold is the payload size above which the encoder attempts
// zstd compression (only applied when it actually reduces size).
const CompressThreshold = 512

// HeaderLen is the fixed size, in bytes, of the envelope header:
// magic(4) | type(2) | flags(2) | client_id(4) | len(4) | crc32(4).
const HeaderLen = 4 + 2 + 2 + 4 + 4 + 4

// PacketType identifies the kind of payload an envelope carries.
type PacketType uint16

const (
	TypeUnknown PacketType = iota
	TypeEncrypted
	TypeHandshakeComplete
	TypeASCIIFrame
	TypeAudioOpus
	TypeAudioOpusBatch
	TypeServerState
	TypePing
	TypePong
	TypeClearConsole
	TypeErrorMessage
	TypeRemoteLog
	TypeStreamStart
	TypeStreamStop
	TypeClientCapabilities
	TypeCryptoRekeyRequest
	TypeCryptoRekeyResponse
	TypeCryptoRekeyComplete
)

func (t PacketType) String() string {
	switch t {
	case TypeEncrypted:
		return "ENCRYPTED"
	case TypeHandshakeComplete:
		return "HANDSHAKE_COMPLETE"
	case TypeASCIIFrame:
		return "ASCII_FRAME"
	case TypeAudioOpus:
		return "AUDIO_OPUS"
	case TypeAudioOpusBatch:
		return "AUDIO_OPUS_BATCH"
	case TypeServerState:
		return "SERVER_STATE"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	case TypeClearConsole:
		return "CLEAR_CONSOLE"
	case TypeErrorMessage:
		return "ERROR_MESSAGE"
	case TypeRemoteLog:
		return "REMOTE_LOG"
	case TypeStreamStart:
		return "STREAM_START"
	case TypeStreamStop:
		return "STREAM_STOP"
	case TypeClientCapabilities:
		return "CLIENT_CAPABILITIES"
	case TypeCryptoRekeyRequest:
		return "CRYPTO_REKEY_REQUEST"
	case TypeCryptoRekeyResponse:
		return "CRYPTO_REKEY_RESPONSE"
	case TypeCryptoRekeyComplete:
		return "CRYPTO_REKEY_COMPLETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// Flags is a bitmask carried in the envelope header.
type Flags uint16

const (
	FlagCompressed Flags = 1 << 0
)

// StreamKind is the bitmask STREAM_START/STREAM_STOP payloads carry.
type StreamKind uint8

const (
	StreamVideo StreamKind = 1 << 0
	StreamAudio StreamKind = 1 << 1
)
