package codec

import (
	"encoding/binary"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/alxayo/ascii-chat-go/internal/errors"
)

var (
	encodersMu sync.Mutex
	encoders   = map[int]*zstd.Encoder{}

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func encoderForLevel(level int) (*zstd.Encoder, error) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	if enc, ok := encoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	encoders[level] = enc
	return enc, nil
}

func sharedDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// Options tunes a single Encode call; zero value disables compression and
// encryption (plaintext, uncompressed envelopes — used for the snapshot-
// capture / unencrypted test scenarios in SPEC_FULL.md §8).
type Options struct {
	CompressionLevel int // 0 disables compression regardless of payload size
	Cipher           *Cipher
}

// Encode builds a complete wire record for (typ, payload) per SPEC_FULL.md
// §4.6's encode contract.
func Encode(typ PacketType, clientID uint32, payload []byte, opts Options) ([]byte, error) {
	flags := Flags(0)
	body := payload
	if opts.CompressionLevel > 0 && len(payload) > CompressThreshold {
		enc, err := encoderForLevel(opts.CompressionLevel)
		if err != nil {
			return nil, errors.NewCompressionError("codec.encode", err)
		}
		compressed := enc.EncodeAll(payload, nil)
		if len(compressed) < len(payload) {
			body = compressed
			flags |= FlagCompressed
		}
	}

	inner := buildRecord(header{
		magic:    Magic,
		typ:      typ,
		flags:    flags,
		clientID: clientID,
		length:   uint32(len(body)),
		crc:      crc32Of(body),
	}, body)

	if opts.Cipher == nil {
		return inner, nil
	}

	counter, ciphertext := opts.Cipher.Seal(inner)
	outerPayload := make([]byte, 8+len(ciphertext))
	binary.BigEndian.PutUint64(outerPayload[:8], counter)
	copy(outerPayload[8:], ciphertext)

	outer := buildRecord(header{
		magic:    Magic,
		typ:      TypeEncrypted,
		flags:    0,
		clientID: clientID,
		length:   uint32(len(outerPayload)),
		crc:      crc32Of(outerPayload),
	}, outerPayload)
	return outer, nil
}

func buildRecord(h header, body []byte) []byte {
	rec := make([]byte, HeaderLen+len(body))
	encodeHeader(rec, h)
	copy(rec[HeaderLen:], body)
	return rec
}

// Decode parses a complete wire record back into an Envelope, reversing
// encryption and compression per SPEC_FULL.md §4.6's decode contract. raw
// must contain exactly one record (HeaderLen + header.length bytes); the
// ingress dispatcher is responsible for framing that slice off the
// transport using ParseHeader first.
func Decode(raw []byte, cipher *Cipher) (Envelope, error) {
	if len(raw) < HeaderLen {
		return Envelope{}, errors.NewProtocolError("codec.decode", errBadMagic)
	}
	h := decodeHeader(raw)
	if h.magic != Magic {
		return Envelope{}, errors.NewProtocolError("codec.decode", errBadMagic)
	}
	if h.length > MaxEnvelopeLen || HeaderLen+int(h.length) != len(raw) {
		return Envelope{}, errors.NewProtocolError("codec.decode", errOversized)
	}
	body := raw[HeaderLen:]
	if crc32Of(body) != h.crc {
		return Envelope{}, errors.NewProtocolError("codec.decode", errCrcMismatch)
	}

	if h.typ == TypeEncrypted {
		if cipher == nil {
			return Envelope{}, errors.NewCryptoError("codec.decode", errDecryptFailed)
		}
		if len(body) < 8 {
			return Envelope{}, errors.NewCryptoError("codec.decode", errDecryptFailed)
		}
		counter := binary.BigEndian.Uint64(body[:8])
		inner, err := cipher.Open(counter, body[8:])
		if err != nil {
			return Envelope{}, err
		}
		env, err := Decode(inner, nil)
		if err != nil {
			return Envelope{}, err
		}
		if env.Type == TypeEncrypted {
			return Envelope{}, errors.NewProtocolError("codec.decode", errBadInnerType)
		}
		return env, nil
	}

	payload := body
	if h.flags&FlagCompressed != 0 {
		decoded, err := sharedDecoder().DecodeAll(body, nil)
		if err != nil {
			return Envelope{}, errors.NewCompressionError("codec.decode", errDecompressFailed)
		}
		payload = decoded
	}

	return Envelope{Type: h.typ, Flags: h.flags, ClientID: h.clientID, Payload: payload}, nil
}
