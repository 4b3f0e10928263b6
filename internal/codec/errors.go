package codec

import "errors"

// Sentinel causes wrapped into errors.ProtocolError/errors.CryptoError /
// errors.CompressionError by the encode/decode paths below, matching
// SPEC_FULL.md §4.6's named error set.
var (
	errBadMagic         = errors.New("codec: bad magic")
	errOversized        = errors.New("codec: oversized envelope")
	errCrcMismatch      = errors.New("codec: crc mismatch")
	errDecryptFailed    = errors.New("codec: decrypt failed")
	errDecompressFailed = errors.New("codec: decompress failed")
	errBadInnerType     = errors.New("codec: bad inner type after decrypt")
	errFrameBadHeader   = errors.New("codec: malformed frame record")
	errFrameCrcMismatch = errors.New("codec: frame checksum mismatch")
)
