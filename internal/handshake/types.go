// Package handshake implements the X25519/Ed25519/HKDF session-key
// exchange described in SPEC_FULL.md §4.5, generalizing the teacher's
// internal/rtmp/handshake package (a five-state RTMP simple-handshake FSM
// over a fixed 1536-byte C0/C1/S0/S1/S2 exchange) from a length-fixed byte
// echo protocol to an authenticated key exchange with variable-length
// signatures and an HKDF-derived session key.
package handshake

import "github.com/alxayo/ascii-chat-go/internal/errors"

// State mirrors the teacher's handshake.State enum idiom: a small integer
// enum with a String method used in log lines and error messages.
type State int

const (
	StateInitial State = iota
	StateSentHello
	StateRecvHello
	StateSentResponse
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateSentHello:
		return "SentHello"
	case StateRecvHello:
		return "RecvHello"
	case StateSentResponse:
		return "SentResponse"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

const (
	x25519KeyLen  = 32
	ed25519KeyLen = 32
	ed25519SigLen = 64
	challengeLen  = 32
	sessionKeyLen = 32
)

// Result is what a completed handshake (either side) hands back to the
// caller: the derived AEAD session key and the peer's long-term identity
// (nil if the peer did not present one).
type Result struct {
	SessionKey   []byte
	PeerIdentity []byte // ed25519 public key, or nil
}

func wrapAuth(op string, err error) error { return errors.NewCryptoAuthError(op, err) }
func wrapCrypto(op string, err error) error { return errors.NewCryptoError(op, err) }
