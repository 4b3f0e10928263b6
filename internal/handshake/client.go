package handshake

import (
	"crypto/ed25519"
	"fmt"
	"net"

	"golang.org/x/crypto/curve25519"

	"github.com/alxayo/ascii-chat-go/internal/errors"
	"github.com/alxayo/ascii-chat-go/internal/logger"
)

// VerifyHostKey is called by ClientHandshake once the server's long-term
// identity is known, before any secret is derived. Implementations back
// this with the internal/hostkey TOFU store; returning an error fails the
// handshake with a CryptoAuth/HostKey error (fatal, non-retryable per
// SPEC_FULL.md §4.7).
type VerifyHostKey func(peerIdentity ed25519.PublicKey) error

// ClientHandshake performs the four-step exchange as the client. identity
// may be nil (anonymous client); verify is invoked with the server's
// identity key before any response is signed.
func ClientHandshake(conn net.Conn, identity ed25519.PrivateKey, verify VerifyHostKey) (*Result, error) {
	if conn == nil {
		return nil, errors.NewUsageError("handshake.client", fmt.Errorf("nil conn"))
	}
	log := logger.Logger().With("phase", "handshake", "side", "client")
	state := StateInitial

	ephPub, ephPriv, err := newX25519Keypair()
	if err != nil {
		return nil, wrapCrypto("handshake.client.keygen", err)
	}

	hello := clientHello{ephemeral: ephPub}
	if identity != nil {
		copy(hello.identity[:], identity.Public().(ed25519.PublicKey))
	}
	if err := setWriteDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	if err := writeFull(conn, hello.marshal()); err != nil {
		return nil, classifyIOErr("handshake.client.send_hello", err)
	}
	state = StateSentHello

	if err := setReadDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	buf := make([]byte, serverHelloLen)
	if err := readFull(conn, buf); err != nil {
		return nil, classifyIOErr("handshake.client.recv_hello", err)
	}
	sHello := unmarshalServerHello(buf)
	state = StateRecvHello

	transcript := transcriptHash(hello.marshal(), sHello.ephemeral[:], sHello.identity[:])
	if !ed25519.Verify(sHello.identity[:], transcript, sHello.signature[:]) {
		state = StateFailed
		return nil, errors.NewHostKeyError("handshake.client.verify_transcript", fmt.Errorf("server signature invalid"))
	}
	if verify != nil {
		if err := verify(append(ed25519.PublicKey(nil), sHello.identity[:]...)); err != nil {
			state = StateFailed
			return nil, errors.NewHostKeyError("handshake.client.verify_host_key", err)
		}
	}

	resp := clientResponse{}
	if identity != nil {
		sig := ed25519.Sign(identity, sHello.challenge[:])
		copy(resp.signature[:], sig)
	}
	if err := setWriteDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	if err := writeFull(conn, resp.marshal()); err != nil {
		return nil, classifyIOErr("handshake.client.send_response", err)
	}
	state = StateSentResponse

	if err := readHandshakeComplete(conn); err != nil {
		return nil, err
	}
	state = StateCompleted

	shared, err := curve25519.X25519(ephPriv[:], sHello.ephemeral[:])
	if err != nil {
		return nil, wrapCrypto("handshake.client.ecdh", err)
	}
	sessionKey, err := deriveSessionKey(shared, transcript)
	if err != nil {
		return nil, wrapCrypto("handshake.client.hkdf", err)
	}

	log.Info("handshake completed", "state", state.String())
	return &Result{SessionKey: sessionKey, PeerIdentity: append([]byte(nil), sHello.identity[:]...)}, nil
}
