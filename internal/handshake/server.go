package handshake

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/curve25519"

	"github.com/alxayo/ascii-chat-go/internal/errors"
	"github.com/alxayo/ascii-chat-go/internal/logger"
)

// ServerHandshake performs the four-step exchange as the server. identity
// is the server's long-term Ed25519 signing key (required — a server with
// no identity cannot be authenticated by clients' TOFU policy).
func ServerHandshake(conn net.Conn, identity ed25519.PrivateKey) (*Result, error) {
	if conn == nil {
		return nil, errors.NewUsageError("handshake.server", fmt.Errorf("nil conn"))
	}
	if identity == nil {
		return nil, errors.NewUsageError("handshake.server", fmt.Errorf("server identity required"))
	}
	log := logger.Logger().With("phase", "handshake", "side", "server")
	state := StateInitial

	if err := setReadDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	buf := make([]byte, clientHelloLen)
	if err := readFull(conn, buf); err != nil {
		return nil, classifyIOErr("handshake.server.recv_hello", err)
	}
	cHello := unmarshalClientHello(buf)
	state = StateRecvHello

	ephPub, ephPriv, err := newX25519Keypair()
	if err != nil {
		return nil, wrapCrypto("handshake.server.keygen", err)
	}
	var challenge [challengeLen]byte
	if _, err := io.ReadFull(rand.Reader, challenge[:]); err != nil {
		return nil, wrapCrypto("handshake.server.challenge", err)
	}

	sHello := serverHello{ephemeral: ephPub, challenge: challenge}
	copy(sHello.identity[:], identity.Public().(ed25519.PublicKey))
	transcript := transcriptHash(cHello.marshal(), sHello.ephemeral[:], sHello.identity[:])
	sig := ed25519.Sign(identity, transcript)
	copy(sHello.signature[:], sig)

	if err := setWriteDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	if err := writeFull(conn, sHello.marshal()); err != nil {
		return nil, classifyIOErr("handshake.server.send_hello", err)
	}
	state = StateSentHello

	if err := setReadDeadline(conn, StepTimeout); err != nil {
		return nil, err
	}
	respBuf := make([]byte, clientResponseLen)
	if err := readFull(conn, respBuf); err != nil {
		return nil, classifyIOErr("handshake.server.recv_response", err)
	}
	resp := unmarshalClientResponse(respBuf)
	state = StateSentResponse

	var peerIdentity []byte
	if !isZero(cHello.identity[:]) {
		if !ed25519.Verify(cHello.identity[:], challenge[:], resp.signature[:]) {
			state = StateFailed
			return nil, errors.NewCryptoAuthError("handshake.server.verify_response", fmt.Errorf("client signature invalid"))
		}
		peerIdentity = append([]byte(nil), cHello.identity[:]...)
	}

	if err := writeHandshakeComplete(conn); err != nil {
		return nil, err
	}
	state = StateCompleted

	shared, err := curve25519.X25519(ephPriv[:], cHello.ephemeral[:])
	if err != nil {
		return nil, wrapCrypto("handshake.server.ecdh", err)
	}
	sessionKey, err := deriveSessionKey(shared, transcript)
	if err != nil {
		return nil, wrapCrypto("handshake.server.hkdf", err)
	}

	log.Info("handshake completed", "state", state.String(), "peer_authenticated", peerIdentity != nil)
	return &Result{SessionKey: sessionKey, PeerIdentity: peerIdentity}, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
