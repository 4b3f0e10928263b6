package handshake

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/errors"
)

func newX25519Keypair() (pub [x25519KeyLen]byte, priv [x25519KeyLen]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return pub, priv, err
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, priv, err
	}
	copy(pub[:], p)
	return pub, priv, nil
}

// transcriptHash binds every public value exchanged so far into one digest,
// signed by the server and later used as HKDF salt — this is what makes a
// relayed/replayed handshake from a different session fail verification.
func transcriptHash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// deriveSessionKey expands the X25519 shared secret into a chacha20poly1305
// key via HKDF-SHA256, salted with the handshake transcript so that two
// handshakes can never derive the same key even with key reuse.
func deriveSessionKey(shared, transcript []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, shared, transcript, []byte("ascii-chat-go session key"))
	key := make([]byte, sessionKeyLen)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// readHandshakeComplete reads the bare HANDSHAKE_COMPLETE envelope the
// server sends as the handshake's final message (SPEC_FULL.md §6); it is
// unencrypted since no session key exists yet.
func readHandshakeComplete(conn net.Conn) error {
	if err := setReadDeadline(conn, StepTimeout); err != nil {
		return err
	}
	header := make([]byte, codec.HeaderLen)
	if err := readFull(conn, header); err != nil {
		return classifyIOErr("handshake.read_complete.header", err)
	}
	length, err := codec.ParseHeader(header)
	if err != nil {
		return err
	}
	rest := make([]byte, int(length))
	if err := readFull(conn, rest); err != nil {
		return classifyIOErr("handshake.read_complete.body", err)
	}
	raw := append(header, rest...)
	env, err := codec.Decode(raw, nil)
	if err != nil {
		return err
	}
	if env.Type != codec.TypeHandshakeComplete {
		return errors.NewProtocolError("handshake.read_complete", fmt.Errorf("unexpected type %s", env.Type))
	}
	return nil
}

// writeHandshakeComplete sends the bare HANDSHAKE_COMPLETE envelope.
func writeHandshakeComplete(conn net.Conn) error {
	raw, err := codec.Encode(codec.TypeHandshakeComplete, 0, nil, codec.Options{})
	if err != nil {
		return err
	}
	if err := setWriteDeadline(conn, StepTimeout); err != nil {
		return err
	}
	if err := writeFull(conn, raw); err != nil {
		return classifyIOErr("handshake.write_complete", err)
	}
	return nil
}

func classifyIOErr(op string, err error) error {
	if isTimeoutErr(err) {
		return errors.NewTimeoutError(op, StepTimeout, err)
	}
	return errors.NewNetworkError(op, err)
}
