// Package transport implements the bidirectional byte-stream abstraction of
// SPEC_FULL.md §4.5: connect/send/recv_exact/close plus install_crypto once
// the handshake has negotiated a session key. Grounded on the teacher's
// handshake.ServerHandshake/ClientHandshake deadline-and-wrap style
// (setReadDeadline + errors.NewTimeoutError), generalized from a single
// fixed-size RTMP handshake exchange to arbitrary-length envelope
// send/recv over either a plain TCP socket or a QUIC/WebTransport P2P
// session (see p2p.go, grounded on rustyguts-bken's client.Transport).
package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/errors"
)

// ConnectTimeout bounds the overall dial, per SPEC_FULL.md §5.
const ConnectTimeout = 3 * time.Second

// Transport is the contract every connection variant satisfies. Send is
// fully serialized by an internal mutex; Recv is only ever called from the
// single ingress-dispatcher goroutine.
type Transport interface {
	Send(envelope []byte) error
	// RecvExact reads exactly len(buf) bytes into buf, blocking until full
	// or an error occurs. The caller owns buf's allocation (typically drawn
	// from internal/bufpool so the receive path is poolable).
	RecvExact(buf []byte) error
	Close() error
	InstallCrypto(cipher *codec.Cipher)
	Cipher() *codec.Cipher
	RemoteHostPort() string
}

// tcpTransport is the default Transport over a plain net.Conn.
type tcpTransport struct {
	conn       net.Conn
	sendMu     sync.Mutex
	cipherMu   sync.RWMutex
	cipher     *codec.Cipher
	remoteAddr string
}

// DialTCP connects to address:port with ConnectTimeout, returning a
// Transport ready for the handshake package to run over.
func DialTCP(ctx context.Context, address string, port int) (Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	var d net.Dialer
	hostPort := net.JoinHostPort(address, strconv.Itoa(port))
	conn, err := d.DialContext(dialCtx, "tcp", hostPort)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, errors.NewTimeoutError("transport.dial_tcp", ConnectTimeout, err)
		}
		return nil, errors.NewNetworkError("transport.dial_tcp", err)
	}
	return &tcpTransport{conn: conn, remoteAddr: hostPort}, nil
}

// WrapTCP adapts an existing net.Conn (an accepted one, or one the caller
// has already dialed and run the handshake over) into a Transport.
func WrapTCP(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, remoteAddr: conn.RemoteAddr().String()}
}

func (t *tcpTransport) Send(envelope []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	off := 0
	for off < len(envelope) {
		n, err := t.conn.Write(envelope[off:])
		if err != nil {
			return errors.NewNetworkError("transport.send", err)
		}
		off += n
	}
	return nil
}

func (t *tcpTransport) RecvExact(buf []byte) error {
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return errors.NewNetworkError("transport.recv_exact", err)
	}
	return nil
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) InstallCrypto(cipher *codec.Cipher) {
	t.cipherMu.Lock()
	defer t.cipherMu.Unlock()
	t.cipher = cipher
}

func (t *tcpTransport) Cipher() *codec.Cipher {
	t.cipherMu.RLock()
	defer t.cipherMu.RUnlock()
	return t.cipher
}

func (t *tcpTransport) RemoteHostPort() string { return t.remoteAddr }
