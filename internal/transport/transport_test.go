package transport

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPSendRecvExactRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()
		srv := WrapTCP(conn)
		buf := make([]byte, 5)
		if err := srv.RecvExact(buf); err != nil {
			serverDone <- err
			return
		}
		if !bytes.Equal(buf, []byte("hello")) {
			serverDone <- err
			return
		}
		serverDone <- srv.Send([]byte("world"))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	cli, err := DialTCP(context.Background(), "127.0.0.1", addr.Port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	if err := cli.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	resp := make([]byte, 5)
	if err := cli.RecvExact(resp); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(resp, []byte("world")) {
		t.Fatalf("unexpected response: %q", resp)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Fatalf("server error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not finish")
	}
}

func TestDialTCPFailsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled context forces an immediate dial failure
	if _, err := DialTCP(ctx, "127.0.0.1", 1); err == nil {
		t.Fatalf("expected dial to fail on cancelled context")
	}
}

func TestInstallCryptoRoundTrip(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	defer ln.Close()
	go func() {
		conn, _ := ln.Accept()
		if conn != nil {
			conn.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	cli, err := DialTCP(context.Background(), "127.0.0.1", addr.Port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	if cli.Cipher() != nil {
		t.Fatalf("expected no cipher installed initially")
	}
	cli.InstallCrypto(nil)
	if cli.Cipher() != nil {
		t.Fatalf("expected nil cipher to round-trip as nil")
	}
}
