package dispatch

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/codec"
	"github.com/alxayo/ascii-chat-go/internal/connfsm"
)

// fakeTransport feeds a pre-built byte stream to RecvExact and discards
// anything written via Send. Good enough to drive the dispatcher's reader
// loop without a real socket.
type fakeTransport struct {
	buf    *bytes.Buffer
	cipher *codec.Cipher
}

func newFakeTransport(records ...[]byte) *fakeTransport {
	buf := &bytes.Buffer{}
	for _, r := range records {
		buf.Write(r)
	}
	return &fakeTransport{buf: buf}
}

func (f *fakeTransport) Send([]byte) error { return nil }

func (f *fakeTransport) RecvExact(buf []byte) error {
	read, err := f.buf.Read(buf)
	if err != nil || read < len(buf) {
		return errEOF
	}
	return nil
}

func (f *fakeTransport) Close() error                         { return nil }
func (f *fakeTransport) InstallCrypto(c *codec.Cipher)        { f.cipher = c }
func (f *fakeTransport) Cipher() *codec.Cipher                { return f.cipher }
func (f *fakeTransport) RemoteHostPort() string               { return "fake:0" }

var errEOF = &simpleErr{"short read"}

type simpleErr struct{ s string }

func (e *simpleErr) Error() string { return e.s }

func connectedMachine() *connfsm.Machine {
	m := connfsm.New()
	m.AttemptConnect()
	m.HandshakeOK()
	return m
}

func encodeOrFatal(t *testing.T, typ codec.PacketType, payload []byte) []byte {
	t.Helper()
	rec, err := codec.Encode(typ, 1, payload, codec.Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return rec
}

func TestRouteDispatchesToMatchingHandler(t *testing.T) {
	rec := encodeOrFatal(t, codec.TypeASCIIFrame, []byte("frame"))
	tr := newFakeTransport(rec)
	fsm := connectedMachine()
	d := New(tr, fsm)

	var gotFrame, gotPing int32
	d.OnASCIIFrame = func(env codec.Envelope) error {
		atomic.AddInt32(&gotFrame, 1)
		if string(env.Payload) != "frame" {
			t.Errorf("unexpected payload: %q", env.Payload)
		}
		return nil
	}
	d.OnPing = func(env codec.Envelope) error {
		atomic.AddInt32(&gotPing, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	waitOrTimeout(t, func() bool { return atomic.LoadInt32(&gotFrame) == 1 })
	cancel()
	<-done

	if atomic.LoadInt32(&gotPing) != 0 {
		t.Fatalf("expected OnPing not to fire")
	}
}

func TestRouteSkipsTypeWithNoHandlerBound(t *testing.T) {
	rec := encodeOrFatal(t, codec.TypePing, nil)
	unknown := append([]byte(nil), rec...)
	// Corrupt nothing structural: just confirm a known type with no handler
	// bound doesn't block the loop or panic.
	tr := newFakeTransport(unknown)
	fsm := connectedMachine()
	d := New(tr, fsm)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
}

func TestFatalKindTearsDownImmediately(t *testing.T) {
	// A truncated stream makes the fake return an untagged error on the very
	// first read, which the dispatcher treats as fatal for the connection.
	tr := newFakeTransport([]byte{0x00, 0x01})
	fsm := connectedMachine()
	d := New(tr, fsm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after a fatal read error")
	}
	if fsm.State() != connfsm.StateDisconnected {
		t.Fatalf("expected fsm to transition to DISCONNECTED, got %s", fsm.State())
	}
}

func TestProtocolErrorsToleratedUntilThreshold(t *testing.T) {
	badRecord := encodeOrFatal(t, codec.TypePing, nil)
	// Flip a payload-adjacent byte so the CRC check fails: a Protocol-kind
	// error the dispatcher should tolerate, not tear down on immediately.
	badRecord[len(badRecord)-1] ^= 0xFF

	records := make([][]byte, 0, ProtocolErrorThreshold+1)
	for i := 0; i < ProtocolErrorThreshold-1; i++ {
		records = append(records, append([]byte(nil), badRecord...))
	}
	good := encodeOrFatal(t, codec.TypePing, nil)
	records = append(records, good)
	records = append(records, append([]byte(nil), badRecord...))

	all := make([]byte, 0)
	for _, r := range records {
		all = append(all, r...)
	}
	tr := newFakeTransport(all)
	fsm := connectedMachine()
	d := New(tr, fsm)

	// The trailing bad record and end of stream tear the connection down
	// afterwards, so state is sampled when the good record is handled.
	var pings int32
	stateAtPing := connfsm.StateIdle
	errorsAtPing := -1
	d.OnPing = func(env codec.Envelope) error {
		stateAtPing = fsm.State()
		errorsAtPing = d.consecutiveProtocolErrors
		atomic.AddInt32(&pings, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	waitOrTimeout(t, func() bool { return atomic.LoadInt32(&pings) == 1 })
	<-done
	if stateAtPing != connfsm.StateConnected {
		t.Fatalf("expected fsm still CONNECTED after tolerated errors, got %s", stateAtPing)
	}
	if errorsAtPing != 0 {
		t.Fatalf("expected counter reset after a successful decode, got %d", errorsAtPing)
	}
}

func waitOrTimeout(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
