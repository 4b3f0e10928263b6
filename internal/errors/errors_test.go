package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestKindClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)
	hs := NewCryptoAuthError("handshake.verify", wrapped)
	if !Is(hs, CryptoAuth) {
		t.Fatalf("expected CryptoAuth classification")
	}
	if !stdErrors.Is(hs, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	kind, ok := KindOf(hs)
	if !ok || kind != CryptoAuth {
		t.Fatalf("expected KindOf=CryptoAuth, got %v ok=%v", kind, ok)
	}
}

func TestFatalKinds(t *testing.T) {
	for _, k := range []Kind{CryptoAuth, HostKey, Memory} {
		if !k.Fatal() {
			t.Fatalf("expected %s to be fatal", k)
		}
	}
	for _, k := range []Kind{Network, Protocol, Device} {
		if k.Fatal() {
			t.Fatalf("expected %s to be non-fatal", k)
		}
	}
}

func TestIsTimeout(t *testing.T) {
	root := fakeTimeoutErr{}
	to := NewTimeoutError("handshake.read", 5*time.Second, root)
	if !IsTimeout(to) {
		t.Fatalf("expected TimeoutError recognized")
	}
	if _, ok := KindOf(to); ok {
		t.Fatalf("timeout should not carry a Kind")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("expected context deadline recognized")
	}
	var ne error = root
	if !IsTimeout(ne) {
		t.Fatalf("expected net-like timeout recognized")
	}
}

func TestUnwrapChains(t *testing.T) {
	base := stdErrors.New("io EOF")
	l1 := fmt.Errorf("read: %w", base)
	l2 := NewNetworkError("transport.recv", l1)
	if !stdErrors.Is(l2, base) {
		t.Fatalf("errors.Is should reach base cause")
	}
}

func TestNilSafety(t *testing.T) {
	if _, ok := KindOf(nil); ok {
		t.Fatalf("nil should not classify")
	}
	if IsTimeout(nil) {
		t.Fatalf("nil should not be timeout")
	}
}

func TestLastErrorRecordedPerGoroutine(t *testing.T) {
	ClearLastError()
	if LastError() != nil {
		t.Fatalf("expected no last error after clear")
	}
	_ = NewDeviceError("audio.open", stdErrors.New("no such device"))
	le := LastError()
	if le == nil {
		t.Fatalf("expected last error to be recorded")
	}
	if !Is(le, Device) {
		t.Fatalf("expected last error kind Device, got %v", le)
	}

	done := make(chan error, 1)
	go func() {
		ClearLastError()
		done <- LastError()
	}()
	if got := <-done; got != nil {
		t.Fatalf("expected other goroutine's last error to be independent, got %v", got)
	}
}

func TestConstructorWithoutCause(t *testing.T) {
	ck := NewProtocolError("codec.decode", nil)
	if ck == nil {
		t.Fatalf("constructor returned nil")
	}
	if errStr := ck.Error(); errStr == "" {
		t.Fatalf("expected non-empty error string")
	}
}
