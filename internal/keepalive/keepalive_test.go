package keepalive

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPingsSentPeriodically(t *testing.T) {
	var pings atomic.Int32
	k := New(func() error { pings.Add(1); return nil }, nil)
	k.Interval = 10 * time.Millisecond
	k.MaxMissed = 1000

	ctx, cancel := context.WithCancel(context.Background())
	go k.Run(ctx)
	// Keep PONGs flowing so OnLost never fires.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				k.NotePong()
			}
		}
	}()

	time.Sleep(60 * time.Millisecond)
	close(stop)
	cancel()

	if pings.Load() < 2 {
		t.Fatalf("expected multiple pings, got %d", pings.Load())
	}
}

func TestOnLostFiresAfterMissedPongs(t *testing.T) {
	lost := make(chan struct{})
	k := New(func() error { return nil }, func() { close(lost) })
	k.Interval = 5 * time.Millisecond
	k.MaxMissed = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatalf("expected OnLost to fire after missed pongs")
	}
}
