// Package keepalive implements the periodic PING/PONG liveness check of
// SPEC_FULL.md §4.13, grounded on the teacher's time.NewTimer-based
// SendMessage timeout idiom in internal/rtmp/conn.Connection, generalized
// from a one-shot send deadline to a recurring time.Ticker plus a missed-
// PONG counter.
package keepalive

import (
	"context"
	"sync/atomic"
	"time"
)

// Keepalive sends Ping every Interval and expects a Pong within
// Interval*MaxMissed total elapsed time; missing that many consecutive
// intervals invokes OnLost (the connection FSM's Disconnected transition).
type Keepalive struct {
	Interval  time.Duration
	MaxMissed int
	Ping      func() error
	OnLost    func()

	// lastPongNano holds the UnixNano timestamp of the last observed PONG.
	// NotePong writes it from the dispatcher's PONG-handler goroutine; Run
	// reads it from the keepalive task's own goroutine every tick, so it
	// must be an atomic rather than a plain time.Time.
	lastPongNano atomic.Int64
}

// New constructs a Keepalive with sane defaults (interval 10s, 3 missed
// intervals tolerated) that the caller may override before calling Run.
func New(ping func() error, onLost func()) *Keepalive {
	return &Keepalive{
		Interval:  10 * time.Second,
		MaxMissed: 3,
		Ping:      ping,
		OnLost:    onLost,
	}
}

// NotePong records that a PONG was just observed by the ingress dispatcher;
// call this from the PONG handler.
func (k *Keepalive) NotePong() {
	k.lastPongNano.Store(time.Now().UnixNano())
}

// Run blocks, sending Ping every Interval and checking the gap since the
// last NotePong call, until ctx is cancelled. Intended to be spawned as a
// workerpool.Task.
func (k *Keepalive) Run(ctx context.Context) {
	k.lastPongNano.Store(time.Now().UnixNano())
	ticker := time.NewTicker(k.Interval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			lastPong := time.Unix(0, k.lastPongNano.Load())
			if now.Sub(lastPong) > k.Interval {
				missed++
			} else {
				missed = 0
			}
			if missed >= k.MaxMissed {
				if k.OnLost != nil {
					k.OnLost()
				}
				return
			}
			if k.Ping != nil {
				_ = k.Ping()
			}
		}
	}
}
