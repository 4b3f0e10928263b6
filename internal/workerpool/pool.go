// Package workerpool provides named, ordered spawn/stop of cooperative
// worker goroutines, generalizing the per-Connection goroutine lifecycle
// the teacher project hand-rolled in internal/rtmp/conn.Connection (a
// context.CancelFunc plus a sync.WaitGroup guarding exactly two fixed
// goroutines, readLoop and writeLoop) into a registry that can hold an
// arbitrary number of named tasks with an explicit join order.
package workerpool

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alxayo/ascii-chat-go/internal/errors"
	"github.com/alxayo/ascii-chat-go/internal/lifecycle"
	"github.com/alxayo/ascii-chat-go/internal/logger"
)

// JoinTimeout is the per-task deadline stop_all waits for before logging a
// warning and moving on, leaking that task's resources deliberately rather
// than hanging the whole shutdown sequence (SPEC_FULL.md §4.4, §5).
const JoinTimeout = 5 * time.Second

// Task is the function signature spawned tasks must implement. ctx is
// cancelled when Pool.StopAll is called; a well-behaved task polls
// ctx.Done() at every suspension point and returns promptly afterward.
type Task func(ctx context.Context)

type entry struct {
	name      string
	stopOrder int
	done      chan struct{}
}

// Pool tracks spawned tasks and joins them in ascending stop_order during
// StopAll.
type Pool struct {
	cell   lifecycle.Cell
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries []*entry
}

// New creates a Pool bound to the given parent context; cancelling parent
// also stops every task the pool spawns.
func New(parent context.Context) *Pool {
	if parent == nil {
		parent = context.Background()
	}
	p := &Pool{}
	p.cell.InitOnce()
	ctx, cancel := context.WithCancel(parent)
	p.ctx, p.cancel = ctx, cancel
	p.cell.InitCommit()
	return p
}

// Handle identifies a previously spawned task for diagnostics.
type Handle struct {
	Name      string
	StopOrder int
}

// Spawn launches fn in its own goroutine under the name given, joined
// during StopAll in ascending stopOrder. Fails if the pool has already been
// destroyed.
func (p *Pool) Spawn(name string, stopOrder int, fn Task) (Handle, error) {
	if p.cell.IsDead() {
		return Handle{}, errors.NewUsageError("workerpool.spawn", nil)
	}
	e := &entry{name: name, stopOrder: stopOrder, done: make(chan struct{})}
	p.mu.Lock()
	p.entries = append(p.entries, e)
	p.mu.Unlock()

	go func() {
		defer close(e.done)
		defer errors.ClearLastError()
		fn(p.ctx)
	}()
	return Handle{Name: name, StopOrder: stopOrder}, nil
}

// StopAll signals cancellation and joins every spawned task in ascending
// stop_order, logging a warning and proceeding (not hanging) for any task
// that exceeds JoinTimeout.
func (p *Pool) StopAll() {
	p.cancel()

	p.mu.Lock()
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].stopOrder < entries[j].stopOrder })

	for _, e := range entries {
		select {
		case <-e.done:
		case <-time.After(JoinTimeout):
			logger.Warn("worker task exceeded join timeout, leaking", "name", e.name, "stop_order", e.stopOrder)
		}
	}
}

// Destroy stops every task (if not already stopped) and marks the pool
// dead so subsequent Spawn calls fail.
func (p *Pool) Destroy() {
	p.StopAll()
	p.cell.ShutdownForever()
}

// Len reports the number of tasks ever spawned, for tests/diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
