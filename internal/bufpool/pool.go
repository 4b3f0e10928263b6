// Package bufpool implements the lock-free, size-bucketed byte buffer pool
// described in SPEC_FULL.md §4.1. The teacher project's internal/bufpool
// wrapped three sync.Pool size classes, which is the right shape for a
// general-purpose GC-churn reducer but cannot express the exact semantics
// this spec requires: a stable magic tag that makes free() routable without
// external context, double-free detection, a hard cap on total resident
// bytes, and a shrink pass that only physically frees buffers that have sat
// idle past a delay. This version replaces sync.Pool with an explicit
// Treiber stack (CAS push/pop) per size bucket, and hands callers a handle
// (*Buffer) rather than a bare []byte so the magic tag travels with the
// buffer the way SPEC_FULL.md describes, in the teacher's bucketed-by-size
// style.
package bufpool

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	magicPool     uint32 = 0x50544243 // "PTBC": pool-owned
	magicFallback uint32 = 0x46544243 // "FTBC": system-allocator fallback
	magicFreed    uint32 = 0x44444444 // stamped on free to catch double-free

	// MinPoolSize is the smallest request the pool will serve itself;
	// anything smaller goes straight to the system allocator.
	MinPoolSize = 64
	// MaxPoolSize is the largest request the pool will serve itself.
	MaxPoolSize = 4 << 20 // 4 MiB

	// DefaultMaxBytes is the total resident-byte cap charged against pooled
	// allocations before Alloc falls back to the system allocator.
	DefaultMaxBytes = 337 << 20 // 337 MiB

	// ShrinkDelay is how long a freed buffer must sit idle before Shrink is
	// allowed to physically release it.
	ShrinkDelay = 5 * time.Second
)

var sizeClasses = []int{128, 4096, 65536, 1 << 20}

// Buffer is a handle to a pool-owned (or fallback) byte region. The magic
// tag lets Free route the buffer back to its owning pool (or detect that it
// was never pool-owned, or that it was already freed) without the caller
// having to pass any extra context.
type Buffer struct {
	magic      atomic.Uint32
	owner      *Pool
	size       int // bucket capacity (0 for fallback buffers)
	next       atomic.Pointer[Buffer]
	releasedAt atomic.Int64 // UnixNano of last Free; 0 while in use
	data       []byte
}

// Bytes returns the usable byte slice for this buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Stats mirrors the atomic counters Pool.Stats() exposes for observability.
type Stats struct {
	Hits           int64
	Allocs         int64
	Returns        int64
	MallocFallback int64
	DoubleFrees    int64
	PeakPoolBytes  int64
	PeakInUseBytes int64
}

type stack struct {
	size     int
	top      atomic.Pointer[Buffer]
	residing atomic.Int64
}

// Pool is a lock-free LIFO pool of size-bucketed byte buffers.
type Pool struct {
	buckets  []*stack
	maxBytes int64

	totalBytes atomic.Int64
	inUseBytes atomic.Int64

	hits           atomic.Int64
	allocs         atomic.Int64
	returns        atomic.Int64
	mallocFallback atomic.Int64
	doubleFrees    atomic.Int64
	peakPoolBytes  atomic.Int64
	peakInUseBytes atomic.Int64

	shrinkMu sync.Mutex
}

var defaultPool = New(DefaultMaxBytes)

// Get acquires a buffer of the requested size from the package-level
// default pool.
func Get(size int) *Buffer { return defaultPool.Alloc(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf *Buffer) { defaultPool.Free(buf) }

// DefaultStats reports the package-level default pool's current counters,
// for periodic export to internal/metrics.
func DefaultStats() Stats { return defaultPool.Stats() }

// DefaultResidentBytes reports the package-level default pool's current
// charged byte total.
func DefaultResidentBytes() int64 { return defaultPool.ResidentBytes() }

// New creates a buffer pool with the standard size classes and the given
// total-bytes cap.
func New(maxBytes int64) *Pool {
	buckets := make([]*stack, len(sizeClasses))
	for i, sz := range sizeClasses {
		buckets[i] = &stack{size: sz}
	}
	return &Pool{buckets: buckets, maxBytes: maxBytes}
}

func (p *Pool) bucketFor(size int) *stack {
	for _, b := range p.buckets {
		if size <= b.size {
			return b
		}
	}
	return nil
}

// Alloc returns a buffer handle sized to at least `size` bytes (Bytes() is
// truncated to exactly `size`). Requests below MinPoolSize or above
// MaxPoolSize, and requests that would exceed the pool's total-bytes cap,
// bypass the pool and are served as tagged fallback allocations; Alloc
// never blocks.
func (p *Pool) Alloc(size int) *Buffer {
	if p == nil || size <= 0 {
		return nil
	}
	if size < MinPoolSize || size > MaxPoolSize {
		return p.fallbackAlloc(size)
	}
	b := p.bucketFor(size)
	if b == nil {
		return p.fallbackAlloc(size)
	}

	for {
		top := b.top.Load()
		if top == nil {
			break
		}
		next := top.next.Load()
		if b.top.CompareAndSwap(top, next) {
			b.residing.Add(-1)
			p.hits.Add(1)
			top.magic.Store(magicPool)
			top.releasedAt.Store(0)
			full := top.data[:b.size]
			clear(full)
			top.data = full[:size]
			p.inUseBytes.Add(int64(b.size))
			p.bumpPeakInUse()
			return top
		}
	}

	// Stack empty: grow, subject to the total-bytes cap.
	if p.totalBytes.Add(int64(b.size)) > p.maxBytes {
		p.totalBytes.Add(-int64(b.size))
		return p.fallbackAlloc(size)
	}
	p.allocs.Add(1)
	buf := &Buffer{owner: p, size: b.size, data: make([]byte, b.size)[:size]}
	buf.magic.Store(magicPool)
	p.inUseBytes.Add(int64(b.size))
	p.bumpPeakPool()
	p.bumpPeakInUse()
	return buf
}

func (p *Pool) fallbackAlloc(size int) *Buffer {
	p.mallocFallback.Add(1)
	buf := &Buffer{owner: p, size: 0, data: make([]byte, size)}
	buf.magic.Store(magicFallback)
	return buf
}

func (p *Pool) bumpPeakPool() {
	for {
		cur := p.peakPoolBytes.Load()
		tot := p.totalBytes.Load()
		if tot <= cur || p.peakPoolBytes.CompareAndSwap(cur, tot) {
			return
		}
	}
}

func (p *Pool) bumpPeakInUse() {
	for {
		cur := p.peakInUseBytes.Load()
		inUse := p.inUseBytes.Load()
		if inUse <= cur || p.peakInUseBytes.CompareAndSwap(cur, inUse) {
			return
		}
	}
}

// Free returns buf to its owning pool. Fallback-tagged buffers are simply
// dropped for the GC. A buffer already stamped "freed" (double-free) is
// counted in Stats().DoubleFrees and otherwise ignored rather than
// corrupting the stack; nothing is logged. A buffer
// owned by a different Pool instance is also ignored.
func (p *Pool) Free(buf *Buffer) {
	if p == nil || buf == nil {
		return
	}
	switch buf.magic.Load() {
	case magicFreed:
		p.doubleFrees.Add(1)
		return
	case magicFallback:
		return
	case magicPool:
		// fall through
	default:
		return
	}
	if buf.owner != p {
		return
	}
	var b *stack
	for _, cand := range p.buckets {
		if cand.size == buf.size {
			b = cand
			break
		}
	}
	if b == nil {
		return
	}

	buf.data = buf.data[:buf.size]
	buf.magic.Store(magicFreed)
	buf.releasedAt.Store(time.Now().UnixNano())
	for {
		top := b.top.Load()
		buf.next.Store(top)
		if b.top.CompareAndSwap(top, buf) {
			b.residing.Add(1)
			p.returns.Add(1)
			p.inUseBytes.Add(-int64(b.size))
			return
		}
	}
}

// Shrink walks every bucket under a short-held mutex (the only lock this
// pool ever takes) and physically frees buffers that have sat idle longer
// than ShrinkDelay, returning the count of buffers released.
func (p *Pool) Shrink() int {
	p.shrinkMu.Lock()
	defer p.shrinkMu.Unlock()

	now := time.Now().UnixNano()
	freed := 0
	for _, b := range p.buckets {
		var kept []*Buffer
		for {
			top := b.top.Load()
			if top == nil {
				break
			}
			if !b.top.CompareAndSwap(top, top.next.Load()) {
				continue
			}
			b.residing.Add(-1)
			releasedAt := top.releasedAt.Load()
			if releasedAt != 0 && now-releasedAt >= int64(ShrinkDelay) {
				p.totalBytes.Add(-int64(b.size))
				freed++
				continue
			}
			kept = append(kept, top)
		}
		for _, node := range kept {
			for {
				top := b.top.Load()
				node.next.Store(top)
				if b.top.CompareAndSwap(top, node) {
					b.residing.Add(1)
					break
				}
			}
		}
	}
	return freed
}

// Stats returns a point-in-time snapshot of the pool's atomic counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:           p.hits.Load(),
		Allocs:         p.allocs.Load(),
		Returns:        p.returns.Load(),
		MallocFallback: p.mallocFallback.Load(),
		DoubleFrees:    p.doubleFrees.Load(),
		PeakPoolBytes:  p.peakPoolBytes.Load(),
		PeakInUseBytes: p.peakInUseBytes.Load(),
	}
}

// ResidentBytes returns the pool's current total charged bytes; always
// <= maxBytes.
func (p *Pool) ResidentBytes() int64 { return p.totalBytes.Load() }

// MaxBytes returns the configured total-bytes cap.
func (p *Pool) MaxBytes() int64 { return p.maxBytes }
