// Package sendqueue implements the async send queue of SPEC_FULL.md §4.12.
// The distilled spec's own Design Notes call for replacing a bounded
// mutex+condvar ring with "an MPSC channel with bounded capacity and
// try_send semantics" — this package is that redesign, realized directly
// on top of code.hybscloud.com/lfq's MPSC queue (found in the retrieved
// example pack) rather than re-deriving one by hand.
package sendqueue

import (
	"time"

	"code.hybscloud.com/lfq"

	"github.com/alxayo/ascii-chat-go/internal/logger"
	"github.com/alxayo/ascii-chat-go/internal/metrics"
)

// Capacity is the default slot count spec.md §4.12 specifies.
const Capacity = 32

// Queue wraps a bounded MPSC queue of *Item. Enqueue never blocks: on a
// full queue it drops the newest item and counts the drop, exactly as the
// original mutex+condvar ring did (acceptable for audio: the capture
// pipeline recovers from gaps).
type Queue struct {
	q    lfq.Queue[Item]
	name string
}

// Item is one unit of outbound data: a fully-encoded envelope ready for
// transport.Send, plus a label for logging/metrics.
type Item struct {
	Kind  string // "audio_batch", "video_frame", "control"
	Bytes []byte
}

// New creates a Queue with the default capacity, labeled name for log
// lines and rate-limited drop warnings.
func New(name string) *Queue {
	return &Queue{q: lfq.NewMPSC[Item](Capacity), name: name}
}

// TrySend enqueues item without blocking. On a full queue it drops the
// newest item, logs a rate-limited warning, and increments the
// send-queue-drops metric; the caller treats this as success (the spec
// explicitly prefers a dropped frame over backpressuring the producer).
func (q *Queue) TrySend(item Item) {
	if err := q.q.Enqueue(&item); err != nil {
		if lfq.IsWouldBlock(err) {
			logger.WarnRateLimited("sendqueue-full:"+q.name, "send queue full, dropping newest item", "queue", q.name, "kind", item.Kind)
			metrics.SendQueueDrops.Inc()
			return
		}
		logger.Warn("send queue enqueue failed", "queue", q.name, "error", err)
	}
}

// Recv blocks (with a small backoff loop, since lfq's Dequeue is
// non-blocking) until an item is available or ctxDone fires, returning
// ok=false on shutdown.
func (q *Queue) Recv(ctxDone <-chan struct{}) (item Item, ok bool) {
	backoff := time.Microsecond
	const maxBackoff = 2 * time.Millisecond
	for {
		v, err := q.q.Dequeue()
		if err == nil {
			return *v, true
		}
		select {
		case <-ctxDone:
			return Item{}, false
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Drain signals producers are done so a final Recv loop can empty the
// queue without the MPSC threshold mechanism returning spurious
// would-block errors (see lfq's Drainer interface).
func (q *Queue) Drain() {
	if d, ok := q.q.(lfq.Drainer); ok {
		d.Drain()
	}
}
