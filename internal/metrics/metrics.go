// Package metrics exposes the client's atomic counters (buffer pool stats,
// send-queue drops, video frame counts, reconnect attempts) as Prometheus
// gauges/counters so
// a long-running headless instance (e.g. a snapshot-mode capture farm) can
// be scraped. Grounded on snapetech-plexTuner's use of
// github.com/prometheus/client_golang for a streaming pipeline's
// observability surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BufferPoolHits = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ascii_chat",
		Subsystem: "bufpool",
		Name:      "hits_total",
		Help:      "Buffer pool allocations served from the free stack.",
	})
	BufferPoolAllocs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ascii_chat",
		Subsystem: "bufpool",
		Name:      "allocs_total",
		Help:      "Buffer pool allocations that grew the pool.",
	})
	BufferPoolFallbacks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ascii_chat",
		Subsystem: "bufpool",
		Name:      "malloc_fallbacks_total",
		Help:      "Allocations served directly by the system allocator.",
	})
	BufferPoolResidentBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ascii_chat",
		Subsystem: "bufpool",
		Name:      "resident_bytes",
		Help:      "Total bytes currently charged against the pool's cap.",
	})

	SendQueueDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ascii_chat",
		Subsystem: "sendqueue",
		Name:      "drops_total",
		Help:      "Audio batches dropped because the send queue was full.",
	})

	VideoFramesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ascii_chat",
		Subsystem: "video",
		Name:      "frames_rendered_total",
		Help:      "ASCII frames successfully rendered.",
	})
	VideoFramesDroppedCRC = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ascii_chat",
		Subsystem: "video",
		Name:      "frames_dropped_crc_total",
		Help:      "ASCII frames dropped due to CRC mismatch.",
	})
	VideoFramesDroppedRate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ascii_chat",
		Subsystem: "video",
		Name:      "frames_dropped_rate_limit_total",
		Help:      "ASCII frames dropped by the client-side frame-rate limiter.",
	})

	ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ascii_chat",
		Subsystem: "connfsm",
		Name:      "reconnect_attempts_total",
		Help:      "Number of ATTEMPTING transitions taken by the connection FSM.",
	})
)

func init() {
	prometheus.MustRegister(
		BufferPoolHits,
		BufferPoolAllocs,
		BufferPoolFallbacks,
		BufferPoolResidentBytes,
		SendQueueDrops,
		VideoFramesRendered,
		VideoFramesDroppedCRC,
		VideoFramesDroppedRate,
		ReconnectAttempts,
	)
}

// ReportBufferPool copies a bufpool.Stats-shaped snapshot into the gauges
// above. Accepts plain fields rather than importing bufpool to avoid a
// metrics<->bufpool import cycle risk as the module grows.
func ReportBufferPool(hits, allocs, fallbacks, residentBytes int64) {
	BufferPoolHits.Set(float64(hits))
	BufferPoolAllocs.Set(float64(allocs))
	BufferPoolFallbacks.Set(float64(fallbacks))
	BufferPoolResidentBytes.Set(float64(residentBytes))
}
