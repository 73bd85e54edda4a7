package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Collector exposes synthesis metrics for Prometheus scraping alongside the
// lock-free request counters a hot path can update without contention.
type Collector struct {
	requestsTotal *prometheus.CounterVec
	chunksTotal   prometheus.Counter
	rtf           prometheus.Histogram
	firstChunkMS  prometheus.Histogram
	synthesisMS   prometheus.Histogram
	bytesOutTotal prometheus.Counter

	errorsTotal atomic.Int64
}

// NewCollector builds a Collector and registers its metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttscore",
			Name:      "requests_total",
			Help:      "Total synthesis requests by output format.",
		}, []string{"format"}),
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ttscore",
			Name:      "chunks_total",
			Help:      "Total chunks synthesized across all requests.",
		}),
		rtf: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ttscore",
			Name:      "rtf",
			Help:      "Real-time factor (synthesis_time / audio_duration) per request.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0, 1.5, 2.0},
		}),
		firstChunkMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ttscore",
			Name:      "first_chunk_latency_ms",
			Help:      "Latency from request start to first chunk delivered, in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
		synthesisMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ttscore",
			Name:      "synthesis_duration_ms",
			Help:      "Total wall-clock synthesis time per request, in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 12),
		}),
		bytesOutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ttscore",
			Name:      "audio_bytes_total",
			Help:      "Total encoded audio bytes emitted.",
		}),
	}

	reg.MustRegister(c.requestsTotal, c.chunksTotal, c.rtf, c.firstChunkMS, c.synthesisMS, c.bytesOutTotal)

	return c
}

func (c *Collector) observe(rec RequestRecord) {
	c.chunksTotal.Add(float64(rec.ChunkCount))
	c.rtf.Observe(rec.RTF)
	c.firstChunkMS.Observe(float64(rec.FirstChunkLatency.Milliseconds()))
	c.synthesisMS.Observe(float64(rec.TotalDuration.Milliseconds()))
	c.bytesOutTotal.Add(float64(rec.BytesOut))
}

// ObserveRequest increments the per-format request counter. Called
// separately from Recorder.Record since the format isn't part of
// RequestRecord.
func (c *Collector) ObserveRequest(format string) {
	c.requestsTotal.WithLabelValues(format).Inc()
}

// IncError bumps the lock-free error counter, independent of the request
// rolling window.
func (c *Collector) IncError() {
	c.errorsTotal.Inc()
}

// ErrorCount returns the cumulative error count.
func (c *Collector) ErrorCount() int64 {
	return c.errorsTotal.Load()
}
