package xchg

import "github.com/prometheus/client_golang/prometheus"

// metrics publishes exchange counters the ambient way the teacher
// exposes xaction stats — a small fixed set of counters/histograms
// registered once per Manager, not a general metrics framework.
type metrics struct {
	mapped       prometheus.Counter
	ghostRecv    prometheus.Counter
	putReduced   prometheus.Counter
	bufferBytes  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		mapped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdist",
			Subsystem: "xchg",
			Name:      "particles_mapped_total",
			Help:      "Particles relocated by map_ across all destinations.",
		}),
		ghostRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdist",
			Subsystem: "xchg",
			Name:      "ghosts_received_total",
			Help:      "Ghost particle copies received by ghost_get_.",
		}),
		putReduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdist",
			Subsystem: "xchg",
			Name:      "put_reductions_total",
			Help:      "Ghost values reduced into owners by ghost_put_.",
		}),
		bufferBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pdist",
			Subsystem: "xchg",
			Name:      "send_buffer_bytes",
			Help:      "Size of per-peer send buffers handed to the collective layer.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.mapped, m.ghostRecv, m.putReduced, m.bufferBytes)
	}
	return m
}
