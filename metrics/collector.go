// Package metrics exports reassembler counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/peacewang017/minnow"
)

const subsystem = "reassembler"

// Source is what a Collector reads on every scrape. *minnow.Pipe satisfies
// it.
type Source interface {
	Stats() minnow.Stats
	BytesPending() uint64
	Window() (ackIndex, windowSize uint64)
}

// Collector is a prometheus.Collector reporting the state of one Source.
// Values are read at scrape time, so the Source needs no instrumentation.
type Collector struct {
	source Source

	fragments   *prometheus.Desc
	received    *prometheus.Desc
	outOfWindow *prometheus.Desc
	redundant   *prometheus.Desc
	assembled   *prometheus.Desc

	pending  *prometheus.Desc
	window   *prometheus.Desc
	ackIndex *prometheus.Desc
}

func NewCollector(namespace string, source Source) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &Collector{
		source: source,

		fragments:   desc("fragments_total", "Fragments passed to the reassembler before the stream closed."),
		received:    desc("received_bytes_total", "Bytes carried by those fragments."),
		outOfWindow: desc("out_of_window_bytes_total", "Bytes discarded outside the acceptance window."),
		redundant:   desc("redundant_bytes_total", "Bytes that were already cached when they arrived."),
		assembled:   desc("assembled_bytes_total", "Bytes pushed to the stream in order."),

		pending:  desc("pending_bytes", "Bytes cached out of order, waiting for a gap to fill."),
		window:   desc("window_bytes", "Bytes past the ack index that would be accepted."),
		ackIndex: desc("ack_index", "First stream index not yet assembled."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fragments
	ch <- c.received
	ch <- c.outOfWindow
	ch <- c.redundant
	ch <- c.assembled
	ch <- c.pending
	ch <- c.window
	ch <- c.ackIndex
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	pending := c.source.BytesPending()
	ack, wnd := c.source.Window()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(c.fragments, stats.Fragments)
	counter(c.received, stats.BytesReceived)
	counter(c.outOfWindow, stats.BytesOutOfWindow)
	counter(c.redundant, stats.BytesRedundant)
	counter(c.assembled, stats.BytesAssembled)

	gauge(c.pending, pending)
	gauge(c.window, wnd)
	gauge(c.ackIndex, ack)
}
