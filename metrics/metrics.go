// Package metrics exposes Prometheus metrics for dump ingestion passes.
//
// A Collector is registered once per process. Each pipeline run obtains a
// Pass view labelled with its pass name:
//
//	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
//	pass := collector.Pass("ids")
//	pass.LinesRead(1)
//
// All Pass methods are safe on a nil receiver so components can record
// metrics unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wikidump"

// Collector owns the metric vectors shared by all passes.
type Collector struct {
	linesRead     *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	itemsProduced *prometheus.CounterVec
	itemsFlushed  *prometheus.CounterVec
	flushes       *prometheus.CounterVec
	flushLatency  *prometheus.HistogramVec
	workerDeaths  *prometheus.CounterVec
	liveWorkers   *prometheus.GaugeVec
	bufferedItems *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	cursor        *prometheus.GaugeVec
	residentBytes prometheus.Gauge
}

// NewCollector creates and registers the pipeline metrics on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{}

	c.linesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_read_total",
		Help:      "Non-empty dump lines dispatched to workers.",
	}, []string{"pass"})
	c.malformed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_lines_total",
		Help:      "Lines that failed to parse or exceeded the maximum line size.",
	}, []string{"pass"})
	c.itemsProduced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_produced_total",
		Help:      "Items returned by pass handlers.",
	}, []string{"pass"})
	c.itemsFlushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_flushed_total",
		Help:      "Items durably written to the store.",
	}, []string{"pass"})
	c.flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Bulk upsert attempts by result.",
	}, []string{"pass", "result"})
	c.flushLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_duration_seconds",
		Help:      "Bulk upsert latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"pass"})
	c.workerDeaths = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_deaths_total",
		Help:      "Workers stopped by a recovered panic.",
	}, []string{"pass"})
	c.liveWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_workers",
		Help:      "Workers currently running.",
	}, []string{"pass"})
	c.bufferedItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffered_items",
		Help:      "Items waiting in the batch buffer.",
	}, []string{"pass"})
	c.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Chunks waiting in the dispatch queue.",
	}, []string{"pass"})
	c.cursor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resume_cursor",
		Help:      "Raw line count that can be skipped on resume.",
	}, []string{"pass"})
	c.residentBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resident_memory_bytes",
		Help:      "Resident set size sampled by the progress reporter.",
	})

	for _, collector := range []prometheus.Collector{
		c.linesRead, c.malformed, c.itemsProduced, c.itemsFlushed,
		c.flushes, c.flushLatency, c.workerDeaths, c.liveWorkers,
		c.bufferedItems, c.queueDepth, c.cursor, c.residentBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Pass returns the metrics view for a named pass.
func (c *Collector) Pass(name string) *Pass {
	if c == nil {
		return nil
	}
	labels := prometheus.Labels{"pass": name}
	return &Pass{
		linesRead:     c.linesRead.With(labels),
		malformed:     c.malformed.With(labels),
		itemsProduced: c.itemsProduced.With(labels),
		itemsFlushed:  c.itemsFlushed.With(labels),
		flushOK:       c.flushes.WithLabelValues(name, "ok"),
		flushFailed:   c.flushes.WithLabelValues(name, "error"),
		flushLatency:  c.flushLatency.With(labels),
		workerDeaths:  c.workerDeaths.With(labels),
		liveWorkers:   c.liveWorkers.With(labels),
		bufferedItems: c.bufferedItems.With(labels),
		queueDepth:    c.queueDepth.With(labels),
		cursor:        c.cursor.With(labels),
		residentBytes: c.residentBytes,
	}
}

// Pass records metrics for one pass. A nil *Pass discards everything.
type Pass struct {
	linesRead     prometheus.Counter
	malformed     prometheus.Counter
	itemsProduced prometheus.Counter
	itemsFlushed  prometheus.Counter
	flushOK       prometheus.Counter
	flushFailed   prometheus.Counter
	flushLatency  prometheus.Observer
	workerDeaths  prometheus.Counter
	liveWorkers   prometheus.Gauge
	bufferedItems prometheus.Gauge
	queueDepth    prometheus.Gauge
	cursor        prometheus.Gauge
	residentBytes prometheus.Gauge
}

func (p *Pass) LinesRead(n int) {
	if p == nil {
		return
	}
	p.linesRead.Add(float64(n))
}

func (p *Pass) Malformed(n int) {
	if p == nil || n == 0 {
		return
	}
	p.malformed.Add(float64(n))
}

func (p *Pass) ItemsProduced(n int) {
	if p == nil || n == 0 {
		return
	}
	p.itemsProduced.Add(float64(n))
}

// Flush records one bulk upsert attempt.
func (p *Pass) Flush(items int, took time.Duration, err error) {
	if p == nil {
		return
	}
	p.flushLatency.Observe(took.Seconds())
	if err != nil {
		p.flushFailed.Inc()
		return
	}
	p.flushOK.Inc()
	p.itemsFlushed.Add(float64(items))
}

func (p *Pass) WorkerDied() {
	if p == nil {
		return
	}
	p.workerDeaths.Inc()
}

func (p *Pass) LiveWorkers(n int) {
	if p == nil {
		return
	}
	p.liveWorkers.Set(float64(n))
}

func (p *Pass) Buffered(n int) {
	if p == nil {
		return
	}
	p.bufferedItems.Set(float64(n))
}

func (p *Pass) QueueDepth(n int) {
	if p == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *Pass) Cursor(n int64) {
	if p == nil {
		return
	}
	p.cursor.Set(float64(n))
}

func (p *Pass) ResidentBytes(n uint64) {
	if p == nil {
		return
	}
	p.residentBytes.Set(float64(n))
}
