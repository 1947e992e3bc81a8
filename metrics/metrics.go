// Package metrics exposes the engine's atomic counters and commit latency
// as Prometheus instruments. It is an optional collaborator: httpserver.Server
// works with a nil *Collector, and every method on a nil *Collector is a
// no-op, so call sites never need to branch on whether metrics were wired.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "httpengine"

// Collector holds every Prometheus instrument the engine reports through.
type Collector struct {
	totalRequests      prometheus.Counter
	processedRequests  prometheus.Counter
	timedOutRequests   prometheus.Counter
	checkedOutRequests prometheus.Counter
	readyPoolDepth     prometheus.Gauge
	handleTableLive    prometheus.Gauge
	commitLatency      prometheus.Histogram
}

// NewCollector builds a Collector and, if reg is non-nil, registers every
// instrument with it. Buckets are log-spaced from 100us to ~1.6s, matching
// the commit-latency range this engine's max_latency_millis config is meant
// to bound.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		totalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Total requests handed to add_ready.",
		}),
		processedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_processed_total",
			Help: "Requests committed by a user processor.",
		}),
		timedOutRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_timed_out_total",
			Help: "Requests committed by the timeout processor.",
		}),
		checkedOutRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_checked_out_total",
			Help: "Checkout calls that found a ready request.",
		}),
		readyPoolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ready_pool_depth",
			Help: "Current number of requests waiting in the ready pool.",
		}),
		handleTableLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "handle_table_live",
			Help: "Current number of live entries in the handle table.",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "commit_latency_seconds",
			Help:    "Time from add_ready to commit.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.totalRequests, c.processedRequests, c.timedOutRequests,
			c.checkedOutRequests, c.readyPoolDepth, c.handleTableLive,
			c.commitLatency,
		)
	}
	return c
}

// IncTotal records one request reaching add_ready.
func (c *Collector) IncTotal() {
	if c != nil {
		c.totalRequests.Inc()
	}
}

// IncProcessed records one request committed by a user processor.
func (c *Collector) IncProcessed() {
	if c != nil {
		c.processedRequests.Inc()
	}
}

// IncTimedOut records one request committed by the timeout processor.
func (c *Collector) IncTimedOut() {
	if c != nil {
		c.timedOutRequests.Inc()
	}
}

// IncCheckedOut records one checkout call that found a ready request.
func (c *Collector) IncCheckedOut() {
	if c != nil {
		c.checkedOutRequests.Inc()
	}
}

// SetReadyPoolDepth reports the ready pool's current size.
func (c *Collector) SetReadyPoolDepth(n int) {
	if c != nil {
		c.readyPoolDepth.Set(float64(n))
	}
}

// SetHandleTableLive reports the handle table's current live entry count.
func (c *Collector) SetHandleTableLive(n int) {
	if c != nil {
		c.handleTableLive.Set(float64(n))
	}
}

// ObserveCommitLatency records the time between add_ready and commit.
func (c *Collector) ObserveCommitLatency(d time.Duration) {
	if c != nil {
		c.commitLatency.Observe(d.Seconds())
	}
}
