package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NodeState is sampled on every scrape.
type NodeState interface {
	MemberCount() int
	PendingIOTasks() int
	Active() bool
}

// Collector reports live node state as gauges.
type Collector struct {
	state NodeState

	members *prometheus.Desc
	pending *prometheus.Desc
	active  *prometheus.Desc
}

// NewCollector creates a collector sampling state.
func NewCollector(state NodeState) *Collector {
	return &Collector{
		state: state,
		members: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "members"),
			"Registered cluster members.", nil, nil),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "io_lane", "pending_tasks"),
			"Tasks queued on the io lane.", nil, nil),
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "node_active"),
			"1 while the node accepts work.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.members
	ch <- c.pending
	ch <- c.active
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	active := 0.0
	if c.state.Active() {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(c.members, prometheus.GaugeValue, float64(c.state.MemberCount()))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(c.state.PendingIOTasks()))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active)
}
