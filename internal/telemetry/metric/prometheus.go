package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridmesh"

// Registry holds all node metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	MemberPackets       *prometheus.CounterVec
	ClientCommands      *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	LaneTasks           *prometheus.CounterVec
	LaneTaskDuration    *prometheus.HistogramVec
	LaneQueueDepth      *prometheus.GaugeVec
	Announcements       *prometheus.CounterVec
	ConnectionsOpened   *prometheus.CounterVec
	ConnectionsActive   prometheus.Gauge
	ConnectionFailures  prometheus.Counter
	EndpointRemovals    prometheus.Counter
	FatalErrors         prometheus.Counter
	ResourceExhaustions prometheus.Counter
}

// NewRegistry creates a registry with the node metrics and the Go runtime
// and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		MemberPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_packets_total",
			Help:      "Member packets received, by whether the source was a registered member.",
		}, []string{"source"}),
		ClientCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_commands_total",
			Help:      "Client commands handled, by operation and status.",
		}, []string{"operation", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_command_duration_seconds",
			Help:      "Client command handling latency.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"operation"}),
		LaneTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lane_tasks_total",
			Help:      "Tasks executed on async lanes, by lane, task kind and result.",
		}, []string{"lane", "kind", "result"}),
		LaneTaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lane_task_duration_seconds",
			Help:      "Execution time of async lane tasks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"lane"}),
		LaneQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lane_queue_depth",
			Help:      "Queue depth observed at the last submission.",
		}, []string{"lane"}),
		Announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_announcements_total",
			Help:      "Multicast discovery announcements sent, by result.",
		}, []string{"result"}),
		ConnectionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_connections_opened_total",
			Help:      "Member connections established, by direction.",
		}, []string{"direction"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "member_connections_active",
			Help:      "Currently open member connections.",
		}),
		ConnectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_connection_failures_total",
			Help:      "Outbound member connection attempts that failed.",
		}),
		EndpointRemovals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_removals_total",
			Help:      "Endpoint removals requested by the IO layer.",
		}),
		FatalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_errors_total",
			Help:      "Fatal IO errors that triggered an immediate shutdown.",
		}),
		ResourceExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_exhaustion_total",
			Help:      "Out-of-memory or descriptor exhaustion events.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.MemberPackets,
		r.ClientCommands,
		r.CommandDuration,
		r.LaneTasks,
		r.LaneTaskDuration,
		r.LaneQueueDepth,
		r.Announcements,
		r.ConnectionsOpened,
		r.ConnectionsActive,
		r.ConnectionFailures,
		r.EndpointRemovals,
		r.FatalErrors,
		r.ResourceExhaustions,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the process-wide registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// RecordMemberPacket counts an inbound member packet.
func (r *Registry) RecordMemberPacket(known bool) {
	source := "unknown"
	if known {
		source = "member"
	}
	r.MemberPackets.WithLabelValues(source).Inc()
}

// RecordCommand counts a client command and its latency.
func (r *Registry) RecordCommand(operation string, ok bool, elapsed time.Duration) {
	status := "failure"
	if ok {
		status = "success"
	}
	r.ClientCommands.WithLabelValues(operation, status).Inc()
	r.CommandDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordAnnouncement counts a discovery send attempt.
func (r *Registry) RecordAnnouncement(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.Announcements.WithLabelValues(result).Inc()
}

// TaskQueued implements lane.Observer.
func (r *Registry) TaskQueued(lane string, depth int) {
	r.LaneQueueDepth.WithLabelValues(lane).Set(float64(depth))
}

// TaskExecuted implements lane.Observer.
func (r *Registry) TaskExecuted(lane, kind string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.LaneTasks.WithLabelValues(lane, kind, result).Inc()
	r.LaneTaskDuration.WithLabelValues(lane).Observe(elapsed.Seconds())
}
