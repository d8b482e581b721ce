package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the application.
// Every method is safe on a nil receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Command and query metrics
	CommandDuration *prometheus.HistogramVec
	CommandErrors   *prometheus.CounterVec

	// Reconciliation metrics
	Merges          prometheus.Counter
	NodesCreated    prometheus.Counter
	NodesEnriched   prometheus.Counter
	NodesDeleted    prometheus.Counter
	EdgesAccepted   prometheus.Counter
	EdgesDropped    *prometheus.CounterVec
	OrphansAttached prometheus.Counter
	Proposals       *prometheus.CounterVec
	Anchors         *prometheus.CounterVec

	// Collaborator metrics
	CompletionCalls *prometheus.CounterVec
	CompletionTime  prometheus.Histogram
	SnapshotOps     *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// NewCollector creates a collector with its own registry under namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command and query handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "name"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Failed commands and queries by error type",
		}, []string{"kind", "name", "type"}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of proposals merged into graphs",
		}),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Total number of nodes created",
		}),
		NodesEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_enriched_total",
			Help:      "Total number of existing nodes updated by merges",
		}),
		NodesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_deleted_total",
			Help:      "Total number of nodes deleted, descendants included",
		}),
		EdgesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_accepted_total",
			Help:      "Total number of proposed edges accepted",
		}),
		EdgesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_dropped_total",
			Help:      "Total number of proposed edges dropped by reason",
		}, []string{"reason"}),
		OrphansAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_attached_total",
			Help:      "Total number of new nodes attached to root",
		}),
		Proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_parsed_total",
			Help:      "Parsed model responses by detected format",
		}, []string{"format"}),
		Anchors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_decisions_total",
			Help:      "Anchor decisions by winning rule",
		}, []string{"rule"}),
		CompletionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_calls_total",
			Help:      "Calls to the completion service by outcome",
		}, []string{"status"}),
		CompletionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		SnapshotOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Snapshot repository operations by outcome",
		}, []string{"operation", "status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CommandDuration,
		c.CommandErrors,
		c.Merges,
		c.NodesCreated,
		c.NodesEnriched,
		c.NodesDeleted,
		c.EdgesAccepted,
		c.EdgesDropped,
		c.OrphansAttached,
		c.Proposals,
		c.Anchors,
		c.CompletionCalls,
		c.CompletionTime,
		c.SnapshotOps,
		c.ActiveSessions,
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCommand records a command or query execution; errType is empty on success
func (c *Collector) RecordCommand(kind, name string, duration time.Duration, errType string) {
	if c == nil {
		return
	}
	c.CommandDuration.WithLabelValues(kind, name).Observe(duration.Seconds())
	if errType != "" {
		c.CommandErrors.WithLabelValues(kind, name, errType).Inc()
	}
}

// RecordMerge records the outcome of one reconciliation
func (c *Collector) RecordMerge(created, updated, accepted, orphans int, dropReasons []string) {
	if c == nil {
		return
	}
	c.Merges.Inc()
	c.NodesCreated.Add(float64(created))
	c.NodesEnriched.Add(float64(updated))
	c.EdgesAccepted.Add(float64(accepted))
	c.OrphansAttached.Add(float64(orphans))
	for _, reason := range dropReasons {
		c.EdgesDropped.WithLabelValues(reason).Inc()
	}
}

// RecordProposal counts a parsed response by format
func (c *Collector) RecordProposal(format string) {
	if c == nil {
		return
	}
	c.Proposals.WithLabelValues(format).Inc()
}

// RecordAnchor counts an anchor decision by rule
func (c *Collector) RecordAnchor(rule string) {
	if c == nil {
		return
	}
	c.Anchors.WithLabelValues(rule).Inc()
}

// RecordNodesCreated counts nodes created outside a merge
func (c *Collector) RecordNodesCreated(n int) {
	if c == nil {
		return
	}
	c.NodesCreated.Add(float64(n))
}

// RecordNodesDeleted counts nodes removed by a cascade
func (c *Collector) RecordNodesDeleted(n int) {
	if c == nil {
		return
	}
	c.NodesDeleted.Add(float64(n))
}

// RecordCompletion records a completion call
func (c *Collector) RecordCompletion(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.CompletionCalls.WithLabelValues(status).Inc()
	c.CompletionTime.Observe(duration.Seconds())
}

// RecordSnapshot records a repository operation
func (c *Collector) RecordSnapshot(operation, status string) {
	if c == nil {
		return
	}
	c.SnapshotOps.WithLabelValues(operation, status).Inc()
}

// SetActiveSessions updates the in-memory session gauge
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}
