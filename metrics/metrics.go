// Package metrics exposes Prometheus instrumentation for every component
// (SPEC_FULL.md §C.3), grounded on the teacher's metrics/metrics.go
// promauto pattern but scoped to this pipeline's own components instead of
// VOD/transcoding/CDN concerns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every gauge/counter/histogram this module's components
// touch. A single instance is constructed at process startup and threaded
// into the components that need it.
type Metrics struct {
	// C2 JobQueue (spec.md §4.2 "metrics()").
	QueueDepth      *prometheus.GaugeVec
	JobsEnqueued    prometheus.Counter
	JobsCompleted   prometheus.Counter
	JobsFailed      *prometheus.CounterVec
	JobDurationSec  prometheus.Histogram

	// C4 StreamConsumer / FrameBatcher (spec.md §4.4).
	FramesIngested prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	BatchSize      prometheus.Histogram
	BatchLatencySec prometheus.Histogram

	// C5 ProgressiveResults (spec.md §4.5).
	ProgressiveStateCount *prometheus.GaugeVec

	// C7 RealtimeGateway (spec.md §4.7 "Statistics").
	GatewayConnections *prometheus.GaugeVec
	GatewayEvents      *prometheus.GaugeVec

	// C6 PipelineOrchestrator worker pool (SPEC_FULL.md §C.1 autoscaling).
	WorkerPoolSize       prometheus.Gauge
	WorkerPoolRecommended prometheus.Gauge
}

// New registers and returns a fresh Metrics bundle. Call once per process;
// promauto registers against the default registry.
func New() *Metrics {
	return &Metrics{
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "videoagent_queue_depth",
			Help: "Current job count per queue state (waiting/active/delayed/completed/failed/paused).",
		}, []string{"state"}),
		JobsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "videoagent_jobs_enqueued_total",
			Help: "Total jobs accepted by Enqueue.",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "videoagent_jobs_completed_total",
			Help: "Total jobs that reached state=completed.",
		}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "videoagent_jobs_failed_total",
			Help: "Total jobs that reached state=failed, labeled by error taxonomy code.",
		}, []string{"code"}),
		JobDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "videoagent_job_duration_seconds",
			Help:    "Wall-clock time from claim to terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		FramesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "videoagent_stream_frames_ingested_total",
			Help: "Total live-stream frames read off the append log.",
		}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "videoagent_stream_frames_dropped_total",
			Help: "Total frames dropped for backpressure, labeled by reason.",
		}, []string{"reason"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "videoagent_stream_batch_size",
			Help:    "Frame count per flushed batch.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}),
		BatchLatencySec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "videoagent_stream_batch_latency_seconds",
			Help:    "Time from first frame in a batch to flush.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ProgressiveStateCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "videoagent_progressive_state_count",
			Help: "Live in-memory ProgressiveResults entries per confidence tier.",
		}, []string{"tier"}),
		GatewayConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "videoagent_gateway_connections",
			Help: "Current websocket connections per namespace.",
		}, []string{"namespace"}),
		GatewayEvents: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "videoagent_gateway_events_total",
			Help: "Total EventBus messages relayed since boot, labeled by event kind (mirrors realtime.Stats.EventCounts, a cumulative counter exposed as a gauge since the source of truth is polled, not incremented here).",
		}, []string{"kind"}),
		WorkerPoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "videoagent_worker_pool_size",
			Help: "Current orchestrator worker pool size.",
		}),
		WorkerPoolRecommended: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "videoagent_worker_pool_recommended",
			Help: "cluster.DesiredWorkers' latest recommendation.",
		}),
	}
}

// ObserveQueueDepth copies a video.Metrics snapshot onto the QueueDepth
// gauge vector; kept free of the video package import to avoid metrics
// depending on domain types beyond what callers already hold as plain ints.
func (m *Metrics) ObserveQueueDepth(waiting, active, completed, failed, delayed, paused int64) {
	m.QueueDepth.WithLabelValues("waiting").Set(float64(waiting))
	m.QueueDepth.WithLabelValues("active").Set(float64(active))
	m.QueueDepth.WithLabelValues("completed").Set(float64(completed))
	m.QueueDepth.WithLabelValues("failed").Set(float64(failed))
	m.QueueDepth.WithLabelValues("delayed").Set(float64(delayed))
	m.QueueDepth.WithLabelValues("paused").Set(float64(paused))
}

// SyncGatewayStats copies a realtime.Stats-shaped snapshot onto the gateway
// gauge/counter vectors. Callers pass plain maps to avoid an import cycle
// with the realtime package.
func (m *Metrics) SyncGatewayStats(connections map[string]int64, events map[string]int64) {
	for ns, count := range connections {
		m.GatewayConnections.WithLabelValues(ns).Set(float64(count))
	}
	for kind, count := range events {
		m.GatewayEvents.WithLabelValues(kind).Set(float64(count))
	}
}
