// Package observability provides Prometheus metrics, OpenTelemetry tracing and
// structured logging for the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_pipeline_executions_total",
			Help: "Total number of pipeline executions",
		},
		[]string{"pipeline", "status"}, // status: completed, halted, failed_fast, cancelled
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_pipeline_duration_seconds",
			Help:    "Pipeline execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"pipeline"},
	)

	routeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_route_decisions_total",
			Help: "Router decisions by selected pipeline",
		},
		[]string{"router", "route"}, // route: pipeline name or "none"
	)
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success, failed, halted, panic
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// ARTIFACT METRICS
// =============================================================================

var artifactSavesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agora_artifact_saves_total",
		Help: "Artifact saves by stage and result",
	},
	[]string{"stage", "status"}, // status: success, error
)

// =============================================================================
// STREAM METRICS
// =============================================================================

var (
	streamTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_stream_ticks_total",
			Help: "Order book snapshots processed by the stream monitor",
		},
		[]string{"monitor", "result"}, // result: ok, alert, malformed
	)

	streamLastSpread = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agora_stream_last_spread",
			Help: "Most recent bid/ask spread per ticker",
		},
		[]string{"ticker"},
	)
)

// =============================================================================
// GRPC METRICS
// =============================================================================

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_grpc_requests_total",
			Help: "Total gRPC requests",
		},
		[]string{"method", "status"}, // status: OK, InvalidArgument, Internal, etc.
	)

	grpcRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineExecution records pipeline execution metrics.
func RecordPipelineExecution(pipeline string, status string, durationMS int) {
	pipelineExecutionsTotal.WithLabelValues(pipeline, status).Inc()
	pipelineDurationSeconds.WithLabelValues(pipeline).Observe(float64(durationMS) / 1000.0)
}

// RecordRouteDecision records which pipeline a router selected.
func RecordRouteDecision(router string, route string) {
	routeDecisionsTotal.WithLabelValues(router, route).Inc()
}

// RecordStageExecution records stage execution metrics.
func RecordStageExecution(stage string, status string, durationMS int) {
	stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordArtifactSave records one artifact save attempt.
func RecordArtifactSave(stage string, status string) {
	artifactSavesTotal.WithLabelValues(stage, status).Inc()
}

// RecordStreamTick records one processed snapshot.
func RecordStreamTick(monitor string, result string) {
	streamTicksTotal.WithLabelValues(monitor, result).Inc()
}

// RecordSpread stores the latest spread observed for ticker.
func RecordSpread(ticker string, spread float64) {
	streamLastSpread.WithLabelValues(ticker).Set(spread)
}

// RecordGRPCRequest records gRPC request metrics.
// This should be called from gRPC interceptors.
func RecordGRPCRequest(method string, status string, durationMS int) {
	grpcRequestsTotal.WithLabelValues(method, status).Inc()
	grpcRequestDurationSeconds.WithLabelValues(method).Observe(float64(durationMS) / 1000.0)
}
