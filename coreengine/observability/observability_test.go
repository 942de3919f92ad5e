package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestRecordPipelineExecution(t *testing.T) {
	tests := []struct {
		name       string
		pipeline   string
		status     string
		durationMS int
	}{
		{"completed pipeline", "news_pipeline", "completed", 120},
		{"halted pipeline", "trade_pipeline", "halted", 900},
		{"cancelled pipeline", "trade_pipeline", "cancelled", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues(tt.pipeline, tt.status))
			RecordPipelineExecution(tt.pipeline, tt.status, tt.durationMS)
			after := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues(tt.pipeline, tt.status))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestRecordStageExecution(t *testing.T) {
	RecordStageExecution("risk_guardian", "halted", 5)
	assert.GreaterOrEqual(t, testutil.ToFloat64(stageExecutionsTotal.WithLabelValues("risk_guardian", "halted")), 1.0)
}

func TestRecordRouteDecision(t *testing.T) {
	RecordRouteDecision("intelligence_orchestrator", "none")
	assert.GreaterOrEqual(t, testutil.ToFloat64(routeDecisionsTotal.WithLabelValues("intelligence_orchestrator", "none")), 1.0)
}

func TestRecordArtifactSave(t *testing.T) {
	before := testutil.ToFloat64(artifactSavesTotal.WithLabelValues("data_harvester", "error"))
	RecordArtifactSave("data_harvester", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(artifactSavesTotal.WithLabelValues("data_harvester", "error")))
}

func TestRecordStreamMetrics(t *testing.T) {
	RecordStreamTick("microstructure", "alert")
	RecordSpread("MSFT", 0.2)

	assert.GreaterOrEqual(t, testutil.ToFloat64(streamTicksTotal.WithLabelValues("microstructure", "alert")), 1.0)
	assert.InDelta(t, 0.2, testutil.ToFloat64(streamLastSpread.WithLabelValues("MSFT")), 1e-9)
}

func TestRecordGRPCRequest(t *testing.T) {
	RecordGRPCRequest("/agora.v1.Orchestrator/Run", "OK", 12)
	assert.GreaterOrEqual(t, testutil.ToFloat64(grpcRequestsTotal.WithLabelValues("/agora.v1.Orchestrator/Run", "OK")), 1.0)
}

// =============================================================================
// LOGGER TESTS
// =============================================================================

func TestSlogLogger_JSONWithBoundFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json").Bind("stage", "auditor")

	logger.Info("stage_completed", "version", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "stage_completed", record["msg"])
	assert.Equal(t, "auditor", record["stage"])
	assert.Equal(t, float64(2), record["version"])
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", "k", "v")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Bind("a", 1).Error("ignored")
}

// =============================================================================
// TRACING TESTS
// =============================================================================

func TestInitTracer_NoExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "agora-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(context.Background(), TracingConfig{
		ServiceName: "agora-test",
		Stdout:      true,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("agora-test").Start(context.Background(), "unit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit")
}
