package agents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TOOL STATUS TESTS
// =============================================================================

func TestToolStatusFromString(t *testing.T) {
	tests := []struct {
		in   string
		want ToolStatus
	}{
		{"success", ToolStatusSuccess},
		{"SUCCESS", ToolStatusSuccess},
		{"  success  ", ToolStatusSuccess},
		{"completed", ToolStatusSuccess},
		{"ok", ToolStatusSuccess},
		{"error", ToolStatusError},
		{"Error", ToolStatusError},
		{"failed", ToolStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToolStatusFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolStatusFromString_Invalid(t *testing.T) {
	_, err := ToolStatusFromString("pending")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tool status 'pending'")
	assert.Contains(t, err.Error(), "success")
}

// =============================================================================
// NORMALIZE TESTS
// =============================================================================

func TestNormalizeToolResult(t *testing.T) {
	t.Run("success passes data through", func(t *testing.T) {
		r := NormalizeToolResult(map[string]any{"status": "success", "content": "x"})

		assert.True(t, r.OK())
		assert.Nil(t, r.Error)
		assert.Equal(t, "x", r.Data["content"])
	})

	t.Run("string error", func(t *testing.T) {
		r := NormalizeToolResult(map[string]any{"status": "error", "error": "backend down"})

		assert.False(t, r.OK())
		require.NotNil(t, r.Error)
		assert.Equal(t, "backend down", r.Error.Message)
		assert.Equal(t, "ToolError", r.Error.ErrorType)
	})

	t.Run("structured error", func(t *testing.T) {
		r := NormalizeToolResult(map[string]any{
			"status": "error",
			"error":  map[string]any{"message": "bad ticker", "type": "ValidationError"},
		})

		require.NotNil(t, r.Error)
		assert.Equal(t, "bad ticker", r.Error.Message)
		assert.Equal(t, "ValidationError", r.Error.ErrorType)
	})

	t.Run("message field fallback", func(t *testing.T) {
		r := NormalizeToolResult(map[string]any{"status": "failed", "message": "quota exceeded"})

		require.NotNil(t, r.Error)
		assert.Equal(t, "quota exceeded", r.Error.Message)
	})

	t.Run("missing status is an error", func(t *testing.T) {
		r := NormalizeToolResult(map[string]any{"content": "x"})

		assert.False(t, r.OK())
		assert.Equal(t, "InvalidStatus", r.Error.ErrorType)
	})

	t.Run("nil result", func(t *testing.T) {
		r := NormalizeToolResult(nil)

		assert.False(t, r.OK())
		assert.Equal(t, "EmptyResult", r.Error.ErrorType)
	})
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestPrerequisiteMissingError(t *testing.T) {
	err := NewPrerequisiteMissingError("last_insight_file")

	assert.ErrorIs(t, err, ErrPrerequisiteMissing)
	assert.NotErrorIs(t, err, ErrDomainFailure)
	assert.Equal(t, "prerequisite 'last_insight_file' not found in session state", err.Error())

	cause := errors.New("not found")
	wrapped := &PrerequisiteMissingError{Key: "last_audit_file", Artifact: "MSFT_trade_audit.json", Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "MSFT_trade_audit.json")
}

func TestDomainFailureError(t *testing.T) {
	err := NewDomainFailureError("extract_insights", "backend down", nil)

	assert.ErrorIs(t, err, ErrDomainFailure)
	assert.Equal(t, "domain function extract_insights failed: backend down", err.Error())

	cause := errors.New("timeout")
	wrapped := NewDomainFailureError("extract_insights", "execution error", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "timeout")
}
