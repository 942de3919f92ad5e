package agents

import (
	"fmt"
	"strings"
)

// =============================================================================
// TOOL STATUS
// =============================================================================

// ToolStatus represents the status of a domain function result.
type ToolStatus string

const (
	// ToolStatusSuccess indicates successful execution.
	ToolStatusSuccess ToolStatus = "success"
	// ToolStatusError indicates execution failed.
	ToolStatusError ToolStatus = "error"
)

// ToolStatusFromString parses a status string.
func ToolStatusFromString(value string) (ToolStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "success", "completed", "ok":
		return ToolStatusSuccess, nil
	case "error", "failed", "failure":
		return ToolStatusError, nil
	default:
		return "", fmt.Errorf("invalid tool status '%s'. Must be one of: success, error", value)
	}
}

// =============================================================================
// STANDARD TOOL RESULT
// =============================================================================

// ToolErrorDetails represents a domain function failure.
type ToolErrorDetails struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// StandardToolResult is a domain function result with its status resolved.
type StandardToolResult struct {
	Status ToolStatus        `json:"status"`
	Data   map[string]any    `json:"data,omitempty"`
	Error  *ToolErrorDetails `json:"error,omitempty"`
}

// OK reports whether the result carries a success status.
func (r *StandardToolResult) OK() bool { return r.Status == ToolStatusSuccess }

// NormalizeToolResult resolves the status of a raw domain function result.
//
// A missing or unrecognised status is treated as an error, so a domain
// function must opt in to success explicitly.
func NormalizeToolResult(result map[string]any) *StandardToolResult {
	if result == nil {
		return &StandardToolResult{
			Status: ToolStatusError,
			Error:  &ToolErrorDetails{ErrorType: "EmptyResult", Message: "domain function returned no result"},
		}
	}

	raw, _ := result["status"].(string)
	status, err := ToolStatusFromString(raw)
	if err != nil {
		return &StandardToolResult{
			Status: ToolStatusError,
			Data:   result,
			Error:  &ToolErrorDetails{ErrorType: "InvalidStatus", Message: fmt.Sprintf("unexpected status %q", raw)},
		}
	}
	if status == ToolStatusSuccess {
		return &StandardToolResult{Status: status, Data: result}
	}

	message := "Unknown error"
	errorType := "ToolError"
	switch e := result["error"].(type) {
	case string:
		message = e
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			message = m
		}
		if t, ok := e["type"].(string); ok {
			errorType = t
		}
	default:
		if m, ok := result["message"].(string); ok {
			message = m
		}
	}
	return &StandardToolResult{
		Status: ToolStatusError,
		Data:   result,
		Error:  &ToolErrorDetails{ErrorType: errorType, Message: message},
	}
}
