// Package tools provides the registry of domain functions stages call.
//
// Every handler receives JSON-shaped parameters and returns a JSON-shaped
// result carrying a "status" key ("success" or "error").
package tools

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ToolHandler is a function that executes a tool.
type ToolHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// ToolDefinition defines a tool's metadata and handler.
type ToolDefinition struct {
	Name        string
	Description string
	// Stage names the stage kind that calls this tool.
	Stage   string
	Handler ToolHandler
}

// ToolNotFoundError is returned when executing an unregistered tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ToolExecutor executes tools by name.
type ToolExecutor struct {
	tools map[string]*ToolDefinition
	mu    sync.RWMutex
}

// NewToolExecutor creates a new ToolExecutor.
func NewToolExecutor() *ToolExecutor {
	return &ToolExecutor{
		tools: make(map[string]*ToolDefinition),
	}
}

// Register registers a tool, replacing any tool with the same name.
func (e *ToolExecutor) Register(def *ToolDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler is required for '%s'", def.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tools[def.Name] = def
	return nil
}

// Execute executes a tool by name.
// A nil result from a handler is reported as an error status.
func (e *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]any) (map[string]any, error) {
	e.mu.RLock()
	def, exists := e.tools[toolName]
	e.mu.RUnlock()

	if !exists {
		return nil, &ToolNotFoundError{Name: toolName}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := def.Handler(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", toolName, err)
	}
	if result == nil {
		return Failure(fmt.Sprintf("tool %s returned no result", toolName)), nil
	}
	return result, nil
}

// Has checks if a tool is registered.
func (e *ToolExecutor) Has(toolName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.tools[toolName]
	return exists
}

// List returns all registered tool names, sorted.
func (e *ToolExecutor) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetDefinition gets a tool definition by name.
func (e *ToolExecutor) GetDefinition(toolName string) *ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tools[toolName]
}

// ToolRegistry is the interface stages use to call domain functions.
type ToolRegistry interface {
	Execute(ctx context.Context, toolName string, params map[string]any) (map[string]any, error)
	Has(toolName string) bool
}

var _ ToolRegistry = (*ToolExecutor)(nil)

// Success builds a success result from fields.
func Success(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = StatusSuccess
	return out
}

// Failure builds an error result.
func Failure(message string) map[string]any {
	return map[string]any{"status": StatusError, "error": message}
}
