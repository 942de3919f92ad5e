// Package testutil provides shared test utilities and mocks.
//
// All mocks in this package are designed for testing the coreengine components
// in isolation without requiring external dependencies.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/session"
)

// TestAppID is the app id fixtures create sessions under.
const TestAppID = "agora-test"

// TestUserID is the user id fixtures create sessions under.
const TestUserID = "user-test"

// =============================================================================
// MOCK TOOL EXECUTOR
// =============================================================================

// MockToolExecutor implements the domain function executor interface for testing.
type MockToolExecutor struct {
	// Results maps tool names to their results.
	Results map[string]map[string]any

	// Errors maps tool names to errors they should return.
	Errors map[string]error

	// Delay simulates tool execution latency.
	Delay time.Duration

	// CallCount tracks the number of Execute calls.
	CallCount int

	// Calls records all calls for assertion.
	Calls []ToolCall

	mu sync.Mutex
}

// ToolCall records a single tool execution for assertion.
type ToolCall struct {
	ToolName string
	Params   map[string]any
}

// NewMockToolExecutor creates a MockToolExecutor with sensible defaults.
func NewMockToolExecutor() *MockToolExecutor {
	return &MockToolExecutor{
		Results: make(map[string]map[string]any),
		Errors:  make(map[string]error),
	}
}

// Execute records the call and returns the configured result or error.
func (m *MockToolExecutor) Execute(ctx context.Context, toolName string, params map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, ToolCall{ToolName: toolName, Params: params})
	delay := m.Delay
	err, hasErr := m.Errors[toolName]
	result, hasResult := m.Results[toolName]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if hasErr {
		return nil, err
	}
	if hasResult {
		return result, nil
	}

	// Default success response
	return map[string]any{"status": "success", "tool": toolName}, nil
}

// WithResult adds a tool result.
func (m *MockToolExecutor) WithResult(toolName string, result map[string]any) *MockToolExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results[toolName] = result
	return m
}

// WithError configures a tool to return an error.
func (m *MockToolExecutor) WithError(toolName string, err error) *MockToolExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[toolName] = err
	return m
}

// WithDelay adds latency simulation.
func (m *MockToolExecutor) WithDelay(d time.Duration) *MockToolExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delay = d
	return m
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockToolExecutor) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// CallsTo returns the recorded calls of one tool.
func (m *MockToolExecutor) CallsTo(toolName string) []ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ToolCall
	for _, c := range m.Calls {
		if c.ToolName == toolName {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears call history.
func (m *MockToolExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.Calls = nil
}

// =============================================================================
// MOCK LOGGER
// =============================================================================

// MockLogger implements observability.Logger and captures every entry.
// Loggers returned by Bind share the parent's capture buffer.
type MockLogger struct {
	shared *logBuffer
	bound  []any
}

type logBuffer struct {
	mu   sync.Mutex
	logs []LogEntry
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewMockLogger creates a MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{shared: &logBuffer{}}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log("debug", msg, keysAndValues...)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log("info", msg, keysAndValues...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log("warn", msg, keysAndValues...)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log("error", msg, keysAndValues...)
}

// Bind returns a logger that adds fields to every entry.
func (m *MockLogger) Bind(fields ...any) observability.Logger {
	bound := make([]any, 0, len(m.bound)+len(fields))
	bound = append(bound, m.bound...)
	bound = append(bound, fields...)
	return &MockLogger{shared: m.shared, bound: bound}
}

func (m *MockLogger) log(level, msg string, keysAndValues ...any) {
	fields := make(map[string]any)
	all := append(append([]any{}, m.bound...), keysAndValues...)
	for i := 0; i < len(all)-1; i += 2 {
		if key, ok := all[i].(string); ok {
			fields[key] = all[i+1]
		}
	}

	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	m.shared.logs = append(m.shared.logs, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// GetLogs returns captured logs (thread-safe).
func (m *MockLogger) GetLogs() []LogEntry {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()

	copied := make([]LogEntry, len(m.shared.logs))
	copy(copied, m.shared.logs)
	return copied
}

// HasLog checks if a log message exists at the given level.
func (m *MockLogger) HasLog(level, message string) bool {
	for _, entry := range m.GetLogs() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// FindLog returns the first entry with the given message.
func (m *MockLogger) FindLog(message string) (LogEntry, bool) {
	for _, entry := range m.GetLogs() {
		if entry.Message == message {
			return entry, true
		}
	}
	return LogEntry{}, false
}

// Clear removes all captured logs.
func (m *MockLogger) Clear() {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	m.shared.logs = nil
}

// =============================================================================
// SESSION FIXTURES
// =============================================================================

// NewTestSession creates a session under TestAppID/TestUserID.
func NewTestSession(input string, opts ...session.Option) *session.Context {
	return session.New(TestAppID, TestUserID, input, opts...)
}

// NewTestStore creates an empty in-memory artifact store.
func NewTestStore() *artifact.MemoryStore {
	return artifact.NewMemoryStore()
}

// SeedArtifact saves data under name in the session's scope and sets key to
// name, the way an upstream stage hands an artifact downstream.
// Returns the saved version.
func SeedArtifact(store artifact.Store, sc *session.Context, key, name, mimeType string, data []byte) (int, error) {
	version, err := store.Save(context.Background(), sc.Scope(), name, mimeType, data)
	if err != nil {
		return 0, err
	}
	if key != "" {
		sc.Set(key, name)
	}
	return version, nil
}

// =============================================================================
// SCRIPTED STAGE
// =============================================================================

// ScriptedStage is a stage that emits a fixed list of events.
// Its Execute records each invocation, and Panic makes it panic after
// emitting the scripted events.
type ScriptedStage struct {
	StageName string
	Events    []events.Event
	Panic     any

	mu    sync.Mutex
	calls int
	seen  []map[string]any
}

// NewScriptedStage creates a stage named name that emits one event per text.
func NewScriptedStage(name string, texts ...string) *ScriptedStage {
	s := &ScriptedStage{StageName: name}
	for _, text := range texts {
		s.Events = append(s.Events, events.New(name, text, nil))
	}
	return s
}

// Emit appends an event to the script.
func (s *ScriptedStage) Emit(ev events.Event) *ScriptedStage {
	if ev.Author == "" {
		ev.Author = s.StageName
	}
	s.Events = append(s.Events, ev)
	return s
}

// WithPanic makes the stage panic with v after its scripted events.
func (s *ScriptedStage) WithPanic(v any) *ScriptedStage {
	s.Panic = v
	return s
}

// Name returns the stage name.
func (s *ScriptedStage) Name() string { return s.StageName }

// Execute yields the scripted events.
func (s *ScriptedStage) Execute(_ context.Context, sc *session.Context) events.Sequence {
	return events.Generate(func(yield func(events.Event) bool) {
		s.mu.Lock()
		s.calls++
		s.seen = append(s.seen, sc.Snapshot())
		s.mu.Unlock()

		for _, ev := range s.Events {
			if !yield(ev) {
				return
			}
		}
		if s.Panic != nil {
			panic(s.Panic)
		}
	})
}

// Calls returns how many times Execute ran.
func (s *ScriptedStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SeenState returns the context snapshot the stage observed on its last run.
func (s *ScriptedStage) SeenState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) == 0 {
		return nil
	}
	return s.seen[len(s.seen)-1]
}

// =============================================================================
// EVENT HELPERS
// =============================================================================

// Texts returns the text of each event.
func Texts(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Text
	}
	return out
}

// Authors returns the author of each event.
func Authors(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Author
	}
	return out
}

// Failures returns the failure events.
func Failures(evs []events.Event) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Failure {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the final event, or the zero Event if evs is empty.
func Last(evs []events.Event) events.Event {
	if len(evs) == 0 {
		return events.Event{}
	}
	return evs[len(evs)-1]
}

// ContainsText reports whether any event's text contains substr.
func ContainsText(evs []events.Event, substr string) bool {
	for _, ev := range evs {
		if strings.Contains(ev.Text, substr) {
			return true
		}
	}
	return false
}
