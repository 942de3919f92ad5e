// Package agents provides the pipeline stages. Each stage is a distinct type
// behind the Stage interface, with its domain function injected through Deps.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/broker"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/risk"
	"github.com/msyber/agora/coreengine/session"
)

// Stage is one step of a pipeline.
//
// Execute returns a lazy, finite sequence of events. A stage reports its own
// faults as a terminal failure event instead of returning an error.
type Stage interface {
	Name() string
	Execute(ctx context.Context, sc *session.Context) events.Sequence
}

// Logger is the structured logger stages use.
type Logger = observability.Logger

// ToolExecutor is the interface for domain function execution.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, params map[string]any) (map[string]any, error)
}

// DefaultNotionalUSD is the notional traded when Deps.NotionalUSD is unset.
const DefaultNotionalUSD = 50_000.0

// Deps are the collaborators injected into stages.
type Deps struct {
	Artifacts artifact.Store
	Tools     ToolExecutor
	Portfolio risk.Source
	Broker    broker.Broker
	Logger    Logger
	// NotionalUSD is the notional value the risk gate sizes orders with.
	NotionalUSD float64
}

func (d Deps) logger() Logger {
	if d.Logger == nil {
		return observability.NopLogger{}
	}
	return d.Logger
}

func (d Deps) notional() float64 {
	if d.NotionalUSD <= 0 {
		return DefaultNotionalUSD
	}
	return d.NotionalUSD
}

// =============================================================================
// SHARED STAGE BEHAVIOUR
// =============================================================================

// base carries the behaviour every stage shares: artifact I/O scoped to the
// session, domain function calls and failure reporting.
type base struct {
	name    string
	display string
	tool    string
	deps    Deps
	logger  Logger
}

func newBase(name, display, tool string, deps Deps) base {
	return base{
		name:    name,
		display: display,
		tool:    tool,
		deps:    deps,
		logger:  deps.logger().Bind("stage", name),
	}
}

// Name returns the stage name.
func (b *base) Name() string { return b.name }

// body produces the stage's terminal event. Intermediate progress goes
// through emit, which returns false once the consumer has stopped.
type body func(ctx context.Context, sc *session.Context, emit func(events.Event) bool) (events.Event, error)

// run turns a body into the stage's event sequence, converting a returned
// error into the terminal failure event.
func (b *base) run(ctx context.Context, sc *session.Context, fn body) events.Sequence {
	return events.Generate(func(yield func(events.Event) bool) {
		stopped := false
		emit := func(ev events.Event) bool {
			if stopped {
				return false
			}
			if !yield(ev) {
				stopped = true
			}
			return !stopped
		}

		b.logger.Debug("stage_started", "session_id", sc.SessionID)
		final, err := fn(ctx, sc, emit)
		if stopped {
			return
		}
		if err != nil {
			yield(b.failure(err, nil))
			return
		}
		yield(final)
	})
}

func (b *base) event(text string, delta map[string]any) events.Event {
	return events.New(b.name, text, delta)
}

func (b *base) failure(err error, delta map[string]any) events.Event {
	text := fmt.Sprintf("%s failed. Error: %v", b.display, err)
	b.logger.Error("stage_failed", "error", err.Error())
	return events.Failed(b.name, text, delta)
}

// requireKey reads a string context key written by an upstream stage.
func (b *base) requireKey(sc *session.Context, key string) (string, error) {
	v, ok := sc.GetString(key)
	if !ok {
		return "", NewPrerequisiteMissingError(key)
	}
	return v, nil
}

// loadRequired loads the latest version of the artifact named by a context key.
func (b *base) loadRequired(ctx context.Context, sc *session.Context, key string) (*artifact.Artifact, error) {
	name, err := b.requireKey(sc, key)
	if err != nil {
		return nil, err
	}
	if b.deps.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is not configured")
	}
	a, err := b.deps.Artifacts.Load(ctx, sc.Scope(), name, artifact.Latest)
	if err != nil {
		return nil, &PrerequisiteMissingError{Key: key, Artifact: name, Cause: err}
	}
	return a, nil
}

// loadJSON loads the artifact named by key and decodes it into v.
func (b *base) loadJSON(ctx context.Context, sc *session.Context, key string, v any) (string, error) {
	a, err := b.loadRequired(ctx, sc, key)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(a.Data, v); err != nil {
		return "", fmt.Errorf("decode artifact '%s': %w", a.Name, err)
	}
	return a.Name, nil
}

// save stores data under name and records the outcome.
func (b *base) save(ctx context.Context, sc *session.Context, name, mimeType string, data []byte) (int, error) {
	if b.deps.Artifacts == nil {
		observability.RecordArtifactSave(b.name, "error")
		return 0, fmt.Errorf("artifact store is not configured")
	}
	version, err := b.deps.Artifacts.Save(ctx, sc.Scope(), name, mimeType, data)
	if err != nil {
		observability.RecordArtifactSave(b.name, "error")
		return 0, fmt.Errorf("save artifact '%s': %w", name, err)
	}
	observability.RecordArtifactSave(b.name, "success")
	b.logger.Info("artifact_saved", "artifact", name, "version", version)
	return version, nil
}

// saveJSON encodes v with indentation and stores it as application/json.
func (b *base) saveJSON(ctx context.Context, sc *session.Context, name string, v any) (int, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode artifact '%s': %w", name, err)
	}
	return b.save(ctx, sc, name, artifact.MIMEJSON, data)
}

// call runs the stage's domain function and returns its result when the status is success.
func (b *base) call(ctx context.Context, params map[string]any) (map[string]any, error) {
	if b.deps.Tools == nil {
		return nil, NewDomainFailureError(b.tool, "no domain function executor configured", nil)
	}
	raw, err := b.deps.Tools.Execute(ctx, b.tool, params)
	if err != nil {
		return nil, NewDomainFailureError(b.tool, "execution error", err)
	}
	result := NormalizeToolResult(raw)
	if !result.OK() {
		return nil, NewDomainFailureError(b.tool, result.Error.Message, nil)
	}
	return result.Data, nil
}

// decodeField re-decodes one field of a domain function result into v.
func (b *base) decodeField(result map[string]any, field string, v any) error {
	raw, ok := result[field]
	if !ok {
		return NewDomainFailureError(b.tool, fmt.Sprintf("result has no '%s'", field), nil)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return NewDomainFailureError(b.tool, fmt.Sprintf("result field '%s' is not encodable", field), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewDomainFailureError(b.tool, fmt.Sprintf("result field '%s' has the wrong shape", field), err)
	}
	return nil
}

// toJSONValue converts v into the map/slice form domain functions accept.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
