// Package runtime runs pipelines of stages and routes requests to them.
package runtime

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/agents"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/session"
)

var tracer = otel.Tracer("agora/runtime")

// Pipeline run statuses.
const (
	StatusCompleted  = "completed"
	StatusHalted     = "halted"
	StatusFailedFast = "failed_fast"
	StatusCancelled  = "cancelled"
)

// Stage run statuses.
const (
	StageSuccess = "success"
	StageFailed  = "failed"
	StageHalted  = "halted"
	StagePanic   = "panic"
)

// SequentialPipeline runs its stages strictly one after another.
//
// Every event a stage yields has its delta merged into the session context
// before it is forwarded, so later stages see what earlier ones published.
// A failed stage does not stop the pipeline unless FailFast is set; a halt
// event always does.
type SequentialPipeline struct {
	name     string
	stages   []agents.Stage
	failFast bool
	bus      commbus.CommBus
	logger   observability.Logger
}

// PipelineOption configures a SequentialPipeline.
type PipelineOption func(*SequentialPipeline)

// WithFailFast stops the pipeline after the first stage that emits a failure event.
func WithFailFast(failFast bool) PipelineOption {
	return func(p *SequentialPipeline) { p.failFast = failFast }
}

// WithBus publishes pipeline and stage lifecycle messages on bus.
func WithBus(bus commbus.CommBus) PipelineOption {
	return func(p *SequentialPipeline) { p.bus = bus }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger observability.Logger) PipelineOption {
	return func(p *SequentialPipeline) { p.logger = logger }
}

// NewSequentialPipeline creates a pipeline over stages, run in the given order.
func NewSequentialPipeline(name string, stages []agents.Stage, opts ...PipelineOption) *SequentialPipeline {
	p := &SequentialPipeline{
		name:   name,
		stages: append([]agents.Stage(nil), stages...),
		logger: observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Bind("pipeline", name)
	return p
}

// Name returns the pipeline name.
func (p *SequentialPipeline) Name() string { return p.name }

// FailFast reports whether the pipeline stops on the first failed stage.
func (p *SequentialPipeline) FailFast() bool { return p.failFast }

// StageNames returns the stage names in execution order.
func (p *SequentialPipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run returns the pipeline's event sequence for one session.
//
// The sequence is lazy: no stage starts until the caller ranges over it, and
// stopping the range early stops the pipeline. Cancellation of ctx is
// observed between stages.
func (p *SequentialPipeline) Run(ctx context.Context, sc *session.Context) events.Sequence {
	return events.Generate(func(yield func(events.Event) bool) {
		start := time.Now()
		status := StatusCompleted
		count := 0

		p.logger.Info("pipeline_started", "session_id", sc.SessionID, "stages", p.StageNames())
		p.publish(ctx, &commbus.PipelineStarted{Pipeline: p.name, SessionID: sc.SessionID, Stages: p.StageNames()})

		defer func() {
			durationMS := int(time.Since(start).Milliseconds())
			observability.RecordPipelineExecution(p.name, status, durationMS)
			p.logger.Info("pipeline_completed",
				"session_id", sc.SessionID,
				"status", status,
				"event_count", count,
				"duration_ms", durationMS,
			)
			p.publish(context.WithoutCancel(ctx), &commbus.PipelineCompleted{
				Pipeline:   p.name,
				SessionID:  sc.SessionID,
				Status:     status,
				DurationMS: durationMS,
				EventCount: count,
			})
		}()

		for _, stage := range p.stages {
			if err := ctx.Err(); err != nil {
				status = StatusCancelled
				p.logger.Info("pipeline_cancelled", "session_id", sc.SessionID, "stage", stage.Name(), "reason", err.Error())
				return
			}

			outcome := p.runStage(ctx, sc, stage, func(ev events.Event) bool {
				count++
				return yield(ev)
			})
			switch {
			case outcome.stopped:
				status = StatusCancelled
				return
			case outcome.status == StageHalted:
				status = StatusHalted
				p.logger.Info("pipeline_halted", "session_id", sc.SessionID, "stage", stage.Name())
				return
			case p.failFast && (outcome.status == StageFailed || outcome.status == StagePanic):
				status = StatusFailedFast
				p.logger.Warn("pipeline_failed_fast", "session_id", sc.SessionID, "stage", stage.Name())
				return
			}
		}
	})
}

type stageOutcome struct {
	status  string
	stopped bool
}

// runStage drives one stage to completion, merging and forwarding its events.
// A panic inside the stage becomes the stage's terminal failure event.
func (p *SequentialPipeline) runStage(ctx context.Context, sc *session.Context, stage agents.Stage, forward func(events.Event) bool) stageOutcome {
	name := stage.Name()
	stageCtx, span := tracer.Start(ctx, "stage.execute", trace.WithAttributes(
		attribute.String("agora.pipeline", p.name),
		attribute.String("agora.stage", name),
		attribute.String("agora.session.id", sc.SessionID),
	))
	defer span.End()

	start := time.Now()
	p.publish(ctx, &commbus.StageStarted{Stage: name, Pipeline: p.name, SessionID: sc.SessionID})
	p.logger.Debug("stage_started", "stage", name, "session_id", sc.SessionID)

	outcome := stageOutcome{status: StageSuccess}
	next, stop := iter.Pull(stage.Execute(stageCtx, sc))
	defer stop()

	for {
		item, err := kernel.SafeExecuteWithResult(p.logger, "stage:"+name, func() (pulled, error) {
			ev, ok := next()
			return pulled{ev: ev, ok: ok}, nil
		})
		if err != nil {
			outcome.status = StagePanic
			span.RecordError(err)
			item = pulled{ev: events.Failed(name, fmt.Sprintf("%s failed. Error: %v", name, err), nil), ok: true}
		}
		if !item.ok {
			break
		}

		sc.Merge(item.ev.StateDelta)
		if item.ev.Halt {
			outcome.status = StageHalted
		} else if item.ev.Failure && outcome.status == StageSuccess {
			outcome.status = StageFailed
		}
		if !forward(item.ev) {
			outcome.stopped = true
			break
		}
		if err != nil {
			break
		}
	}

	durationMS := int(time.Since(start).Milliseconds())
	observability.RecordStageExecution(name, outcome.status, durationMS)
	span.SetAttributes(attribute.String("agora.stage.status", outcome.status), attribute.Int("duration_ms", durationMS))
	if outcome.status == StageSuccess || outcome.status == StageHalted {
		span.SetStatus(codes.Ok, outcome.status)
	} else {
		span.SetStatus(codes.Error, outcome.status)
	}
	p.logger.Info("stage_completed", "stage", name, "status", outcome.status, "duration_ms", durationMS)
	p.publish(context.WithoutCancel(ctx), &commbus.StageCompleted{
		Stage:      name,
		Pipeline:   p.name,
		SessionID:  sc.SessionID,
		Status:     outcome.status,
		DurationMS: durationMS,
	})
	return outcome
}

type pulled struct {
	ev events.Event
	ok bool
}

func (p *SequentialPipeline) publish(ctx context.Context, msg commbus.Message) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.logger.Warn("lifecycle_publish_failed", "type", commbus.GetMessageType(msg), "error", err.Error())
	}
}
