package runtime

import (
	"fmt"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/agents"
	"github.com/msyber/agora/coreengine/config"
	"github.com/msyber/agora/coreengine/observability"
)

// Builder constructs pipelines and routers from configuration.
type Builder struct {
	Deps   agents.Deps
	Bus    commbus.CommBus
	Logger observability.Logger
}

func (b Builder) logger() observability.Logger {
	if b.Logger == nil {
		return observability.NopLogger{}
	}
	return b.Logger
}

// Pipeline validates cfg and builds its stages in order.
func (b Builder) Pipeline(cfg config.PipelineConfig) (*SequentialPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps := b.Deps
	if deps.Logger == nil {
		deps.Logger = b.logger()
	}
	stages := make([]agents.Stage, 0, len(cfg.Stages))
	for _, sc := range cfg.Stages {
		stage, err := agents.New(sc.Kind, sc.Name, sc.Tool, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage '%s' of pipeline '%s': %w", sc.Name, cfg.Name, err)
		}
		stages = append(stages, stage)
	}

	return NewSequentialPipeline(cfg.Name, stages,
		WithFailFast(cfg.FailFast),
		WithBus(b.Bus),
		WithLogger(b.logger()),
	), nil
}

// Router builds every pipeline and registers them in order.
func (b Builder) Router(name, helpText string, pipelines []config.PipelineConfig) (*Router, error) {
	router := NewRouter(name, helpText, WithRouterBus(b.Bus), WithRouterLogger(b.logger()))
	for _, pc := range pipelines {
		pipeline, err := b.Pipeline(pc)
		if err != nil {
			return nil, err
		}
		if err := router.Register(pc.Keywords, pipeline); err != nil {
			return nil, err
		}
	}

	b.logger().Info("router_built", "router", name, "pipelines", len(pipelines))
	return router, nil
}
