package config

import (
	"fmt"
	"strings"

	"github.com/msyber/agora/coreengine/agents"
)

// StageConfig declares one stage of a pipeline.
type StageConfig struct {
	// Name is the stage name events are authored under. Defaults to Kind.
	Name string `koanf:"name" json:"name"`
	// Kind selects the stage implementation (see agents.Kinds).
	Kind string `koanf:"kind" json:"kind"`
	// Tool overrides the stage's default domain function.
	Tool string `koanf:"tool" json:"tool,omitempty"`
}

// Validate checks the stage kind and defaults the name.
func (c *StageConfig) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("StageConfig.Kind is required")
	}
	if !agents.IsKnownKind(c.Kind) {
		return fmt.Errorf("unknown stage kind '%s' (known: %s)", c.Kind, strings.Join(agents.Kinds(), ", "))
	}
	if c.Name == "" {
		c.Name = c.Kind
	}
	return nil
}

// PipelineConfig declares a routable sequential pipeline.
type PipelineConfig struct {
	Name string `koanf:"name" json:"name"`
	// Keywords route a request to this pipeline; matching is case-insensitive.
	Keywords []string `koanf:"keywords" json:"keywords"`
	// FailFast stops the pipeline after the first failed stage.
	FailFast bool          `koanf:"fail_fast" json:"fail_fast"`
	Stages   []StageConfig `koanf:"stages" json:"stages"`
}

// Validate checks the pipeline has a name, keywords and uniquely named stages.
func (p *PipelineConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("PipelineConfig.Name is required")
	}
	if len(p.Keywords) == 0 {
		return fmt.Errorf("pipeline '%s' has no routing keywords", p.Name)
	}
	for _, kw := range p.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("pipeline '%s' has an empty routing keyword", p.Name)
		}
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline '%s' has no stages", p.Name)
	}

	names := make(map[string]bool)
	for i := range p.Stages {
		stage := &p.Stages[i]
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("pipeline '%s' stage %d: %w", p.Name, i, err)
		}
		if names[stage.Name] {
			return fmt.Errorf("pipeline '%s' has duplicate stage name: %s", p.Name, stage.Name)
		}
		names[stage.Name] = true
	}
	return nil
}

// GetStageOrder returns the stage names in execution order.
func (p *PipelineConfig) GetStageOrder() []string {
	order := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		order[i] = s.Name
		if order[i] == "" {
			order[i] = s.Kind
		}
	}
	return order
}

func stagesOf(kinds ...string) []StageConfig {
	stages := make([]StageConfig, len(kinds))
	for i, k := range kinds {
		stages[i] = StageConfig{Name: k, Kind: k}
	}
	return stages
}

// DefaultPipelines returns the news, filing and trade pipelines in routing order.
func DefaultPipelines() []PipelineConfig {
	return []PipelineConfig{
		{
			Name:     "news_pipeline",
			Keywords: []string{"news", "articles", "sentiment"},
			Stages:   stagesOf(agents.KindHarvester, agents.KindInsightMiner),
		},
		{
			Name:     "filing_pipeline",
			Keywords: []string{"filing", "10-k", "10-q", "risk factors"},
			Stages:   stagesOf(agents.KindFundamentalAnalyst),
		},
		{
			Name:     "trade_pipeline",
			Keywords: []string{"trade", "proposal", "strategy"},
			Stages: stagesOf(
				agents.KindHarvester,
				agents.KindInsightMiner,
				agents.KindCausalAnalyst,
				agents.KindAlphaStrategist,
				agents.KindDevilsAdvocate,
				agents.KindAuditor,
				agents.KindRiskGuardian,
				agents.KindExecution,
			),
		},
	}
}
