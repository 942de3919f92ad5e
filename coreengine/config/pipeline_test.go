package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// StageConfig Tests
// =============================================================================

func TestStageConfigValidate(t *testing.T) {
	t.Run("name defaults to kind", func(t *testing.T) {
		stage := &StageConfig{Kind: "auditor"}
		require.NoError(t, stage.Validate())
		assert.Equal(t, "auditor", stage.Name)
	})

	t.Run("preserves explicit name", func(t *testing.T) {
		stage := &StageConfig{Name: "second_opinion", Kind: "auditor"}
		require.NoError(t, stage.Validate())
		assert.Equal(t, "second_opinion", stage.Name)
	})

	t.Run("missing kind", func(t *testing.T) {
		err := (&StageConfig{Name: "x"}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Kind is required")
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := (&StageConfig{Kind: "oracle"}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stage kind 'oracle'")
		assert.Contains(t, err.Error(), "harvester")
	})
}

// =============================================================================
// PipelineConfig Tests
// =============================================================================

func TestPipelineConfigValidate(t *testing.T) {
	valid := func() *PipelineConfig {
		return &PipelineConfig{
			Name:     "news_pipeline",
			Keywords: []string{"news"},
			Stages:   []StageConfig{{Kind: "harvester"}, {Kind: "insight_miner"}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		p := valid()
		require.NoError(t, p.Validate())
		assert.Equal(t, []string{"harvester", "insight_miner"}, p.GetStageOrder())
	})

	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr string
	}{
		{"missing name", func(p *PipelineConfig) { p.Name = "" }, "Name is required"},
		{"no keywords", func(p *PipelineConfig) { p.Keywords = nil }, "has no routing keywords"},
		{"blank keyword", func(p *PipelineConfig) { p.Keywords = []string{" "} }, "empty routing keyword"},
		{"no stages", func(p *PipelineConfig) { p.Stages = nil }, "has no stages"},
		{"duplicate stage", func(p *PipelineConfig) { p.Stages = append(p.Stages, StageConfig{Kind: "harvester"}) }, "duplicate stage name: harvester"},
		{"bad kind", func(p *PipelineConfig) { p.Stages[1].Kind = "oracle" }, "stage 1: unknown stage kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)

			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPipelines(t *testing.T) {
	pipelines := DefaultPipelines()

	require.Len(t, pipelines, 3)
	for _, p := range pipelines {
		assert.NoError(t, p.Validate(), p.Name)
	}
	assert.Equal(t, []string{"fundamental_analyst"}, pipelines[1].GetStageOrder())
	assert.Equal(t, "risk_guardian", pipelines[2].Stages[6].Name)
	assert.False(t, pipelines[2].FailFast)
}
