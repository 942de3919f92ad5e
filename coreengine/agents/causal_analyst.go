package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// CausalAnalyst derives a causal graph from the mined insights.
type CausalAnalyst struct {
	base
}

// NewCausalAnalyst creates a CausalAnalyst. An empty tool selects run_causal_discovery.
func NewCausalAnalyst(name, tool string, deps Deps) *CausalAnalyst {
	if tool == "" {
		tool = tools.ToolRunCausalDiscovery
	}
	return &CausalAnalyst{base: newBase(name, "Causal-Analyst", tool, deps)}
}

func (c *CausalAnalyst) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return c.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var report InsightReport
		source, err := c.loadJSON(ctx, sc, session.KeyLastInsightFile, &report)
		if err != nil {
			return events.Event{}, err
		}

		insights, err := toJSONValue(report.Insights)
		if err != nil {
			return events.Event{}, err
		}
		result, err := c.call(ctx, map[string]any{"insights": insights})
		if err != nil {
			return events.Event{}, err
		}
		var graph CausalGraph
		if err := c.decodeField(result, "causal_graph", &graph); err != nil {
			return events.Event{}, err
		}
		if graph.Links == nil {
			graph.Links = []CausalLink{}
		}

		name, err := artifact.Derive(source, artifact.SuffixInsights, artifact.SuffixCausalGraph)
		if err != nil {
			return events.Event{}, err
		}
		version, err := c.saveJSON(ctx, sc, name, graph)
		if err != nil {
			return events.Event{}, err
		}

		return c.event(
			fmt.Sprintf("Causal-Analyst successfully generated and stored '%s' (v%d).", name, version),
			map[string]any{session.KeyLastCausalGraphFile: name},
		), nil
	})
}
