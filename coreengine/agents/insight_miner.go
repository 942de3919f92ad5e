package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// InsightMiner labels harvested articles with sentiment.
type InsightMiner struct {
	base
}

// NewInsightMiner creates an InsightMiner. An empty tool selects extract_insights.
func NewInsightMiner(name, tool string, deps Deps) *InsightMiner {
	if tool == "" {
		tool = tools.ToolExtractInsights
	}
	return &InsightMiner{base: newBase(name, "Insight-Miner", tool, deps)}
}

func (m *InsightMiner) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return m.run(ctx, sc, func(ctx context.Context, sc *session.Context, emit func(events.Event) bool) (events.Event, error) {
		var bundle NewsBundle
		source, err := m.loadJSON(ctx, sc, session.KeyLastHarvestedFile, &bundle)
		if err != nil {
			return events.Event{}, err
		}
		if !emit(m.event(fmt.Sprintf("Insight-Miner analyzing %d articles from '%s'.", len(bundle.Articles), source), nil)) {
			return events.Event{}, nil
		}

		articles, err := toJSONValue(bundle.Articles)
		if err != nil {
			return events.Event{}, err
		}
		result, err := m.call(ctx, map[string]any{"articles": articles})
		if err != nil {
			return events.Event{}, err
		}
		var report InsightReport
		if err := m.decodeField(result, "insights", &report.Insights); err != nil {
			return events.Event{}, err
		}

		name, err := artifact.Derive(source, artifact.SuffixRaw, artifact.SuffixInsights)
		if err != nil {
			return events.Event{}, err
		}
		version, err := m.saveJSON(ctx, sc, name, report)
		if err != nil {
			return events.Event{}, err
		}

		return m.event(
			fmt.Sprintf("Insight-Miner extracted %d insights and stored '%s' (v%d).", len(report.Insights), name, version),
			map[string]any{session.KeyLastInsightFile: name},
		), nil
	})
}
