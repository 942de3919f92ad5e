package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// AlphaStrategist turns insights and the causal graph into a trade proposal.
type AlphaStrategist struct {
	base
}

// NewAlphaStrategist creates an AlphaStrategist. An empty tool selects formulate_trade_proposal.
func NewAlphaStrategist(name, tool string, deps Deps) *AlphaStrategist {
	if tool == "" {
		tool = tools.ToolFormulateTradeProposal
	}
	return &AlphaStrategist{base: newBase(name, "Alpha-Strategist", tool, deps)}
}

func (s *AlphaStrategist) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return s.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var report InsightReport
		insightsName, err := s.loadJSON(ctx, sc, session.KeyLastInsightFile, &report)
		if err != nil {
			return events.Event{}, err
		}
		var graph CausalGraph
		graphName, err := s.loadJSON(ctx, sc, session.KeyLastCausalGraphFile, &graph)
		if err != nil {
			return events.Event{}, err
		}

		insights, err := toJSONValue(report.Insights)
		if err != nil {
			return events.Event{}, err
		}
		graphValue, err := toJSONValue(graph)
		if err != nil {
			return events.Event{}, err
		}
		subject := artifact.Subject(insightsName)
		result, err := s.call(ctx, map[string]any{
			"ticker":       subject,
			"insights":     insights,
			"causal_graph": graphValue,
		})
		if err != nil {
			return events.Event{}, err
		}
		var proposal TradeProposal
		if err := s.decodeField(result, "proposal", &proposal); err != nil {
			return events.Event{}, err
		}
		proposal.EvidenceArtifacts = []string{insightsName, graphName}

		name := artifact.FileName(subject, "trade_proposal", "json")
		version, err := s.saveJSON(ctx, sc, name, proposal)
		if err != nil {
			return events.Event{}, err
		}
		s.logger.Info("proposal_formulated", "ticker", proposal.Ticker, "action", proposal.Action, "confidence", proposal.ConfidenceScore)

		return s.event(
			fmt.Sprintf("Alpha-Strategist created '%s' (v%d).", name, version),
			map[string]any{session.KeyLastProposalFile: name},
		), nil
	})
}
