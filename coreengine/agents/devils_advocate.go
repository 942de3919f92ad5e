package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// DevilsAdvocate critiques the trade proposal against the causal evidence.
type DevilsAdvocate struct {
	base
}

// NewDevilsAdvocate creates a DevilsAdvocate. An empty tool selects critique_trade_proposal.
func NewDevilsAdvocate(name, tool string, deps Deps) *DevilsAdvocate {
	if tool == "" {
		tool = tools.ToolCritiqueTradeProposal
	}
	return &DevilsAdvocate{base: newBase(name, "Devil's Advocate", tool, deps)}
}

func (d *DevilsAdvocate) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return d.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var proposal TradeProposal
		proposalName, err := d.loadJSON(ctx, sc, session.KeyLastProposalFile, &proposal)
		if err != nil {
			return events.Event{}, err
		}
		var graph CausalGraph
		if _, err := d.loadJSON(ctx, sc, session.KeyLastCausalGraphFile, &graph); err != nil {
			return events.Event{}, err
		}

		proposalValue, err := toJSONValue(proposal)
		if err != nil {
			return events.Event{}, err
		}
		graphValue, err := toJSONValue(graph)
		if err != nil {
			return events.Event{}, err
		}
		result, err := d.call(ctx, map[string]any{"proposal": proposalValue, "causal_graph": graphValue})
		if err != nil {
			return events.Event{}, err
		}
		var critique TradeCritique
		if err := d.decodeField(result, "critique", &critique); err != nil {
			return events.Event{}, err
		}

		name := artifact.FileName(artifact.Subject(proposalName), "trade_critique", "json")
		version, err := d.saveJSON(ctx, sc, name, critique)
		if err != nil {
			return events.Event{}, err
		}

		return d.event(
			fmt.Sprintf("Devil's Advocate created '%s' (v%d).", name, version),
			map[string]any{session.KeyLastCritiqueFile: name},
		), nil
	})
}
