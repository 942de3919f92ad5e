package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/broker"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/risk"
	"github.com/msyber/agora/coreengine/session"
)

// VetoHaltText is the terminal text of the gate when the auditor vetoed.
const VetoHaltText = "Risk assessment halted. Trade was VETOED by AuditorAgent."

// RiskGuardian is the veto gate. It halts the pipeline on a VETO verdict,
// and otherwise sizes an order and checks it against the risk limits.
type RiskGuardian struct {
	base
}

// NewRiskGuardian creates a RiskGuardian. It calls no domain function; its
// limits and prices come from Deps.Portfolio.
func NewRiskGuardian(name string, deps Deps) *RiskGuardian {
	return &RiskGuardian{base: newBase(name, "Risk-Guardian", "", deps)}
}

func (g *RiskGuardian) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return g.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var audit TradeAudit
		if _, err := g.loadJSON(ctx, sc, session.KeyLastAuditFile, &audit); err != nil {
			return events.Event{}, err
		}
		if audit.Vetoed() {
			g.logger.Warn("trade_vetoed", "proposal_id", audit.ProposalID)
			return events.Halted(g.name, VetoHaltText, nil), nil
		}

		var proposal TradeProposal
		if _, err := g.loadJSON(ctx, sc, session.KeyLastProposalFile, &proposal); err != nil {
			return events.Event{}, err
		}
		if g.deps.Portfolio == nil {
			return events.Event{}, fmt.Errorf("portfolio source is not configured")
		}

		notional := g.deps.notional()
		violations := risk.Violations(risk.Assess(g.deps.Portfolio, proposal.Ticker, notional))
		if len(violations) > 0 {
			text := "Trade REJECTED by Risk-Guardian. Violations: " + risk.JoinViolations(violations)
			g.logger.Warn("trade_rejected", "ticker", proposal.Ticker, "violations", len(violations))
			return g.event(text, nil), nil
		}

		order := broker.Order{
			Ticker:           proposal.Ticker,
			Action:           proposal.Action,
			Quantity:         risk.Quantity(notional, g.deps.Portfolio.CurrentPrice(proposal.Ticker)),
			OrderType:        broker.OrderTypeMarket,
			NotionalValueUSD: notional,
		}
		name := artifact.FileName(proposal.Ticker, "trade_order", "json")
		version, err := g.saveJSON(ctx, sc, name, order)
		if err != nil {
			return events.Event{}, err
		}

		return g.event(
			fmt.Sprintf("Trade PASSED risk assessment. Created '%s' (v%d).", name, version),
			map[string]any{session.KeyLastOrderFile: name},
		), nil
	})
}
