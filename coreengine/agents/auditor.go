package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/tools"
)

// Auditor rules on the proposal and its critique, producing the verdict the
// risk gate reads.
type Auditor struct {
	base
}

// NewAuditor creates an Auditor. An empty tool selects audit_trade_debate.
func NewAuditor(name, tool string, deps Deps) *Auditor {
	if tool == "" {
		tool = tools.ToolAuditTradeDebate
	}
	return &Auditor{base: newBase(name, "AuditorAgent", tool, deps)}
}

func (a *Auditor) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return a.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var proposal TradeProposal
		proposalName, err := a.loadJSON(ctx, sc, session.KeyLastProposalFile, &proposal)
		if err != nil {
			return events.Event{}, err
		}
		var critique TradeCritique
		if _, err := a.loadJSON(ctx, sc, session.KeyLastCritiqueFile, &critique); err != nil {
			return events.Event{}, err
		}

		proposalValue, err := toJSONValue(proposal)
		if err != nil {
			return events.Event{}, err
		}
		critiqueValue, err := toJSONValue(critique)
		if err != nil {
			return events.Event{}, err
		}
		result, err := a.call(ctx, map[string]any{"proposal": proposalValue, "critique": critiqueValue})
		if err != nil {
			return events.Event{}, err
		}
		var audit TradeAudit
		if err := a.decodeField(result, "audit", &audit); err != nil {
			return events.Event{}, err
		}
		if audit.Decision != DecisionApprove && audit.Decision != DecisionVeto {
			return events.Event{}, NewDomainFailureError(a.tool, fmt.Sprintf("unknown decision '%s'", audit.Decision), nil)
		}
		if audit.UnresolvedFlaws == nil {
			audit.UnresolvedFlaws = []string{}
		}

		name := artifact.FileName(artifact.Subject(proposalName), "trade_audit", "json")
		version, err := a.saveJSON(ctx, sc, name, audit)
		if err != nil {
			return events.Event{}, err
		}
		a.logger.Info("audit_decided", "decision", audit.Decision, "proposal_id", audit.ProposalID)

		return a.event(
			fmt.Sprintf("AuditorAgent created '%s' (v%d).", name, version),
			map[string]any{session.KeyLastAuditFile: name},
		), nil
	})
}
