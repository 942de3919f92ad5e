package agents

import (
	"fmt"
	"slices"
)

// Stage kinds accepted by New.
const (
	KindHarvester          = "harvester"
	KindInsightMiner       = "insight_miner"
	KindFundamentalAnalyst = "fundamental_analyst"
	KindCausalAnalyst      = "causal_analyst"
	KindAlphaStrategist    = "alpha_strategist"
	KindDevilsAdvocate     = "devils_advocate"
	KindAuditor            = "auditor"
	KindRiskGuardian       = "risk_guardian"
	KindExecution          = "execution"
)

type constructor func(name, tool string, deps Deps) Stage

var constructors = map[string]constructor{
	KindHarvester:          func(n, t string, d Deps) Stage { return NewDataHarvester(n, t, d) },
	KindInsightMiner:       func(n, t string, d Deps) Stage { return NewInsightMiner(n, t, d) },
	KindFundamentalAnalyst: func(n, t string, d Deps) Stage { return NewFundamentalAnalyst(n, t, d) },
	KindCausalAnalyst:      func(n, t string, d Deps) Stage { return NewCausalAnalyst(n, t, d) },
	KindAlphaStrategist:    func(n, t string, d Deps) Stage { return NewAlphaStrategist(n, t, d) },
	KindDevilsAdvocate:     func(n, t string, d Deps) Stage { return NewDevilsAdvocate(n, t, d) },
	KindAuditor:            func(n, t string, d Deps) Stage { return NewAuditor(n, t, d) },
	KindRiskGuardian:       func(n, _ string, d Deps) Stage { return NewRiskGuardian(n, d) },
	KindExecution:          func(n, _ string, d Deps) Stage { return NewExecutionAgent(n, d) },
}

// Kinds returns the known stage kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// IsKnownKind reports whether New accepts kind.
func IsKnownKind(kind string) bool {
	_, ok := constructors[kind]
	return ok
}

// New builds a stage of the given kind. An empty name defaults to the kind,
// and an empty tool selects the kind's default domain function.
func New(kind, name, tool string, deps Deps) (Stage, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown stage kind '%s'", kind)
	}
	if name == "" {
		name = kind
	}
	return ctor(name, tool, deps), nil
}
