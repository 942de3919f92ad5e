package agents

import (
	"context"
	"fmt"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/broker"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/session"
)

// ExecutionAgent submits the approved order to the broker and stores the confirmation.
type ExecutionAgent struct {
	base
}

// NewExecutionAgent creates an ExecutionAgent using Deps.Broker.
func NewExecutionAgent(name string, deps Deps) *ExecutionAgent {
	return &ExecutionAgent{base: newBase(name, "Execution-Agent", "", deps)}
}

func (e *ExecutionAgent) Execute(ctx context.Context, sc *session.Context) events.Sequence {
	return e.run(ctx, sc, func(ctx context.Context, sc *session.Context, _ func(events.Event) bool) (events.Event, error) {
		var order broker.Order
		if _, err := e.loadJSON(ctx, sc, session.KeyLastOrderFile, &order); err != nil {
			return events.Event{}, err
		}
		if e.deps.Broker == nil {
			return events.Event{}, fmt.Errorf("broker is not configured")
		}

		conf, err := e.deps.Broker.Submit(ctx, order)
		if err != nil {
			return events.Event{}, err
		}

		name := artifact.FileName(order.Ticker, "trade_confirmation", "json")
		version, err := e.saveJSON(ctx, sc, name, conf)
		if err != nil {
			return events.Event{}, err
		}
		e.logger.Info("order_executed", "ticker", order.Ticker, "execution_id", conf.ExecutionID)

		return e.event(
			fmt.Sprintf("Execution successful. Confirmation artifact '%s' (v%d) created.", name, version),
			map[string]any{session.KeyLastConfirmation: name},
		), nil
	})
}
