package broker

import (
	"context"
	"fmt"

	"github.com/msyber/agora/commbus"
)

// Register installs b as the commbus handler for SubmitOrder queries.
func Register(bus commbus.CommBus, b Broker) error {
	return bus.RegisterHandler(commbus.TypeSubmitOrder, func(ctx context.Context, msg commbus.Message) (any, error) {
		q, ok := msg.(*commbus.SubmitOrder)
		if !ok {
			return nil, fmt.Errorf("unexpected message %T for %s", msg, commbus.TypeSubmitOrder)
		}
		return b.Submit(ctx, Order{
			Ticker:           q.Ticker,
			Action:           q.Action,
			Quantity:         q.Quantity,
			OrderType:        q.OrderType,
			NotionalValueUSD: q.NotionalUSD,
		})
	})
}

// BusClient submits orders as commbus queries, so the bus timeout and any
// circuit breaker middleware apply to every submission.
type BusClient struct {
	bus commbus.CommBus
}

// NewBusClient creates a BusClient.
func NewBusClient(bus commbus.CommBus) *BusClient {
	return &BusClient{bus: bus}
}

// Submit sends the order through the bus and waits for the confirmation.
func (c *BusClient) Submit(ctx context.Context, order Order) (Confirmation, error) {
	result, err := c.bus.QuerySync(ctx, &commbus.SubmitOrder{
		Ticker:      order.Ticker,
		Action:      order.Action,
		Quantity:    order.Quantity,
		OrderType:   order.OrderType,
		NotionalUSD: order.NotionalValueUSD,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("submit order: %w", err)
	}
	conf, ok := result.(Confirmation)
	if !ok {
		return Confirmation{}, fmt.Errorf("submit order: unexpected response %T", result)
	}
	return conf, nil
}

var _ Broker = (*BusClient)(nil)
