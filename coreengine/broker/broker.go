// Package broker submits risk-checked orders for execution.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order statuses and types.
const (
	StatusFilled    = "FILLED"
	OrderTypeMarket = "MARKET"
)

// Order is a risk-checked order ready for execution.
type Order struct {
	Ticker           string  `json:"ticker"`
	Action           string  `json:"action"`
	Quantity         int     `json:"quantity"`
	OrderType        string  `json:"order_type"`
	NotionalValueUSD float64 `json:"notional_value_usd"`
}

// Validate checks the fields a broker needs.
func (o Order) Validate() error {
	if o.Ticker == "" {
		return fmt.Errorf("order ticker is required")
	}
	if o.Action != "BUY" && o.Action != "SELL" {
		return fmt.Errorf("order action must be BUY or SELL, got '%s'", o.Action)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", o.Quantity)
	}
	return nil
}

// Confirmation is the broker's execution report.
type Confirmation struct {
	Status         string `json:"status"`
	ExecutionID    string `json:"execution_id"`
	TimestampUTC   string `json:"timestamp_utc"`
	FilledQuantity int    `json:"filled_quantity"`
	Notes          string `json:"notes,omitempty"`
}

// Broker submits orders.
type Broker interface {
	Submit(ctx context.Context, order Order) (Confirmation, error)
}

// Logger is the logging subset the simulated broker uses.
type Logger interface {
	Info(msg string, keysAndValues ...any)
}

// Simulated fills every valid order after a fixed latency.
type Simulated struct {
	latency time.Duration
	now     func() time.Time
	newID   func() string
	logger  Logger
}

// Option configures a Simulated broker.
type Option func(*Simulated)

// WithClock sets the clock used for confirmation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulated) { s.now = now }
}

// WithExecutionIDs sets the execution id generator.
func WithExecutionIDs(newID func() string) Option {
	return func(s *Simulated) { s.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Simulated) { s.logger = logger }
}

// NewSimulated creates a simulated broker with the given latency.
func NewSimulated(latency time.Duration, opts ...Option) *Simulated {
	s := &Simulated{latency: latency, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit waits for the simulated latency and fills the order in full.
func (s *Simulated) Submit(ctx context.Context, order Order) (Confirmation, error) {
	if err := order.Validate(); err != nil {
		return Confirmation{}, err
	}
	if s.logger != nil {
		s.logger.Info("order_submitted", "ticker", order.Ticker, "action", order.Action, "quantity", order.Quantity)
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		case <-timer.C:
		}
	}

	conf := Confirmation{
		Status:         StatusFilled,
		ExecutionID:    s.newID(),
		TimestampUTC:   s.now().UTC().Format(time.RFC3339Nano),
		FilledQuantity: order.Quantity,
		Notes:          "Order successfully executed via mock broker API.",
	}
	if s.logger != nil {
		s.logger.Info("order_filled", "ticker", order.Ticker, "execution_id", conf.ExecutionID)
	}
	return conf, nil
}

var _ Broker = (*Simulated)(nil)
