package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/observability"
)

// DefaultThreshold is the spread above which the monitor raises an alert.
const DefaultThreshold = 0.15

// Tick results recorded per processed snapshot.
const (
	TickOK        = "ok"
	TickAlert     = "alert"
	TickMalformed = "malformed"
)

// Logger is the logging surface the monitor needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Monitor reads snapshots from a queue and emits an alert event for every
// snapshot whose spread exceeds the threshold.
type Monitor struct {
	name      string
	threshold float64
	queue     *Queue
	bus       commbus.CommBus
	logger    Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithThreshold sets the alert threshold.
func WithThreshold(threshold float64) MonitorOption {
	return func(m *Monitor) { m.threshold = threshold }
}

// WithMonitorBus publishes a SpreadAlertRaised message for every alert.
func WithMonitorBus(bus commbus.CommBus) MonitorOption {
	return func(m *Monitor) { m.bus = bus }
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(logger Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// NewMonitor creates a monitor reading from queue.
func NewMonitor(name string, queue *Queue, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		name:      name,
		threshold: DefaultThreshold,
		queue:     queue,
		logger:    observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the monitor name, the author of its alert events.
func (m *Monitor) Name() string { return m.name }

// Threshold returns the alert threshold.
func (m *Monitor) Threshold() float64 { return m.threshold }

// Run returns the monitor's alert sequence.
//
// The sequence ends when the queue is closed and drained, when ctx is
// cancelled, or when the consumer stops ranging. Cancellation is observed
// before every snapshot, so snapshots still queued at that point are left
// unread. It is not reported as an error.
func (m *Monitor) Run(ctx context.Context) events.Sequence {
	return events.Generate(func(yield func(events.Event) bool) {
		m.logger.Info("monitor_started", "monitor", m.name, "threshold", m.threshold)
		for {
			if ctx.Err() != nil {
				m.logger.Info("monitor_stopped", "monitor", m.name, "reason", "cancelled")
				return
			}
			data, err := m.queue.Get(ctx)
			if err != nil {
				reason := "cancelled"
				if errors.Is(err, ErrQueueClosed) {
					reason = "queue_closed"
				}
				m.logger.Info("monitor_stopped", "monitor", m.name, "reason", reason)
				return
			}

			ev, ok := m.process(ctx, data)
			if ok && !yield(ev) {
				m.logger.Info("monitor_stopped", "monitor", m.name, "reason", "consumer_stopped")
				return
			}
		}
	})
}

// Start runs the monitor on its own goroutine, delivering alerts to onAlert
// (which may be nil). The returned channel closes when the monitor exits.
func (m *Monitor) Start(ctx context.Context, onAlert func(events.Event)) <-chan struct{} {
	return kernel.SafeGo(m.logger, "monitor:"+m.name, func() {
		for ev := range m.Run(ctx) {
			if onAlert != nil {
				onAlert(ev)
			}
		}
	}, nil)
}

// process evaluates one payload. It returns an alert event when the spread
// exceeds the threshold.
func (m *Monitor) process(ctx context.Context, data []byte) (events.Event, bool) {
	snapshot, err := ParseSnapshot(data)
	if err != nil {
		observability.RecordStreamTick(m.name, TickMalformed)
		m.logger.Warn("snapshot_malformed", "monitor", m.name, "error", err.Error())
		return events.Event{}, false
	}

	spread := snapshot.Spread()
	observability.RecordSpread(snapshot.Ticker, spread)
	m.logger.Debug("snapshot_received", "monitor", m.name, "ticker", snapshot.Ticker, "spread", spread)

	if spread <= m.threshold {
		observability.RecordStreamTick(m.name, TickOK)
		return events.Event{}, false
	}

	alert := events.Alert{
		Ticker:       snapshot.Ticker,
		Spread:       spread,
		TimestampUTC: snapshot.TimestampUTC,
		Message:      fmt.Sprintf("ALERT: Wide spread detected for %s: %.2f at %s", snapshot.Ticker, spread, snapshot.TimestampUTC),
	}
	ev := events.New(m.name, alert.Message, nil)
	ev.Alert = &alert

	observability.RecordStreamTick(m.name, TickAlert)
	m.logger.Warn("spread_alert", "monitor", m.name, "ticker", alert.Ticker, "spread", spread)
	if m.bus != nil {
		if err := m.bus.Publish(ctx, &commbus.SpreadAlertRaised{Monitor: m.name, Alert: alert}); err != nil {
			m.logger.Warn("alert_publish_failed", "monitor", m.name, "error", err.Error())
		}
	}
	return ev, true
}
