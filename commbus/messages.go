package commbus

import "github.com/msyber/agora/coreengine/events"

// =============================================================================
// MESSAGE CATEGORIES
// =============================================================================

// MessageCategory represents message routing categories.
type MessageCategory string

const (
	// MessageCategoryEvent represents fire-and-forget, fan-out to all subscribers.
	MessageCategoryEvent MessageCategory = "event"
	// MessageCategoryQuery represents request-response, single handler.
	MessageCategoryQuery MessageCategory = "query"
	// MessageCategoryCommand represents fire-and-forget, single handler.
	MessageCategoryCommand MessageCategory = "command"
)

// Message type names used for routing.
const (
	TypePipelineStarted   = "PipelineStarted"
	TypePipelineCompleted = "PipelineCompleted"
	TypeStageStarted      = "StageStarted"
	TypeStageCompleted    = "StageCompleted"
	TypeRouteSelected     = "RouteSelected"
	TypeSpreadAlertRaised = "SpreadAlertRaised"
	TypeSubmitOrder       = "SubmitOrder"
)

// =============================================================================
// PIPELINE LIFECYCLE EVENTS
// =============================================================================

// PipelineStarted is emitted when a pipeline begins its first stage.
type PipelineStarted struct {
	Pipeline  string   `json:"pipeline"`
	SessionID string   `json:"session_id"`
	Stages    []string `json:"stages"`
}

// Category implements the Message interface.
func (m *PipelineStarted) Category() string { return string(MessageCategoryEvent) }

// PipelineCompleted is emitted when a pipeline stops running stages.
type PipelineCompleted struct {
	Pipeline   string `json:"pipeline"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"` // "completed", "halted", "failed_fast", "cancelled"
	DurationMS int    `json:"duration_ms"`
	EventCount int    `json:"event_count"`
}

// Category implements the Message interface.
func (m *PipelineCompleted) Category() string { return string(MessageCategoryEvent) }

// StageStarted is emitted before a stage's event sequence is driven.
type StageStarted struct {
	Stage     string `json:"stage"`
	Pipeline  string `json:"pipeline"`
	SessionID string `json:"session_id"`
}

// Category implements the Message interface.
func (m *StageStarted) Category() string { return string(MessageCategoryEvent) }

// StageCompleted is emitted after a stage's event sequence is exhausted.
type StageCompleted struct {
	Stage      string `json:"stage"`
	Pipeline   string `json:"pipeline"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"` // "success", "failed", "halted", "panic"
	DurationMS int    `json:"duration_ms"`
}

// Category implements the Message interface.
func (m *StageCompleted) Category() string { return string(MessageCategoryEvent) }

// RouteSelected is emitted when a router picks (or fails to pick) a pipeline.
type RouteSelected struct {
	Router    string `json:"router"`
	SessionID string `json:"session_id"`
	Pipeline  string `json:"pipeline,omitempty"` // empty when nothing matched
}

// Category implements the Message interface.
func (m *RouteSelected) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// STREAM EVENTS
// =============================================================================

// SpreadAlertRaised is emitted by the stream monitor for every alert.
type SpreadAlertRaised struct {
	Monitor string       `json:"monitor"`
	Alert   events.Alert `json:"alert"`
}

// Category implements the Message interface.
func (m *SpreadAlertRaised) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// BROKER QUERIES
// =============================================================================

// SubmitOrder asks the registered broker handler to execute an order.
// The handler responds with the broker's confirmation value.
type SubmitOrder struct {
	Ticker      string  `json:"ticker"`
	Action      string  `json:"action"`
	Quantity    int     `json:"quantity"`
	OrderType   string  `json:"order_type"`
	NotionalUSD float64 `json:"notional_value_usd"`
}

// Category implements the Message interface.
func (m *SubmitOrder) Category() string { return string(MessageCategoryQuery) }

// IsQuery implements the Query interface.
func (m *SubmitOrder) IsQuery() {}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// TypedMessage is an optional interface for messages that name their own type.
type TypedMessage interface {
	Message
	MessageType() string
}

// GetMessageType returns the type name of a message for routing.
func GetMessageType(msg Message) string {
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	switch msg.(type) {
	case *PipelineStarted:
		return TypePipelineStarted
	case *PipelineCompleted:
		return TypePipelineCompleted
	case *StageStarted:
		return TypeStageStarted
	case *StageCompleted:
		return TypeStageCompleted
	case *RouteSelected:
		return TypeRouteSelected
	case *SpreadAlertRaised:
		return TypeSpreadAlertRaised
	case *SubmitOrder:
		return TypeSubmitOrder
	default:
		return "Unknown"
	}
}
