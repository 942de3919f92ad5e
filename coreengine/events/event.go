// Package events defines the Event values stages and the stream monitor emit.
package events

import (
	"iter"
	"maps"
	"sync/atomic"
	"time"
)

// Event is one immutable unit of output from a stage or monitor.
type Event struct {
	// Author is the name of the stage or monitor that produced the event.
	Author string `json:"author"`
	// Text is the human-readable summary.
	Text string `json:"text"`
	// StateDelta is merged into the session context by the runner.
	StateDelta map[string]any `json:"state_delta,omitempty"`
	// Halt asks the enclosing pipeline to skip its remaining stages.
	Halt bool `json:"halt,omitempty"`
	// Failure marks the terminal event of a stage that caught a fault.
	Failure bool `json:"failure,omitempty"`
	// Alert is set on events raised by the stream monitor.
	Alert *Alert `json:"alert,omitempty"`
	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Alert describes a threshold breach on the order book stream.
type Alert struct {
	Ticker       string  `json:"ticker"`
	Spread       float64 `json:"spread"`
	TimestampUTC string  `json:"timestamp_utc"`
	Message      string  `json:"message"`
}

// New creates an event with a copy of delta.
func New(author, text string, delta map[string]any) Event {
	return Event{
		Author:     author,
		Text:       text,
		StateDelta: maps.Clone(delta),
		Timestamp:  time.Now().UTC(),
	}
}

// Failed creates a terminal failure event.
func Failed(author, text string, delta map[string]any) Event {
	ev := New(author, text, delta)
	ev.Failure = true
	return ev
}

// Halted creates a terminal event that stops the enclosing pipeline.
func Halted(author, text string, delta map[string]any) Event {
	ev := New(author, text, delta)
	ev.Halt = true
	return ev
}

// Sequence is a lazy, finite stream of events.
type Sequence = iter.Seq[Event]

// Generate wraps body as a Sequence that can be ranged over once.
// Later iterations yield nothing.
func Generate(body func(yield func(Event) bool)) Sequence {
	var used atomic.Bool
	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		body(yield)
	}
}

// Of returns a Sequence over the given events.
func Of(evs ...Event) Sequence {
	return Generate(func(yield func(Event) bool) {
		for _, ev := range evs {
			if !yield(ev) {
				return
			}
		}
	})
}

// Collect drains seq into a slice.
func Collect(seq Sequence) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}
