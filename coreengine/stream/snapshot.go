package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedSnapshot matches every *MalformedSnapshotError.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// MalformedSnapshotError reports a payload that is not a usable order book snapshot.
type MalformedSnapshotError struct {
	Reason string
	Cause  error
}

// NewMalformedSnapshotError creates a MalformedSnapshotError.
func NewMalformedSnapshotError(reason string, cause error) *MalformedSnapshotError {
	return &MalformedSnapshotError{Reason: reason, Cause: cause}
}

func (e *MalformedSnapshotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed snapshot: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed snapshot: %s", e.Reason)
}

func (e *MalformedSnapshotError) Unwrap() error { return e.Cause }

// Is matches ErrMalformedSnapshot.
func (e *MalformedSnapshotError) Is(target error) bool {
	return target == ErrMalformedSnapshot
}

// Level is one price level of the book. Size is a whole number of shares.
type Level struct {
	Price float64 `json:"price"`
	Size  int     `json:"size"`
}

// OrderBookSnapshot is a level 2 view of one ticker. Bids and asks are
// ordered best first.
type OrderBookSnapshot struct {
	Ticker       string  `json:"ticker"`
	TimestampUTC string  `json:"timestamp_utc"`
	Bids         []Level `json:"bids"`
	Asks         []Level `json:"asks"`
}

// ParseSnapshot decodes a JSON snapshot. A snapshot without a best bid and
// a best ask is malformed.
func ParseSnapshot(data []byte) (*OrderBookSnapshot, error) {
	var s OrderBookSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, NewMalformedSnapshotError("invalid JSON", err)
	}
	if len(s.Bids) == 0 {
		return nil, NewMalformedSnapshotError("no best bid", nil)
	}
	if len(s.Asks) == 0 {
		return nil, NewMalformedSnapshotError("no best ask", nil)
	}
	return &s, nil
}

// BestBid returns the highest bid price.
func (s *OrderBookSnapshot) BestBid() float64 { return s.Bids[0].Price }

// BestAsk returns the lowest ask price.
func (s *OrderBookSnapshot) BestAsk() float64 { return s.Asks[0].Price }

// Spread returns best ask minus best bid, rounded to 1e-6 so that decimal
// prices compare exactly against a threshold.
func (s *OrderBookSnapshot) Spread() float64 {
	return math.Round((s.BestAsk()-s.BestBid())*1e6) / 1e6
}
