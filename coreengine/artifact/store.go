// Package artifact provides the versioned artifact store shared by pipeline stages.
//
// Artifacts are immutable byte payloads identified by (scope, name). Every save
// appends a new version; versions start at 1 and are gapless per name.
package artifact

import (
	"context"
	"time"
)

// Latest selects the most recent version in Load.
const Latest = 0

// Common MIME types used by the stages.
const (
	MIMEJSON = "application/json"
	MIMEText = "text/plain"
)

// Scope identifies the (application, user, session) triple artifacts belong to.
type Scope struct {
	AppID     string `json:"app_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Artifact is one stored version of a named payload.
type Artifact struct {
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	Data      []byte    `json:"data"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the artifact persistence contract.
type Store interface {
	// Save appends a new version under name and returns its version number.
	Save(ctx context.Context, scope Scope, name, mimeType string, data []byte) (int, error)

	// Load returns the requested version, or the latest when version is Latest.
	Load(ctx context.Context, scope Scope, name string, version int) (*Artifact, error)

	// Versions lists every stored version of name in ascending order.
	Versions(ctx context.Context, scope Scope, name string) ([]int, error)

	// Names lists every artifact name saved in scope, sorted.
	Names(ctx context.Context, scope Scope) ([]string, error)
}

// StoreOption customizes a store during construction.
type StoreOption func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for CreatedAt timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(o *options) {
		o.now = clock
	}
}

func buildOptions(opts []StoreOption) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
