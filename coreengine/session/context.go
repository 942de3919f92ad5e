// Package session provides the per-run mutable context shared by pipeline stages.
package session

import (
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/typeutil"
)

// Handoff keys stages use to pass artifact names downstream.
const (
	KeyStatus              = "status"
	KeyLastHarvestedFile   = "last_harvested_file"
	KeyLastInsightFile     = "last_insight_file"
	KeyLastCausalGraphFile = "last_causal_graph_file"
	KeyLastProposalFile    = "last_proposal_file"
	KeyLastCritiqueFile    = "last_critique_file"
	KeyLastAuditFile       = "last_audit_file"
	KeyLastOrderFile       = "last_order_file"
	KeyLastFilingFile      = "last_filing_file"
	KeyLastConfirmation    = "last_confirmation_file"
)

// Context is the mutable key/value state of one run.
//
// One Context belongs to exactly one run; stages mutate it only through the
// deltas carried on their events, which the runner merges in order.
type Context struct {
	SessionID string
	AppID     string
	UserID    string

	// Input is the free-text request that started the run.
	Input string

	mu    sync.RWMutex
	state map[string]any
}

// Option configures a Context.
type Option func(*Context)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(c *Context) {
		if id != "" {
			c.SessionID = id
		}
	}
}

// WithState seeds the initial state.
func WithState(state map[string]any) Option {
	return func(c *Context) {
		maps.Copy(c.state, state)
	}
}

// New creates a Context for one run.
func New(appID, userID, input string, opts ...Option) *Context {
	c := &Context{
		SessionID: "sess_" + uuid.New().String(),
		AppID:     appID,
		UserID:    userID,
		Input:     input,
		state:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scope returns the artifact scope of this session.
func (c *Context) Scope() artifact.Scope {
	return artifact.Scope{AppID: c.AppID, UserID: c.UserID, SessionID: c.SessionID}
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// GetString returns the string stored under key. Empty strings count as absent.
func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := typeutil.String(v)
	return s, ok && s != ""
}

// Set stores value under key, replacing any previous value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// Merge applies delta; later writers win.
func (c *Context) Merge(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.state, delta)
}

// Snapshot returns a shallow copy of the state.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.state)
}
