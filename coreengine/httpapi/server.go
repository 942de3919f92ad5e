// Package httpapi serves the orchestrator over HTTP with chi.
package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/runtime"
	"github.com/msyber/agora/coreengine/session"
)

// maxRequestBytes caps the size of a run request body.
const maxRequestBytes = 1 << 20

// Server exposes routed runs, artifacts, health and metrics.
type Server struct {
	router      *runtime.Router
	store       artifact.Store
	appID       string
	defaultUser string
	gatherer    prometheus.Gatherer
	limiter     *kernel.RateLimiter
	logger      observability.Logger
	mux         *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithAppID sets the application id sessions are scoped to.
func WithAppID(appID string) Option {
	return func(s *Server) { s.appID = appID }
}

// WithDefaultUser sets the user id used when a request names none.
func WithDefaultUser(userID string) Option {
	return func(s *Server) { s.defaultUser = userID }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRateLimiter admits runs per user through l.
func WithRateLimiter(l *kernel.RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates the HTTP API.
func New(router *runtime.Router, store artifact.Store, logger observability.Logger, opts ...Option) *Server {
	s := &Server{
		router:      router,
		store:       store,
		appID:       "agora",
		defaultUser: "default_user",
		gatherer:    prometheus.DefaultGatherer,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "agora-http")
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
		r.Get("/sessions/{session}/artifacts/{name}", s.handleArtifact)
	})

	s.mux = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// HTTPServer returns an http.Server serving the API on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunRequest is the body of POST /v1/runs. Unknown fields are rejected;
// every run gets a fresh session id, returned in RunResponse.
type RunRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

// RunResponse is the result of a completed run.
type RunResponse struct {
	SessionID string         `json:"session_id"`
	Pipeline  string         `json:"pipeline"`
	Events    []events.Event `json:"events"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = s.defaultUser
	}
	if s.limiter != nil {
		if res := s.limiter.Allow(userID); !res.Allowed {
			s.logger.Warn("run_rate_limited", "user_id", userID, "limit", res.Limit)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}
	sc := session.New(s.appID, userID, req.Query)

	pipeline, seq := s.router.Dispatch(r.Context(), sc)
	resp := RunResponse{SessionID: sc.SessionID, Pipeline: pipeline, Events: events.Collect(seq)}
	if resp.Events == nil {
		resp.Events = []events.Event{}
	}

	s.logger.Info("http_run_completed",
		"request_id", middleware.GetReqID(r.Context()),
		"session_id", sc.SessionID,
		"pipeline", pipeline,
		"event_count", len(resp.Events),
	)
	writeJSON(w, http.StatusOK, resp)
}

// handleArtifact writes the artifact bytes with the stored MIME type.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.defaultUser
	}
	version := artifact.Latest
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "version must be a non-negative integer")
			return
		}
		version = v
	}

	scope := artifact.Scope{AppID: s.appID, UserID: userID, SessionID: chi.URLParam(r, "session")}
	name := chi.URLParam(r, "name")
	a, err := s.store.Load(r.Context(), scope, name, version)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("artifact_load_failed", "artifact", name, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load artifact")
		return
	}

	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("X-Artifact-Version", strconv.Itoa(a.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
