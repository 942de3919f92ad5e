package grpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/runtime"
	"github.com/msyber/agora/coreengine/session"
)

// alertBuffer bounds how many alerts a slow WatchAlerts client can fall behind.
const alertBuffer = 64

// OrchestratorServer implements agora.v1.Orchestrator.
type OrchestratorServer struct {
	UnimplementedOrchestratorService

	router      *runtime.Router
	store       artifact.Store
	bus         commbus.CommBus
	appID       string
	defaultUser string
	limiter     *kernel.RateLimiter
	logger      Logger
}

// ServerOption configures an OrchestratorServer.
type ServerOption func(*OrchestratorServer)

// WithAppID sets the application id sessions are scoped to.
func WithAppID(appID string) ServerOption {
	return func(s *OrchestratorServer) { s.appID = appID }
}

// WithDefaultUser sets the user id used when a request names none.
func WithDefaultUser(userID string) ServerOption {
	return func(s *OrchestratorServer) { s.defaultUser = userID }
}

// WithAlertBus enables WatchAlerts by subscribing to spread alerts on bus.
func WithAlertBus(bus commbus.CommBus) ServerOption {
	return func(s *OrchestratorServer) { s.bus = bus }
}

// WithRunLimiter admits Run calls per user through l.
func WithRunLimiter(l *kernel.RateLimiter) ServerOption {
	return func(s *OrchestratorServer) { s.limiter = l }
}

// NewOrchestratorServer creates the service over a router and the artifact
// store its stages write to.
func NewOrchestratorServer(router *runtime.Router, store artifact.Store, logger Logger, opts ...ServerOption) *OrchestratorServer {
	s := &OrchestratorServer{
		router:      router,
		store:       store,
		appID:       "agora",
		defaultUser: "default_user",
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Run
// =============================================================================

// Run routes the request's query and streams every event the selected
// pipeline emits. A request that matches no pipeline yields the router's help
// event. A client that disconnects stops the pipeline. Each run owns a fresh
// session; a request carrying session_id is rejected.
func (s *OrchestratorServer) Run(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	query, err := requiredString(req, "query")
	if err != nil {
		return err
	}

	if _, ok := req.GetFields()["session_id"]; ok {
		return status.Error(codes.InvalidArgument, "session_id is assigned by the server")
	}
	sc := s.newSession(req, query)
	if s.limiter != nil {
		if res := s.limiter.Allow(sc.UserID); !res.Allowed {
			s.logger.Warn("run_rate_limited", "user_id", sc.UserID, "limit", res.Limit)
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry in %s", res.RetryAfter.Round(time.Second))
		}
	}
	s.logger.Info("run_started", "session_id", sc.SessionID, "user_id", sc.UserID)

	pipeline, seq := s.router.Dispatch(ctx, sc)
	count := 0
	for ev := range seq {
		msg, err := EventStruct(sc.SessionID, pipeline, ev)
		if err != nil {
			return Internal("encode event", err)
		}
		if err := stream.Send(msg); err != nil {
			s.logger.Warn("run_client_gone", "session_id", sc.SessionID, "error", err.Error())
			return err
		}
		count++
	}

	s.logger.Info("run_completed", "session_id", sc.SessionID, "pipeline", pipeline, "event_count", count)
	return nil
}

func (s *OrchestratorServer) newSession(req *structpb.Struct, query string) *session.Context {
	userID := stringField(req, "user_id")
	if userID == "" {
		userID = s.defaultUser
	}
	return session.New(s.appID, userID, query)
}

// =============================================================================
// GetArtifact
// =============================================================================

// GetArtifact returns one version of an artifact. Version 0 or no version
// selects the latest.
func (s *OrchestratorServer) GetArtifact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requiredString(req, "user_id")
	if err != nil {
		return nil, err
	}
	sessionID, err := requiredString(req, "session_id")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	version, err := optionalVersion(req)
	if err != nil {
		return nil, err
	}

	scope := artifact.Scope{AppID: s.appID, UserID: userID, SessionID: sessionID}
	a, err := s.store.Load(ctx, scope, name, version)
	if err != nil {
		return nil, artifactError(name, err)
	}

	s.logger.Debug("artifact_served", "session_id", sessionID, "artifact", name, "version", a.Version)
	return structpb.NewStruct(map[string]any{
		"name":       a.Name,
		"mime_type":  a.MIMEType,
		"version":    a.Version,
		"data":       string(a.Data),
		"created_at": a.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// =============================================================================
// WatchAlerts
// =============================================================================

// WatchAlerts streams spread alerts until the client cancels. An optional
// "ticker" field filters alerts by ticker.
func (s *OrchestratorServer) WatchAlerts(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.bus == nil {
		return status.Error(codes.FailedPrecondition, "alert stream is not configured")
	}
	ctx := stream.Context()
	ticker := strings.ToUpper(stringField(req, "ticker"))

	alerts := make(chan *commbus.SpreadAlertRaised, alertBuffer)
	unsubscribe := s.bus.Subscribe(commbus.TypeSpreadAlertRaised, func(_ context.Context, msg commbus.Message) (any, error) {
		raised, ok := msg.(*commbus.SpreadAlertRaised)
		if !ok || (ticker != "" && raised.Alert.Ticker != ticker) {
			return nil, nil
		}
		select {
		case alerts <- raised:
		default:
			s.logger.Warn("alert_dropped", "monitor", raised.Monitor, "ticker", raised.Alert.Ticker)
		}
		return nil, nil
	})
	defer unsubscribe()

	s.logger.Info("alert_watch_started", "ticker", ticker)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert_watch_stopped", "reason", ctx.Err().Error())
			return nil
		case raised := <-alerts:
			msg, err := toStruct(map[string]any{"monitor": raised.Monitor, "alert": raised.Alert})
			if err != nil {
				return Internal("encode alert", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// =============================================================================
// Conversion Functions
// =============================================================================

// EventStruct encodes ev with the run's session id and pipeline name.
func EventStruct(sessionID, pipeline string, ev events.Event) (*structpb.Struct, error) {
	return toStruct(struct {
		SessionID string `json:"session_id"`
		Pipeline  string `json:"pipeline"`
		events.Event
	}{sessionID, pipeline, ev})
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return out, nil
}
