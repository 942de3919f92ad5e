package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/session"
)

// ErrNoRoute is returned by Route when no keyword set matches the request.
var ErrNoRoute = errors.New("no route matched the request")

// RouteNone is the route label recorded when nothing matched.
const RouteNone = "none"

// Route binds a keyword set to a pipeline.
type Route struct {
	Keywords []string
	Pipeline *SequentialPipeline
}

// Router picks a pipeline for a free-text request by case-insensitive
// keyword match. Routes are tried in registration order and the first route
// with any matching keyword wins.
type Router struct {
	name     string
	helpText string
	routes   []Route
	bus      commbus.CommBus
	logger   observability.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterBus publishes RouteSelected messages on bus.
func WithRouterBus(bus commbus.CommBus) RouterOption {
	return func(r *Router) { r.bus = bus }
}

// WithRouterLogger sets the router logger.
func WithRouterLogger(logger observability.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter creates an empty router. helpText is the reply to unmatched requests.
func NewRouter(name, helpText string, opts ...RouterOption) *Router {
	r := &Router{name: name, helpText: helpText, logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Bind("router", name)
	return r
}

// Name returns the router name, the author of its help events.
func (r *Router) Name() string { return r.name }

// HelpText returns the reply to unmatched requests.
func (r *Router) HelpText() string { return r.helpText }

// Register appends a route. Pipeline names must be unique.
func (r *Router) Register(keywords []string, pipeline *SequentialPipeline) error {
	if pipeline == nil {
		return fmt.Errorf("route pipeline is required")
	}
	if len(keywords) == 0 {
		return fmt.Errorf("route '%s' needs at least one keyword", pipeline.Name())
	}
	if r.Pipeline(pipeline.Name()) != nil {
		return fmt.Errorf("pipeline '%s' is already routed", pipeline.Name())
	}
	normalized := make([]string, len(keywords))
	for i, kw := range keywords {
		normalized[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	r.routes = append(r.routes, Route{Keywords: normalized, Pipeline: pipeline})
	return nil
}

// Routes returns the registered routes in order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Pipeline returns the routed pipeline with the given name, or nil.
func (r *Router) Pipeline(name string) *SequentialPipeline {
	for _, route := range r.routes {
		if route.Pipeline.Name() == name {
			return route.Pipeline
		}
	}
	return nil
}

// Route returns the pipeline for request, or ErrNoRoute.
func (r *Router) Route(request string) (*SequentialPipeline, error) {
	lower := strings.ToLower(request)
	for _, route := range r.routes {
		for _, kw := range route.Keywords {
			if strings.Contains(lower, kw) {
				return route.Pipeline, nil
			}
		}
	}
	return nil, ErrNoRoute
}

// Dispatch routes the session's input and returns the selected pipeline's
// name and event sequence. When nothing matches, the name is empty and the
// sequence holds a single help event; no pipeline runs.
func (r *Router) Dispatch(ctx context.Context, sc *session.Context) (string, events.Sequence) {
	pipeline, err := r.Route(sc.Input)
	if err != nil {
		observability.RecordRouteDecision(r.name, RouteNone)
		r.logger.Info("route_not_found", "session_id", sc.SessionID)
		r.publish(ctx, &commbus.RouteSelected{Router: r.name, SessionID: sc.SessionID})
		return "", events.Of(events.New(r.name, r.helpText, nil))
	}

	observability.RecordRouteDecision(r.name, pipeline.Name())
	r.logger.Info("route_selected", "session_id", sc.SessionID, "pipeline", pipeline.Name())
	r.publish(ctx, &commbus.RouteSelected{Router: r.name, SessionID: sc.SessionID, Pipeline: pipeline.Name()})
	return pipeline.Name(), pipeline.Run(ctx, sc)
}

func (r *Router) publish(ctx context.Context, msg commbus.Message) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, msg); err != nil {
		r.logger.Warn("lifecycle_publish_failed", "type", commbus.GetMessageType(msg), "error", err.Error())
	}
}
