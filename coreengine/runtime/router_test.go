package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/agents"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/testutil"
)

const helpText = "Could not determine the required task. Please specify 'news' or 'filing'."

func scriptedPipeline(name string, texts ...string) *SequentialPipeline {
	return NewSequentialPipeline(name, []agents.Stage{testutil.NewScriptedStage(name+"_stage", texts...)})
}

func newTestRouter(t *testing.T, opts ...RouterOption) *Router {
	t.Helper()
	r := NewRouter("root_agent", helpText, opts...)
	require.NoError(t, r.Register([]string{"news", "articles", "sentiment"}, scriptedPipeline("news_pipeline", "news ran")))
	require.NoError(t, r.Register([]string{"filing", "10-K", "10-q", "risk factors"}, scriptedPipeline("filing_pipeline", "filing ran")))
	require.NoError(t, r.Register([]string{"trade", "proposal"}, scriptedPipeline("trade_pipeline", "trade ran")))
	return r
}

// =============================================================================
// ROUTING
// =============================================================================

func TestRouter_Route(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		request string
		want    string
	}{
		{"Get the latest news for MSFT", "news_pipeline"},
		{"What is the SENTIMENT on AAPL?", "news_pipeline"},
		{"Analyze Item 1A. Risk Factors from the 10-K for NVDA", "filing_pipeline"},
		{"Propose a trade strategy for MSFT", "trade_pipeline"},
		{"Trade proposal from recent news on MSFT", "news_pipeline"},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				p, err := r.Route(tt.request)
				require.NoError(t, err)
				assert.Equal(t, tt.want, p.Name())
			}
		})
	}
}

func TestRouter_NoRoute(t *testing.T) {
	r := newTestRouter(t)

	p, err := r.Route("What's the weather like?")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestRouter_KeywordsNormalized(t *testing.T) {
	r := newTestRouter(t)

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, []string{"filing", "10-k", "10-q", "risk factors"}, routes[1].Keywords)
	assert.NotNil(t, r.Pipeline("trade_pipeline"))
	assert.Nil(t, r.Pipeline("missing"))
}

func TestRouter_RegisterErrors(t *testing.T) {
	r := newTestRouter(t)

	err := r.Register([]string{"x"}, nil)
	assert.ErrorContains(t, err, "route pipeline is required")

	err = r.Register(nil, scriptedPipeline("other"))
	assert.ErrorContains(t, err, "route 'other' needs at least one keyword")

	err = r.Register([]string{"again"}, scriptedPipeline("news_pipeline"))
	assert.ErrorContains(t, err, "pipeline 'news_pipeline' is already routed")
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestRouter_DispatchRunsPipeline(t *testing.T) {
	bus := newBus()
	var selected []*commbus.RouteSelected
	bus.Subscribe(commbus.TypeRouteSelected, func(_ context.Context, msg commbus.Message) (any, error) {
		selected = append(selected, msg.(*commbus.RouteSelected))
		return nil, nil
	})
	r := newTestRouter(t, WithRouterBus(bus))
	sc := testutil.NewTestSession("Get the latest news for MSFT")

	name, seq := r.Dispatch(context.Background(), sc)
	evs := events.Collect(seq)

	assert.Equal(t, "news_pipeline", name)
	assert.Equal(t, []string{"news ran"}, testutil.Texts(evs))
	require.Len(t, selected, 1)
	assert.Equal(t, "news_pipeline", selected[0].Pipeline)
	assert.Equal(t, sc.SessionID, selected[0].SessionID)
}

func TestRouter_DispatchHelp(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := newTestRouter(t, WithRouterLogger(logger))

	name, seq := r.Dispatch(context.Background(), testutil.NewTestSession("hello there"))
	evs := events.Collect(seq)

	assert.Empty(t, name)
	require.Len(t, evs, 1)
	assert.Equal(t, "root_agent", evs[0].Author)
	assert.Equal(t, helpText, evs[0].Text)
	assert.False(t, evs[0].Failure)
	assert.True(t, logger.HasLog("info", "route_not_found"))

	for _, route := range r.Routes() {
		stage := route.Pipeline.stages[0].(*testutil.ScriptedStage)
		assert.Equal(t, 0, stage.Calls(), route.Pipeline.Name())
	}
}
