package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msyber/agora/coreengine/agents"
	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/runtime"
	"github.com/msyber/agora/coreengine/testutil"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const helpText = "Could not determine the required task. Please specify 'news' or 'filing'."

type fixture struct {
	store  *artifact.MemoryStore
	logger *testutil.MockLogger
	srv    *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	router := runtime.NewRouter("root_agent", helpText)
	require.NoError(t, router.Register([]string{"news"}, runtime.NewSequentialPipeline("news_pipeline", []agents.Stage{
		testutil.NewScriptedStage("harvester", "harvested"),
		testutil.NewScriptedStage("insight_miner", "mined"),
	})))
	require.NoError(t, router.Register([]string{"boom"}, runtime.NewSequentialPipeline("boom_pipeline", []agents.Stage{
		testutil.NewScriptedStage("boom").WithPanic("kaboom"),
	})))

	f := &fixture{store: testutil.NewTestStore(), logger: testutil.NewMockLogger()}
	opts = append([]Option{WithAppID(testutil.TestAppID), WithDefaultUser(testutil.TestUserID)}, opts...)
	f.srv = New(router, f.store, f.logger, opts...)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// =============================================================================
// HEALTH AND METRICS
// =============================================================================

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
	assert.True(t, f.logger.HasLog("info", "request_completed"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "agora_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	f := newFixture(t, WithGatherer(reg))

	rec := f.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agora_test_total 1")
}

// =============================================================================
// RUNS
// =============================================================================

func TestRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news for MSFT"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	decode(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.SessionID, "sess_"))
	assert.Equal(t, "news_pipeline", resp.Pipeline)
	assert.Equal(t, []string{"harvested", "mined"}, testutil.Texts(resp.Events))
	entry, ok := f.logger.FindLog("http_run_completed")
	require.True(t, ok)
	assert.Equal(t, 2, entry.Fields["event_count"])
}

func TestRun_NoRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/runs", `{"query":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	decode(t, rec, &resp)
	assert.Empty(t, resp.Pipeline)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, helpText, resp.Events[0].Text)
}

func TestRun_StagePanicBecomesFailureEvent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/runs", `{"query":"boom"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Events, 1)
	assert.True(t, resp.Events[0].Failure)
	assert.Contains(t, resp.Events[0].Text, "kaboom")
}

func TestRun_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{`, "invalid request body"},
		{"empty query", `{"query":"  "}`, "query is required"},
		{"client session id", `{"query":"latest news","session_id":"sess-9"}`, "session_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(http.MethodPost, "/v1/runs", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			decode(t, rec, &body)
			assert.Contains(t, body["error"], tt.want)
		})
	}
}

func TestRun_EachRunGetsItsOwnSession(t *testing.T) {
	f := newFixture(t)

	first := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news"}`)
	second := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news"}`)

	var a, b RunResponse
	decode(t, first, &a)
	decode(t, second, &b)
	assert.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestRun_RateLimited(t *testing.T) {
	f := newFixture(t, WithRateLimiter(kernel.NewRateLimiter(1, time.Minute)))

	first := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news"}`)
	second := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news"}`)
	other := f.do(http.MethodPost, "/v1/runs", `{"query":"latest news","user_id":"someone"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.True(t, f.logger.HasLog("warn", "run_rate_limited"))
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRun_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/runs", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// =============================================================================
// ARTIFACTS
// =============================================================================

func TestArtifact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := artifact.Scope{AppID: testutil.TestAppID, UserID: testutil.TestUserID, SessionID: "s1"}
	_, err := f.store.Save(ctx, scope, "MSFT_trade_order.json", artifact.MIMEJSON, []byte(`{"quantity":142}`))
	require.NoError(t, err)
	_, err = f.store.Save(ctx, scope, "MSFT_trade_order.json", artifact.MIMEJSON, []byte(`{"quantity":143}`))
	require.NoError(t, err)

	t.Run("latest", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/sessions/s1/artifacts/MSFT_trade_order.json", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, artifact.MIMEJSON, rec.Header().Get("Content-Type"))
		assert.Equal(t, "2", rec.Header().Get("X-Artifact-Version"))
		assert.JSONEq(t, `{"quantity":143}`, rec.Body.String())
	})

	t.Run("version", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/sessions/s1/artifacts/MSFT_trade_order.json?version=1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"quantity":142}`, rec.Body.String())
	})

	t.Run("other user", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/sessions/s1/artifacts/MSFT_trade_order.json?user_id=someone", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad version", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/sessions/s1/artifacts/MSFT_trade_order.json?version=-1", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/sessions/s1/artifacts/nope.json", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]string
		decode(t, rec, &body)
		assert.Contains(t, body["error"], "nope.json")
	})
}
