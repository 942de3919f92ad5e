package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/testutil"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const snapshotTime = "2025-01-15T09:30:00Z"

func snapshot(ticker string, bid, ask float64) []byte {
	return []byte(fmt.Sprintf(
		`{"ticker":%q,"timestamp_utc":%q,"bids":[{"price":%.2f,"size":10}],"asks":[{"price":%.2f,"size":12}]}`,
		ticker, snapshotTime, bid, ask,
	))
}

func filledQueue(t *testing.T, items ...[]byte) *Queue {
	t.Helper()
	q := NewQueue()
	for _, item := range items {
		require.NoError(t, q.Put(item))
	}
	q.Close()
	return q
}

// =============================================================================
// QUEUE
// =============================================================================

func TestQueue_FIFO(t *testing.T) {
	q := filledQueue(t, []byte("a"), []byte("b"), []byte("c"))
	ctx := context.Background()

	var got []string
	for {
		item, err := q.Get(ctx)
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueClosed)
			break
		}
		got = append(got, string(item))
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Put([]byte("late")), ErrQueueClosed)
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := NewQueue()
	got := make(chan string, 1)
	go func() {
		item, err := q.Get(context.Background())
		if err == nil {
			got <- string(item)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put([]byte("x")))

	select {
	case v := <-got:
		assert.Equal(t, "x", v)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestQueue_GetCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = q.Get(context.Background())
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrQueueClosed)
	}
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestParseSnapshot(t *testing.T) {
	s, err := ParseSnapshot(snapshot("MSFT", 100.00, 100.20))
	require.NoError(t, err)

	assert.Equal(t, "MSFT", s.Ticker)
	assert.Equal(t, snapshotTime, s.TimestampUTC)
	assert.Equal(t, 100.00, s.BestBid())
	assert.Equal(t, 100.20, s.BestAsk())
	assert.Equal(t, 0.2, s.Spread())
	assert.Equal(t, 10, s.Bids[0].Size)
	assert.Equal(t, 12, s.Asks[0].Size)
}

func TestSnapshot_SpreadIsRoundedToMicros(t *testing.T) {
	tests := []struct {
		name string
		bid  float64
		ask  float64
		want float64
	}{
		{"exact decimal", 150.00, 150.15, 0.15},
		{"float noise", 100.00, 100.20, 0.2},
		{"sub cent", 99.995, 100.005, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &OrderBookSnapshot{
				Bids: []Level{{Price: tt.bid, Size: 1}},
				Asks: []Level{{Price: tt.ask, Size: 1}},
			}

			assert.Equal(t, tt.want, s.Spread())
		})
	}
}

func TestParseSnapshot_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{"not json", `{"ticker":`, "invalid JSON"},
		{"wrong type", `{"ticker":"MSFT","bids":"none"}`, "invalid JSON"},
		{"no bids", `{"ticker":"MSFT","bids":[],"asks":[{"price":1,"size":1}]}`, "no best bid"},
		{"no asks", `{"ticker":"MSFT","bids":[{"price":1,"size":1}]}`, "no best ask"},
		{"fractional size", `{"ticker":"MSFT","bids":[{"price":1,"size":1.5}],"asks":[{"price":2,"size":1}]}`, "invalid JSON"},
		{"size as string", `{"ticker":"MSFT","bids":[{"price":1,"size":"10"}],"asks":[{"price":2,"size":1}]}`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.data))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
			var mse *MalformedSnapshotError
			require.True(t, errors.As(err, &mse))
			assert.Equal(t, tt.reason, mse.Reason)
		})
	}
}

// =============================================================================
// MONITOR
// =============================================================================

func TestMonitor_Threshold(t *testing.T) {
	tests := []struct {
		name   string
		bid    float64
		ask    float64
		alerts int
	}{
		{"narrow spread", 100.00, 100.10, 0},
		{"at threshold", 100.00, 100.15, 0},
		{"at threshold, higher price", 150.00, 150.15, 0},
		{"just above threshold", 150.00, 150.16, 1},
		{"wide spread", 100.00, 100.20, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor("test_monitor", filledQueue(t, snapshot("MSFT", tt.bid, tt.ask)))

			evs := events.Collect(m.Run(context.Background()))

			assert.Len(t, evs, tt.alerts)
		})
	}
}

func TestMonitor_AlertContent(t *testing.T) {
	logger := testutil.NewMockLogger()
	m := NewMonitor("spread_monitor", filledQueue(t, snapshot("MSFT", 100.00, 100.20)), WithMonitorLogger(logger))

	evs := events.Collect(m.Run(context.Background()))

	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, "spread_monitor", ev.Author)
	assert.Equal(t, "ALERT: Wide spread detected for MSFT: 0.20 at "+snapshotTime, ev.Text)
	require.NotNil(t, ev.Alert)
	assert.Equal(t, "MSFT", ev.Alert.Ticker)
	assert.InDelta(t, 0.20, ev.Alert.Spread, 1e-9)
	assert.Equal(t, snapshotTime, ev.Alert.TimestampUTC)
	assert.False(t, ev.Failure)

	entry, ok := logger.FindLog("spread_alert")
	require.True(t, ok)
	assert.Equal(t, "warn", entry.Level)
	assert.Equal(t, "MSFT", entry.Fields["ticker"])
	assert.True(t, logger.HasLog("info", "monitor_stopped"))
}

func TestMonitor_CustomThreshold(t *testing.T) {
	m := NewMonitor("m", filledQueue(t, snapshot("MSFT", 100.00, 100.10)), WithThreshold(0.05))

	evs := events.Collect(m.Run(context.Background()))

	assert.Len(t, evs, 1)
	assert.Equal(t, 0.05, m.Threshold())
}

func TestMonitor_MalformedSnapshotsAreSkipped(t *testing.T) {
	logger := testutil.NewMockLogger()
	q := filledQueue(t,
		[]byte(`not json`),
		[]byte(`{"ticker":"MSFT","bids":[],"asks":[]}`),
		snapshot("MSFT", 100.00, 100.30),
	)
	m := NewMonitor("m", q, WithMonitorLogger(logger))

	evs := events.Collect(m.Run(context.Background()))

	require.Len(t, evs, 1)
	assert.Contains(t, evs[0].Text, "0.30")
	malformed := 0
	for _, entry := range logger.GetLogs() {
		if entry.Message == "snapshot_malformed" {
			malformed++
		}
	}
	assert.Equal(t, 2, malformed)
}

func TestMonitor_DrainsBeforeExit(t *testing.T) {
	q := filledQueue(t,
		snapshot("MSFT", 100.00, 100.20),
		snapshot("MSFT", 100.00, 100.05),
		snapshot("AAPL", 200.00, 200.40),
	)
	m := NewMonitor("m", q)

	evs := events.Collect(m.Run(context.Background()))

	require.Len(t, evs, 2)
	assert.Equal(t, "MSFT", evs[0].Alert.Ticker)
	assert.Equal(t, "AAPL", evs[1].Alert.Ticker)
}

func TestMonitor_PublishesAlerts(t *testing.T) {
	bus := commbus.NewInMemoryCommBus(0, nil)
	var mu sync.Mutex
	var raised []*commbus.SpreadAlertRaised
	bus.Subscribe(commbus.TypeSpreadAlertRaised, func(_ context.Context, msg commbus.Message) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		raised = append(raised, msg.(*commbus.SpreadAlertRaised))
		return nil, nil
	})
	m := NewMonitor("spread_monitor", filledQueue(t, snapshot("MSFT", 100.00, 100.25)), WithMonitorBus(bus))

	events.Collect(m.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, raised, 1)
	assert.Equal(t, "spread_monitor", raised[0].Monitor)
	assert.Equal(t, "MSFT", raised[0].Alert.Ticker)
}

func TestMonitor_CancelStopsWaiting(t *testing.T) {
	logger := testutil.NewMockLogger()
	m := NewMonitor("m", NewQueue(), WithMonitorLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())

	done := m.Start(ctx, nil)
	time.Sleep(10 * time.Millisecond)
	cancel()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
	entry, ok := logger.FindLog("monitor_stopped")
	require.True(t, ok)
	assert.Equal(t, "cancelled", entry.Fields["reason"])
}

func TestMonitor_CancelSkipsQueuedSnapshots(t *testing.T) {
	logger := testutil.NewMockLogger()
	q := filledQueue(t,
		snapshot("MSFT", 100.00, 100.20),
		snapshot("MSFT", 100.00, 100.30),
		snapshot("MSFT", 100.00, 100.40),
	)
	m := NewMonitor("m", q, WithMonitorLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evs := events.Collect(m.Run(ctx))

	assert.Empty(t, evs)
	assert.Equal(t, 3, q.Len())
	entry, ok := logger.FindLog("monitor_stopped")
	require.True(t, ok)
	assert.Equal(t, "cancelled", entry.Fields["reason"])
}

func TestMonitor_CancelBetweenTicks(t *testing.T) {
	q := filledQueue(t,
		snapshot("MSFT", 100.00, 100.20),
		snapshot("MSFT", 100.00, 100.30),
		snapshot("MSFT", 100.00, 100.40),
	)
	m := NewMonitor("m", q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var evs []events.Event
	for ev := range m.Run(ctx) {
		evs = append(evs, ev)
		cancel()
	}

	require.Len(t, evs, 1)
	assert.InDelta(t, 0.20, evs[0].Alert.Spread, 1e-9)
	assert.Equal(t, 2, q.Len())
}

func TestMonitor_ConsumerStopsEarly(t *testing.T) {
	q := filledQueue(t,
		snapshot("MSFT", 100.00, 100.20),
		snapshot("MSFT", 100.00, 100.30),
	)
	m := NewMonitor("m", q)

	for range m.Run(context.Background()) {
		break
	}

	assert.Equal(t, 1, q.Len())
}

// =============================================================================
// SIMULATED FEED
// =============================================================================

func TestSimulatedFeed_SnapshotShape(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	feed := NewSimulatedFeed("MSFT",
		WithBasePrice(350),
		WithSeed(42),
		WithFeedClock(func() time.Time { return now }),
	)

	widened := 0
	for i := 0; i < 500; i++ {
		s, err := ParseSnapshot(feed.Next())
		require.NoError(t, err)
		require.Len(t, s.Bids, 2)
		require.Len(t, s.Asks, 2)
		assert.Equal(t, "MSFT", s.Ticker)
		assert.Equal(t, "2025-01-15T09:30:00Z", s.TimestampUTC)

		assert.GreaterOrEqual(t, s.BestBid(), 349.95)
		assert.LessOrEqual(t, s.BestBid(), 349.99)
		assert.Less(t, s.Bids[1].Price, s.BestBid())
		assert.Greater(t, s.Asks[1].Price, s.BestAsk())

		spread := s.Spread()
		if spread > 0.15 {
			widened++
			assert.GreaterOrEqual(t, spread, 0.22)
			assert.LessOrEqual(t, spread, 0.30)
		} else {
			assert.GreaterOrEqual(t, spread, 0.02)
			assert.LessOrEqual(t, spread, 0.10)
		}
	}
	assert.Greater(t, widened, 10)
	assert.Less(t, widened, 120)
}

func TestSimulatedFeed_Deterministic(t *testing.T) {
	a := NewSimulatedFeed("MSFT", WithSeed(7), WithFeedClock(func() time.Time { return time.Unix(0, 0) }))
	b := NewSimulatedFeed("MSFT", WithSeed(7), WithFeedClock(func() time.Time { return time.Unix(0, 0) }))

	for i := 0; i < 10; i++ {
		assert.JSONEq(t, string(a.Next()), string(b.Next()))
	}
}

func TestSimulatedFeed_RunClosesQueueOnCancel(t *testing.T) {
	feed := NewSimulatedFeed("MSFT", WithTickInterval(time.Millisecond), WithSeed(1))
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.Run(ctx, q)
	}()

	first, err := q.Get(context.Background())
	require.NoError(t, err)
	var s OrderBookSnapshot
	require.NoError(t, json.Unmarshal(first, &s))
	assert.Equal(t, "MSFT", s.Ticker)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
	assert.True(t, q.Closed())
}

func TestFeedToMonitor(t *testing.T) {
	feed := NewSimulatedFeed("MSFT", WithTickInterval(time.Millisecond), WithSeed(3))
	q := NewQueue()
	m := NewMonitor("spread_monitor", q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var alerts []events.Event
	done := m.Start(ctx, func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		alerts = append(alerts, ev)
	})
	go feed.Run(ctx, q)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(alerts) > 0
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, ev := range alerts {
		assert.Greater(t, ev.Alert.Spread, DefaultThreshold)
	}
}
