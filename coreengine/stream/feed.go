package stream

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/msyber/agora/coreengine/observability"
)

// Simulated feed defaults.
const (
	DefaultTickInterval = time.Second
	DefaultBasePrice    = 150.0

	anomalyProbability = 0.1
	anomalyWidening    = 0.20
)

// SimulatedFeed produces synthetic level 2 snapshots around a base price.
// Each side sits 0.01 to 0.05 away from the base, and one snapshot in ten
// has its ask pushed 0.20 wider.
type SimulatedFeed struct {
	ticker    string
	basePrice float64
	interval  time.Duration
	now       func() time.Time
	logger    Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// FeedOption configures a SimulatedFeed.
type FeedOption func(*SimulatedFeed)

// WithBasePrice sets the price the book is centred on.
func WithBasePrice(price float64) FeedOption {
	return func(f *SimulatedFeed) { f.basePrice = price }
}

// WithTickInterval sets the delay between snapshots.
func WithTickInterval(d time.Duration) FeedOption {
	return func(f *SimulatedFeed) { f.interval = d }
}

// WithSeed makes the feed deterministic.
func WithSeed(seed uint64) FeedOption {
	return func(f *SimulatedFeed) { f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithFeedClock overrides the snapshot timestamp source.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *SimulatedFeed) { f.now = now }
}

// WithFeedLogger sets the feed logger.
func WithFeedLogger(logger Logger) FeedOption {
	return func(f *SimulatedFeed) { f.logger = logger }
}

// NewSimulatedFeed creates a feed for ticker.
func NewSimulatedFeed(ticker string, opts ...FeedOption) *SimulatedFeed {
	f := &SimulatedFeed{
		ticker:    ticker,
		basePrice: DefaultBasePrice,
		interval:  DefaultTickInterval,
		now:       time.Now,
		logger:    observability.NopLogger{},
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Next returns one encoded snapshot.
func (f *SimulatedFeed) Next() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	bid := f.basePrice - f.uniform(0.01, 0.05)
	ask := f.basePrice + f.uniform(0.01, 0.05)
	if f.rng.Float64() < anomalyProbability {
		ask += anomalyWidening
	}

	snapshot := OrderBookSnapshot{
		Ticker:       f.ticker,
		TimestampUTC: f.now().UTC().Format(time.RFC3339Nano),
		Bids: []Level{
			{Price: round2(bid), Size: 10 + f.rng.IntN(41)},
			{Price: round2(bid - 0.01), Size: 50 + f.rng.IntN(51)},
		},
		Asks: []Level{
			{Price: round2(ask), Size: 10 + f.rng.IntN(41)},
			{Price: round2(ask + 0.01), Size: 50 + f.rng.IntN(51)},
		},
	}
	// A snapshot of plain numbers and strings always encodes.
	data, _ := json.Marshal(snapshot)
	return data
}

// Run puts one snapshot on q per tick until ctx is cancelled, then closes q.
func (f *SimulatedFeed) Run(ctx context.Context, q *Queue) {
	defer q.Close()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("feed_started", "ticker", f.ticker, "interval", f.interval.String())
	for {
		if err := q.Put(f.Next()); err != nil {
			f.logger.Info("feed_stopped", "ticker", f.ticker, "reason", "queue_closed")
			return
		}
		select {
		case <-ctx.Done():
			f.logger.Info("feed_stopped", "ticker", f.ticker, "reason", "cancelled")
			return
		case <-ticker.C:
		}
	}
}

func (f *SimulatedFeed) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
