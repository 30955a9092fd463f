package marketdata

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/trading-oms/internal/config"
	"github.com/nathanyu/trading-oms/internal/domain"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.StreamEvent
}

func (p *capturingPublisher) Publish(event domain.StreamEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testSeeds() []config.SymbolSeed {
	return []config.SymbolSeed{
		{Symbol: "AAPL", Price: 172.50},
		{Symbol: "GOOG", Price: 139.20},
		{Symbol: "TSLA", Price: 248.75},
	}
}

func TestNewFeed_SeedsQuotes(t *testing.T) {
	feed := NewFeed(testSeeds(), time.Second, nil)

	q := feed.Quote("AAPL")
	require.NotNil(t, q)
	assert.True(t, q.Last.Equal(decimal.RequireFromString("172.5")), "last %s", q.Last)
	assert.True(t, q.Bid.LessThan(q.Ask))
	assert.True(t, q.High.Equal(q.Last))
	assert.True(t, q.Low.Equal(q.Last))

	assert.Nil(t, feed.Quote("MISSING"))

	last, ok := feed.Last("GOOG")
	require.True(t, ok)
	assert.True(t, last.Equal(decimal.RequireFromString("139.2")))

	_, ok = feed.Last("MISSING")
	assert.False(t, ok)
}

func TestQuotes_SortedCopies(t *testing.T) {
	feed := NewFeed(testSeeds(), time.Second, nil)

	quotes := feed.Quotes()
	require.Len(t, quotes, 3)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.Equal(t, "GOOG", quotes[1].Symbol)
	assert.Equal(t, "TSLA", quotes[2].Symbol)

	// Mutating a returned quote must not leak into the feed.
	quotes[0].Last = decimal.NewFromInt(1)
	fresh := feed.Quote("AAPL")
	assert.True(t, fresh.Last.Equal(decimal.RequireFromString("172.5")))
}

func TestTick_UpdatesAndPublishes(t *testing.T) {
	pub := &capturingPublisher{}
	feed := NewFeed(testSeeds(), time.Second, pub)

	for i := 0; i < 20; i++ {
		feed.tick()
	}

	// Each tick touches 2-3 symbols.
	assert.GreaterOrEqual(t, pub.count(), 40)
	assert.LessOrEqual(t, pub.count(), 60)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, ev := range pub.events {
		assert.Equal(t, "quote", ev.Type)
		q, ok := ev.Data.(*domain.Quote)
		require.True(t, ok)
		assert.True(t, q.Last.IsPositive())
		assert.True(t, q.High.GreaterThanOrEqual(q.Low))
		assert.False(t, q.Timestamp.IsZero())
	}
}

func TestTick_BoundsWalkPerStep(t *testing.T) {
	feed := NewFeed([]config.SymbolSeed{{Symbol: "AAPL", Price: 100.00}}, time.Second, nil)

	prev, _ := feed.Last("AAPL")
	for i := 0; i < 50; i++ {
		feed.tick()
		next, _ := feed.Last("AAPL")
		// ±0.1% per step, plus a cent of rounding.
		limit := prev.Mul(decimal.RequireFromString("0.001")).Add(decimal.RequireFromString("0.01"))
		assert.True(t, next.Sub(prev).Abs().LessThanOrEqual(limit),
			"step from %s to %s exceeds walk bound", prev, next)
		prev = next
	}
}

func TestStartStop(t *testing.T) {
	pub := &capturingPublisher{}
	feed := NewFeed(testSeeds(), 5*time.Millisecond, pub)

	feed.Start()
	time.Sleep(50 * time.Millisecond)
	feed.Stop()

	assert.Positive(t, pub.count())
}
