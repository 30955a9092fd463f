package marketdata

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nathanyu/trading-oms/internal/config"
	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

// Publisher receives quote events for streaming consumers. May be nil.
type Publisher interface {
	Publish(event domain.StreamEvent)
}

// Feed generates random-walk quotes for a configured symbol universe. It
// stands in for an upstream market data connection: the exchange simulator
// prices fills off it and the stream pushes its ticks to consumers.
type Feed struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote

	// session open per symbol, basis for the change fields
	opens map[string]float64

	publisher Publisher
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	rng       *rand.Rand
	log       *slog.Logger
}

// NewFeed seeds a feed from the configured symbols. publisher may be nil.
func NewFeed(seeds []config.SymbolSeed, interval time.Duration, publisher Publisher) *Feed {
	f := &Feed{
		quotes:    make(map[string]*domain.Quote, len(seeds)),
		opens:     make(map[string]float64, len(seeds)),
		publisher: publisher,
		interval:  interval,
		done:      make(chan struct{}),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       telemetry.Component("marketdata"),
	}

	now := time.Now()
	for _, seed := range seeds {
		f.opens[seed.Symbol] = seed.Price
		f.quotes[seed.Symbol] = &domain.Quote{
			Symbol:    seed.Symbol,
			Bid:       round2(seed.Price - 0.02),
			Ask:       round2(seed.Price + 0.02),
			Last:      round2(seed.Price),
			High:      round2(seed.Price),
			Low:       round2(seed.Price),
			Timestamp: now,
		}
	}
	return f
}

// Start begins the tick loop.
func (f *Feed) Start() {
	f.ticker = time.NewTicker(f.interval)
	go f.run()
}

// Stop shuts down the feed.
func (f *Feed) Stop() {
	if f.ticker != nil {
		f.ticker.Stop()
	}
	close(f.done)
}

func (f *Feed) run() {
	f.log.Info("quote feed started", slog.Int("symbols", len(f.quotes)))
	for {
		select {
		case <-f.ticker.C:
			f.tick()
		case <-f.done:
			f.log.Info("quote feed stopped")
			return
		}
	}
}

// tick advances 2-3 random symbols by up to ±0.1% and publishes the updates.
func (f *Feed) tick() {
	f.mu.Lock()

	symbols := make([]string, 0, len(f.quotes))
	for s := range f.quotes {
		symbols = append(symbols, s)
	}

	updateCount := f.rng.Intn(2) + 2
	updated := make([]*domain.Quote, 0, updateCount)
	for i := 0; i < updateCount; i++ {
		symbol := symbols[f.rng.Intn(len(symbols))]
		q := f.quotes[symbol]

		last, _ := q.Last.Float64()
		next := last + (f.rng.Float64()-0.5)*last*0.002
		if next <= 0 {
			next = last
		}

		q.Last = round2(next)
		q.Bid = round2(next - f.rng.Float64()*0.05)
		q.Ask = round2(next + f.rng.Float64()*0.05)
		if q.Last.GreaterThan(q.High) {
			q.High = q.Last
		}
		if q.Last.LessThan(q.Low) {
			q.Low = q.Last
		}
		open := f.opens[symbol]
		q.Change = round2(next - open)
		if open != 0 {
			q.ChangePercent = round2((next - open) / open * 100)
		}
		q.Volume += int64(f.rng.Intn(5000) + 500)
		q.Timestamp = time.Now()

		snap := *q
		updated = append(updated, &snap)
	}
	f.mu.Unlock()

	for _, q := range updated {
		f.publish(domain.StreamEvent{Type: "quote", Data: q})
	}
}

// Last returns the last trade price for a symbol.
func (f *Feed) Last(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return q.Last, true
}

// Quote returns a copy of the current quote for a symbol.
func (f *Feed) Quote(symbol string) *domain.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[symbol]
	if !ok {
		return nil
	}
	snap := *q
	return &snap
}

// Quotes returns a copy of all current quotes sorted by symbol.
func (f *Feed) Quotes() []*domain.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]*domain.Quote, 0, len(f.quotes))
	for _, q := range f.quotes {
		snap := *q
		result = append(result, &snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

func (f *Feed) publish(event domain.StreamEvent) {
	if f.publisher != nil {
		f.publisher.Publish(event)
	}
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
