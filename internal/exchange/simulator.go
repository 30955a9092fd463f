package exchange

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

// Venue tag stamped on every simulated fill.
const Venue = "SIM"

// Sink is the registry-facing event surface the simulator drives.
type Sink interface {
	ProcessAck(orderID, externalRef string)
	ProcessFill(orderID string, fill domain.Fill)
	ProcessReject(orderID, reason string)
	ProcessCancelConfirm(orderID string)
}

// QuoteSource supplies the last trade price used for fill pricing.
type QuoteSource interface {
	Last(symbol string) (decimal.Decimal, bool)
}

// Options controls the simulated exchange round-trip behavior.
type Options struct {
	AckLatency     time.Duration
	CancelLatency  time.Duration
	FillLatencyMin time.Duration
	FillLatencyMax time.Duration
	MaxFillSlices  int
}

// Simulator models the exchange side of the order flow. It consumes requests
// from the registry and delivers acknowledgments, fills, rejections and
// cancel confirmations back into the sink after simulated round-trip
// latency. Deliveries are fire-and-forget timers, so ordering across
// different event kinds for the same order is deliberately not guaranteed;
// the registry's race-resolution rule decides the outcome.
type Simulator struct {
	sink   Sink
	quotes QuoteSource
	opts   Options

	// RequestIn carries new-order and cancel requests from the registry.
	RequestIn chan *domain.OrderRequest

	done chan struct{}
	log  *slog.Logger

	// rng is shared by the run loop and timer callbacks.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSimulator creates a simulator delivering events into sink, pricing
// fills off quotes.
func NewSimulator(sink Sink, quotes QuoteSource, opts Options, bufferSize int) *Simulator {
	if opts.MaxFillSlices < 1 {
		opts.MaxFillSlices = 1
	}
	return &Simulator{
		sink:      sink,
		quotes:    quotes,
		opts:      opts,
		RequestIn: make(chan *domain.OrderRequest, bufferSize),
		done:      make(chan struct{}),
		log:       telemetry.Component("exchange"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the request loop.
func (s *Simulator) Start() {
	go s.run()
}

// Stop shuts down the request loop. Timers already scheduled still fire.
func (s *Simulator) Stop() {
	close(s.done)
}

func (s *Simulator) run() {
	s.log.Info("exchange simulator started")
	for {
		select {
		case req := <-s.RequestIn:
			s.processRequest(req)
		case <-s.done:
			s.log.Info("exchange simulator stopped")
			return
		}
	}
}

func (s *Simulator) processRequest(req *domain.OrderRequest) {
	switch req.Action {
	case domain.RequestActionNew:
		s.handleNew(req.Order)
	case domain.RequestActionCancel:
		s.handleCancel(req.Order)
	}
}

// handleNew schedules the acknowledgment, or a rejection when the symbol has
// no market, then slices the order into fills.
func (s *Simulator) handleNew(order *domain.Order) {
	orderID := order.OrderID

	if _, ok := s.quotes.Last(order.Symbol); !ok {
		reason := fmt.Sprintf("no market for symbol %s", order.Symbol)
		time.AfterFunc(s.opts.AckLatency, func() {
			s.sink.ProcessReject(orderID, reason)
		})
		return
	}

	snap := order.Clone()
	time.AfterFunc(s.opts.AckLatency, func() {
		s.sink.ProcessAck(orderID, "EXC-"+uuid.NewString())
		s.scheduleFills(snap)
	})
}

// scheduleFills splits the order quantity into 1..MaxFillSlices partial
// fills with independent delivery delays. IOC and FOK orders fill in a
// single slice.
func (s *Simulator) scheduleFills(order *domain.Order) {
	slices := 1
	if order.TimeInForce != domain.TIFIOC && order.TimeInForce != domain.TIFFOK {
		slices = 1 + s.randInt(s.opts.MaxFillSlices)
	}

	parts := s.splitQuantity(order.RemainingQty, slices)
	delay := time.Duration(0)
	for _, qty := range parts {
		delay += s.randLatency()
		qty := qty
		time.AfterFunc(delay, func() {
			s.sink.ProcessFill(order.OrderID, domain.Fill{
				FillID:    uuid.NewString(),
				Price:     s.fillPrice(order),
				Quantity:  qty,
				Timestamp: time.Now(),
				Venue:     Venue,
			})
		})
	}
}

// handleCancel schedules the cancel confirmation. A fill already in flight
// may still land first; that race belongs to the registry.
func (s *Simulator) handleCancel(order *domain.Order) {
	orderID := order.OrderID
	time.AfterFunc(s.opts.CancelLatency, func() {
		s.sink.ProcessCancelConfirm(orderID)
	})
}

// fillPrice prices a fill off the live quote with up to ±5 bps slippage,
// falling back to the order's limit price when the quote disappeared.
func (s *Simulator) fillPrice(order *domain.Order) decimal.Decimal {
	last, ok := s.quotes.Last(order.Symbol)
	if !ok {
		return order.Price
	}
	f, _ := last.Float64()
	slip := (s.randFloat() - 0.5) * 0.001
	return decimal.NewFromFloat(f * (1 + slip)).Round(2)
}

// splitQuantity splits total into n positive parts. n is clamped so every
// part is at least one unit.
func (s *Simulator) splitQuantity(total int64, n int) []int64 {
	if int64(n) > total {
		n = int(total)
	}
	if n < 1 {
		n = 1
	}

	parts := make([]int64, 0, n)
	remaining := total
	for i := 0; i < n-1; i++ {
		// leave at least one unit for each remaining slice
		max := remaining - int64(n-1-i)
		part := 1 + s.randInt64(max)
		parts = append(parts, part)
		remaining -= part
	}
	parts = append(parts, remaining)
	return parts
}

func (s *Simulator) randLatency() time.Duration {
	spread := s.opts.FillLatencyMax - s.opts.FillLatencyMin
	if spread <= 0 {
		return s.opts.FillLatencyMin
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.opts.FillLatencyMin + time.Duration(s.rng.Int63n(int64(spread)))
}

// randInt returns a value in [0, n).
func (s *Simulator) randInt(n int) int {
	if n <= 1 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// randInt64 returns a value in [0, n).
func (s *Simulator) randInt64(n int64) int64 {
	if n <= 1 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int63n(n)
}

func (s *Simulator) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}
