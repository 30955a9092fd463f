package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nathanyu/trading-oms/internal/archive"
	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

// Ledger is the append-only record of executions. One execution is derived
// from every applied fill, with commission computed at the configured rate.
// Entries are ordered by arrival of the underlying fill, not by timestamp.
type Ledger struct {
	mu         sync.RWMutex
	executions []domain.Execution

	rate  decimal.Decimal
	store *archive.Store // optional, best-effort
	log   *slog.Logger
}

// New creates a ledger charging commissionBps basis points per execution.
// store may be nil to disable archiving.
func New(commissionBps int64, store *archive.Store) *Ledger {
	return &Ledger{
		rate:  decimal.New(commissionBps, -4), // 1 bps = 0.0001
		store: store,
		log:   telemetry.Component("ledger"),
	}
}

// Record derives an execution from a fill applied to order and appends it.
// Called exactly once per successful fill, inside the registry's mutation step.
func (l *Ledger) Record(order *domain.Order, fill domain.Fill) domain.Execution {
	exec := domain.Execution{
		ExecutionID: fill.FillID,
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       fill.Price,
		Quantity:    fill.Quantity,
		Timestamp:   fill.Timestamp,
		Venue:       fill.Venue,
		Commission:  fill.Price.Mul(decimal.NewFromInt(fill.Quantity)).Mul(l.rate),
	}

	l.mu.Lock()
	l.executions = append(l.executions, exec)
	l.mu.Unlock()

	telemetry.ExecutionsTotal.Inc()

	if l.store != nil {
		// Archive off the hot path; an archive failure never reaches trading.
		go func() {
			if err := l.store.SaveExecution(context.Background(), exec); err != nil {
				l.log.Warn("execution archive write failed",
					slog.String("execution_id", exec.ExecutionID), slog.Any("error", err))
			}
		}()
	}

	return exec
}

// Filter narrows and pages an executions query. Zero values mean "no filter";
// Limit 0 means no paging.
type Filter struct {
	Side   domain.Side
	Limit  int
	Offset int
}

// Executions returns a copy of the ledger entries matching the filter,
// in append order.
func (l *Ledger) Executions(f Filter) []domain.Execution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]domain.Execution, 0, len(l.executions))
	for _, exec := range l.executions {
		if f.Side != "" && exec.Side != f.Side {
			continue
		}
		matched = append(matched, exec)
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []domain.Execution{}
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched
}

// Len returns the number of recorded executions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.executions)
}

// TotalFilledNotional sums price*quantity over executions whose fill timestamp
// falls inside the trailing window. A non-positive window includes everything.
func (l *Ledger) TotalFilledNotional(window time.Duration) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	total := decimal.Zero
	for _, exec := range l.executions {
		if !cutoff.IsZero() && exec.Timestamp.Before(cutoff) {
			continue
		}
		total = total.Add(exec.Notional())
	}
	return total
}

// TotalCommissions sums commissions over the whole ledger.
func (l *Ledger) TotalCommissions() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, exec := range l.executions {
		total = total.Add(exec.Commission)
	}
	return total
}
