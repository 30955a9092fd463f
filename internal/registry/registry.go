package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/ledger"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

// Validation errors surfaced synchronously at submit time.
var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidSide       = errors.New("side must be BUY or SELL")
	ErrInvalidOrderType  = errors.New("unknown order type")
	ErrPriceRequired     = errors.New("price required for non-market orders")
	ErrStopPriceRequired = errors.New("stop price required for stop orders")
)

// Publisher receives order, execution and quote events for streaming
// consumers. May be nil.
type Publisher interface {
	Publish(event domain.StreamEvent)
}

// Registry is the authoritative store of all orders. It owns every state
// transition. All mutations of a given order are serialized behind a single
// lock: each handler reads the current status, decides legality, and writes
// the new status as one atomic step. Whichever event is applied first wins;
// conflicting late arrivals become silent no-ops.
type Registry struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	working []*domain.Order // recomputed on every status-changing mutation
	history []*domain.Order // filled and cancelled orders, append-only

	ledger    *ledger.Ledger
	publisher Publisher
	log       *slog.Logger

	// Channel carrying new-order and cancel requests toward the exchange
	// collaborator.
	RequestOut chan *domain.OrderRequest
}

// NewRegistry creates a registry recording executions into led.
// publisher may be nil.
func NewRegistry(led *ledger.Ledger, publisher Publisher, bufferSize int) *Registry {
	return &Registry{
		orders:     make(map[string]*domain.Order),
		ledger:     led,
		publisher:  publisher,
		log:        telemetry.Component("registry"),
		RequestOut: make(chan *domain.OrderRequest, bufferSize),
	}
}

// Submit validates the request and creates the order in PENDING. The exchange
// round-trip is asynchronous: the order is returned immediately and moves to
// OPEN only when the acknowledgment arrives.
func (r *Registry) Submit(req domain.NewOrderRequest) (*domain.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = domain.TIFDay
	}

	now := time.Now()
	order := &domain.Order{
		OrderID:       "ORD-" + uuid.NewString(),
		ClientOrderID: "CLI-" + uuid.NewString(),
		Symbol:        req.Symbol,
		Side:          req.Side,
		OrderType:     req.OrderType,
		TimeInForce:   tif,
		Quantity:      req.Quantity,
		RemainingQty:  req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Fills:         []domain.Fill{},
	}

	r.mu.Lock()
	r.orders[order.OrderID] = order
	snap := order.Clone()
	r.mu.Unlock()

	telemetry.OrdersTotal.WithLabelValues("submit", order.Symbol).Inc()
	r.log.Info("order submitted",
		slog.String("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Int64("quantity", order.Quantity))

	r.emitRequest(domain.RequestActionNew, snap)
	r.publishOrder(snap)
	return snap, nil
}

func validate(req domain.NewOrderRequest) error {
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return ErrInvalidSide
	}
	switch req.OrderType {
	case domain.OrderTypeMarket, domain.OrderTypeLimit, domain.OrderTypeStop, domain.OrderTypeStopLimit:
	default:
		return ErrInvalidOrderType
	}
	if req.OrderType.RequiresPrice() && !req.Price.IsPositive() {
		return ErrPriceRequired
	}
	if req.OrderType.RequiresStopPrice() && !req.StopPrice.IsPositive() {
		return ErrStopPriceRequired
	}
	return nil
}

// Cancel accepts a cancel request for an order that is not yet terminal.
// Acceptance is not completion: the status flips to CANCELLED only when the
// confirmation arrives, and a fill landing first wins the race.
func (r *Registry) Cancel(orderID string) bool {
	r.mu.RLock()
	order, ok := r.orders[orderID]
	var snap *domain.Order
	if ok && !order.Status.Terminal() {
		snap = order.Clone()
	}
	r.mu.RUnlock()

	if snap == nil {
		return false
	}

	telemetry.OrdersTotal.WithLabelValues("cancel", snap.Symbol).Inc()
	r.log.Info("cancel requested", slog.String("order_id", orderID))
	r.emitRequest(domain.RequestActionCancel, snap)
	return true
}

// Amend changes quantity and/or price on an OPEN or PARTIAL order without
// touching its status. An amend taking quantity at or below the already
// filled quantity is rejected outright rather than flooring remaining at
// zero, so FILLED remains reachable only through fills.
func (r *Registry) Amend(orderID string, req domain.AmendRequest) bool {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok || !order.Status.Working() {
		r.mu.Unlock()
		return false
	}
	if req.Quantity != nil && *req.Quantity <= order.FilledQty {
		r.mu.Unlock()
		return false
	}

	if req.Quantity != nil {
		order.Quantity = *req.Quantity
		order.RemainingQty = order.Quantity - order.FilledQty
	}
	if req.Price != nil {
		order.Price = *req.Price
	}
	order.UpdatedAt = time.Now()
	snap := order.Clone()
	r.mu.Unlock()

	telemetry.OrdersTotal.WithLabelValues("amend", snap.Symbol).Inc()
	r.log.Info("order amended", slog.String("order_id", orderID))
	r.publishOrder(snap)
	return true
}

// ProcessAck moves a PENDING order to OPEN. Any other state means a
// conflicting event already won; the ack is silently dropped.
func (r *Registry) ProcessAck(orderID, externalRef string) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok || order.Status != domain.OrderStatusPending {
		r.mu.Unlock()
		telemetry.RejectedTransitionsTotal.WithLabelValues("ack").Inc()
		return
	}

	order.Status = domain.OrderStatusOpen
	order.ExchangeOrderID = externalRef
	order.UpdatedAt = time.Now()
	r.recomputeWorkingLocked()
	snap := order.Clone()
	r.mu.Unlock()

	r.log.Info("order acknowledged",
		slog.String("order_id", orderID),
		slog.String("external_ref", externalRef))
	r.publishOrder(snap)
}

// ProcessFill applies a fill to an OPEN or PARTIAL order, recomputes the
// filled/remaining quantities and the volume-weighted average fill price, and
// records exactly one execution in the ledger. Unknown or terminal orders are
// silent no-ops: that race means a cancel or reject won the transition.
func (r *Registry) ProcessFill(orderID string, fill domain.Fill) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok || !order.Status.Working() {
		r.mu.Unlock()
		telemetry.RejectedTransitionsTotal.WithLabelValues("fill").Inc()
		return
	}

	order.Fills = append(order.Fills, fill)
	order.FilledQty += fill.Quantity
	remaining := order.Quantity - order.FilledQty
	if remaining < 0 {
		remaining = 0
	}
	order.RemainingQty = remaining
	order.AvgFillPrice = vwap(order.Fills)
	if remaining == 0 {
		order.Status = domain.OrderStatusFilled
		r.history = append(r.history, order)
	} else {
		order.Status = domain.OrderStatusPartial
	}
	order.UpdatedAt = time.Now()

	exec := r.ledger.Record(order, fill)
	r.recomputeWorkingLocked()
	snap := order.Clone()
	r.mu.Unlock()

	telemetry.FillsTotal.WithLabelValues(snap.Symbol).Inc()
	r.log.Info("fill applied",
		slog.String("order_id", orderID),
		slog.String("fill_id", fill.FillID),
		slog.Int64("quantity", fill.Quantity),
		slog.String("status", string(snap.Status)))

	r.publishOrder(snap)
	r.publish(domain.StreamEvent{Type: "execution", Data: exec})
}

// vwap computes the volume-weighted mean price across fills.
func vwap(fills []domain.Fill) decimal.Decimal {
	var totalQty int64
	value := decimal.Zero
	for _, f := range fills {
		value = value.Add(f.Price.Mul(decimal.NewFromInt(f.Quantity)))
		totalQty += f.Quantity
	}
	if totalQty == 0 {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(totalQty))
}

// ProcessReject marks a PENDING or OPEN order as terminally REJECTED and
// records the exchange-supplied reason. Silent no-op elsewhere.
func (r *Registry) ProcessReject(orderID, reason string) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok || (order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusOpen) {
		r.mu.Unlock()
		telemetry.RejectedTransitionsTotal.WithLabelValues("reject").Inc()
		return
	}

	order.Status = domain.OrderStatusRejected
	order.ErrorMessage = reason
	order.UpdatedAt = time.Now()
	r.recomputeWorkingLocked()
	snap := order.Clone()
	r.mu.Unlock()

	r.log.Warn("order rejected",
		slog.String("order_id", orderID),
		slog.String("reason", reason))
	r.publishOrder(snap)
}

// ProcessCancelConfirm flips a still-live order to CANCELLED. Fills that
// completed the order in the interim win: the confirmation becomes a no-op.
func (r *Registry) ProcessCancelConfirm(orderID string) {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok || order.Status.Terminal() {
		r.mu.Unlock()
		telemetry.RejectedTransitionsTotal.WithLabelValues("cancel_confirm").Inc()
		return
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	r.history = append(r.history, order)
	r.recomputeWorkingLocked()
	snap := order.Clone()
	r.mu.Unlock()

	r.log.Info("order cancelled", slog.String("order_id", orderID))
	r.publishOrder(snap)
}

// recomputeWorkingLocked rebuilds the working set from the full order table.
// Caller must hold the write lock, so consumers never observe the projection
// out of step with the mutation that changed it.
func (r *Registry) recomputeWorkingLocked() {
	working := make([]*domain.Order, 0, len(r.working))
	for _, order := range r.orders {
		if order.Status.Working() {
			working = append(working, order)
		}
	}
	sort.Slice(working, func(i, j int) bool {
		if working[i].CreatedAt.Equal(working[j].CreatedAt) {
			return working[i].OrderID < working[j].OrderID
		}
		return working[i].CreatedAt.Before(working[j].CreatedAt)
	})
	r.working = working
	telemetry.WorkingOrders.Set(float64(len(working)))
}

// GetOrder returns a copy of the order, or nil if unknown.
func (r *Registry) GetOrder(orderID string) *domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil
	}
	return order.Clone()
}

// GetOrdersBySymbol returns copies of all orders for a symbol, any status.
func (r *Registry) GetOrdersBySymbol(symbol string) []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, order := range r.orders {
		if order.Symbol == symbol {
			result = append(result, order.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].OrderID < result[j].OrderID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// GetWorkingOrders returns a consistent snapshot of the orders whose status
// is OPEN or PARTIAL.
func (r *Registry) GetWorkingOrders() []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Order, len(r.working))
	for i, order := range r.working {
		result[i] = order.Clone()
	}
	return result
}

// GetOrderHistory returns copies of the filled and cancelled orders in the
// order they reached their terminal state.
func (r *Registry) GetOrderHistory() []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Order, len(r.history))
	for i, order := range r.history {
		result[i] = order.Clone()
	}
	return result
}

// emitRequest forwards a request toward the exchange without blocking the
// caller.
func (r *Registry) emitRequest(action domain.RequestAction, order *domain.Order) {
	select {
	case r.RequestOut <- &domain.OrderRequest{Action: action, Order: order}:
	default:
		r.log.Warn("request output channel full, dropping request",
			slog.String("order_id", order.OrderID), slog.String("action", string(action)))
	}
}

func (r *Registry) publishOrder(order *domain.Order) {
	r.publish(domain.StreamEvent{Type: "order", Data: order})
}

func (r *Registry) publish(event domain.StreamEvent) {
	if r.publisher != nil {
		r.publisher.Publish(event)
	}
}
