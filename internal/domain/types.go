package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the order side (buy or sell).
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType represents the pricing type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// RequiresPrice reports whether the order type needs a limit price.
func (t OrderType) RequiresPrice() bool {
	return t != OrderTypeMarket
}

// RequiresStopPrice reports whether the order type needs a stop trigger price.
func (t OrderType) RequiresStopPrice() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit
}

// TimeInForce is the validity policy of an order. It is carried on the order
// and interpreted by the exchange collaborator, not enforced by the registry.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Working reports whether the order counts toward the working set.
// PENDING orders are excluded until the exchange acknowledges them.
func (s OrderStatus) Working() bool {
	return s == OrderStatusOpen || s == OrderStatusPartial
}

// Fill is a partial or complete execution applied against an order.
// Immutable once appended to the order's fill sequence.
type Fill struct {
	FillID    string          `json:"fill_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
	Venue     string          `json:"venue"`
}

// Order represents a submitted trading intent tracked through its lifecycle.
type Order struct {
	OrderID         string          `json:"order_id"`
	ClientOrderID   string          `json:"client_order_id"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Symbol          string          `json:"symbol"`
	Side            Side            `json:"side"`
	OrderType       OrderType       `json:"order_type"`
	TimeInForce     TimeInForce     `json:"time_in_force"`
	Quantity        int64           `json:"quantity"`
	FilledQty       int64           `json:"filled_qty"`
	RemainingQty    int64           `json:"remaining_qty"`
	Price           decimal.Decimal `json:"price"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	AvgFillPrice    decimal.Decimal `json:"avg_fill_price"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Fills           []Fill          `json:"fills"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// Clone returns a deep copy of the order. Registry queries hand out clones so
// callers never observe a half-updated order.
func (o *Order) Clone() *Order {
	c := *o
	c.Fills = make([]Fill, len(o.Fills))
	copy(c.Fills, o.Fills)
	return &c
}

// NewOrderRequest is the caller-facing submission payload.
type NewOrderRequest struct {
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	OrderType   OrderType       `json:"order_type"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	TimeInForce TimeInForce     `json:"time_in_force"`
}

// AmendRequest carries the amendable fields. Nil means "leave unchanged".
type AmendRequest struct {
	Quantity *int64           `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Execution is a fill externalized into the ledger with commission applied.
// Never mutated or removed after creation.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	OrderID     string          `json:"order_id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
	Venue       string          `json:"venue"`
	Commission  decimal.Decimal `json:"commission"`
}

// Notional returns price * quantity for the execution.
func (e *Execution) Notional() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(e.Quantity))
}

// Quote is a market data tick for a symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Last          decimal.Decimal `json:"last"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// RequestAction is the action type sent toward the exchange collaborator.
type RequestAction string

const (
	RequestActionNew    RequestAction = "new"
	RequestActionCancel RequestAction = "cancel"
)

// OrderRequest wraps an order snapshot with its action for the exchange pipeline.
type OrderRequest struct {
	Action RequestAction
	Order  *Order
}

// StreamEvent is the envelope pushed to streaming consumers.
type StreamEvent struct {
	Type string `json:"type"` // "order", "execution", "quote"
	Data any    `json:"data"`
}
