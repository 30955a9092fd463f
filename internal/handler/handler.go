package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/ledger"
	"github.com/nathanyu/trading-oms/internal/marketdata"
	"github.com/nathanyu/trading-oms/internal/registry"
	"github.com/nathanyu/trading-oms/internal/stream"
)

// Handler holds the HTTP handler dependencies.
type Handler struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	feed     *marketdata.Feed
	hub      *stream.Hub
}

// NewHandler creates a new Handler.
func NewHandler(reg *registry.Registry, led *ledger.Ledger, feed *marketdata.Feed, hub *stream.Hub) *Handler {
	return &Handler{
		registry: reg,
		ledger:   led,
		feed:     feed,
		hub:      hub,
	}
}

// RegisterRoutes sets up the Gin routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/order", h.SubmitOrder)
		v1.DELETE("/order/:id", h.CancelOrder)
		v1.PATCH("/order/:id", h.AmendOrder)
		v1.GET("/order/:id", h.GetOrder)
		v1.GET("/orders", h.GetOrdersBySymbol)
		v1.GET("/orders/working", h.GetWorkingOrders)
		v1.GET("/orders/history", h.GetOrderHistory)
		v1.GET("/execution", h.GetExecutions)
		v1.GET("/stats/notional", h.GetFilledNotional)
		v1.GET("/stats/commissions", h.GetCommissions)
		v1.GET("/marketdata/quotes", h.GetQuotes)
		v1.GET("/marketdata/quotes/:symbol", h.GetQuote)
		v1.GET("/stream", h.Stream)
	}
}

// Health returns a health check response.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "trading-oms",
	})
}

// SubmitOrder handles POST /v1/order. Validation failures are surfaced
// synchronously; no order is created for them.
func (h *Handler) SubmitOrder(c *gin.Context) {
	var req domain.NewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.registry.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// CancelOrder handles DELETE /v1/order/:id. A 202 means the request was
// accepted, not that the order is cancelled; fills may still win the race.
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")

	if !h.registry.Cancel(orderID) {
		c.JSON(http.StatusConflict, gin.H{"accepted": false})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// AmendOrder handles PATCH /v1/order/:id.
func (h *Handler) AmendOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req domain.AmendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.registry.Amend(orderID, req) {
		c.JSON(http.StatusConflict, gin.H{"amended": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"amended": true})
}

// GetOrder handles GET /v1/order/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	order := h.registry.GetOrder(c.Param("id"))
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrdersBySymbol handles GET /v1/orders?symbol=.
func (h *Handler) GetOrdersBySymbol(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	c.JSON(http.StatusOK, h.registry.GetOrdersBySymbol(symbol))
}

// GetWorkingOrders handles GET /v1/orders/working.
func (h *Handler) GetWorkingOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetWorkingOrders())
}

// GetOrderHistory handles GET /v1/orders/history.
func (h *Handler) GetOrderHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetOrderHistory())
}

// GetExecutions handles GET /v1/execution.
func (h *Handler) GetExecutions(c *gin.Context) {
	var filter ledger.Filter

	if side := c.Query("side"); side != "" {
		if side != string(domain.SideBuy) && side != string(domain.SideSell) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side must be BUY or SELL"})
			return
		}
		filter.Side = domain.Side(side)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		filter.Offset = offset
	}

	c.JSON(http.StatusOK, h.ledger.Executions(filter))
}

// GetFilledNotional handles GET /v1/stats/notional. Without a window
// parameter the total covers the whole ledger.
func (h *Handler) GetFilledNotional(c *gin.Context) {
	var window time.Duration
	if windowStr := c.Query("window"); windowStr != "" {
		parsed, err := time.ParseDuration(windowStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window, use a duration like 24h"})
			return
		}
		window = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"notional": h.ledger.TotalFilledNotional(window),
	})
}

// GetCommissions handles GET /v1/stats/commissions.
func (h *Handler) GetCommissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"commissions": h.ledger.TotalCommissions(),
	})
}

// GetQuotes handles GET /v1/marketdata/quotes.
func (h *Handler) GetQuotes(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Quotes())
}

// GetQuote handles GET /v1/marketdata/quotes/:symbol.
func (h *Handler) GetQuote(c *gin.Context) {
	quote := h.feed.Quote(c.Param("symbol"))
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// Stream handles GET /v1/stream, upgrading to a websocket that pushes order,
// execution and quote events.
func (h *Handler) Stream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
