package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal counts registry operations by action.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_orders_total",
			Help: "Total number of order operations by action",
		},
		[]string{"action", "symbol"},
	)

	// FillsTotal counts fills applied per symbol.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_fills_total",
			Help: "Total number of fills applied by symbol",
		},
		[]string{"symbol"},
	)

	// ExecutionsTotal counts ledger executions.
	ExecutionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oms_executions_total",
			Help: "Total number of executions recorded in the ledger",
		},
	)

	// WorkingOrders tracks the current size of the working set.
	WorkingOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_working_orders",
			Help: "Current number of open or partially filled orders",
		},
	)

	// RejectedTransitionsTotal counts silently ignored transition events.
	// These are expected under race, the counter exists for visibility.
	RejectedTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oms_ignored_transitions_total",
			Help: "Total number of transition events ignored as no-ops",
		},
		[]string{"event"},
	)

	// StreamClients tracks connected streaming consumers.
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_stream_clients",
			Help: "Current number of connected websocket stream clients",
		},
	)
)
