package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nathanyu/trading-oms/internal/archive"
	"github.com/nathanyu/trading-oms/internal/config"
	"github.com/nathanyu/trading-oms/internal/exchange"
	"github.com/nathanyu/trading-oms/internal/handler"
	"github.com/nathanyu/trading-oms/internal/ledger"
	"github.com/nathanyu/trading-oms/internal/marketdata"
	"github.com/nathanyu/trading-oms/internal/middleware"
	"github.com/nathanyu/trading-oms/internal/registry"
	"github.com/nathanyu/trading-oms/internal/stream"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

const channelBufferSize = 4096

func main() {
	cfgPath := os.Getenv("OMS_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	telemetry.InitLogger(cfg.Telemetry.ServiceName)
	slog.Info("starting order management service")

	cleanupTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName)
	if err != nil {
		slog.Error("failed to init tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanupTracer()

	// --- Core components ---

	// Streaming hub (order/execution/quote push to UI consumers)
	hub := stream.NewHub()

	// Quote feed (random-walk market data, prices the simulator's fills)
	feed := marketdata.NewFeed(cfg.MarketData.Symbols, cfg.TickInterval(), hub)

	// Execution archive (optional, best-effort)
	var store *archive.Store
	if cfg.Archive.Path != "" {
		store, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			slog.Error("failed to open execution archive", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
	}

	// Execution ledger (commissions, aggregates)
	led := ledger.New(cfg.Trading.CommissionBps, store)

	// Order registry (state machine, working-set projection)
	reg := registry.NewRegistry(led, hub, channelBufferSize)

	// Exchange simulator (async ack / fill / cancel-confirm / reject)
	sim := exchange.NewSimulator(reg, feed, exchange.Options{
		AckLatency:     cfg.AckLatency(),
		CancelLatency:  cfg.CancelLatency(),
		FillLatencyMin: time.Duration(cfg.Exchange.FillLatencyMinMs) * time.Millisecond,
		FillLatencyMax: time.Duration(cfg.Exchange.FillLatencyMaxMs) * time.Millisecond,
		MaxFillSlices:  cfg.Exchange.MaxFillSlices,
	}, channelBufferSize)

	// --- Wire channels ---
	//
	// API Handler → Registry → [RequestOut] → Simulator [RequestIn]
	//                  ↑                           |
	//                  └── ack/fill/reject/cancel ─┘   (async timers)
	//
	// Registry + Feed → Hub → websocket clients

	go func() {
		for req := range reg.RequestOut {
			sim.RequestIn <- req
		}
	}()

	sim.Start()
	feed.Start()

	// --- HTTP Server ---
	r := gin.Default()
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.Tracing())

	h := handler.NewHandler(reg, led, feed, hub)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.Server.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		slog.Info("metrics server listening", slog.String("port", cfg.Server.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	go func() {
		slog.Info("http server listening", slog.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed.Stop()
	sim.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", slog.Any("error", err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown error", slog.Any("error", err))
	}

	slog.Info("order management service stopped")
}
