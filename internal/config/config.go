package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SymbolSeed seeds the quote feed with a starting price for a symbol.
type SymbolSeed struct {
	Symbol string  `yaml:"symbol"`
	Price  float64 `yaml:"price"`
}

// Config holds all service settings. Loaded from YAML, then sensitive or
// deployment-specific values are overridden from the environment.
type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		MetricsPort string `yaml:"metrics_port"`
	} `yaml:"server"`

	Trading struct {
		// Commission rate in basis points applied to every execution.
		CommissionBps int64 `yaml:"commission_bps"`
	} `yaml:"trading"`

	Exchange struct {
		AckLatencyMs     int `yaml:"ack_latency_ms"`
		CancelLatencyMs  int `yaml:"cancel_latency_ms"`
		FillLatencyMinMs int `yaml:"fill_latency_min_ms"`
		FillLatencyMaxMs int `yaml:"fill_latency_max_ms"`
		MaxFillSlices    int `yaml:"max_fill_slices"`
	} `yaml:"exchange"`

	MarketData struct {
		TickIntervalMs int          `yaml:"tick_interval_ms"`
		Symbols        []SymbolSeed `yaml:"symbols"`
	} `yaml:"market_data"`

	Archive struct {
		// SQLite path for the execution archive. Empty disables archiving.
		Path string `yaml:"path"`
	} `yaml:"archive"`

	Telemetry struct {
		ServiceName string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.MetricsPort = "9090"
	cfg.Trading.CommissionBps = 1
	cfg.Exchange.AckLatencyMs = 50
	cfg.Exchange.CancelLatencyMs = 30
	cfg.Exchange.FillLatencyMinMs = 20
	cfg.Exchange.FillLatencyMaxMs = 200
	cfg.Exchange.MaxFillSlices = 3
	cfg.MarketData.TickIntervalMs = 500
	cfg.MarketData.Symbols = []SymbolSeed{
		{Symbol: "AAPL", Price: 172.50},
		{Symbol: "NVDA", Price: 485.00},
		{Symbol: "TSLA", Price: 235.20},
		{Symbol: "MSFT", Price: 375.00},
		{Symbol: "AMZN", Price: 178.50},
		{Symbol: "GOOGL", Price: 141.80},
		{Symbol: "META", Price: 358.20},
		{Symbol: "BTC", Price: 42500.00},
	}
	cfg.Telemetry.ServiceName = "trading-oms"
	return cfg
}

// Load reads the YAML config at path (if it exists) on top of the defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("OMS_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Trading.CommissionBps < 0 {
		return fmt.Errorf("commission_bps must be non-negative, got %d", c.Trading.CommissionBps)
	}
	if c.Exchange.MaxFillSlices < 1 {
		return fmt.Errorf("max_fill_slices must be at least 1, got %d", c.Exchange.MaxFillSlices)
	}
	if c.Exchange.FillLatencyMaxMs < c.Exchange.FillLatencyMinMs {
		return fmt.Errorf("fill_latency_max_ms %d is below fill_latency_min_ms %d",
			c.Exchange.FillLatencyMaxMs, c.Exchange.FillLatencyMinMs)
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("market_data.symbols must not be empty")
	}
	return nil
}

// AckLatency returns the exchange acknowledgment latency.
func (c *Config) AckLatency() time.Duration {
	return time.Duration(c.Exchange.AckLatencyMs) * time.Millisecond
}

// CancelLatency returns the cancel confirmation latency.
func (c *Config) CancelLatency() time.Duration {
	return time.Duration(c.Exchange.CancelLatencyMs) * time.Millisecond
}

// TickInterval returns the quote feed tick interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.MarketData.TickIntervalMs) * time.Millisecond
}
