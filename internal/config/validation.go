package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Gateway.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	return nil
}

func (e *EngineConfig) validate() error {
	switch e.ClosePolicy {
	case "drain", "discard":
	default:
		return fmt.Errorf("engine.close_policy must be drain or discard, got %q", e.ClosePolicy)
	}
	if e.BreakerFailures < 0 {
		return fmt.Errorf("engine.breaker_failures must be >= 0")
	}
	if e.ResyncIntervalSeconds < 0 {
		return fmt.Errorf("engine.resync_interval_seconds must be >= 0")
	}
	d, err := time.ParseDuration(e.CandleInterval)
	if err != nil {
		return fmt.Errorf("engine.candle_interval invalid: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("engine.candle_interval must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxOrderVolume < 0 {
		return fmt.Errorf("risk.max_order_volume must be >= 0")
	}
	if r.MaxPositionVolume < 0 {
		return fmt.Errorf("risk.max_position_volume must be >= 0")
	}
	if r.MaxOpenOrders < 0 {
		return fmt.Errorf("risk.max_open_orders must be >= 0")
	}
	if r.MaxOrderNotional < 0 {
		return fmt.Errorf("risk.max_order_notional must be >= 0")
	}
	if r.OrdersPerSecond < 0 {
		return fmt.Errorf("risk.orders_per_second must be >= 0")
	}
	return nil
}

func (g *GatewayConfig) validate() error {
	if g.Kind != "paper" {
		return fmt.Errorf("gateway.kind %q not supported", g.Kind)
	}
	if len(g.Tickers) == 0 {
		return fmt.Errorf("gateway.tickers requires at least one ticker")
	}
	if g.FillLatencyMs < 0 {
		return fmt.Errorf("gateway.fill_latency_ms must be >= 0")
	}
	if g.OrdersPerSecond < 0 {
		return fmt.Errorf("gateway.orders_per_second must be >= 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return nil
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("store.batch_size must be > 0")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Fast >= s.Slow {
		return fmt.Errorf("strategy.fast (%d) must be below strategy.slow (%d)", s.Fast, s.Slow)
	}
	return nil
}
