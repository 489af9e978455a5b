package config

import "time"

// Config 是 algotrade 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Engine   EngineConfig   `toml:"engine"`
	Risk     RiskConfig     `toml:"risk"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Store    StoreConfig    `toml:"store"`
	Strategy StrategyConfig `toml:"strategy"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// EngineConfig 控制事件分发与行情缓存。
type EngineConfig struct {
	SlowEventMs           int    `toml:"slow_event_ms"`
	QueueWarnDepth        int    `toml:"queue_warn_depth"`
	ClosePolicy           string `toml:"close_policy"` // "drain" | "discard"
	ResyncIntervalSeconds int    `toml:"resync_interval_seconds"`
	TickCapacity          int    `toml:"tick_capacity"`
	CandleInterval        string `toml:"candle_interval"`
	CandleCapacity        int    `toml:"candle_capacity"`
	BreakerFailures       int    `toml:"breaker_failures"` // 0 关闭熔断
	BreakerCooldownMs     int    `toml:"breaker_cooldown_ms"`
}

func (e EngineConfig) SlowEventThreshold() time.Duration {
	return time.Duration(e.SlowEventMs) * time.Millisecond
}

func (e EngineConfig) ResyncInterval() time.Duration {
	return time.Duration(e.ResyncIntervalSeconds) * time.Second
}

func (e EngineConfig) BreakerCooldown() time.Duration {
	return time.Duration(e.BreakerCooldownMs) * time.Millisecond
}

// CandlePeriod 解析 candle_interval，非法值在 validate 阶段已被拦截。
func (e EngineConfig) CandlePeriod() time.Duration {
	d, err := time.ParseDuration(e.CandleInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// RiskConfig 描述默认风控规则，0 表示不限制。支持热更新。
type RiskConfig struct {
	KillSwitch        bool    `toml:"kill_switch"`
	MaxOrderVolume    int     `toml:"max_order_volume"`
	MaxPositionVolume int     `toml:"max_position_volume"`
	MaxOpenOrders     int     `toml:"max_open_orders"`
	MaxOrderNotional  float64 `toml:"max_order_notional"`
	OrdersPerSecond   float64 `toml:"orders_per_second"`
	OrderBurst        int     `toml:"order_burst"`
}

// GatewayConfig 描述交易网关。目前仅内置 paper 模拟网关。
type GatewayConfig struct {
	Kind            string   `toml:"kind"`
	Broker          string   `toml:"broker"`
	Account         string   `toml:"account"`
	Tickers         []string `toml:"tickers"`
	InitialBalance  float64  `toml:"initial_balance"`
	FillLatencyMs   int      `toml:"fill_latency_ms"`
	OrdersPerSecond float64  `toml:"orders_per_second"`
	StartPrice      float64  `toml:"start_price"`
	TickIntervalMs  int      `toml:"tick_interval_ms"`
}

func (g GatewayConfig) FillLatency() time.Duration {
	return time.Duration(g.FillLatencyMs) * time.Millisecond
}

func (g GatewayConfig) TickInterval() time.Duration {
	return time.Duration(g.TickIntervalMs) * time.Millisecond
}

// StoreConfig 配置历史成交/订单落库，path 为空时关闭。
type StoreConfig struct {
	Path            string `toml:"path"`
	BatchSize       int    `toml:"batch_size"`
	FlushIntervalMs int    `toml:"flush_interval_ms"`
}

func (s StoreConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalMs) * time.Millisecond
}

// StrategyConfig 为每个 gateway.tickers 挂载一个均线交叉策略。
type StrategyConfig struct {
	Enabled bool `toml:"enabled"`
	Fast    int  `toml:"fast"`
	Slow    int  `toml:"slow"`
	Volume  int  `toml:"volume"`
}
