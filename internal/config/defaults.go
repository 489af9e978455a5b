package config

import "strings"

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9991"
	defaultSlowEventMs    = 100
	defaultQueueWarnDepth = 10000
	defaultClosePolicy    = "drain"
	defaultResyncSeconds  = 0
	defaultTickCapacity   = 1000
	defaultCandleInterval = "1m"
	defaultCandleCapacity = 500
	defaultGatewayKind    = "paper"
	defaultGatewayAccount = "paper-001"
	defaultInitialBalance = 1_000_000
	defaultStartPrice     = 100
	defaultTickIntervalMs = 500
	defaultOrderBurst     = 1
	defaultStoreBatchSize = 64
	defaultStoreFlushMs   = 1000
	defaultBreakerCoolMs  = 5000
	defaultStrategyFast   = 5
	defaultStrategySlow   = 20
	defaultStrategyVolume = 1
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Gateway.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("engine.slow_event_ms", &e.SlowEventMs, defaultSlowEventMs),
		intFieldDefault("engine.queue_warn_depth", &e.QueueWarnDepth, defaultQueueWarnDepth),
		stringFieldDefault("engine.close_policy", &e.ClosePolicy, defaultClosePolicy),
		intFieldDefault("engine.resync_interval_seconds", &e.ResyncIntervalSeconds, defaultResyncSeconds),
		intFieldDefault("engine.tick_capacity", &e.TickCapacity, defaultTickCapacity),
		stringFieldDefault("engine.candle_interval", &e.CandleInterval, defaultCandleInterval),
		intFieldDefault("engine.candle_capacity", &e.CandleCapacity, defaultCandleCapacity),
		intFieldDefault("engine.breaker_cooldown_ms", &e.BreakerCooldownMs, defaultBreakerCoolMs),
	)
	e.ClosePolicy = strings.ToLower(strings.TrimSpace(e.ClosePolicy))
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("risk.order_burst", &r.OrderBurst, defaultOrderBurst),
	)
}

func (g *GatewayConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("gateway.kind", &g.Kind, defaultGatewayKind),
		stringFieldDefault("gateway.account", &g.Account, defaultGatewayAccount),
		fieldDefault{
			key:   "gateway.initial_balance",
			need:  func() bool { return g.InitialBalance <= 0 },
			apply: func() { g.InitialBalance = defaultInitialBalance },
		},
		fieldDefault{
			key:   "gateway.start_price",
			need:  func() bool { return g.StartPrice <= 0 },
			apply: func() { g.StartPrice = defaultStartPrice },
		},
		intFieldDefault("gateway.tick_interval_ms", &g.TickIntervalMs, defaultTickIntervalMs),
	)
	g.Kind = strings.ToLower(strings.TrimSpace(g.Kind))
	g.Tickers = normalizeTickers(g.Tickers)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("store.batch_size", &s.BatchSize, defaultStoreBatchSize),
		intFieldDefault("store.flush_interval_ms", &s.FlushIntervalMs, defaultStoreFlushMs),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("strategy.fast", &s.Fast, defaultStrategyFast),
		intFieldDefault("strategy.slow", &s.Slow, defaultStrategySlow),
		intFieldDefault("strategy.volume", &s.Volume, defaultStrategyVolume),
	)
}

// Helper functions

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeTickers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
