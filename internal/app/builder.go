package app

import (
	"context"
	"fmt"
	"strings"

	"algotrade/internal/bus"
	"algotrade/internal/config"
	"algotrade/internal/engine"
	"algotrade/internal/gateway"
	"algotrade/internal/gateway/paper"
	"algotrade/internal/pkg/circuit"
	"algotrade/internal/risk"
	"algotrade/internal/store"
	"algotrade/internal/strategy"
	livehttp "algotrade/internal/transport/http/live"
)

// Runner 是随应用生命周期运行的后台任务，例如行情源。
type Runner interface {
	Run(ctx context.Context) error
}

// GatewayBundle 是网关工厂的产出：交易接口加可选的行情源。
type GatewayBundle struct {
	API  gateway.API
	Feed Runner
}

type AppBuilder struct {
	cfg     *config.Config
	cfgPath string

	gatewayFn func(config.GatewayConfig) (GatewayBundle, error)
	storeFn   func(config.StoreConfig) (*store.Store, error)
	httpFn    func(config.AppConfig, livehttp.Engine, livehttp.History, *livehttp.Broadcaster) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath 开启风控配置热更新。
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = strings.TrimSpace(path) }
}

// WithGatewayFactory 替换网关构造，测试时注入。
func WithGatewayFactory(fn func(config.GatewayConfig) (GatewayBundle, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.gatewayFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		gatewayFn: buildGateway,
		storeFn:   buildStore,
		httpFn:    buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	policy, err := bus.ParseClosePolicy(cfg.Engine.ClosePolicy)
	if err != nil {
		return nil, err
	}
	gw, err := b.gatewayFn(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	app := &App{cfg: cfg, cfgPath: b.cfgPath, feed: gw.Feed}
	var opts []engine.Option
	if strings.TrimSpace(cfg.Store.Path) != "" {
		st, err := b.storeFn(cfg.Store)
		if err != nil {
			_ = gw.API.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		app.store = st
		app.recorder = store.NewRecorder(st, cfg.Store.BatchSize, cfg.Store.FlushInterval())
		opts = append(opts, engine.WithRecorder(app.recorder))
	}

	app.risk = risk.NewLimitManager(limitsFromConfig(cfg.Risk))
	eng, err := engine.New(engine.Config{
		Gateway: gw.API,
		Risk:    app.risk,
		Breaker: circuit.New("gateway:"+cfg.Gateway.Kind, cfg.Engine.BreakerFailures, cfg.Engine.BreakerCooldown()),
		Login: gateway.LoginParams{
			Broker:  cfg.Gateway.Broker,
			Account: cfg.Gateway.Account,
			Tickers: cfg.Gateway.Tickers,
		},
		SlowEventThreshold: cfg.Engine.SlowEventThreshold(),
		QueueWarnDepth:     cfg.Engine.QueueWarnDepth,
		ClosePolicy:        policy,
		TickCapacity:       cfg.Engine.TickCapacity,
		CandlePeriod:       cfg.Engine.CandlePeriod(),
		CandleCapacity:     cfg.Engine.CandleCapacity,
	}, opts...)
	if err != nil {
		_ = gw.API.Close()
		app.closeStore()
		return nil, err
	}
	app.engine = eng

	var names []string
	if cfg.Strategy.Enabled {
		for _, ticker := range cfg.Gateway.Tickers {
			s := strategy.NewCrossover(eng, ticker, cfg.Strategy.Fast, cfg.Strategy.Slow, cfg.Strategy.Volume)
			if err := eng.MountStrategy(ticker, s); err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("mount %s: %w", s.Name(), err)
			}
			names = append(names, s.Name())
		}
	}

	var history livehttp.History
	if app.store != nil {
		history = app.store
	}
	// 推送流以策略身份挂到每个合约上
	var stream *livehttp.Broadcaster
	if strings.TrimSpace(cfg.App.HTTPAddr) != "" {
		stream = livehttp.NewBroadcaster()
		for _, ticker := range cfg.Gateway.Tickers {
			if err := eng.MountStrategy(ticker, stream); err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("mount %s: %w", stream.Name(), err)
			}
		}
		names = append(names, stream.Name())
	}
	if app.http, err = b.httpFn(cfg.App, eng, history, stream); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Summary = newStartupSummary(cfg, names)
	return app, nil
}

// buildGateway 按 gateway.kind 构造网关。
func buildGateway(cfg config.GatewayConfig) (GatewayBundle, error) {
	switch cfg.Kind {
	case "paper":
		g := paper.New(paper.Config{
			Account:         cfg.Account,
			InitialBalance:  cfg.InitialBalance,
			FillLatency:     cfg.FillLatency(),
			OrdersPerSecond: cfg.OrdersPerSecond,
		})
		feed := &paper.Feed{
			Gateway:    g,
			Tickers:    cfg.Tickers,
			StartPrice: cfg.StartPrice,
			Interval:   cfg.TickInterval(),
		}
		return GatewayBundle{API: g, Feed: feed}, nil
	default:
		return GatewayBundle{}, fmt.Errorf("unsupported gateway kind %q", cfg.Kind)
	}
}

func buildStore(cfg config.StoreConfig) (*store.Store, error) {
	return store.Open(cfg.Path)
}

func buildHTTPServer(cfg config.AppConfig, eng livehttp.Engine, history livehttp.History, stream *livehttp.Broadcaster) (*livehttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil
	}
	return livehttp.NewServer(livehttp.ServerConfig{Addr: cfg.HTTPAddr, Engine: eng, History: history, Stream: stream})
}

func limitsFromConfig(r config.RiskConfig) risk.Limits {
	return risk.Limits{
		KillSwitch:        r.KillSwitch,
		MaxOrderVolume:    r.MaxOrderVolume,
		MaxPositionVolume: r.MaxPositionVolume,
		MaxOpenOrders:     r.MaxOpenOrders,
		MaxOrderNotional:  r.MaxOrderNotional,
		OrdersPerSecond:   r.OrdersPerSecond,
		OrderBurst:        r.OrderBurst,
	}
}
