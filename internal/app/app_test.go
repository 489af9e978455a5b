package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"algotrade/internal/config"
	"algotrade/internal/gateway/paper"
	"algotrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:    config.AppConfig{Env: "test", LogLevel: "debug"},
		Engine: config.EngineConfig{ClosePolicy: "drain", TickCapacity: 100, CandleInterval: "1m", CandleCapacity: 50},
		Risk:   config.RiskConfig{MaxOrderVolume: 3},
		Gateway: config.GatewayConfig{
			Kind:           "paper",
			Account:        "acc",
			Tickers:        []string{"X", "Y"},
			InitialBalance: 1000,
		},
		Store:    config.StoreConfig{Path: filepath.Join(t.TempDir(), "history.db"), BatchSize: 1, FlushIntervalMs: 10},
		Strategy: config.StrategyConfig{Enabled: true, Fast: 2, Slow: 3, Volume: 1},
	}
}

func TestBuildAndRun(t *testing.T) {
	cfg := testConfig(t)
	var gw *paper.Gateway
	app, err := NewAppBuilder(cfg, WithGatewayFactory(func(gc config.GatewayConfig) (GatewayBundle, error) {
		gw = paper.New(paper.Config{Account: gc.Account, InitialBalance: gc.InitialBalance})
		return GatewayBundle{API: gw}, nil
	})).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app.Summary)
	assert.Contains(t, app.Summary.String(), "crossover:X")
	assert.Nil(t, app.http)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	eng := app.Engine()
	require.Eventually(t, eng.IsPositionSynced, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"X", "Y"}, eng.MountedTickers())

	gw.PublishTick(types.Tick{Ticker: "X", Time: time.Now(), LastPrice: 10})
	id, err := eng.BuyOpen("X", 5, types.OrderTypeMarket, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		o, _ := eng.Order(id)
		return o.Status == types.OrderStatusFilled
	}, 3*time.Second, 5*time.Millisecond)
	o, _ := eng.Order(id)
	assert.Equal(t, 3, o.Volume)

	require.Eventually(t, func() bool {
		orders, err := app.store.RecentOrders(context.Background(), "X", 0)
		return err == nil && len(orders) == 1
	}, 3*time.Second, 10*time.Millisecond)

	app.applyConfig(&config.Config{Risk: config.RiskConfig{KillSwitch: true}})
	assert.True(t, app.risk.Limits().KillSwitch)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	_, err = eng.BuyOpen("X", 1, types.OrderTypeMarket, 0)
	assert.Error(t, err)
}

func TestBuildRejectsUnknownGateway(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Kind = "ctp"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	assert.ErrorContains(t, err, "unsupported gateway kind")

	_, err = NewAppBuilder(nil).Build(context.Background())
	assert.Error(t, err)
}

func TestLimitsFromConfig(t *testing.T) {
	l := limitsFromConfig(config.RiskConfig{MaxOpenOrders: 4, OrdersPerSecond: 2, OrderBurst: 3, MaxOrderNotional: 1e5})
	assert.Equal(t, 4, l.MaxOpenOrders)
	assert.Equal(t, 2.0, l.OrdersPerSecond)
	assert.Equal(t, 3, l.OrderBurst)
	assert.Equal(t, 1e5, l.MaxOrderNotional)
}

func TestRunHotReloadsRiskAndStopsWatcher(t *testing.T) {
	cfg := testConfig(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gateway:\n  tickers: [X]\nrisk:\n  max_order_volume: 3\n"), 0o644))

	app, err := NewAppBuilder(cfg, WithConfigPath(cfgPath), WithGatewayFactory(func(gc config.GatewayConfig) (GatewayBundle, error) {
		return GatewayBundle{API: paper.New(paper.Config{Account: gc.Account})}, nil
	})).Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	require.Eventually(t, app.Engine().IsPositionSynced, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(cfgPath, []byte("gateway:\n  tickers: [X]\nrisk:\n  max_order_volume: 3\n  kill_switch: true\n"), 0o644))
	require.Eventually(t, func() bool { return app.risk.Limits().KillSwitch }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	require.NotNil(t, app.watcher)
	assert.NoError(t, app.watcher.Close())
	assert.NoError(t, app.Close())
}
