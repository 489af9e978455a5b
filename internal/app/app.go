package app

import (
	"context"
	"errors"
	"fmt"

	"algotrade/internal/config"
	"algotrade/internal/engine"
	"algotrade/internal/logger"
	"algotrade/internal/risk"
	"algotrade/internal/store"
	livehttp "algotrade/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：登录网关、启动行情源、HTTP 与定时对账，退出时按序释放资源。
type App struct {
	cfg     *config.Config
	cfgPath string

	engine   *engine.Engine
	risk     *risk.LimitManager
	feed     Runner
	http     *livehttp.Server
	store    *store.Store
	recorder *store.Recorder
	watcher  *config.Watcher

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。cfgPath 非空时监听文件热更新风控参数。
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, ConfigPath(cfgPath))
}

// Run 登录后运行所有后台任务，直到 ctx 取消或任一任务失败。返回前关闭应用。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}
	if err := a.engine.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if a.cfgPath != "" {
		w, err := config.Watch(a.cfgPath, a.applyConfig)
		if err != nil {
			logger.Warnf("config watch disabled: %v", err)
		} else {
			a.watcher = w
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.feed != nil {
		group.Go(func() error { return a.feed.Run(ctx) })
	}
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.RunResync(ctx, a.cfg.Engine.ResyncInterval())
	})
	// 保持运行直到退出信号或任一任务失败
	group.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return group.Wait()
}

// applyConfig 仅热更新风控参数，其余配置需重启生效。
func (a *App) applyConfig(cfg *config.Config) {
	a.risk.UpdateLimits(limitsFromConfig(cfg.Risk))
	logger.Infof("risk limits updated: kill_switch=%v max_order_volume=%d", cfg.Risk.KillSwitch, cfg.Risk.MaxOrderVolume)
}

// Engine exposes the running engine (for tests and embedding).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Close 先停配置监听，再关引擎（网关、事件总线），最后关历史记录。可重复调用。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	errs = append(errs, a.closeStore())
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
