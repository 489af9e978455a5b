package app

import (
	"context"

	"algotrade/internal/config"
)

// ConfigPath 是主配置文件路径，为空时不监听热更新。
type ConfigPath string

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config, path ConfigPath) *AppBuilder {
	return NewAppBuilder(cfg, WithConfigPath(string(path)))
}
