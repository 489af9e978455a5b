//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package app

import (
	"context"

	"algotrade/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config, path ConfigPath) (*App, error) {
	appBuilder := provideAppBuilder(cfg, path)
	app, err := provideAppFromBuilder(appBuilder, ctx)
	if err != nil {
		return nil, err
	}
	return app, nil
}
