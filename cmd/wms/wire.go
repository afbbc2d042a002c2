//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/config"
)

func initApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	wire.Build(
		provideTransport,
		provideStation,
		provideMQTT,
		provideInflux,
		provideMirror,
		newApp,
	)
	return nil, nil, nil // wire will generate the result
}
