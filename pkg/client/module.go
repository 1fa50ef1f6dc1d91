package client

import (
	"context"
	"fmt"

	"github.com/Sokol111/mongosession/pkg/core/health"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewModule provides a connected *Client for dependency injection via an
// fx.Lifecycle connect/disconnect hook.
func NewModule() fx.Option {
	return fx.Provide(
		provideConfig,
		provideClient,
	)
}

func provideConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("mongo"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("client: load mongo config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func provideClient(lc fx.Lifecycle, log *zap.Logger, conf Config, readiness health.ComponentManager) (*Client, error) {
	c, err := New(log, conf)
	if err != nil {
		return nil, err
	}

	markReady := readiness.AddComponent("mongo-client")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := c.Connect(ctx); err != nil {
				return err
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return c.Disconnect(ctx)
		},
	})

	return c, nil
}
