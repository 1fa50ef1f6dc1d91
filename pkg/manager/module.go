package manager

import (
	"context"
	"fmt"

	mongoclient "github.com/Sokol111/mongosession/pkg/client"
	"github.com/Sokol111/mongosession/pkg/core/health"
	"github.com/Sokol111/mongosession/pkg/session"
	"github.com/Sokol111/mongosession/pkg/topology"
	"github.com/Sokol111/mongosession/pkg/wire"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewModule provides a ready-to-use *Manager backed by a real
// mongo-driver-backed topology.Pool, with a connect-then-mark-ready
// lifecycle hook.
func NewModule() fx.Option {
	return fx.Options(
		mongoclient.NewModule(),
		fx.Provide(
			provideConfig,
			provideDriver,
			providePool,
			provideManager,
		),
	)
}

func provideConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("session"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("manager: load session config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func provideDriver(c *mongoclient.Client) *wire.Driver {
	return wire.NewDriver(c.Raw())
}

func providePool(lc fx.Lifecycle, c *mongoclient.Client, driver *wire.Driver, cfg Config, log *zap.Logger, readiness health.ComponentManager) (*topology.Pool, error) {
	connProvide := func(_ context.Context) (session.Connection, error) {
		return wire.NewConnection(uuid.NewString(), c.Raw()), nil
	}

	pool := topology.NewPool(connProvide, driver, cfg.CheckoutLimit, cfg.CheckoutTimeout, log)

	markReady := readiness.AddComponent("topology-pool")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			wireVersion, err := c.HelloWireVersion(ctx)
			if err != nil {
				return fmt.Errorf("manager: resolve wire version: %w", err)
			}
			pool.SetWireVersion(wireVersion)
			markReady()
			return nil
		},
	})

	return pool, nil
}

func provideManager(pool *topology.Pool, cfg Config, log *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider) (*Manager, error) {
	return New(pool, log, tp, mp, cfg.MaxCheckoutRetries)
}
