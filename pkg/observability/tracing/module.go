// Package tracing wires the OpenTelemetry TracerProvider the Session
// Manager uses to span WithTransaction calls.
package tracing

import (
	"context"

	appconfig "github.com/Sokol111/mongosession/pkg/core/config"
	"github.com/Sokol111/mongosession/pkg/core/health"
	otelconfig "github.com/Sokol111/mongosession/pkg/observability/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type providerParams struct {
	fx.In
	Lc        fx.Lifecycle
	Log       *zap.Logger
	Cfg       otelconfig.Config
	AppCfg    appconfig.AppConfig
	Readiness health.ComponentManager
}

// NewModule returns an fx.Option providing trace.TracerProvider. When
// tracing is disabled it returns a no-op provider so every consumer can
// depend on trace.TracerProvider unconditionally.
func NewModule() fx.Option {
	return fx.Provide(
		func(p providerParams) (trace.TracerProvider, error) {
			if !p.Cfg.Tracing.Enabled {
				p.Log.Info("tracing: disabled")
				return tracenoop.NewTracerProvider(), nil
			}
			return provideTracerProvider(p)
		},
	)
}

func provideTracerProvider(p providerParams) (trace.TracerProvider, error) {
	tp, err := newTracerProvider(context.Background(), p.Log, p.Cfg, p.AppCfg)
	if err != nil {
		return nil, err
	}

	markReady := p.Readiness.AddComponent(otelconfig.TracingComponentName)

	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			otel.SetTracerProvider(tp)
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))
			p.Log.Info("tracing initialized", zap.String("endpoint", p.Cfg.OtelCollectorEndpoint))
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, otelconfig.DefaultShutdownTimeout)
			defer cancel()
			return tp.Shutdown(shutdownCtx)
		},
	})

	return tp, nil
}
