package health

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewModule provides the readiness tracker under each of its role
// interfaces, so callers depend only on the facet they need.
func NewModule() fx.Option {
	return fx.Provide(
		func(log *zap.Logger) *readiness { return newReadiness(log) },
		func(r *readiness) ComponentManager { return r },
		func(r *readiness) ReadinessChecker { return r },
		func(r *readiness) ReadinessWaiter { return r },
	)
}
