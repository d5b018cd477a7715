package order

import "go.uber.org/fx"

// Module provides the order handler and mounts its routes under /orders.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
