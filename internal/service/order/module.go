package order

import "go.uber.org/fx"

// Module provides the order lifecycle façade to Fx.
var Module = fx.Provide(NewService)
