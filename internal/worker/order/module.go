package order

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/upfit/worker/order")

// Module registers order-related worker handlers and scheduled jobs.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewCacheInvalidationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewCustomerNotificationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewETASweepJob,
			fx.ResultTags(`group:"worker.jobs"`),
		),
	),
)
