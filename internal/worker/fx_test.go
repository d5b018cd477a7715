package worker_test

import (
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/messaging"
	"github.com/Additional-Code/upfit/internal/worker"
)

func newEngineApp(t *testing.T, client messaging.Client, reg worker.HandlerRegistration) *fxtest.App {
	t.Helper()
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(workerConfig()),
		fx.Provide(
			zap.NewNop,
			func() messaging.Client { return client },
			fx.Annotate(
				func() worker.HandlerRegistration { return reg },
				fx.ResultTags(`group:"worker.handlers"`),
			),
		),
		worker.Module,
	)
	app.RequireStart()
	return app
}

