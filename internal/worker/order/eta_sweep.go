package order

import (
	"context"

	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	ordersvc "github.com/Additional-Code/upfit/internal/service/order"
	"github.com/Additional-Code/upfit/internal/worker"
)

// ETASweepJobName names the scheduled ETA sweep.
const ETASweepJobName = "orders.eta_sweep"

type etaSweeper interface {
	SweepETAs(ctx context.Context) ([]string, error)
}

// NewETASweepJob schedules the sweep that pulls past-due OEM dates of early
// orders forward.
func NewETASweepJob(svc *ordersvc.Service, cfg config.Config, logger *zap.Logger) worker.JobRegistration {
	return newETASweepJob(svc, cfg.Jobs.ETASweepSchedule, logger)
}

func newETASweepJob(svc etaSweeper, schedule string, logger *zap.Logger) worker.JobRegistration {
	return worker.JobRegistration{
		Name:     ETASweepJobName,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			ctx, span := workerTracer.Start(ctx, "worker.orders.eta_sweep")
			defer span.End()

			ids, err := svc.SweepETAs(ctx)
			if err != nil {
				span.RecordError(err)
				return err
			}
			if len(ids) > 0 {
				logger.Info("eta sweep corrected orders", zap.Int("count", len(ids)), zap.Strings("order_ids", ids))
			}
			return nil
		},
	}
}
