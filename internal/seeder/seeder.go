// Package seeder builds demo order fixtures and replays them through the
// order store.
package seeder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
	orderstore "github.com/Additional-Code/upfit/internal/store/order"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

// Seeder loads demo orders for local and dev setups.
type Seeder struct {
	store  *orderstore.Store
	count  int
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder writing through the order store.
func New(store *orderstore.Store, cfg config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{store: store, count: cfg.Jobs.SeedOrderCount, logger: logger, now: time.Now}
}

// Orders seeds the configured number of demo orders unless orders exist.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	existing, err := s.store.List(ctx, repository.Filter{})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		s.logger.Info("orders already present; skipping seed", zap.Int("existing", len(existing)))
		return 0, nil
	}
	return s.Seed(ctx, s.count)
}

// Seed replays n fixtures oldest first, so stock sequences follow creation
// order and every status change leaves an event.
func (s *Seeder) Seed(ctx context.Context, n int) (int, error) {
	fleet := BuildFleet(n, s.now())
	for i := len(fleet) - 1; i >= 0; i-- {
		if err := s.replay(ctx, fleet[i]); err != nil {
			return len(fleet) - 1 - i, fmt.Errorf("seed fixture %d: %w", i, err)
		}
	}
	s.logger.Info("seeded orders", zap.Int("count", len(fleet)))
	return len(fleet), nil
}

func (s *Seeder) replay(ctx context.Context, f Fixture) error {
	at := f.Input.CreatedAt
	st := s.store.WithClock(func() time.Time { return at })

	o, err := st.Create(ctx, f.Input)
	if err != nil {
		return err
	}

	for _, next := range lifecycle.Flow()[1 : f.Status.Index()+1] {
		at = at.Add(day)
		if _, _, err := st.Transition(ctx, o.ID, next); err != nil {
			return err
		}
	}

	if f.DeliveryEta != nil {
		if _, err := st.UpdateETAs(ctx, o.ID, lifecycle.ETAs{Delivery: f.DeliveryEta}); err != nil {
			return err
		}
	}
	if f.Inventory != o.InventoryStatus {
		if _, err := st.SetInventoryStatus(ctx, o.ID, f.Inventory, f.BuyerName); err != nil {
			return err
		}
	}
	if f.Website != o.DealerWebsiteStatus {
		if _, err := st.SetDealerWebsiteStatus(ctx, o.ID, f.Website); err != nil {
			return err
		}
	}
	return nil
}
