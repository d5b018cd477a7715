package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/database"
	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/migration"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) repository.Repository {
	t.Helper()

	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mig, err := migration.NewForDB(db.DB, "sqlite", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return repository.NewBunRepository(&database.Connections{Writer: db, Reader: db})
}

func backends() map[string]func(t *testing.T) repository.Repository {
	return map[string]func(t *testing.T) repository.Repository{
		"memory": func(*testing.T) repository.Repository { return repository.NewMemoryRepository() },
		"sqlite": openSQLite,
	}
}

func newOrder(id string, createdAt time.Time) *entity.Order {
	o := &entity.Order{
		ID:                  id,
		DealerCode:          "CVC101",
		UpfitterID:          "knapheide-detroit",
		Status:              lifecycle.ConfigReceived,
		StockNumber:         "550101" + id[len(id)-3:],
		DealerWebsiteStatus: entity.WebsiteDraft,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
		Pricing: entity.Pricing{
			ChassisMSRP: decimal.NewFromInt(64000),
			BodyPrice:   decimal.NewFromInt(21000),
			Total:       decimal.RequireFromString("85000.50"),
		},
	}
	o.SetBuild(entity.Build{
		BodyType:     "Service Body",
		Manufacturer: "Knapheide",
		Chassis:      entity.Chassis{Series: "F-550", Cab: "Crew Cab", Drivetrain: "4x4", Powertrain: "diesel-6.7L"},
		BodySpecs:    map[string]any{"material": "Steel"},
		Upfitter:     &entity.UpfitterRef{ID: "knapheide-detroit", Name: "Knapheide Detroit"},
	})
	o.SetInventory(entity.InventoryStock, "")
	return o
}

func ids(orders []*entity.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func TestRepository(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("should round trip orders", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				o := newOrder("ORD-000000000001", base)
				require.NoError(t, repo.Create(ctx, o))

				got, err := repo.Get(ctx, o.ID)
				require.NoError(t, err)
				assert.Equal(t, "CVC101", got.DealerCode)
				assert.Equal(t, lifecycle.ConfigReceived, got.Status)
				assert.Nil(t, got.OEMEta)
				assert.True(t, got.IsStock)
				assert.Equal(t, "F-550", got.Build.Chassis.Series)
				assert.Equal(t, "knapheide-detroit", got.Build.Upfitter.ID)
				assert.True(t, got.Pricing.Total.Equal(decimal.RequireFromString("85000.5")))
				assert.True(t, got.CreatedAt.Equal(base))

				oem := base.Add(48 * time.Hour)
				got.OEMEta = &oem
				got.Status = lifecycle.OEMAllocated
				got.VIN = "1FT5504CXSC100000"
				require.NoError(t, repo.Update(ctx, got))

				again, err := repo.Get(ctx, o.ID)
				require.NoError(t, err)
				require.NotNil(t, again.OEMEta)
				assert.True(t, again.OEMEta.Equal(oem))
				assert.Equal(t, lifecycle.OEMAllocated, again.Status)
				assert.Equal(t, "1FT5504CXSC100000", again.VIN)
			})

			t.Run("should report missing orders", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				_, err := repo.Get(ctx, "ORD-404")
				assert.ErrorIs(t, err, repository.ErrNotFound)

				err = repo.Update(ctx, newOrder("ORD-000000000404", base))
				assert.ErrorIs(t, err, repository.ErrNotFound)

				_, err = repo.Lookup(ctx, "")
				assert.ErrorIs(t, err, repository.ErrNotFound)
			})

			t.Run("should look up by id stock number or vin ignoring case", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				o := newOrder("ORD-00000000ABC1", base)
				o.VIN = "1FT5504CXSC100007"
				require.NoError(t, repo.Create(ctx, o))

				for _, key := range []string{"ord-00000000abc1", o.StockNumber, "1ft5504cxsc100007"} {
					got, err := repo.Lookup(ctx, key)
					require.NoError(t, err, key)
					assert.Equal(t, o.ID, got.ID)
				}
			})

			t.Run("should filter newest first", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				a := newOrder("ORD-000000000001", base)
				b := newOrder("ORD-000000000002", base.Add(24*time.Hour))
				b.DealerCode = "CVC102"
				b.UpfitterID = "altec-dallas"
				b.SetInventory(entity.InventorySold, "Acme Logistics LLC")
				c := newOrder("ORD-000000000003", base.Add(48*time.Hour))
				c.Status = lifecycle.OEMAllocated
				c.UpfitterID = ""
				build := c.Build
				build.Manufacturer = "Rugby Manufacturing"
				build.BodyType = "Dump_Body"
				build.Upfitter = &entity.UpfitterRef{ID: "rugby-denver"}
				c.SetBuild(build)
				past := base.Add(-24 * time.Hour)
				c.OEMEta = &past

				for _, o := range []*entity.Order{a, b, c} {
					require.NoError(t, repo.Create(ctx, o))
				}

				yes, no := true, false
				from, to := base.Add(12*time.Hour), base.Add(36*time.Hour)
				testCases := []struct {
					name   string
					filter repository.Filter
					want   []string
				}{
					{"all", repository.Filter{}, []string{c.ID, b.ID, a.ID}},
					{"status", repository.Filter{Status: lifecycle.OEMAllocated}, []string{c.ID}},
					{"statuses", repository.Filter{Statuses: []lifecycle.Status{lifecycle.ConfigReceived}}, []string{b.ID, a.ID}},
					{"dealer", repository.Filter{DealerCode: "CVC102"}, []string{b.ID}},
					{"order level upfitter", repository.Filter{UpfitterID: "altec-dallas"}, []string{b.ID}},
					{"build level upfitter", repository.Filter{UpfitterID: "rugby-denver"}, []string{c.ID}},
					{"stock", repository.Filter{IsStock: &yes}, []string{c.ID, a.ID}},
					{"sold", repository.Filter{IsStock: &no}, []string{b.ID}},
					{"query manufacturer", repository.Filter{Query: "RUGBY"}, []string{c.ID}},
					{"query id", repository.Filter{Query: "000000000002"}, []string{b.ID}},
					{"query body type", repository.Filter{Query: "dump_"}, []string{c.ID}},
					{"query no match", repository.Filter{Query: "ambulance"}, []string{}},
					{"date range", repository.Filter{From: &from, To: &to}, []string{b.ID}},
					{"and composition", repository.Filter{IsStock: &yes, Query: "knapheide"}, []string{a.ID}},
					{"oem before", repository.Filter{OEMEtaBefore: &base}, []string{c.ID}},
				}

				for _, tc := range testCases {
					t.Run(tc.name, func(t *testing.T) {
						got, err := repo.List(ctx, tc.filter)
						require.NoError(t, err)
						assert.Equal(t, tc.want, ids(got))
					})
				}
			})

			t.Run("should cascade deletes idempotently", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				a := newOrder("ORD-000000000001", base)
				b := newOrder("ORD-000000000002", base.Add(time.Hour))
				require.NoError(t, repo.Create(ctx, a))
				require.NoError(t, repo.Create(ctx, b))
				for _, o := range []*entity.Order{a, b} {
					require.NoError(t, repo.AppendEvent(ctx, &entity.OrderEvent{ID: uuid.NewString(), OrderID: o.ID, To: lifecycle.ConfigReceived, At: o.CreatedAt}))
					require.NoError(t, repo.AddNote(ctx, &entity.OrderNote{ID: uuid.NewString(), OrderID: o.ID, Text: "hello", User: "system", At: o.CreatedAt}))
				}

				n, err := repo.Delete(ctx, []string{a.ID, "ORD-UNKNOWN"})
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				events, err := repo.Events(ctx, a.ID)
				require.NoError(t, err)
				assert.Empty(t, events)
				notes, err := repo.Notes(ctx, a.ID)
				require.NoError(t, err)
				assert.Empty(t, notes)

				events, err = repo.Events(ctx, b.ID)
				require.NoError(t, err)
				assert.Len(t, events, 1)

				n, err = repo.Delete(ctx, []string{a.ID})
				require.NoError(t, err)
				assert.Zero(t, n)

				n, err = repo.Delete(ctx, nil)
				require.NoError(t, err)
				assert.Zero(t, n)
			})

			t.Run("should return events oldest first", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				o := newOrder("ORD-000000000001", base)
				require.NoError(t, repo.Create(ctx, o))

				require.NoError(t, repo.AppendEvent(ctx, &entity.OrderEvent{ID: "b", OrderID: o.ID, From: lifecycle.ConfigReceived, To: lifecycle.OEMAllocated, At: base.Add(time.Hour)}))
				require.NoError(t, repo.AppendEvent(ctx, &entity.OrderEvent{ID: "a", OrderID: o.ID, To: lifecycle.ConfigReceived, At: base}))

				events, err := repo.Events(ctx, o.ID)
				require.NoError(t, err)
				require.Len(t, events, 2)
				assert.Equal(t, lifecycle.Status(""), events[0].From)
				assert.Equal(t, lifecycle.OEMAllocated, events[1].To)
			})

			t.Run("should list stock numbers by prefix and refuse duplicates", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				a := newOrder("ORD-000000000001", base)
				b := newOrder("ORD-000000000002", base)
				c := newOrder("ORD-000000000003", base)
				c.StockNumber = "350044003"
				for _, o := range []*entity.Order{a, b, c} {
					require.NoError(t, repo.Create(ctx, o))
				}

				stock, err := repo.StockNumbers(ctx, "550101")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"550101001", "550101002"}, stock)

				none, err := repo.StockNumbers(ctx, "999999")
				require.NoError(t, err)
				assert.Empty(t, none)

				clash := newOrder("ORD-000000000099", base)
				clash.StockNumber = a.StockNumber
				assert.Error(t, repo.Create(ctx, clash))
			})

			t.Run("should hand out sequence values once", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				first, err := repo.NextValue(ctx, "stock_sequence", 100)
				require.NoError(t, err)
				second, err := repo.NextValue(ctx, "stock_sequence", 100)
				require.NoError(t, err)
				other, err := repo.NextValue(ctx, "vin_sequence", 100000)
				require.NoError(t, err)

				assert.Equal(t, int64(100), first)
				assert.Equal(t, int64(101), second)
				assert.Equal(t, int64(100000), other)

				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					seen = map[int64]struct{}{}
				)
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						v, err := repo.NextValue(ctx, "vin_sequence", 100000)
						assert.NoError(t, err)
						mu.Lock()
						seen[v] = struct{}{}
						mu.Unlock()
					}()
				}
				wg.Wait()
				assert.Len(t, seen, 50)
			})

			t.Run("should roll back failed transactions", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				boom := errors.New("abort")

				err := repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
					require.NoError(t, tx.Create(ctx, newOrder("ORD-000000000001", base)))
					_, err := tx.NextValue(ctx, "stock_sequence", 100)
					require.NoError(t, err)
					return boom
				})
				assert.ErrorIs(t, err, boom)

				_, err = repo.Get(ctx, "ORD-000000000001")
				assert.ErrorIs(t, err, repository.ErrNotFound)

				v, err := repo.NextValue(ctx, "stock_sequence", 100)
				require.NoError(t, err)
				assert.Equal(t, int64(100), v)
			})
		})
	}
}
