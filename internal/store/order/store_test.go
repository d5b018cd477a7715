package order_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/database"
	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/migration"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
	store "github.com/Additional-Code/upfit/internal/store/order"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var june = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T, repo repository.Repository, c *clock) *store.Store {
	t.Helper()
	s, err := store.New(repo, store.Options{Now: c.Now, Logger: zap.NewNop()})
	require.NoError(t, err)
	return s
}

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

func validInput() store.CreateInput {
	return store.CreateInput{
		DealerCode: "CVC101",
		Build: entity.Build{
			BodyType:     "Service Body",
			Manufacturer: "Knapheide",
			Chassis:      entity.Chassis{Series: "F-550", Cab: "Crew Cab", Drivetrain: "4x4", Powertrain: "diesel-6.7L"},
			Upfitter:     &entity.UpfitterRef{ID: "knapheide-detroit", Name: "Knapheide Detroit"},
		},
		Pricing: entity.Pricing{
			ChassisMSRP:  decimal.NewFromInt(64000),
			BodyPrice:    decimal.NewFromInt(21000),
			OptionsPrice: decimal.NewFromInt(2500),
			Labor:        decimal.NewFromInt(3800),
			Freight:      decimal.NewFromInt(1500),
		},
	}
}

func appKind(t *testing.T, err error) errorbank.Kind {
	t.Helper()
	require.Error(t, err)
	appErr := errorbank.From(err)
	require.NotNil(t, appErr)
	return appErr.Kind()
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should assign identity and record the initial event", func(t *testing.T) {
		s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

		o, err := s.Create(ctx, validInput())
		require.NoError(t, err)

		assert.Regexp(t, `^ORD-[0-9A-F]{12}$`, o.ID)
		assert.Equal(t, "550101100", o.StockNumber)
		assert.Empty(t, o.VIN)
		assert.Equal(t, lifecycle.ConfigReceived, o.Status)
		assert.Equal(t, "knapheide-detroit", o.UpfitterID)
		assert.Equal(t, entity.WebsiteDraft, o.DealerWebsiteStatus)
		assert.Equal(t, entity.InventorySold, o.InventoryStatus)
		assert.False(t, o.IsStock)
		assert.NotEmpty(t, o.BuyerName)
		assert.Nil(t, o.OEMEta)
		assert.Nil(t, o.UpfitterEta)
		assert.Nil(t, o.DeliveryEta)
		assert.True(t, decimal.NewFromInt(92800).Equal(o.Pricing.Total))
		assert.Equal(t, june, o.CreatedAt)

		got, events, err := s.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.StockNumber, got.StockNumber)
		require.Len(t, events, 1)
		assert.Equal(t, lifecycle.Status(""), events[0].From)
		assert.Equal(t, lifecycle.ConfigReceived, events[0].To)
		assert.Equal(t, june, events[0].At)
	})

	t.Run("should keep stock units without a buyer", func(t *testing.T) {
		s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})
		in := validInput()
		in.IsStock = true
		in.BuyerName = "ignored"

		o, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.True(t, o.IsStock)
		assert.Equal(t, entity.InventoryStock, o.InventoryStatus)
		assert.Empty(t, o.BuyerName)
	})

	t.Run("should report every missing field", func(t *testing.T) {
		s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

		_, err := s.Create(ctx, store.CreateInput{DealerCode: "   "})
		require.Equal(t, errorbank.KindValidation, appKind(t, err))
		assert.ElementsMatch(t, []string{
			"dealerCode",
			"upfitterId",
			"build.bodyType",
			"build.manufacturer",
			"build.chassis.series",
		}, errorbank.From(err).Fields())

		orders, err := s.List(ctx, repository.Filter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("should prefer the explicit upfitter id", func(t *testing.T) {
		s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})
		in := validInput()
		in.UpfitterID = "reading-truck"

		o, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "reading-truck", o.UpfitterID)
		assert.Equal(t, "knapheide-detroit", o.BuildUpfitterID)
	})

	t.Run("should correct dates before creation", func(t *testing.T) {
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := newStore(t, repository.NewMemoryRepository(), &clock{now: created})
		in := validInput()
		oem := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
		in.OEMEta = &oem

		o, err := s.Create(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, o.OEMEta)
		assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), *o.OEMEta)
		assert.Equal(t, o.OEMEta.Add(10*24*time.Hour), *o.UpfitterEta)
		assert.Equal(t, o.UpfitterEta.Add(15*24*time.Hour), *o.DeliveryEta)
	})
}

func TestStore_TransitionLifecycle(t *testing.T) {
	backends := map[string]func(t *testing.T) repository.Repository{
		"memory": func(*testing.T) repository.Repository { return repository.NewMemoryRepository() },
		"sqlite": openSQLite,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{now: june}
			s := newStore(t, open(t), c)

			o, err := s.Create(ctx, validInput())
			require.NoError(t, err)

			var vin string
			flow := lifecycle.Flow()
			for i, to := range flow[1:] {
				c.Set(june.Add(time.Duration(i+1) * time.Hour))

				updated, event, err := s.Transition(ctx, o.ID, to)
				require.NoError(t, err, "transition to %s", to)
				assert.Equal(t, to, updated.Status)
				assert.Equal(t, flow[i], event.From)
				assert.Equal(t, to, event.To)
				assert.Equal(t, c.Now(), updated.UpdatedAt)
				assert.Equal(t, updated.UpdatedAt, event.At)

				require.Len(t, updated.VIN, 17)
				if vin == "" {
					vin = updated.VIN
					assert.Equal(t, "1FT5504CXSC100000", vin)
				}
				assert.Equal(t, vin, updated.VIN)
			}

			_, events, err := s.Get(ctx, o.ID)
			require.NoError(t, err)
			require.Len(t, events, len(flow))
			for i, e := range events[1:] {
				assert.Equal(t, flow[i], e.From)
				assert.Equal(t, flow[i+1], e.To)
			}

			_, _, err = s.Transition(ctx, o.ID, lifecycle.Delivered)
			assert.Equal(t, errorbank.KindInvalidTransition, appKind(t, err))
		})
	}
}

func TestStore_TransitionRejections(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	t.Run("should reject skipping a stage without side effects", func(t *testing.T) {
		o, err := s.Create(ctx, validInput())
		require.NoError(t, err)

		_, _, err = s.Transition(ctx, o.ID, lifecycle.OEMProduction)
		assert.Equal(t, errorbank.KindInvalidTransition, appKind(t, err))

		got, events, err := s.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ConfigReceived, got.Status)
		assert.Empty(t, got.VIN)
		assert.Len(t, events, 1)
	})

	t.Run("should make cancellation absorbing", func(t *testing.T) {
		o, err := s.Create(ctx, validInput())
		require.NoError(t, err)

		canceled, event, err := s.Transition(ctx, o.ID, lifecycle.Canceled)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.Canceled, canceled.Status)
		assert.Equal(t, lifecycle.ConfigReceived, event.From)
		assert.Empty(t, canceled.VIN)

		for _, to := range append(lifecycle.Flow(), lifecycle.Canceled) {
			_, _, err := s.Transition(ctx, o.ID, to)
			assert.Equal(t, errorbank.KindInvalidTransition, appKind(t, err), "to %s", to)
		}

		_, events, err := s.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("should fail for unknown orders", func(t *testing.T) {
		_, _, err := s.Transition(ctx, "ORD-MISSING", lifecycle.OEMAllocated)
		assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
	})
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	o, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	advanced, _, err := s.Transition(ctx, o.ID, lifecycle.OEMAllocated)
	require.NoError(t, err)

	testCases := []struct {
		name string
		key  string
	}{
		{"exact id", o.ID},
		{"lower case id", "ord-" + o.ID[4:]},
		{"stock number", o.StockNumber},
		{"lower case vin", "1ft5504cxsc100000"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := s.Get(ctx, tc.key)
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
			assert.Equal(t, advanced.VIN, got.VIN)
		})
	}

	t.Run("should report misses as not found", func(t *testing.T) {
		_, _, err := s.Get(ctx, "nothing-here")
		assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
	})
}

func TestStore_UpdateETAs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	o, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	delivery := june.AddDate(0, 2, 0)
	updated, err := s.UpdateETAs(ctx, o.ID, lifecycle.ETAs{Delivery: &delivery})
	require.NoError(t, err)
	assert.Equal(t, delivery, *updated.DeliveryEta)
	assert.Equal(t, delivery.AddDate(0, 0, -15), *updated.UpfitterEta)
	assert.Equal(t, delivery.AddDate(0, 0, -25), *updated.OEMEta)

	t.Run("should merge over stored dates", func(t *testing.T) {
		upfit := june.AddDate(0, 1, 0)
		merged, err := s.UpdateETAs(ctx, o.ID, lifecycle.ETAs{Upfitter: &upfit})
		require.NoError(t, err)
		assert.Equal(t, delivery, *merged.DeliveryEta)
		assert.Equal(t, upfit, *merged.UpfitterEta)
		assert.Equal(t, upfit.AddDate(0, 0, -10), *merged.OEMEta)
		assert.True(t, merged.ETAs().Ordered())
	})

	t.Run("should keep the OEM date after creation", func(t *testing.T) {
		past := june.AddDate(0, 0, -3)
		fixed, err := s.UpdateETAs(ctx, o.ID, lifecycle.ETAs{OEM: &past})
		require.NoError(t, err)
		assert.Equal(t, june.AddDate(0, 0, 1), *fixed.OEMEta)
		assert.True(t, fixed.ETAs().Ordered())
	})

	t.Run("should fail for unknown orders", func(t *testing.T) {
		_, err := s.UpdateETAs(ctx, "ORD-MISSING", lifecycle.ETAs{Delivery: &delivery})
		assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
	})
}

func TestStore_SetInventoryStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	in := validInput()
	in.BuyerName = "Summit Energy Corp"
	o, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Summit Energy Corp", o.BuyerName)

	stock, err := s.SetInventoryStatus(ctx, o.ID, "stock", "Someone")
	require.NoError(t, err)
	assert.Equal(t, entity.InventoryStock, stock.InventoryStatus)
	assert.True(t, stock.IsStock)
	assert.Empty(t, stock.BuyerName)

	sold, err := s.SetInventoryStatus(ctx, o.ID, " SOLD ", "")
	require.NoError(t, err)
	assert.Equal(t, entity.InventorySold, sold.InventoryStatus)
	assert.False(t, sold.IsStock)
	assert.NotEmpty(t, sold.BuyerName)

	named, err := s.SetInventoryStatus(ctx, o.ID, "SOLD", "Harbor City Transit Inc")
	require.NoError(t, err)
	assert.Equal(t, "Harbor City Transit Inc", named.BuyerName)

	kept, err := s.SetInventoryStatus(ctx, o.ID, "SOLD", "")
	require.NoError(t, err)
	assert.Equal(t, "Harbor City Transit Inc", kept.BuyerName)

	_, err = s.SetInventoryStatus(ctx, o.ID, "LEASED", "")
	assert.Equal(t, errorbank.KindInvalidArgument, appKind(t, err))

	_, err = s.SetInventoryStatus(ctx, "ORD-MISSING", "LEASED", "")
	assert.Equal(t, errorbank.KindInvalidArgument, appKind(t, err))

	_, err = s.SetInventoryStatus(ctx, "ORD-MISSING", "STOCK", "")
	assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
}

func TestStore_SetDealerWebsiteStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	o, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	require.False(t, o.IsStock)

	published, err := s.SetDealerWebsiteStatus(ctx, o.ID, "published")
	require.NoError(t, err, "the store accepts publishing sold units")
	assert.Equal(t, entity.WebsitePublished, published.DealerWebsiteStatus)

	_, err = s.SetDealerWebsiteStatus(ctx, o.ID, "LIVE")
	assert.Equal(t, errorbank.KindInvalidArgument, appKind(t, err))

	_, err = s.SetDealerWebsiteStatus(ctx, "ORD-MISSING", "DRAFT")
	assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
}

func TestStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	s := newStore(t, repo, &clock{now: june})

	doomed, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	kept, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	_, _, err = s.Transition(ctx, doomed.ID, lifecycle.OEMAllocated)
	require.NoError(t, err)
	_, err = s.AddNote(ctx, doomed.ID, "customer called", "dana")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, kept.ID, "keep me", "")
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, []string{doomed.ID, " " + doomed.ID + " ", "ORD-MISSING", ""})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	events, err := repo.Events(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
	notes, err := repo.Notes(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, _, err = s.Get(ctx, doomed.ID)
	assert.Equal(t, errorbank.KindNotFound, appKind(t, err))

	again, err := s.Delete(ctx, []string{doomed.ID})
	require.NoError(t, err)
	assert.Zero(t, again)

	remaining, err := s.ListNotes(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestStore_Notes(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: june}
	s := newStore(t, repository.NewMemoryRepository(), c)

	o, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	first, err := s.AddNote(ctx, o.ID, "  body spec confirmed ", "")
	require.NoError(t, err)
	assert.Equal(t, "body spec confirmed", first.Text)
	assert.Equal(t, "system", first.User)
	assert.Equal(t, o.ID, first.OrderID)
	assert.NotEmpty(t, first.ID)

	c.Set(june.Add(time.Minute))
	_, err = s.AddNote(ctx, o.ID, "ready for pickup", "sam")
	require.NoError(t, err)

	notes, err := s.ListNotes(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "body spec confirmed", notes[0].Text)
	assert.Equal(t, "sam", notes[1].User)

	_, err = s.AddNote(ctx, o.ID, "   ", "sam")
	require.Equal(t, errorbank.KindValidation, appKind(t, err))
	assert.Equal(t, []string{"text"}, errorbank.From(err).Fields())

	_, err = s.AddNote(ctx, "ORD-MISSING", "hello", "sam")
	assert.Equal(t, errorbank.KindNotFound, appKind(t, err))

	_, err = s.ListNotes(ctx, "ORD-MISSING")
	assert.Equal(t, errorbank.KindNotFound, appKind(t, err))
}

func TestStore_IdentifiersAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	stock := make(map[string]struct{}, 1000)
	vins := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		o, err := s.Create(ctx, validInput())
		require.NoError(t, err)
		o, _, err = s.Transition(ctx, o.ID, lifecycle.OEMAllocated)
		require.NoError(t, err)

		stock[o.StockNumber] = struct{}{}
		vins[o.VIN] = struct{}{}
	}

	assert.Len(t, stock, 1000)
	assert.Len(t, vins, 1000)
}

func TestStore_StockNumbersSurviveCounterWrap(t *testing.T) {
	backends := map[string]func(t *testing.T) repository.Repository{
		"memory": func(*testing.T) repository.Repository { return repository.NewMemoryRepository() },
		"sqlite": openSQLite,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, open(t), &clock{now: june})

			seen := make(map[string]int, 1001)
			var last *entity.Order
			for i := 1; i <= 1001; i++ {
				o, err := s.Create(ctx, validInput())
				require.NoError(t, err, "create #%d", i)
				prev, dup := seen[o.StockNumber]
				require.False(t, dup, "create #%d reused stock number %s of #%d", i, o.StockNumber, prev)
				seen[o.StockNumber] = i
				last = o
			}

			assert.Len(t, seen, 1001)
			assert.Equal(t, "5501011100", last.StockNumber)
		})
	}
}

func TestStore_CreateSkipsTakenStockNumbers(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	s := newStore(t, repo, &clock{now: june})

	imported := &entity.Order{
		ID:                  "ORD-IMPORTED0001",
		DealerCode:          "CVC101",
		Status:              lifecycle.ConfigReceived,
		StockNumber:         "550101101",
		DealerWebsiteStatus: entity.WebsiteDraft,
		CreatedAt:           june,
		UpdatedAt:           june,
	}
	require.NoError(t, repo.Create(ctx, imported))

	first, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "550101100", first.StockNumber)
	assert.Equal(t, "550101102", second.StockNumber)
}

func TestStore_CreateRetriesTakenIDs(t *testing.T) {
	ctx := context.Background()
	ids := []string{"ORD-00000000000A", "ORD-00000000000A", "ORD-00000000000B"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}

	s, err := store.New(repository.NewMemoryRepository(), store.Options{Now: june.UTC, Logger: zap.NewNop(), NewID: next})
	require.NoError(t, err)

	first, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "ORD-00000000000A", first.ID)
	assert.Equal(t, "ORD-00000000000B", second.ID)

	t.Run("should give up when every drawn id is taken", func(t *testing.T) {
		stuck, err := store.New(repository.NewMemoryRepository(), store.Options{
			Now:    june.UTC,
			Logger: zap.NewNop(),
			NewID:  func() string { return "ORD-000000000001" },
		})
		require.NoError(t, err)

		_, err = stuck.Create(ctx, validInput())
		require.NoError(t, err)
		_, err = stuck.Create(ctx, validInput())
		assert.Equal(t, errorbank.KindConflict, appKind(t, err))
	})
}

func TestStore_ConcurrentCreatesGetDistinctIdentifiers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, repository.NewMemoryRepository(), &clock{now: june})

	const workers = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := s.Create(ctx, validInput())
			if !assert.NoError(t, err) {
				return
			}
			o, _, err = s.Transition(ctx, o.ID, lifecycle.OEMAllocated)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[o.StockNumber+"/"+o.VIN] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
}

func TestStore_SweepETAs(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: june}
	s := newStore(t, repository.NewMemoryRepository(), c)

	oem := june.AddDate(0, 0, 5)
	in := validInput()
	in.OEMEta = &oem

	early, err := s.Create(ctx, in)
	require.NoError(t, err)
	late, err := s.Create(ctx, in)
	require.NoError(t, err)
	for _, to := range lifecycle.Flow()[1:5] {
		_, _, err = s.Transition(ctx, late.ID, to)
		require.NoError(t, err)
	}

	corrected, err := s.SweepETAs(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrected)

	later := june.AddDate(0, 0, 8)
	c.Set(later)

	corrected, err = s.SweepETAs(ctx)
	require.NoError(t, err)
	require.Len(t, corrected, 1)
	assert.Equal(t, early.ID, corrected[0].ID)

	got, _, err := s.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, later.AddDate(0, 0, 2), *got.OEMEta)
	assert.True(t, got.ETAs().Ordered())

	untouched, _, err := s.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, oem, *untouched.OEMEta)

	corrected, err = s.SweepETAs(ctx)
	require.NoError(t, err)
	assert.Empty(t, corrected)
}

func TestStore_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	s, err := store.New(repository.NewMemoryRepository(), store.Options{
		Now:   (&clock{now: june}).Now,
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	o, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	_, _, err = s.Transition(ctx, o.ID, lifecycle.OEMAllocated)
	require.NoError(t, err)
	past := june.AddDate(0, 0, -1)
	_, err = s.UpdateETAs(ctx, o.ID, lifecycle.ETAs{OEM: &past})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), totals["orders.created"])
	assert.Equal(t, int64(1), totals["orders.transitions"])
	assert.Equal(t, int64(1), totals["orders.eta_corrections"])
}
