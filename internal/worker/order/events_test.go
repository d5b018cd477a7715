package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/upfit/internal/cache"
	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/messaging"
	ordersvc "github.com/Additional-Code/upfit/internal/service/order"
	"github.com/Additional-Code/upfit/internal/worker"
)

const topic = "orders.events"

func testConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Kafka.Topic = topic
	cfg.Jobs.ETASweepSchedule = "@every 1h"
	return cfg
}

func message(t *testing.T, eventType, orderID string, data any) messaging.Message {
	t.Helper()
	evt, err := messaging.NewEvent(eventType, orderID, time.Now(), data)
	require.NoError(t, err)
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return messaging.Message{Topic: topic, Key: []byte(orderID), Value: payload}
}

func statusChanged(t *testing.T, to lifecycle.Status) messaging.Message {
	return message(t, ordersvc.EventStatusChanged, "ORD-7", ordersvc.StatusChanged{
		OrderID:     "ORD-7",
		From:        lifecycle.UpfitInProgress,
		To:          to,
		VIN:         "1FT5504CXSC100000",
		StockNumber: "550101100",
		DealerCode:  "CVC101",
		BuyerName:   "Atlas Freight Co PLC",
	})
}

func TestCacheInvalidationHandler(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(time.Minute, nil)
	reg := NewCacheInvalidationHandler(zap.NewNop(), testConfig(), store)
	assert.Equal(t, topic, reg.Topic)
	assert.Empty(t, reg.EventType)

	require.NoError(t, store.Set(ctx, ordersvc.CacheKey("ORD-7"), []byte(`{}`), 0))
	require.NoError(t, store.Set(ctx, ordersvc.CacheKey("ORD-8"), []byte(`{}`), 0))

	require.NoError(t, reg.Handler(ctx, message(t, ordersvc.EventETAsUpdated, "ORD-7", struct{}{})))

	_, err := store.Get(ctx, ordersvc.CacheKey("ORD-7"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = store.Get(ctx, ordersvc.CacheKey("ORD-8"))
	assert.NoError(t, err)

	t.Run("should reject undecodable messages", func(t *testing.T) {
		err := reg.Handler(ctx, messaging.Message{Topic: topic, Value: []byte("not json")})
		assert.Error(t, err)
	})
}

func TestCustomerNotificationHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reg := NewCustomerNotificationHandler(zap.New(core), testConfig())
	assert.Equal(t, ordersvc.EventStatusChanged, reg.EventType)

	for _, to := range []lifecycle.Status{lifecycle.ReadyForDelivery, lifecycle.Delivered, lifecycle.Canceled} {
		require.NoError(t, reg.Handler(context.Background(), statusChanged(t, to)))
	}
	for _, to := range []lifecycle.Status{lifecycle.OEMAllocated, lifecycle.AtUpfitter} {
		require.NoError(t, reg.Handler(context.Background(), statusChanged(t, to)))
	}

	sent := logs.FilterMessage("customer notification").All()
	require.Len(t, sent, 3)
	fields := sent[1].ContextMap()
	assert.Equal(t, "ORD-7", fields["order_id"])
	assert.Equal(t, "DELIVERED", fields["status"])
	assert.Equal(t, "Your vehicle has been delivered", fields["subject"])
	assert.Equal(t, "Atlas Freight Co PLC", fields["buyer_name"])
	assert.Equal(t, "notifications", sent[1].LoggerName)
}

func TestHandlersThroughEngine(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	store := cache.NewMemoryStore(time.Minute, nil)
	require.NoError(t, store.Set(ctx, ordersvc.CacheKey("ORD-7"), []byte(`{}`), 0))

	engine := worker.NewEngine(worker.Params{
		Client: messaging.NewMemoryClient(topic, 0),
		Logger: zap.NewNop(),
		Config: testConfig(),
		Registrations: []worker.HandlerRegistration{
			NewCacheInvalidationHandler(logger, testConfig(), store),
			NewCustomerNotificationHandler(logger, testConfig()),
		},
	})

	require.NoError(t, engine.Dispatch(ctx, statusChanged(t, lifecycle.Canceled)))

	_, err := store.Get(ctx, ordersvc.CacheKey("ORD-7"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, 1, logs.FilterMessage("customer notification").Len())
}

type fakeSweeper struct {
	ids   []string
	err   error
	calls int
}

func (f *fakeSweeper) SweepETAs(context.Context) ([]string, error) {
	f.calls++
	return f.ids, f.err
}

func TestETASweepJob(t *testing.T) {
	t.Run("should report corrected orders", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		sweeper := &fakeSweeper{ids: []string{"ORD-1", "ORD-2"}}
		job := newETASweepJob(sweeper, "@every 1h", zap.New(core))

		assert.Equal(t, ETASweepJobName, job.Name)
		assert.Equal(t, "@every 1h", job.Schedule)
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, 1, sweeper.calls)
		assert.Equal(t, 1, logs.FilterMessage("eta sweep corrected orders").Len())
	})

	t.Run("should surface sweep failures", func(t *testing.T) {
		boom := errors.New("boom")
		job := newETASweepJob(&fakeSweeper{err: boom}, "@every 1h", zap.NewNop())
		assert.ErrorIs(t, job.Run(context.Background()), boom)
	})
}
