package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/messaging"
	"github.com/Additional-Code/upfit/internal/worker"
)

const topic = "orders.events"

func workerConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 2
	cfg.Messaging.Kafka.Topic = topic
	return cfg
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string) messaging.Handler {
	return func(context.Context, messaging.Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func eventMessage(t *testing.T, eventType string) messaging.Message {
	t.Helper()
	evt, err := messaging.NewEvent(eventType, "ORD-1", time.Now(), map[string]string{"k": "v"})
	require.NoError(t, err)
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return messaging.Message{Topic: topic, Key: []byte(evt.AggregateID), Value: payload}
}

func TestEngine_Dispatch(t *testing.T) {
	rec := &recorder{}
	engine := worker.NewEngine(worker.Params{
		Client: messaging.NewMemoryClient(topic, 0),
		Logger: zap.NewNop(),
		Config: workerConfig(),
		Registrations: []worker.HandlerRegistration{
			{Topic: topic, Handler: rec.handler("all")},
			{Topic: topic, EventType: "order.status_changed", Handler: rec.handler("status")},
			{Topic: topic, EventType: "order.deleted", Handler: rec.handler("deleted")},
			{Topic: "other", Handler: rec.handler("other")},
			{Topic: topic},
		},
	})

	t.Run("should run catch-all and typed handlers", func(t *testing.T) {
		rec.calls = nil
		require.NoError(t, engine.Dispatch(context.Background(), eventMessage(t, "order.status_changed")))
		assert.Equal(t, []string{"all", "status"}, rec.seen())
	})

	t.Run("should run only catch-all handlers for unbound types", func(t *testing.T) {
		rec.calls = nil
		require.NoError(t, engine.Dispatch(context.Background(), eventMessage(t, "order.created")))
		assert.Equal(t, []string{"all"}, rec.seen())
	})

	t.Run("should tolerate messages without an envelope", func(t *testing.T) {
		rec.calls = nil
		require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Topic: topic, Value: []byte("raw")}))
		assert.Equal(t, []string{"all"}, rec.seen())
	})

	t.Run("should ignore unknown topics", func(t *testing.T) {
		rec.calls = nil
		require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Topic: "nobody"}))
		assert.Empty(t, rec.seen())
	})
}

func TestEngine_DispatchReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	ran := 0
	engine := worker.NewEngine(worker.Params{
		Client: messaging.NewMemoryClient(topic, 0),
		Logger: zap.NewNop(),
		Config: workerConfig(),
		Registrations: []worker.HandlerRegistration{
			{Topic: topic, Handler: func(context.Context, messaging.Message) error { ran++; return boom }},
			{Topic: topic, Handler: func(context.Context, messaging.Message) error { ran++; return nil }},
		},
	})

	err := engine.Dispatch(context.Background(), messaging.Message{Topic: topic})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestEngine_ConsumesFromBus(t *testing.T) {
	client := messaging.NewMemoryClient(topic, 0)
	received := make(chan string, 1)

	app := newEngineApp(t, client, worker.HandlerRegistration{
		Topic:     topic,
		EventType: "order.created",
		Handler: func(_ context.Context, msg messaging.Message) error {
			evt, err := messaging.DecodeEvent(msg)
			if err != nil {
				return err
			}
			received <- evt.AggregateID
			return nil
		},
	})
	defer app.RequireStop()

	evt, err := messaging.NewEvent("order.created", "ORD-42", time.Now(), struct{}{})
	require.NoError(t, err)
	require.NoError(t, messaging.PublishEvent(context.Background(), client, evt))

	select {
	case id := <-received:
		assert.Equal(t, "ORD-42", id)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not consumed")
	}
}
