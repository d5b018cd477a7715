package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/messaging"
)

// HandlerRegistration binds message topics, optionally narrowed to one
// envelope event type, to handlers.
type HandlerRegistration struct {
	Topic string
	// EventType narrows the registration to one envelope type. Empty matches
	// every message on Topic.
	EventType string
	Handler   messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

type routeKey struct {
	topic     string
	eventType string
}

// Engine orchestrates background message consumption.
type Engine struct {
	client messaging.Client
	logger *zap.Logger
	cfg    config.Config
	routes map[routeKey][]messaging.Handler
	typed  map[string]bool
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	e := &Engine{
		client: p.Client,
		logger: p.Logger,
		cfg:    p.Config,
		routes: make(map[routeKey][]messaging.Handler, len(p.Registrations)),
		typed:  make(map[string]bool),
	}
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		key := routeKey{topic: r.Topic, eventType: r.EventType}
		e.routes[key] = append(e.routes[key], r.Handler)
		if r.EventType != "" {
			e.typed[r.Topic] = true
		}
	}
	return e
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// Dispatch routes msg to the handlers registered for its topic and event type.
// Every matching handler runs; the first error is returned.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	handlers := e.handlersFor(msg)
	if len(handlers) == 0 {
		e.logger.Debug("no handler for message", zap.String("topic", msg.Topic))
		return nil
	}
	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Catch-all handlers run first, then the ones bound to the event type. The
// event_type header is trusted when present.
func (e *Engine) handlersFor(msg messaging.Message) []messaging.Handler {
	handlers := append([]messaging.Handler(nil), e.routes[routeKey{topic: msg.Topic}]...)
	if !e.typed[msg.Topic] {
		return handlers
	}
	eventType := msg.EventType()
	if eventType == "" {
		if evt, err := messaging.DecodeEvent(msg); err == nil {
			eventType = evt.EventType
		}
	}
	if eventType != "" {
		handlers = append(handlers, e.routes[routeKey{topic: msg.Topic, eventType: eventType}]...)
	}
	return handlers
}

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))

			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
