package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/cache"
	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/messaging"
	ordersvc "github.com/Additional-Code/upfit/internal/service/order"
	"github.com/Additional-Code/upfit/internal/worker"
)

// customerFacing are the stages a buyer hears about.
var customerFacing = map[lifecycle.Status]string{
	lifecycle.ReadyForDelivery: "Your vehicle is ready for delivery",
	lifecycle.Delivered:        "Your vehicle has been delivered",
	lifecycle.Canceled:         "Your order has been canceled",
}

// NewCacheInvalidationHandler drops the cached detail of every order an event
// mentions, so replicas that did not make the change stop serving it.
func NewCacheInvalidationHandler(logger *zap.Logger, cfg config.Config, store cache.Store) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.invalidate", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		evt, err := messaging.DecodeEvent(msg)
		if err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.String("event.type", evt.EventType))
		orderID := evt.AggregateID
		if orderID == "" {
			orderID = msg.OrderID()
		}
		if orderID == "" || store == nil {
			return nil
		}
		if err := store.Delete(ctx, ordersvc.CacheKey(orderID)); err != nil {
			logger.Warn("order cache invalidation failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			span.RecordError(err)
			return err
		}
		logger.Debug("order cache invalidated",
			zap.String("order_id", orderID),
			zap.String("event_type", evt.EventType),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

// NewCustomerNotificationHandler emits a customer notification when an order
// becomes ready, is delivered or is canceled.
func NewCustomerNotificationHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	notifications := logger.Named("notifications")

	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.notify", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		evt, err := messaging.DecodeEvent(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		var payload ordersvc.StatusChanged
		if err := evt.DecodeData(&payload); err != nil {
			logger.Error("failed to decode status change", zap.String("event_id", evt.EventID), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		subject, ok := customerFacing[payload.To]
		if !ok {
			return nil
		}
		span.SetAttributes(attribute.String("order.status", string(payload.To)))

		notifications.Info("customer notification",
			zap.String("order_id", payload.OrderID),
			zap.String("stock_number", payload.StockNumber),
			zap.String("dealer_code", payload.DealerCode),
			zap.String("buyer_name", payload.BuyerName),
			zap.String("vin", payload.VIN),
			zap.String("status", string(payload.To)),
			zap.String("subject", subject),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:     cfg.Messaging.Kafka.Topic,
		EventType: ordersvc.EventStatusChanged,
		Handler:   handler,
	}
}
