package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/cache"
	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/messaging"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
	orderstore "github.com/Additional-Code/upfit/internal/store/order"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/upfit/service/order")

// ListingChannel is the only channel PublishListing publishes to.
const ListingChannel = "DEALER_WEBSITE"

// Service is the order lifecycle façade: it fronts the store with a read
// cache, applies caller-level rules and announces every change on the bus.
type Service struct {
	store     *orderstore.Store
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	now       func() time.Time

	// evictions counts cache evictions so a read that raced a write can
	// drop what it cached.
	evictions atomic.Uint64
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     *orderstore.Store
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: time.Now,
	}
}

// ListFilter is the caller-facing list filter. Status is parsed like any
// other enum input.
type ListFilter struct {
	Status     string
	DealerCode string
	UpfitterID string
	IsStock    *bool
	Query      string
	From       *time.Time
	To         *time.Time
}

// OrderDetail is an order with its status history.
type OrderDetail struct {
	Order  *entity.Order       `json:"order"`
	Events []*entity.OrderEvent `json:"events"`
}

// TransitionResult is the outcome of an accepted status change.
type TransitionResult struct {
	Order *entity.Order
	Event *entity.OrderEvent
}

// ListOrders returns the orders matching every set filter field.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	filter := repository.Filter{
		DealerCode: strings.TrimSpace(f.DealerCode),
		UpfitterID: strings.TrimSpace(f.UpfitterID),
		IsStock:    f.IsStock,
		Query:      f.Query,
		From:       f.From,
		To:         f.To,
	}
	if strings.TrimSpace(f.Status) != "" {
		status, err := lifecycle.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, errorbank.InvalidArgument("from must not be after to")
	}
	return s.store.List(ctx, filter)
}

// GetOrder resolves an order by id, stock number or VIN, consulting the
// cache for exact ids.
func (s *Service) GetOrder(ctx context.Context, id string) (*OrderDetail, error) {
	id = strings.TrimSpace(id)
	ctx, span := serviceTracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.key", id)))
	defer span.End()

	if detail, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return detail, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("order_id", id), zap.Error(err))
	}

	generation := s.evictions.Load()
	order, events, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*entity.OrderEvent{}
	}
	detail := &OrderDetail{Order: order, Events: events}

	if err := s.storeInCache(ctx, detail, generation); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	return detail, nil
}

// CreateOrder stores a new order and announces it.
func (s *Service) CreateOrder(ctx context.Context, in orderstore.CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	order, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	s.publish(ctx, EventOrderCreated, order.ID, order.CreatedAt, OrderSnapshot{Order: order})
	return order, nil
}

// TransitionOrder moves an order to target, which may be CANCELED.
func (s *Service) TransitionOrder(ctx context.Context, id, target string) (*TransitionResult, error) {
	to, err := lifecycle.ParseStatus(target)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, to)
}

// CancelOrder is TransitionOrder to CANCELED.
func (s *Service) CancelOrder(ctx context.Context, id string) (*TransitionResult, error) {
	return s.transition(ctx, id, lifecycle.Canceled)
}

func (s *Service) transition(ctx context.Context, id string, to lifecycle.Status) (*TransitionResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.TransitionOrder", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	order, event, err := s.store.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, order.ID)

	s.publish(ctx, EventStatusChanged, order.ID, event.At, StatusChanged{
		OrderID:     order.ID,
		From:        event.From,
		To:          event.To,
		VIN:         order.VIN,
		StockNumber: order.StockNumber,
		DealerCode:  order.DealerCode,
		BuyerName:   order.BuyerName,
		At:          event.At,
	})
	return &TransitionResult{Order: order, Event: event}, nil
}

// UpdateETAs merges the supplied dates and returns the normalised order.
func (s *Service) UpdateETAs(ctx context.Context, id string, patch lifecycle.ETAs) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateETAs", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.store.UpdateETAs(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, order.ID)
	s.publish(ctx, EventETAsUpdated, order.ID, order.UpdatedAt, OrderSnapshot{Order: order})
	return order, nil
}

// SetInventoryStatus switches an order between STOCK and SOLD. Selling a
// published unit takes its listing down in the same write.
func (s *Service) SetInventoryStatus(ctx context.Context, id, status, buyerName string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetInventoryStatus", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var unlisted bool
	order, err := s.store.SetInventoryStatus(ctx, id, status, buyerName, func(o *entity.Order) error {
		if !o.IsStock && o.DealerWebsiteStatus == entity.WebsitePublished {
			o.DealerWebsiteStatus = entity.WebsiteUnpublished
			unlisted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.evict(ctx, order.ID)
	s.publish(ctx, EventInventoryChanged, order.ID, order.UpdatedAt, OrderSnapshot{Order: order})
	if unlisted {
		s.logger.Info("sold unit removed from dealer website", zap.String("order_id", order.ID))
		s.publish(ctx, EventWebsiteStatusChanged, order.ID, order.UpdatedAt, OrderSnapshot{Order: order})
	}
	return order, nil
}

// SetDealerWebsiteStatus records the listing status. Only stock units may be
// published; the check runs in the same transaction as the write.
func (s *Service) SetDealerWebsiteStatus(ctx context.Context, id, status string) (*entity.Order, error) {
	normalized, err := orderstore.ParseWebsiteStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.SetDealerWebsiteStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.website_status", normalized),
	))
	defer span.End()

	order, err := s.store.SetDealerWebsiteStatus(ctx, id, normalized, requireStockToPublish)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, order.ID)
	s.publish(ctx, EventWebsiteStatusChanged, order.ID, order.UpdatedAt, OrderSnapshot{Order: order})
	return order, nil
}

func requireStockToPublish(o *entity.Order) error {
	if o.DealerWebsiteStatus == entity.WebsitePublished && !o.IsStock {
		return errorbank.Unprocessable("only stock units can be published to the dealer website",
			errorbank.WithDetail("id", o.ID),
			errorbank.WithDetail("inventoryStatus", o.InventoryStatus),
		)
	}
	return nil
}

// PublishListing publishes a stock unit to the dealer website and returns the
// channel it was published to.
func (s *Service) PublishListing(ctx context.Context, id string) (*entity.Order, string, error) {
	order, err := s.SetDealerWebsiteStatus(ctx, id, entity.WebsitePublished)
	if err != nil {
		return nil, "", err
	}
	return order, ListingChannel, nil
}

// AddNote appends a note to an order.
func (s *Service) AddNote(ctx context.Context, orderID, text, user string) (*entity.OrderNote, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AddNote", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	return s.store.AddNote(ctx, orderID, text, user)
}

// ListNotes returns an order's notes oldest first.
func (s *Service) ListNotes(ctx context.Context, orderID string) ([]*entity.OrderNote, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListNotes", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	notes, err := s.store.ListNotes(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []*entity.OrderNote{}
	}
	return notes, nil
}

// DeleteOrders removes the orders and reports how many existed.
func (s *Service) DeleteOrders(ctx context.Context, ids []string) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.DeleteOrders", trace.WithAttributes(attribute.Int("order.count", len(ids))))
	defer span.End()

	deleted, err := s.store.Delete(ctx, ids)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.evict(ctx, id)
		if deleted > 0 {
			s.publish(ctx, EventOrderDeleted, id, now, OrderDeleted{OrderID: id})
		}
	}
	return deleted, nil
}

// SweepETAs re-normalises early orders with past-due OEM dates and returns
// the ids it corrected.
func (s *Service) SweepETAs(ctx context.Context) ([]string, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SweepETAs")
	defer span.End()

	orders, err := s.store.SweepETAs(ctx)
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
		s.evict(ctx, order.ID)
		s.publish(ctx, EventETAsUpdated, order.ID, order.UpdatedAt, OrderSnapshot{Order: order})
	}
	return ids, err
}

func (s *Service) publish(ctx context.Context, eventType, aggregateID string, at time.Time, data any) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	evt, err := messaging.NewEvent(eventType, aggregateID, at, data)
	if err != nil {
		s.logger.Error("build order event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := messaging.PublishEvent(ctx, s.publisher, evt); err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("event_type", eventType),
			zap.String("order_id", aggregateID),
			zap.Error(err),
		)
	}
}

// CacheKey is the cache key holding an order's detail.
func CacheKey(id string) string {
	return "orders:" + id
}

func (s *Service) evict(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	s.evictions.Add(1)
	if err := s.cache.Delete(ctx, CacheKey(id)); err != nil {
		s.logger.Warn("orders cache evict failed", zap.String("order_id", id), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id string) (*OrderDetail, error) {
	if s.cache == nil || id == "" {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, err
	}
	var detail OrderDetail
	if err := json.Unmarshal(bytes, &detail); err != nil {
		return nil, err
	}
	if detail.Order == nil {
		return nil, cache.ErrCacheMiss
	}
	return &detail, nil
}

// storeInCache only caches under the canonical id so evictions reach it. The
// entry is removed again when any eviction happened since generation was read.
func (s *Service) storeInCache(ctx context.Context, detail *OrderDetail, generation uint64) error {
	if s.cache == nil || detail == nil || detail.Order == nil {
		return nil
	}
	bytes, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	key := CacheKey(detail.Order.ID)
	if err := s.cache.Set(ctx, key, bytes, s.cacheTTL); err != nil {
		return err
	}
	if s.evictions.Load() != generation {
		return s.cache.Delete(ctx, key)
	}
	return nil
}
