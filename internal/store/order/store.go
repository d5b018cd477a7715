// Package order is the authoritative order store: it enforces the lifecycle
// rules, assigns identifiers and keeps ETAs consistent on every write.
package order

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/identifier"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

var storeTracer = otel.Tracer("github.com/Additional-Code/upfit/store/order")

const (
	defaultNoteUser = "system"
	maxIDAttempts   = 5
)

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	Gaps        lifecycle.Gaps
	Identifiers identifier.Config
	Now         func() time.Time
	Logger      *zap.Logger
	Meter       metric.Meter
	// NewID generates order ids. Defaults to ORD- plus 12 random hex digits.
	NewID func() string
}

// Store owns orders, their events and notes.
type Store struct {
	repo    repository.Repository
	ids     identifier.Config
	policy  *lifecycle.Policy
	machine *lifecycle.Machine[*transition]
	now     func() time.Time
	logger  *zap.Logger
	metrics storeMetrics

	newOrderID func() string
}

// transition is the subject handed to lifecycle hooks.
type transition struct {
	order *entity.Order
	ids   *identifier.Generator
}

type storeMetrics struct {
	created        metric.Int64Counter
	transitions    metric.Int64Counter
	etaCorrections metric.Int64Counter
}

// New builds a store over repo.
func New(repo repository.Repository, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = defaultOrderID
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("github.com/Additional-Code/upfit/store/order")
	}

	metrics, err := newStoreMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	machine := lifecycle.NewMachine[*transition]()
	machine.OnReach(lifecycle.OEMAllocated, "assign-vin", assignVIN)

	return &Store{
		repo:    repo,
		ids:     opts.Identifiers,
		policy:  lifecycle.NewPolicy(opts.Gaps, opts.Now),
		machine: machine,
		now:     opts.Now,
		logger:  opts.Logger,
		metrics: metrics,

		newOrderID: opts.NewID,
	}, nil
}

func newStoreMetrics(meter metric.Meter) (storeMetrics, error) {
	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created"))
	if err != nil {
		return storeMetrics{}, err
	}
	transitions, err := meter.Int64Counter("orders.transitions", metric.WithDescription("Accepted status transitions"))
	if err != nil {
		return storeMetrics{}, err
	}
	corrections, err := meter.Int64Counter("orders.eta_corrections", metric.WithDescription("ETA triples changed by the policy"))
	if err != nil {
		return storeMetrics{}, err
	}
	return storeMetrics{created: created, transitions: transitions, etaCorrections: corrections}, nil
}

// WithClock returns a copy of the store stamping mutations with now. The ETA
// policy keeps the parent store's clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	c := *s
	c.now = now
	return &c
}

// Policy exposes the ETA policy used on every date write.
func (s *Store) Policy() *lifecycle.Policy {
	return s.policy
}

// Create validates the payload, assigns the id and stock number, and records
// the synthetic first event.
func (s *Store) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.Create")
	defer span.End()

	in = in.normalize()
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	if !in.CreatedAt.IsZero() {
		createdAt = in.CreatedAt.UTC()
	}

	o := &entity.Order{
		ID:                  s.newOrderID(),
		DealerCode:          in.DealerCode,
		UpfitterID:          in.UpfitterID,
		Status:              lifecycle.Initial(),
		Pricing:             in.Pricing.Normalize(),
		DealerWebsiteStatus: entity.WebsiteDraft,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	}
	o.SetBuild(in.Build)
	if in.IsStock {
		o.SetInventory(entity.InventoryStock, "")
	} else {
		buyer := in.BuyerName
		if buyer == "" {
			buyer = identifier.BuyerNameFor(o.ID)
		}
		o.SetInventory(entity.InventorySold, buyer)
	}

	requested := lifecycle.ETAs{OEM: in.OEMEta, Upfitter: in.UpfitterEta, Delivery: in.DeliveryEta}
	o.SetETAs(s.policy.Enforce(requested, createdAt, o.Status))
	span.SetAttributes(attribute.String("order.id", o.ID))

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := s.claimID(ctx, tx, o, in.BuyerName); err != nil {
			return err
		}
		src := source(o)
		used, err := tx.StockNumbers(ctx, identifier.StockPrefix(src))
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(used))
		for _, stock := range used {
			taken[stock] = struct{}{}
		}
		stock, err := s.generator(tx).UniqueStockNumber(ctx, src, taken)
		if err != nil {
			return err
		}
		o.StockNumber = stock
		if err := tx.Create(ctx, o); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, newEvent(o.ID, "", o.Status, createdAt))
	})
	if err != nil {
		return nil, s.fail(span, "create order", o.ID, err)
	}

	s.metrics.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("is_stock", o.IsStock)))
	s.countCorrection(ctx, requested, o.ETAs(), "create")
	s.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("stock_number", o.StockNumber),
		zap.String("dealer_code", o.DealerCode),
	)
	return o, nil
}

// claimID draws a fresh id while o.ID is already stored. Generated buyer
// names follow the id.
func (s *Store) claimID(ctx context.Context, tx repository.Repository, o *entity.Order, buyerName string) error {
	for attempt := 0; ; attempt++ {
		_, err := tx.Get(ctx, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if attempt >= maxIDAttempts {
			return fmt.Errorf("%w: id %s", repository.ErrDuplicate, o.ID)
		}
		s.logger.Warn("order id already in use; drawing another", zap.String("order_id", o.ID))
		o.ID = s.newOrderID()
		if !o.IsStock && buyerName == "" {
			o.BuyerName = identifier.BuyerNameFor(o.ID)
		}
	}
}

// Get resolves an order by exact id, falling back to a case-insensitive match
// on id, stock number or VIN. Events are returned oldest first.
func (s *Store) Get(ctx context.Context, id string) (*entity.Order, []*entity.OrderEvent, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.Get", trace.WithAttributes(attribute.String("order.key", id)))
	defer span.End()

	o, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		o, err = s.repo.Lookup(ctx, id)
	}
	if err != nil {
		return nil, nil, s.fail(span, "load order", id, err)
	}

	events, err := s.repo.Events(ctx, o.ID)
	if err != nil {
		return nil, nil, s.fail(span, "load events", o.ID, err)
	}
	return o, events, nil
}

// List returns orders matching every set filter field, newest first.
func (s *Store) List(ctx context.Context, filter repository.Filter) ([]*entity.Order, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.List")
	defer span.End()

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.fail(span, "list orders", "", err)
	}
	return orders, nil
}

// Transition moves the order to the requested stage and appends one event.
// Reaching OEM_ALLOCATED or later assigns a VIN when none exists yet.
func (s *Store) Transition(ctx context.Context, id string, to lifecycle.Status) (*entity.Order, *entity.OrderEvent, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.Transition",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.to", string(to))))
	defer span.End()

	var (
		updated *entity.Order
		event   *entity.OrderEvent
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		o, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		from := o.Status
		subject := &transition{order: o, ids: s.generator(tx)}
		if err := s.machine.Advance(ctx, subject, from, to, setStatus); err != nil {
			return err
		}
		o.UpdatedAt = s.now().UTC()
		if err := tx.Update(ctx, o); err != nil {
			return err
		}
		event = newEvent(o.ID, from, to, o.UpdatedAt)
		updated = o
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, nil, s.fail(span, "transition order", id, err)
	}

	s.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(event.From)),
		attribute.String("to", string(event.To)),
	))
	s.logger.Info("order transitioned",
		zap.String("order_id", id),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("vin", updated.VIN),
	)
	return updated, event, nil
}

// UpdateETAs merges the supplied dates over the current ones and stores the
// policy-normalised triple.
func (s *Store) UpdateETAs(ctx context.Context, id string, patch lifecycle.ETAs) (*entity.Order, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.UpdateETAs", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var (
		updated   *entity.Order
		requested lifecycle.ETAs
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		o, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		requested = o.ETAs().Merge(patch)
		o.SetETAs(s.policy.Enforce(requested, o.CreatedAt, o.Status))
		o.UpdatedAt = s.now().UTC()
		updated = o
		return tx.Update(ctx, o)
	})
	if err != nil {
		return nil, s.fail(span, "update etas", id, err)
	}

	s.countCorrection(ctx, requested, updated.ETAs(), "update")
	s.logger.Info("order etas updated", zap.String("order_id", id))
	return updated, nil
}

// Rule runs inside a write transaction after the change is applied and before
// it is saved. It may adjust the order further or reject the write.
type Rule func(o *entity.Order) error

func applyRules(o *entity.Order, rules []Rule) error {
	for _, rule := range rules {
		if err := rule(o); err != nil {
			return err
		}
	}
	return nil
}

// SetInventoryStatus switches between STOCK and SOLD. STOCK clears the buyer;
// SOLD keeps the given or current buyer, or generates one.
func (s *Store) SetInventoryStatus(ctx context.Context, id, status, buyerName string, rules ...Rule) (*entity.Order, error) {
	normalized, err := ParseInventoryStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, span := storeTracer.Start(ctx, "OrderStore.SetInventoryStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.inventory_status", normalized)))
	defer span.End()

	var updated *entity.Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		o, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		buyer := strings.TrimSpace(buyerName)
		if buyer == "" {
			buyer = o.BuyerName
		}
		if buyer == "" {
			buyer = identifier.BuyerNameFor(o.ID)
		}
		o.SetInventory(normalized, buyer)
		if err := applyRules(o, rules); err != nil {
			return err
		}
		o.UpdatedAt = s.now().UTC()
		updated = o
		return tx.Update(ctx, o)
	})
	if err != nil {
		return nil, s.fail(span, "set inventory status", id, err)
	}

	s.logger.Info("order inventory status set",
		zap.String("order_id", id),
		zap.String("inventory_status", normalized),
	)
	return updated, nil
}

// SetDealerWebsiteStatus records DRAFT, PUBLISHED or UNPUBLISHED. The store
// itself does not require stock units for publishing; callers pass rules for
// that.
func (s *Store) SetDealerWebsiteStatus(ctx context.Context, id, status string, rules ...Rule) (*entity.Order, error) {
	normalized, err := ParseWebsiteStatus(status)
	if err != nil {
		return nil, err
	}

	ctx, span := storeTracer.Start(ctx, "OrderStore.SetDealerWebsiteStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.website_status", normalized)))
	defer span.End()

	var updated *entity.Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		o, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		o.DealerWebsiteStatus = normalized
		if err := applyRules(o, rules); err != nil {
			return err
		}
		o.UpdatedAt = s.now().UTC()
		updated = o
		return tx.Update(ctx, o)
	})
	if err != nil {
		return nil, s.fail(span, "set dealer website status", id, err)
	}

	s.logger.Info("order website status set",
		zap.String("order_id", id),
		zap.String("dealer_website_status", normalized),
	)
	return updated, nil
}

// Delete removes the orders with their events and notes. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) (int, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.Delete")
	defer span.End()

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, nil
	}

	deleted, err := s.repo.Delete(ctx, unique)
	if err != nil {
		return 0, s.fail(span, "delete orders", "", err)
	}
	s.logger.Info("orders deleted", zap.Strings("order_ids", unique), zap.Int("deleted", deleted))
	return deleted, nil
}

// AddNote appends a note to an existing order.
func (s *Store) AddNote(ctx context.Context, orderID, text, user string) (*entity.OrderNote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorbank.Validation("note text is required", []string{"text"})
	}
	user = strings.TrimSpace(user)
	if user == "" {
		user = defaultNoteUser
	}

	ctx, span := storeTracer.Start(ctx, "OrderStore.AddNote", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	note := &entity.OrderNote{ID: newID(), OrderID: orderID, Text: text, User: user, At: s.now().UTC()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if _, err := tx.Get(ctx, orderID); err != nil {
			return err
		}
		return tx.AddNote(ctx, note)
	})
	if err != nil {
		return nil, s.fail(span, "add note", orderID, err)
	}

	s.logger.Info("order note added", zap.String("order_id", orderID), zap.String("user", user))
	return note, nil
}

// ListNotes returns an order's notes oldest first.
func (s *Store) ListNotes(ctx context.Context, orderID string) ([]*entity.OrderNote, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.ListNotes", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, s.fail(span, "list notes", orderID, err)
	}
	notes, err := s.repo.Notes(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, "list notes", orderID, err)
	}
	return notes, nil
}

// SweepETAs re-applies the policy to early-stage orders whose OEM ETA has
// slipped into the past and returns the orders it corrected.
func (s *Store) SweepETAs(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := storeTracer.Start(ctx, "OrderStore.SweepETAs")
	defer span.End()

	now := s.now().UTC()
	candidates, err := s.repo.List(ctx, repository.Filter{
		Statuses:     earlyStatuses(),
		OEMEtaBefore: &now,
	})
	if err != nil {
		return nil, s.fail(span, "list sweep candidates", "", err)
	}

	var corrected []*entity.Order
	for _, c := range candidates {
		var changed *entity.Order
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
			o, err := tx.Get(ctx, c.ID)
			if err != nil {
				return err
			}
			next := s.policy.Enforce(o.ETAs(), o.CreatedAt, o.Status)
			if next.Equal(o.ETAs()) {
				return nil
			}
			o.SetETAs(next)
			o.UpdatedAt = now
			changed = o
			return tx.Update(ctx, o)
		})
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return corrected, s.fail(span, "sweep etas", c.ID, err)
		}
		if changed != nil {
			corrected = append(corrected, changed)
			s.metrics.etaCorrections.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "sweep")))
		}
	}

	span.SetAttributes(attribute.Int("orders.corrected", len(corrected)))
	if len(corrected) > 0 {
		s.logger.Info("order etas swept", zap.Int("corrected", len(corrected)))
	}
	return corrected, nil
}

func (s *Store) generator(seq identifier.Sequencer) *identifier.Generator {
	return identifier.NewGenerator(seq, s.ids)
}

func (s *Store) countCorrection(ctx context.Context, requested, stored lifecycle.ETAs, source string) {
	if requested.Equal(stored) {
		return
	}
	s.metrics.etaCorrections.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// fail maps repository errors onto errorbank kinds and records them on the span.
func (s *Store) fail(span trace.Span, op, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return errorbank.Conflict("order already exists", errorbank.WithDetail("id", id), errorbank.WithCause(err))
	}
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	span.RecordError(err)
	s.logger.Error(op+" failed", zap.String("order_id", id), zap.Error(err))
	return errorbank.Internal("failed to "+op, errorbank.WithCause(err))
}

func assignVIN(ctx context.Context, t *transition, _, _ lifecycle.Status) error {
	if t.order.VIN != "" {
		return nil
	}
	vin, err := t.ids.VIN(ctx, source(t.order))
	if err != nil {
		return err
	}
	t.order.VIN = vin
	return nil
}

func setStatus(t *transition, to lifecycle.Status) {
	t.order.Status = to
}

func source(o *entity.Order) identifier.Source {
	return identifier.Source{
		Series:     o.Build.Chassis.Series,
		Drivetrain: o.Build.Chassis.Drivetrain,
		Cab:        o.Build.Chassis.Cab,
		DealerCode: o.DealerCode,
		CreatedAt:  o.CreatedAt,
	}
}

func earlyStatuses() []lifecycle.Status {
	var out []lifecycle.Status
	for _, st := range lifecycle.Flow() {
		if st.IsEarly() {
			out = append(out, st)
		}
	}
	return out
}

func newEvent(orderID string, from, to lifecycle.Status, at time.Time) *entity.OrderEvent {
	return &entity.OrderEvent{ID: newID(), OrderID: orderID, From: from, To: to, At: at}
}

// defaultOrderID returns ORD- followed by 12 random upper-case hex digits.
func defaultOrderID() string {
	u := uuid.New()
	return "ORD-" + strings.ToUpper(hex.EncodeToString(u[10:]))
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
