package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Additional-Code/upfit/internal/entity"
)

type memoryState struct {
	orders []*entity.Order
	events []*entity.OrderEvent
	notes  []*entity.OrderNote
	seqs   map[string]int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		orders: make([]*entity.Order, len(s.orders)),
		events: append([]*entity.OrderEvent(nil), s.events...),
		notes:  append([]*entity.OrderNote(nil), s.notes...),
		seqs:   make(map[string]int64, len(s.seqs)),
	}
	for i, o := range s.orders {
		c.orders[i] = o.Clone()
	}
	for k, v := range s.seqs {
		c.seqs[k] = v
	}
	return c
}

func (s *memoryState) index(id string) int {
	for i, o := range s.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// MemoryRepository keeps everything in process. A single mutex serialises
// writers; WithTx holds it for the whole unit and rolls back on error.
type MemoryRepository struct {
	mu    *sync.RWMutex
	state *memoryState
	inTx  bool
}

// NewMemoryRepository returns an empty in-process repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:    &sync.RWMutex{},
		state: &memoryState{seqs: make(map[string]int64)},
	}
}

func (r *MemoryRepository) read() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *MemoryRepository) write() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// Create prepends the order so listings stay newest first.
func (r *MemoryRepository) Create(_ context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	defer r.write()()
	if r.state.index(order.ID) >= 0 {
		return fmt.Errorf("%w: id %s", ErrDuplicate, order.ID)
	}
	for _, o := range r.state.orders {
		if o.StockNumber == order.StockNumber {
			return fmt.Errorf("%w: stock number %s", ErrDuplicate, order.StockNumber)
		}
	}
	r.state.orders = append([]*entity.Order{order.Clone()}, r.state.orders...)
	return nil
}

// Update replaces a stored order in place.
func (r *MemoryRepository) Update(_ context.Context, order *entity.Order) error {
	defer r.write()()
	i := r.state.index(order.ID)
	if i < 0 {
		return ErrNotFound
	}
	r.state.orders[i] = order.Clone()
	return nil
}

// Get returns a copy of the order with the exact id.
func (r *MemoryRepository) Get(_ context.Context, id string) (*entity.Order, error) {
	defer r.read()()
	i := r.state.index(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return r.state.orders[i].Clone(), nil
}

// Lookup matches id, stock number or VIN ignoring case.
func (r *MemoryRepository) Lookup(_ context.Context, key string) (*entity.Order, error) {
	lc := strings.ToLower(strings.TrimSpace(key))
	if lc == "" {
		return nil, ErrNotFound
	}
	defer r.read()()
	for _, o := range r.state.orders {
		if strings.ToLower(o.ID) == lc || strings.ToLower(o.StockNumber) == lc || strings.ToLower(o.VIN) == lc {
			return o.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// List walks the orders in store order.
func (r *MemoryRepository) List(_ context.Context, f Filter) ([]*entity.Order, error) {
	defer r.read()()
	out := make([]*entity.Order, 0, len(r.state.orders))
	for _, o := range r.state.orders {
		if Matches(o, f) {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

// StockNumbers returns the stock numbers starting with prefix.
func (r *MemoryRepository) StockNumbers(_ context.Context, prefix string) ([]string, error) {
	defer r.read()()
	var out []string
	for _, o := range r.state.orders {
		if strings.HasPrefix(o.StockNumber, prefix) {
			out = append(out, o.StockNumber)
		}
	}
	return out, nil
}

// Delete drops the orders with their events and notes.
func (r *MemoryRepository) Delete(_ context.Context, ids []string) (int, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	defer r.write()()

	kept := r.state.orders[:0:0]
	for _, o := range r.state.orders {
		if _, ok := set[o.ID]; !ok {
			kept = append(kept, o)
		}
	}
	deleted := len(r.state.orders) - len(kept)
	r.state.orders = kept

	events := r.state.events[:0:0]
	for _, e := range r.state.events {
		if _, ok := set[e.OrderID]; !ok {
			events = append(events, e)
		}
	}
	r.state.events = events

	notes := r.state.notes[:0:0]
	for _, n := range r.state.notes {
		if _, ok := set[n.OrderID]; !ok {
			notes = append(notes, n)
		}
	}
	r.state.notes = notes

	return deleted, nil
}

// AppendEvent stores a transition record.
func (r *MemoryRepository) AppendEvent(_ context.Context, event *entity.OrderEvent) error {
	defer r.write()()
	e := *event
	r.state.events = append(r.state.events, &e)
	return nil
}

// Events returns the order's transitions oldest first.
func (r *MemoryRepository) Events(_ context.Context, orderID string) ([]*entity.OrderEvent, error) {
	defer r.read()()
	var out []*entity.OrderEvent
	for _, e := range r.state.events {
		if e.OrderID == orderID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}

// AddNote stores a note.
func (r *MemoryRepository) AddNote(_ context.Context, note *entity.OrderNote) error {
	defer r.write()()
	n := *note
	r.state.notes = append(r.state.notes, &n)
	return nil
}

// Notes returns the order's notes in insertion order.
func (r *MemoryRepository) Notes(_ context.Context, orderID string) ([]*entity.OrderNote, error) {
	defer r.read()()
	var out []*entity.OrderNote
	for _, n := range r.state.notes {
		if n.OrderID == orderID {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

// NextValue reads and advances the counter under the write lock.
func (r *MemoryRepository) NextValue(_ context.Context, name string, start int64) (int64, error) {
	defer r.write()()
	v, ok := r.state.seqs[name]
	if !ok {
		v = start
	}
	r.state.seqs[name] = v + 1
	return v, nil
}

// WithTx holds the write lock for fn and restores the previous state when fn fails.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	if err := fn(ctx, &MemoryRepository{mu: r.mu, state: r.state, inTx: true}); err != nil {
		*r.state = *snapshot
		return err
	}
	return nil
}
