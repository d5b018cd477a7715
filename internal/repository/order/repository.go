package order

import (
	"context"
	"errors"
	"time"

	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
)

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicate is returned when an order id or stock number is already stored.
	ErrDuplicate = errors.New("order already exists")
)

// Filter narrows List results. Zero values are ignored; set fields are ANDed.
type Filter struct {
	Status     lifecycle.Status
	Statuses   []lifecycle.Status
	DealerCode string
	UpfitterID string
	IsStock    *bool
	Query      string
	From       *time.Time
	To         *time.Time
	// OEMEtaBefore keeps orders whose OEM ETA is set and strictly earlier.
	OEMEtaBefore *time.Time
}

// Repository persists orders with their events, notes and counters.
// List returns newest orders first.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	// Get matches the id exactly. Inside WithTx the row is locked where the
	// backend supports it.
	Get(ctx context.Context, id string) (*entity.Order, error)
	// Lookup matches id, stock number or VIN case-insensitively.
	Lookup(ctx context.Context, key string) (*entity.Order, error)
	List(ctx context.Context, filter Filter) ([]*entity.Order, error)
	// StockNumbers returns every stored stock number starting with prefix.
	StockNumbers(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the orders with their events and notes and reports how
	// many orders existed.
	Delete(ctx context.Context, ids []string) (int, error)

	AppendEvent(ctx context.Context, event *entity.OrderEvent) error
	Events(ctx context.Context, orderID string) ([]*entity.OrderEvent, error)
	AddNote(ctx context.Context, note *entity.OrderNote) error
	Notes(ctx context.Context, orderID string) ([]*entity.OrderNote, error)

	// NextValue returns the current value of the named counter and advances
	// it, creating the counter at start when missing.
	NextValue(ctx context.Context, name string, start int64) (int64, error)

	// WithTx runs fn as one atomic unit: either every write inside it is kept
	// or none is.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
