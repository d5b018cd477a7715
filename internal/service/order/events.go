package order

import (
	"time"

	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
)

// Event types published on the order topic.
const (
	EventOrderCreated         = "order.created"
	EventStatusChanged        = "order.status_changed"
	EventETAsUpdated          = "order.etas_updated"
	EventInventoryChanged     = "order.inventory_changed"
	EventWebsiteStatusChanged = "order.website_status_changed"
	EventOrderDeleted         = "order.deleted"
)

// StatusChanged is the payload of EventStatusChanged.
type StatusChanged struct {
	OrderID     string           `json:"orderId"`
	From        lifecycle.Status `json:"from"`
	To          lifecycle.Status `json:"to"`
	VIN         string           `json:"vin,omitempty"`
	StockNumber string           `json:"stockNumber"`
	DealerCode  string           `json:"dealerCode"`
	BuyerName   string           `json:"buyerName,omitempty"`
	At          time.Time        `json:"at"`
}

// OrderDeleted is the payload of EventOrderDeleted.
type OrderDeleted struct {
	OrderID string `json:"orderId"`
}

// OrderSnapshot is the payload of every other order event.
type OrderSnapshot struct {
	Order *entity.Order `json:"order"`
}
