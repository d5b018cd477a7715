package dto

import (
	"time"

	"github.com/Additional-Code/upfit/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                  string         `json:"id"`
	DealerCode          string         `json:"dealerCode"`
	UpfitterID          string         `json:"upfitterId"`
	Status              string         `json:"status"`
	StatusLabel         string         `json:"statusLabel"`
	OEMEta              *time.Time     `json:"oemEta"`
	UpfitterEta         *time.Time     `json:"upfitterEta"`
	DeliveryEta         *time.Time     `json:"deliveryEta"`
	Build               entity.Build   `json:"buildJson"`
	Pricing             entity.Pricing `json:"pricingJson"`
	InventoryStatus     string         `json:"inventoryStatus"`
	IsStock             bool           `json:"isStock"`
	BuyerName           string         `json:"buyerName"`
	DealerWebsiteStatus string         `json:"dealerWebsiteStatus"`
	StockNumber         string         `json:"stockNumber"`
	VIN                 string         `json:"vin"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// EventResponse is one status history entry.
type EventResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	FromLabel string    `json:"fromLabel,omitempty"`
	To        string    `json:"to"`
	ToLabel   string    `json:"toLabel"`
	At        time.Time `json:"at"`
}

// NoteResponse is a free text note.
type NoteResponse struct {
	ID      string    `json:"id"`
	OrderID string    `json:"orderId"`
	Text    string    `json:"text"`
	User    string    `json:"user"`
	At      time.Time `json:"at"`
}

// OrderDetailResponse is an order with its status history.
type OrderDetailResponse struct {
	Order  OrderResponse   `json:"order"`
	Events []EventResponse `json:"events"`
}

// CreateOrderResponse identifies a newly created order.
type CreateOrderResponse struct {
	ID          string `json:"id"`
	StockNumber string `json:"stockNumber"`
}

// TransitionResponse reports the status an order moved to.
type TransitionResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	StatusLabel string        `json:"statusLabel"`
	VIN         string        `json:"vin"`
	Event       EventResponse `json:"event"`
}

// InventoryStatusResponse reports the inventory fields after a change.
type InventoryStatusResponse struct {
	InventoryStatus string `json:"inventoryStatus"`
	IsStock         bool   `json:"isStock"`
	BuyerName       string `json:"buyerName"`
}

// OrderEnvelope wraps a single order.
type OrderEnvelope struct {
	Order OrderResponse `json:"order"`
}

// NoteEnvelope wraps a single note.
type NoteEnvelope struct {
	Note NoteResponse `json:"note"`
}

// PublishListingResponse reports where a listing was published.
type PublishListingResponse struct {
	Order   OrderResponse `json:"order"`
	Channel string        `json:"channel"`
}

// DeleteOrdersResponse reports how many orders were removed.
type DeleteOrdersResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// StatusOption describes one lifecycle stage.
type StatusOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// CreateOrderRequest is the create payload.
type CreateOrderRequest struct {
	DealerCode  string         `json:"dealerCode"`
	UpfitterID  string         `json:"upfitterId"`
	Build       entity.Build   `json:"buildJson"`
	Pricing     entity.Pricing `json:"pricingJson"`
	IsStock     bool           `json:"isStock"`
	BuyerName   string         `json:"buyerName"`
	OEMEta      *time.Time     `json:"oemEta"`
	UpfitterEta *time.Time     `json:"upfitterEta"`
	DeliveryEta *time.Time     `json:"deliveryEta"`
}

// TransitionRequest names the target status.
type TransitionRequest struct {
	Status string `json:"status"`
}

// UpdateETAsRequest carries the dates to change; omitted dates are kept.
type UpdateETAsRequest struct {
	OEMEta      *time.Time `json:"oemEta"`
	UpfitterEta *time.Time `json:"upfitterEta"`
	DeliveryEta *time.Time `json:"deliveryEta"`
}

// InventoryStatusRequest switches between STOCK and SOLD.
type InventoryStatusRequest struct {
	Status    string `json:"status"`
	BuyerName string `json:"buyerName"`
}

// WebsiteStatusRequest sets the dealer website status.
type WebsiteStatusRequest struct {
	Status string `json:"status"`
}

// NoteRequest adds a note.
type NoteRequest struct {
	Text string `json:"text"`
	User string `json:"user"`
}

// DeleteOrdersRequest lists the orders to delete.
type DeleteOrdersRequest struct {
	IDs []string `json:"ids"`
}
