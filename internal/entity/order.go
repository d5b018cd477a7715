package entity

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/upfit/internal/lifecycle"
)

// Inventory statuses.
const (
	InventoryStock = "STOCK"
	InventorySold  = "SOLD"
)

// Dealer website statuses.
const (
	WebsiteDraft       = "DRAFT"
	WebsitePublished   = "PUBLISHED"
	WebsiteUnpublished = "UNPUBLISHED"
)

// Order is a commercial vehicle order tracked through the fulfillment pipeline.
// Manufacturer, BodyType, Series, Powertrain and BuildUpfitterID mirror the
// build snapshot so listings can be filtered in SQL.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o" json:"-"`

	ID                  string           `bun:"id,pk" json:"id"`
	DealerCode          string           `bun:"dealer_code,notnull" json:"dealerCode"`
	UpfitterID          string           `bun:"upfitter_id,notnull" json:"upfitterId"`
	Status              lifecycle.Status `bun:"status,notnull" json:"status"`
	OEMEta              *time.Time       `bun:"oem_eta" json:"oemEta"`
	UpfitterEta         *time.Time       `bun:"upfitter_eta" json:"upfitterEta"`
	DeliveryEta         *time.Time       `bun:"delivery_eta" json:"deliveryEta"`
	Build               Build            `bun:"build_json,notnull" json:"build"`
	Pricing             Pricing          `bun:"pricing_json,notnull" json:"pricing"`
	Manufacturer        string           `bun:"manufacturer,notnull" json:"manufacturer"`
	BodyType            string           `bun:"body_type,notnull" json:"bodyType"`
	Series              string           `bun:"series,notnull" json:"series"`
	Powertrain          string           `bun:"powertrain,notnull" json:"powertrain"`
	BuildUpfitterID     string           `bun:"build_upfitter_id,notnull" json:"buildUpfitterId"`
	InventoryStatus     string           `bun:"inventory_status,notnull" json:"inventoryStatus"`
	IsStock             bool             `bun:"is_stock,notnull" json:"isStock"`
	BuyerName           string           `bun:"buyer_name,notnull" json:"buyerName"`
	DealerWebsiteStatus string           `bun:"dealer_website_status,notnull" json:"dealerWebsiteStatus"`
	StockNumber         string           `bun:"stock_number,notnull,unique" json:"stockNumber"`
	VIN                 string           `bun:"vin,notnull" json:"vin"`
	CreatedAt           time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt           time.Time        `bun:"updated_at,notnull" json:"updatedAt"`
}

// ETAs returns the milestone triple.
func (o *Order) ETAs() lifecycle.ETAs {
	return lifecycle.ETAs{OEM: o.OEMEta, Upfitter: o.UpfitterEta, Delivery: o.DeliveryEta}
}

// SetETAs replaces the milestone triple.
func (o *Order) SetETAs(e lifecycle.ETAs) {
	o.OEMEta, o.UpfitterEta, o.DeliveryEta = e.OEM, e.Upfitter, e.Delivery
}

// SetBuild stores the snapshot and refreshes the searchable columns.
func (o *Order) SetBuild(b Build) {
	o.Build = b
	o.Manufacturer = b.Manufacturer
	o.BodyType = b.BodyType
	o.Series = b.Chassis.Series
	o.Powertrain = b.Chassis.Powertrain
	o.BuildUpfitterID = ""
	if b.Upfitter != nil {
		o.BuildUpfitterID = b.Upfitter.ID
	}
}

// SetInventory records the inventory status and keeps IsStock in sync.
func (o *Order) SetInventory(status, buyer string) {
	o.InventoryStatus = status
	o.IsStock = status == InventoryStock
	if o.IsStock {
		buyer = ""
	}
	o.BuyerName = buyer
}

// Clone returns a deep copy safe to hand out of a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.OEMEta = cloneTime(o.OEMEta)
	c.UpfitterEta = cloneTime(o.UpfitterEta)
	c.DeliveryEta = cloneTime(o.DeliveryEta)
	c.Build = o.Build.Clone()
	c.Pricing = o.Pricing.Clone()
	return &c
}

// OrderEvent is an immutable status transition record.
type OrderEvent struct {
	bun.BaseModel `bun:"table:order_events,alias:e" json:"-"`

	ID      string           `bun:"id,pk" json:"id"`
	OrderID string           `bun:"order_id,notnull" json:"orderId"`
	From    lifecycle.Status `bun:"from_status,notnull" json:"from"`
	To      lifecycle.Status `bun:"to_status,notnull" json:"to"`
	At      time.Time        `bun:"at,notnull" json:"at"`
}

// OrderNote is a free text annotation on an order.
type OrderNote struct {
	bun.BaseModel `bun:"table:order_notes,alias:n" json:"-"`

	ID      string    `bun:"id,pk" json:"id"`
	OrderID string    `bun:"order_id,notnull" json:"orderId"`
	Text    string    `bun:"text,notnull" json:"text"`
	User    string    `bun:"author,notnull" json:"user"`
	At      time.Time `bun:"at,notnull" json:"at"`
}

// Sequence is a persisted monotonic counter.
type Sequence struct {
	bun.BaseModel `bun:"table:sequences,alias:s" json:"-"`

	Name      string `bun:"name,pk" json:"name"`
	NextValue int64  `bun:"next_value,notnull" json:"nextValue"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
