package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Chassis describes the base vehicle.
type Chassis struct {
	Series     string `json:"series" validate:"required"`
	Cab        string `json:"cab,omitempty"`
	Drivetrain string `json:"drivetrain,omitempty"`
	Wheelbase  string `json:"wheelbase,omitempty"`
	GVWR       string `json:"gvwr,omitempty"`
	Powertrain string `json:"powertrain,omitempty"`
}

// UpfitterRef points at the upfitter chosen in the configurator.
type UpfitterRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Build is the configuration snapshot captured at order time.
type Build struct {
	BodyType     string         `json:"bodyType" validate:"required"`
	Manufacturer string         `json:"manufacturer" validate:"required"`
	Chassis      Chassis        `json:"chassis"`
	BodySpecs    map[string]any `json:"bodySpecs,omitempty"`
	Options      []string       `json:"options,omitempty"`
	Upfitter     *UpfitterRef   `json:"upfitter,omitempty"`
}

// Value stores the snapshot as JSON text.
func (b Build) Value() (driver.Value, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads a JSON snapshot.
func (b *Build) Scan(src any) error {
	return scanJSON(src, b)
}

// Clone deep copies the snapshot.
func (b Build) Clone() Build {
	c := b
	if b.BodySpecs != nil {
		c.BodySpecs = make(map[string]any, len(b.BodySpecs))
		for k, v := range b.BodySpecs {
			c.BodySpecs[k] = v
		}
	}
	c.Options = append([]string(nil), b.Options...)
	if b.Upfitter != nil {
		u := *b.Upfitter
		c.Upfitter = &u
	}
	return c
}

// Incentive is a named price reduction.
type Incentive struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Pricing is the price breakdown produced by the configurator.
type Pricing struct {
	ChassisMSRP  decimal.Decimal `json:"chassisMsrp"`
	BodyPrice    decimal.Decimal `json:"bodyPrice"`
	OptionsPrice decimal.Decimal `json:"optionsPrice"`
	Labor        decimal.Decimal `json:"labor"`
	Freight      decimal.Decimal `json:"freight"`
	Taxes        decimal.Decimal `json:"taxes"`
	Incentives   []Incentive     `json:"incentives"`
	Total        decimal.Decimal `json:"total"`
}

// Normalize derives Total when it was not supplied:
// chassis + body + options + labor + freight + taxes - incentives.
func (p Pricing) Normalize() Pricing {
	if !p.Total.IsZero() {
		return p
	}
	total := decimal.Sum(p.ChassisMSRP, p.BodyPrice, p.OptionsPrice, p.Labor, p.Freight, p.Taxes)
	for _, in := range p.Incentives {
		total = total.Sub(in.Amount)
	}
	p.Total = total
	return p
}

// Value stores the pricing as JSON text.
func (p Pricing) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads JSON pricing.
func (p *Pricing) Scan(src any) error {
	return scanJSON(src, p)
}

// Clone deep copies the pricing.
func (p Pricing) Clone() Pricing {
	c := p
	c.Incentives = append([]Incentive(nil), p.Incentives...)
	return c
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported snapshot source %T", src)
	}
}
