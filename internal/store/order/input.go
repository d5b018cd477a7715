package order

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

var validate = newValidator()

// CreateInput is the payload accepted by Create.
type CreateInput struct {
	DealerCode  string         `json:"dealerCode" validate:"required"`
	UpfitterID  string         `json:"upfitterId" validate:"required"`
	Build       entity.Build   `json:"build"`
	Pricing     entity.Pricing `json:"pricing"`
	IsStock     bool           `json:"isStock"`
	BuyerName   string         `json:"buyerName"`
	OEMEta      *time.Time     `json:"oemEta"`
	UpfitterEta *time.Time     `json:"upfitterEta"`
	DeliveryEta *time.Time     `json:"deliveryEta"`
	// CreatedAt overrides the creation timestamp; fixtures use it to backdate orders.
	CreatedAt time.Time `json:"-"`
}

func (in CreateInput) normalize() CreateInput {
	in.DealerCode = strings.TrimSpace(in.DealerCode)
	in.UpfitterID = strings.TrimSpace(in.UpfitterID)
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	in.Build = in.Build.Clone()
	in.Build.BodyType = strings.TrimSpace(in.Build.BodyType)
	in.Build.Manufacturer = strings.TrimSpace(in.Build.Manufacturer)
	in.Build.Chassis.Series = strings.TrimSpace(in.Build.Chassis.Series)
	if in.UpfitterID == "" && in.Build.Upfitter != nil {
		in.UpfitterID = strings.TrimSpace(in.Build.Upfitter.ID)
	}
	return in
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateCreate reports every missing field in one error.
func validateCreate(in CreateInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorbank.Internal("validate order payload", errorbank.WithCause(err))
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldPath(fe.Namespace()))
	}
	return errorbank.Validation("missing required order fields: "+strings.Join(fields, ", "), fields)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// ParseInventoryStatus accepts STOCK or SOLD in any case.
func ParseInventoryStatus(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case entity.InventoryStock, entity.InventorySold:
		return s, nil
	}
	return "", errorbank.InvalidArgument("inventory status must be STOCK or SOLD", errorbank.WithDetail("status", raw))
}

// ParseWebsiteStatus accepts DRAFT, PUBLISHED or UNPUBLISHED in any case.
func ParseWebsiteStatus(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case entity.WebsiteDraft, entity.WebsitePublished, entity.WebsiteUnpublished:
		return s, nil
	}
	return "", errorbank.InvalidArgument("dealer website status must be DRAFT, PUBLISHED or UNPUBLISHED", errorbank.WithDetail("status", raw))
}
