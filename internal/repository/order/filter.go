package order

import (
	"strings"

	"github.com/Additional-Code/upfit/internal/entity"
)

// Matches evaluates f against a single order the same way the SQL
// implementation does.
func Matches(o *entity.Order, f Filter) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DealerCode != "" && o.DealerCode != f.DealerCode {
		return false
	}
	if f.UpfitterID != "" && o.UpfitterID != f.UpfitterID && o.BuildUpfitterID != f.UpfitterID {
		return false
	}
	if f.IsStock != nil && o.IsStock != *f.IsStock {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	if f.OEMEtaBefore != nil && (o.OEMEta == nil || !o.OEMEta.Before(*f.OEMEtaBefore)) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		hit := false
		for _, v := range []string{o.ID, o.DealerCode, o.Manufacturer, o.BodyType, o.Series, o.Powertrain} {
			if strings.Contains(strings.ToLower(v), term) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
