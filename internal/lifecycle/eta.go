package lifecycle

import "time"

const day = 24 * time.Hour

// Gaps are the default spacing between consecutive milestones.
type Gaps struct {
	OEMToUpfit      time.Duration
	UpfitToDelivery time.Duration
}

// DefaultGaps returns 10 days OEM -> upfitter and 15 days upfitter -> delivery.
func DefaultGaps() Gaps {
	return Gaps{OEMToUpfit: 10 * day, UpfitToDelivery: 15 * day}
}

// ETAs is the milestone date triple. Nil means unknown.
type ETAs struct {
	OEM      *time.Time
	Upfitter *time.Time
	Delivery *time.Time
}

// Ordered reports OEM <= Upfitter <= Delivery for every known pair.
func (e ETAs) Ordered() bool {
	if e.OEM != nil && e.Upfitter != nil && e.OEM.After(*e.Upfitter) {
		return false
	}
	if e.Upfitter != nil && e.Delivery != nil && e.Upfitter.After(*e.Delivery) {
		return false
	}
	if e.OEM != nil && e.Delivery != nil && e.OEM.After(*e.Delivery) {
		return false
	}
	return true
}

// Equal compares two triples instant by instant.
func (e ETAs) Equal(other ETAs) bool {
	return sameTime(e.OEM, other.OEM) && sameTime(e.Upfitter, other.Upfitter) && sameTime(e.Delivery, other.Delivery)
}

// Merge overlays the known dates of patch onto e.
func (e ETAs) Merge(patch ETAs) ETAs {
	if patch.OEM != nil {
		e.OEM = patch.OEM
	}
	if patch.Upfitter != nil {
		e.Upfitter = patch.Upfitter
	}
	if patch.Delivery != nil {
		e.Delivery = patch.Delivery
	}
	return e
}

// Policy normalises ETA triples. It never fails: out-of-order or past-due
// dates are corrected, not rejected.
type Policy struct {
	gaps Gaps
	now  func() time.Time
}

// NewPolicy builds a policy; zero gaps fall back to DefaultGaps and a nil clock to time.Now.
func NewPolicy(gaps Gaps, now func() time.Time) *Policy {
	def := DefaultGaps()
	if gaps.OEMToUpfit <= 0 {
		gaps.OEMToUpfit = def.OEMToUpfit
	}
	if gaps.UpfitToDelivery <= 0 {
		gaps.UpfitToDelivery = def.UpfitToDelivery
	}
	if now == nil {
		now = time.Now
	}
	return &Policy{gaps: gaps, now: now}
}

// Gaps returns the configured milestone spacing.
func (p *Policy) Gaps() Gaps {
	return p.gaps
}

// Sequence fills and clamps the triple around the latest known milestone
// (delivery, then upfitter, then OEM). Earlier dates are pulled backward;
// later dates are never pushed.
func (p *Policy) Sequence(in ETAs) ETAs {
	oem, upfit, delivery := utc(in.OEM), utc(in.Upfitter), utc(in.Delivery)
	g1, g2 := p.gaps.OEMToUpfit, p.gaps.UpfitToDelivery

	switch {
	case delivery != nil:
		if upfit == nil || upfit.After(*delivery) {
			upfit = ptr(delivery.Add(-g2))
		}
		if oem == nil || oem.After(*upfit) {
			oem = ptr(upfit.Add(-g1))
		}
	case upfit != nil:
		delivery = ptr(upfit.Add(g2))
		if oem == nil || oem.After(*upfit) {
			oem = ptr(upfit.Add(-g1))
		}
	case oem != nil:
		upfit = ptr(oem.Add(g1))
		delivery = ptr(upfit.Add(g2))
	}

	return ETAs{OEM: oem, Upfitter: upfit, Delivery: delivery}
}

// Enforce sequences the triple, applies the business rules to the OEM date
// (not before createdAt, not past due while status is early) and then
// re-propagates forward from the corrected OEM date so the result is always
// fully ordered.
func (p *Policy) Enforce(in ETAs, createdAt time.Time, status Status) ETAs {
	out := p.Sequence(in)
	if out.OEM == nil {
		return out
	}

	oem := *out.OEM
	if !createdAt.IsZero() && oem.Before(createdAt) {
		oem = createdAt.UTC().Add(day)
	}
	if status.IsEarly() {
		now := p.now().UTC()
		if oem.Before(now) {
			oem = now.Add(2 * day)
		}
	}
	out.OEM = &oem

	return p.propagate(out)
}

func (p *Policy) propagate(e ETAs) ETAs {
	if e.Upfitter == nil || e.Upfitter.Before(*e.OEM) {
		e.Upfitter = ptr(e.OEM.Add(p.gaps.OEMToUpfit))
	}
	if e.Delivery == nil || e.Delivery.Before(*e.Upfitter) {
		e.Delivery = ptr(e.Upfitter.Add(p.gaps.UpfitToDelivery))
	}
	return e
}

func utc(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return ptr(t.UTC())
}

func ptr(t time.Time) *time.Time {
	return &t
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
