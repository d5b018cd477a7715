// Package lifecycle holds the order fulfillment state machine and the ETA
// policy that keeps the three milestone dates consistent with it.
package lifecycle

import (
	"strings"

	"github.com/Additional-Code/upfit/pkg/errorbank"
)

// Status is a stage code in the fulfillment pipeline.
type Status string

const (
	ConfigReceived   Status = "CONFIG_RECEIVED"
	OEMAllocated     Status = "OEM_ALLOCATED"
	OEMProduction    Status = "OEM_PRODUCTION"
	OEMInTransit     Status = "OEM_IN_TRANSIT"
	AtUpfitter       Status = "AT_UPFITTER"
	UpfitInProgress  Status = "UPFIT_IN_PROGRESS"
	ReadyForDelivery Status = "READY_FOR_DELIVERY"
	Delivered        Status = "DELIVERED"

	// Canceled is absorbing: nothing leaves it.
	Canceled Status = "CANCELED"
)

var flow = []Status{
	ConfigReceived,
	OEMAllocated,
	OEMProduction,
	OEMInTransit,
	AtUpfitter,
	UpfitInProgress,
	ReadyForDelivery,
	Delivered,
}

var labels = map[Status]string{
	ConfigReceived:   "Order Received",
	OEMAllocated:     "OEM Allocated",
	OEMProduction:    "OEM Production",
	OEMInTransit:     "OEM In Transit",
	AtUpfitter:       "At Upfitter",
	UpfitInProgress:  "Upfit In Progress",
	ReadyForDelivery: "Ready For Delivery",
	Delivered:        "Delivered",
	Canceled:         "Canceled",
}

// Flow returns the forward stage sequence, first stage first.
func Flow() []Status {
	return append([]Status(nil), flow...)
}

// Initial is the stage every new order starts in.
func Initial() Status {
	return flow[0]
}

// ParseStatus normalises raw input and rejects unknown codes.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", errorbank.InvalidArgument("unknown order status", errorbank.WithDetail("status", raw))
	}
	return s, nil
}

// Index reports the position of s in the forward flow, or -1 for Canceled and unknown codes.
func (s Status) Index() int {
	for i, st := range flow {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage or Canceled.
func (s Status) Valid() bool {
	return s == Canceled || s.Index() >= 0
}

// Label returns the human readable stage name.
func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Next returns the immediate successor in the flow.
func (s Status) Next() (Status, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(flow) {
		return "", false
	}
	return flow[i+1], true
}

// Reached reports whether s is at or past stage in the forward flow.
// Canceled never reaches anything.
func (s Status) Reached(stage Status) bool {
	i := s.Index()
	return i >= 0 && i >= stage.Index()
}

// IsEarly reports whether s is at or before OEM_IN_TRANSIT, where a past-due
// OEM ETA is not tolerated. An empty status counts as the initial stage.
func (s Status) IsEarly() bool {
	if s == "" {
		return true
	}
	i := s.Index()
	return i >= 0 && i <= OEMInTransit.Index()
}

// CanTransition reports whether from -> to is legal: one step forward, or
// cancellation from anything but Canceled.
func CanTransition(from, to Status) bool {
	if from == Canceled || !from.Valid() {
		return false
	}
	if to == Canceled {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}

// CheckTransition is CanTransition returning an InvalidTransition error.
func CheckTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return errorbank.InvalidTransition("illegal status transition",
		errorbank.WithDetail("from", string(from)),
		errorbank.WithDetail("to", string(to)),
	)
}
