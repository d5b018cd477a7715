package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every domain event travels in.
type Event struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// NewEvent wraps data into an envelope with a fresh event id.
func NewEvent(eventType, aggregateID string, occurredAt time.Time, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventType:   eventType,
		EventID:     id.String(),
		AggregateID: aggregateID,
		OccurredAt:  occurredAt.UTC(),
		Data:        raw,
	}, nil
}

// DecodeEvent parses the envelope carried by msg.
func DecodeEvent(msg Message) (Event, error) {
	var evt Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if evt.EventType == "" {
		return Event{}, fmt.Errorf("event envelope at offset %d has no type", msg.Offset)
	}
	return evt, nil
}

// DecodeData unmarshals the event payload into dst.
func (e Event) DecodeData(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no data", e.EventType)
	}
	return json.Unmarshal(e.Data, dst)
}

// PublishEvent publishes evt keyed by its aggregate id.
func PublishEvent(ctx context.Context, client Client, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return client.Publish(ctx, []byte(evt.AggregateID), payload)
}
