package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the broker wire format of a domain event
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes event into an envelope
func NewEnvelope(event shared.DomainEvent, correlationID string) (*Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}
	return &Envelope{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt().UTC(),
		CorrelationID: correlationID,
		Payload:       payload,
	}, nil
}

// RoutingKey is "<aggregate type>.<event type>" in lower case, e.g. "order.orderplaced"
func (e *Envelope) RoutingKey() string {
	return routingKey(e.AggregateType, e.EventType)
}

// Decode unmarshals the payload into target
func (e *Envelope) Decode(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}
