// Package contracts defines public event contracts for inter-module communication.
// Modules should import event types from here, NOT from other module's domain packages.
package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rai/storefront-triggers/modules/shared/events"
)

// ErrUnexpectedEventType is returned when an envelope carries a type the decoder does not handle.
var ErrUnexpectedEventType = errors.New("unexpected event type")

// Envelope is the wire format of a change-feed notification.
// Data holds the full field set of the created document and may be null.
type Envelope struct {
	EventID    string           `json:"event_id"`
	Type       events.EventType `json:"type"`
	DocumentID string           `json:"document_id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Data       json.RawMessage  `json:"data"`
}

// Decoder turns a raw message payload into a typed event.
type Decoder func(payload []byte) (events.Event, error)

func decodeEnvelope(payload []byte, want events.EventType) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		env.Type = want
	}
	if env.Type != want {
		return Envelope{}, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedEventType, env.Type, want)
	}
	if env.EventID == "" {
		env.EventID = uuid.New().String()
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

func (e Envelope) hasData() bool {
	data := bytes.TrimSpace(e.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

func (e Envelope) baseEvent(aggregateID string) events.BaseEvent {
	return events.BaseEvent{
		ID:          e.EventID,
		Type:        e.Type,
		Timestamp:   e.OccurredAt,
		AggregateId: aggregateID,
	}
}
