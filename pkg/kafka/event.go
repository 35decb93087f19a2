package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope version written by this package.
const SchemaVersion = 1

// Event is the envelope of every message on a giftcart topic. Subject is the
// id of the entity the event is about (the cart owner for cart events) and is
// also the partition key, so one subject's events stay ordered.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	SubjectKind   string          `json:"subject_kind"`
	Subject       string          `json:"subject"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Option customises an event built by NewEvent.
type Option func(*Event)

// WithCorrelationID tags the event with the request that caused it. Empty
// ids are ignored.
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		if id != "" {
			e.CorrelationID = id
		}
	}
}

// OccurredAt overrides the event time, which defaults to now.
func OccurredAt(t time.Time) Option {
	return func(e *Event) { e.OccurredAt = t.UTC() }
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType, subjectKind, subject, producer string, payload any, opts ...Option) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	e := &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		SubjectKind:   subjectKind,
		Subject:       subject,
		SchemaVersion: SchemaVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		Payload:       raw,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Marshal serializes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the payload into target.
func (e *Event) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// Decode parses an envelope and rejects ones missing an id, type or subject,
// or written with a newer schema than this package understands.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	switch {
	case e.ID == "", e.Type == "", e.Subject == "":
		return nil, errors.New("decode event: id, type and subject are required")
	case e.SchemaVersion > SchemaVersion:
		return nil, fmt.Errorf("decode event: unsupported schema version %d", e.SchemaVersion)
	}
	return &e, nil
}
