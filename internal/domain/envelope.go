package domain

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Bus topics.
const (
	TopicIngest  = "data.ingest"
	TopicIngest2 = "data.ingest2"
)

// Kind is the envelope type tag.
type Kind string

const (
	KindCustomer      Kind = "customer"
	KindCampaign      Kind = "campaign"
	KindOrder         Kind = "order"
	KindCampaignEmail Kind = "campaign-email"
)

// Topic returns the topic envelopes of this kind are published on.
func (k Kind) Topic() string {
	switch k {
	case KindOrder, KindCampaignEmail:
		return TopicIngest2
	default:
		return TopicIngest
	}
}

func (k Kind) Known() bool {
	switch k {
	case KindCustomer, KindCampaign, KindOrder, KindCampaignEmail:
		return true
	}
	return false
}

// Envelope is the wire wrapper published on the bus.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope wraps a raw payload with a fresh id.
func NewEnvelope(kind Kind, data json.RawMessage, now time.Time) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      kind,
		Data:      data,
		Timestamp: now.UTC(),
	}
}

// Wrap marshals v and wraps it as an envelope of the given kind.
func Wrap(kind Kind, v any, now time.Time) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", kind)
	}
	return NewEnvelope(kind, b, now), nil
}

func (e Envelope) Encode() ([]byte, error) { return json.Marshal(e) }

// DecodeEnvelope parses the wire form. The payload is left raw.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	return env, nil
}

// Event is one of the closed set of envelope variants: CustomerCreated,
// CampaignCreated, OrderCreated, CampaignEmailRequested.
type Event interface {
	Kind() Kind
	sealed()
}

type CustomerCreated struct{ Payload CustomerPayload }

type CampaignCreated struct{ Payload CampaignPayload }

type OrderCreated struct{ Payload OrderPayload }

// CampaignEmailRequested carries a persisted campaign whose targets need
// delivery statuses.
type CampaignEmailRequested struct{ Campaign Campaign }

func (CustomerCreated) Kind() Kind        { return KindCustomer }
func (CampaignCreated) Kind() Kind        { return KindCampaign }
func (OrderCreated) Kind() Kind           { return KindOrder }
func (CampaignEmailRequested) Kind() Kind { return KindCampaignEmail }

func (CustomerCreated) sealed()        {}
func (CampaignCreated) sealed()        {}
func (OrderCreated) sealed()           {}
func (CampaignEmailRequested) sealed() {}

// Event decodes the payload into its typed variant. Unknown type tags
// return ErrUnknownKind.
func (e Envelope) Event() (Event, error) {
	switch e.Type {
	case KindCustomer:
		var ev CustomerCreated
		err := decodeData(e, &ev.Payload)
		return ev, err
	case KindCampaign:
		var ev CampaignCreated
		err := decodeData(e, &ev.Payload)
		return ev, err
	case KindOrder:
		var ev OrderCreated
		err := decodeData(e, &ev.Payload)
		return ev, err
	case KindCampaignEmail:
		var ev CampaignEmailRequested
		err := decodeData(e, &ev.Campaign)
		return ev, err
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "type %q", e.Type)
	}
}

func decodeData(e Envelope, v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return &ValidationError{Kind: e.Type, Fields: []FieldError{{Field: "data", Msg: "required"}}}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return &ValidationError{Kind: e.Type, Fields: []FieldError{{Field: "data", Msg: err.Error()}}}
	}
	return nil
}
