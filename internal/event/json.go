package event

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// jsonEvent is the wire form of an event as exchanged by clients
type jsonEvent struct {
	ID        string     `json:"id" validate:"required,len=64,hexadecimal"`
	PubKey    string     `json:"pubkey" validate:"required,len=64,hexadecimal"`
	CreatedAt uint64     `json:"created_at"`
	Kind      uint16     `json:"kind"`
	Tags      [][]string `json:"tags" validate:"dive,min=1"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig" validate:"required,len=128,hexadecimal"`
}

// MarshalJSON encodes the event in its wire form
func (e Event) MarshalJSON() ([]byte, error) {
	tags := make([][]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = []string(t)
	}

	return json.Marshal(jsonEvent{
		ID:        e.ID.String(),
		PubKey:    e.PubKey.String(),
		CreatedAt: uint64(e.CreatedAt),
		Kind:      uint16(e.Kind),
		Tags:      tags,
		Content:   e.Content,
		Sig:       e.Sig.String(),
	})
}

// UnmarshalJSON decodes and validates the wire form of an event
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw jsonEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to unmarshal event")
	}

	if err := validate.Struct(raw); err != nil {
		return errors.Wrap(err, "invalid event")
	}

	var out Event
	if err := out.ID.UnmarshalText([]byte(raw.ID)); err != nil {
		return err
	}
	if err := out.PubKey.UnmarshalText([]byte(raw.PubKey)); err != nil {
		return err
	}
	if err := out.Sig.UnmarshalText([]byte(raw.Sig)); err != nil {
		return err
	}

	out.CreatedAt = Timestamp(raw.CreatedAt)
	out.Kind = Kind(raw.Kind)
	out.Content = raw.Content
	out.Tags = make([]Tag, len(raw.Tags))
	for i, t := range raw.Tags {
		out.Tags[i] = Tag(t)
	}

	*e = out
	return nil
}
