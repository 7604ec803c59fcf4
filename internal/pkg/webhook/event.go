package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ParsedEvent is the provider-neutral shape extracted from a webhook payload.
type ParsedEvent struct {
	ID        string `json:"id" validate:"required"`
	Type      string `json:"type" validate:"required"`
	AccountID string `json:"account,omitempty"`
	ObjectID  string `json:"-"`
	Raw       []byte `json:"-"`
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Data    struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

var validate = validator.New()

// ParseEvent extracts event identity from a raw provider payload. The payload
// itself is kept verbatim; only id, type and the optional account/object
// references are lifted out.
func ParseEvent(rawBody []byte) (*ParsedEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("webhook: parse event payload: %w", err)
	}

	ev := &ParsedEvent{
		ID:        envelope.ID,
		Type:      envelope.Type,
		AccountID: envelope.Account,
		ObjectID:  envelope.Data.Object.ID,
		Raw:       rawBody,
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("webhook: event is missing required fields: %w", err)
	}
	return ev, nil
}
