package messages

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type DeliveryEventType string

const (
	DeliveryCreated          DeliveryEventType = "created"
	DeliveryCancelled        DeliveryEventType = "cancelled"
	DeliveryRecipientReplied DeliveryEventType = "recipient_replied"
	DeliveryPickedUp         DeliveryEventType = "picked_up"
	DeliveryAwaitingApproval DeliveryEventType = "awaiting_approval"
	DeliveryDelivered        DeliveryEventType = "delivered"
)

// DeliveryEvent is published on every state machine transition. Keyed by
// delivery id so one delivery's events stay ordered within a partition.
type DeliveryEvent struct {
	Type       DeliveryEventType `json:"type"`
	DeliveryID string            `json:"delivery_id"`
	TrackingID string            `json:"tracking_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Status     string            `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (e DeliveryEvent) Encode() (key, value []byte, err error) {
	value, err = json.Marshal(e)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal delivery event")
	}
	return []byte(e.DeliveryID), value, nil
}

func DecodeDeliveryEvent(value []byte) (DeliveryEvent, error) {
	var e DeliveryEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return DeliveryEvent{}, errors.Wrap(err, "unmarshal delivery event")
	}
	if e.DeliveryID == "" || e.Type == "" {
		return DeliveryEvent{}, errors.New("delivery event without id or type")
	}
	return e, nil
}
