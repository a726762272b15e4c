package gateway

import (
	"bytes"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/goccy/go-json"
)

const (
	EventStart     = "start"
	EventBroadcast = "broadcast"
	EventError     = "error"
)

const connectedMessage = "You are connected to the tracker service"

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type startPayload struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
}

type broadcastPayload struct {
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type messagePayload struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// decodeLiveUpdate accepts only the live tracking fields; any other key is
// rejected rather than merged into the delivery.
func decodeLiveUpdate(raw json.RawMessage) (models.LiveUpdate, error) {
	var upd models.LiveUpdate
	if len(raw) == 0 {
		return upd, apperrors.Invalid("No live tracking fields supplied")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		return upd, apperrors.Invalid("Only lat, long, location and eta can be broadcast")
	}
	return upd, nil
}
