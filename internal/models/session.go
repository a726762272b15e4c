package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a party that can bind a live socket to a tracking session.
type Participant string

const (
	ParticipantCourier    Participant = "courier"
	ParticipantDispatcher Participant = "dispatcher"
	ParticipantRecipient  Participant = "recipient"
)

func ParseParticipant(s string) (Participant, bool) {
	p := Participant(s)
	switch p {
	case ParticipantCourier, ParticipantDispatcher, ParticipantRecipient:
		return p, true
	}
	return "", false
}

type TrackingSession struct {
	SessionID          string    `json:"sessionId"`
	DeliveryID         uuid.UUID `json:"delivery"`
	CourierSocketID    *string   `json:"courier_socket_id,omitempty"`
	DispatcherSocketID *string   `json:"dispatcher_socket_id,omitempty"`
	RecipientSocketID  *string   `json:"recipient_socket_id,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// SocketBindings: empty string means the role has no live socket.
type SocketBindings struct {
	Courier    string `json:"courier_socket_id"`
	Dispatcher string `json:"dispatcher_socket_id"`
	Recipient  string `json:"recipient_socket_id"`
}

func (t *TrackingSession) Bindings() SocketBindings {
	return SocketBindings{
		Courier:    deref(t.CourierSocketID),
		Dispatcher: deref(t.DispatcherSocketID),
		Recipient:  deref(t.RecipientSocketID),
	}
}

func (b SocketBindings) Of(p Participant) string {
	switch p {
	case ParticipantCourier:
		return b.Courier
	case ParticipantDispatcher:
		return b.Dispatcher
	case ParticipantRecipient:
		return b.Recipient
	}
	return ""
}

// All returns bound socket ids without blanks and duplicates.
func (b SocketBindings) All() []string {
	out := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, id := range []string{b.Courier, b.Dispatcher, b.Recipient} {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
