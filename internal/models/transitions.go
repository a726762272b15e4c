package models

type Action string

const (
	ActionEdit             Action = "edit"
	ActionResendRequest    Action = "resend_request"
	ActionRecipientAccept  Action = "recipient_accept"
	ActionCancel           Action = "cancel"
	ActionAcceptPickup     Action = "accept_pickup"
	ActionSubmitEvidence   Action = "submit_evidence"
	ActionConfirmDelivered Action = "confirm_delivered"
	ActionLiveUpdate       Action = "live_update"
)

var transitionMap = map[Action][]DeliveryStatus{
	ActionEdit:             {StatusPending},
	ActionResendRequest:    {StatusPending},
	ActionRecipientAccept:  {StatusPending},
	ActionCancel:           {StatusPending},
	ActionAcceptPickup:     {StatusPending},
	ActionSubmitEvidence:   {StatusInTransit},
	ActionConfirmDelivered: {StatusAwaitingApproval},
	ActionLiveUpdate:       {StatusInTransit, StatusAwaitingApproval},
}

func ValidTransition(action Action, from DeliveryStatus) bool {
	for _, status := range transitionMap[action] {
		if status == from {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses an action may start from, as strings for SQL guards.
func AllowedFrom(action Action) []string {
	allowed := transitionMap[action]
	out := make([]string, 0, len(allowed))
	for _, s := range allowed {
		out = append(out, string(s))
	}
	return out
}
