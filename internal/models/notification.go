package models

import "time"

type NotificationCategory string

const (
	NotificationNormal     NotificationCategory = "normal"
	NotificationLocation   NotificationCategory = "location"
	NotificationBox        NotificationCategory = "box"
	NotificationTransit    NotificationCategory = "transit"
	NotificationSuccessful NotificationCategory = "successful"
	NotificationCanceled   NotificationCategory = "canceled"
)

type Notification struct {
	Address  string
	Subject  string
	Body     string
	Category NotificationCategory
	HTML     bool
}

type NotificationLog struct {
	ID        uint64               `json:"id"`
	Email     string               `json:"email"`
	Message   string               `json:"message"`
	Type      NotificationCategory `json:"type"`
	CreatedAt time.Time            `json:"createdAt"`
}
