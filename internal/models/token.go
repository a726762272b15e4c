package models

import (
	"time"

	"github.com/google/uuid"
)

// RecipientSlug lets an unauthenticated recipient act on one delivery until ExpiresAt.
type RecipientSlug struct {
	DeliveryID uuid.UUID
	Slug       string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (s *RecipientSlug) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type OTP struct {
	ID        uuid.UUID
	Email     string
	Code      string
	IsActive  bool
	Token     *string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the code can still be exchanged for a token.
func (o *OTP) Usable(now time.Time) bool {
	return o.IsActive && o.Token == nil && now.Before(o.ExpiresAt)
}

// Redeemable reports whether the exchange token can still change the password.
func (o *OTP) Redeemable(now time.Time) bool {
	return o.IsActive && o.Token != nil && now.Before(o.ExpiresAt)
}
