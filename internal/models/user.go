package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDispatcher Role = "dispatcher"
	RoleCourier    Role = "courier"
	RoleAdmin      Role = "admin"
	RoleSupport    Role = "support"
)

// ParseRole accepts any casing ("Courier", "courier").
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleDispatcher, RoleCourier, RoleAdmin, RoleSupport:
		return r, true
	}
	return "", false
}

func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleSupport
}

// Actor is the authenticated caller handed over by the identity provider.
type Actor struct {
	ID    uuid.UUID
	Role  Role
	Email string
	Name  string
}

type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Department    string    `json:"department,omitempty"`
	Role          Role      `json:"role"`
	DeliveryCount int       `json:"delivery_count"`
	CreatedAt     time.Time `json:"createdAt"`
}
