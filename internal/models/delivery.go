package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	StatusPending          DeliveryStatus = "pending"
	StatusInTransit        DeliveryStatus = "in-transit"
	StatusAwaitingApproval DeliveryStatus = "awaiting-approval"
	StatusDelivered        DeliveryStatus = "delivered"
	StatusCancelled        DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusAwaitingApproval, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// TrackingIDPrefix + 4-digit zero padded sequence, e.g. ORD0041.
const TrackingIDPrefix = "ORD"

func FormatTrackingID(seq int64) string {
	return fmt.Sprintf("%s%04d", TrackingIDPrefix, seq)
}

type Recipient struct {
	PhoneNumber1 string `json:"phone_number_1"`
	PhoneNumber2 string `json:"phone_number_2,omitempty"`
	Email        string `json:"email"`
}

type Specimen struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
	Code     string `json:"code,omitempty"`
}

type Delivery struct {
	ID           uuid.UUID  `json:"id"`
	TrackingID   string     `json:"tracking_id"`
	DispatcherID uuid.UUID  `json:"dispatcher_id"`
	CourierID    *uuid.UUID `json:"courier_id,omitempty"`

	// Filled by explicit fetch on reads that need the parties.
	Dispatcher *User `json:"dispatcher,omitempty"`
	Courier    *User `json:"courier,omitempty"`

	PickupAddress    string `json:"pickup_address"`
	PickupDept       string `json:"pickup_dept"`
	PickupStaffName  string `json:"pickup_staff_name"`
	DropoffAddress   string `json:"dropoff_address"`
	DropoffDept      string `json:"dropoff_dept"`
	DropoffStaffName string `json:"dropoff_staff_name"`

	Recipient Recipient  `json:"recipient"`
	Specimens []Specimen `json:"specimen"`

	Note     string `json:"note"`
	Distance string `json:"distance"`
	Price    string `json:"price"`

	Status           DeliveryStatus `json:"status"`
	Active           bool           `json:"active"`
	IsAccepted       bool           `json:"isAccepted"`
	IsCancelled      bool           `json:"isCancelled"`
	Reason           string         `json:"reason,omitempty"`
	DeliveryEvidence string         `json:"delivery_evidence,omitempty"`

	Lat      string `json:"lat,omitempty"`
	Long     string `json:"long,omitempty"`
	Location string `json:"location,omitempty"`
	ETA      string `json:"eta,omitempty"`

	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type DeliveryCreateInput struct {
	PickupAddress    string
	PickupDept       string
	PickupStaffName  string
	DropoffAddress   string
	DropoffDept      string
	DropoffStaffName string
	Recipient        Recipient
	Specimens        []Specimen
	Note             string
	Distance         string
	Price            string
}

// DeliveryUpdateInput: nil fields are left untouched.
type DeliveryUpdateInput struct {
	PickupAddress    *string
	PickupDept       *string
	PickupStaffName  *string
	DropoffAddress   *string
	DropoffDept      *string
	DropoffStaffName *string
	RecipientPhone1  *string
	RecipientPhone2  *string
	RecipientEmail   *string
	Distance         *string
	Note             *string
	DeliveryDate     *time.Time
	Specimens        *[]Specimen
}

// LiveUpdate is the set of fields a connected socket may change through a broadcast.
type LiveUpdate struct {
	Lat      *string `json:"lat,omitempty"`
	Long     *string `json:"long,omitempty"`
	Location *string `json:"location,omitempty"`
	ETA      *string `json:"eta,omitempty"`
}

func (u LiveUpdate) Empty() bool {
	return u.Lat == nil && u.Long == nil && u.Location == nil && u.ETA == nil
}

type DateField string

const (
	DateFieldCreation DateField = "creation-date"
	DateFieldDelivery DateField = "delivery-date"
)

type DeliveryFilter struct {
	DispatcherID *uuid.UUID
	CourierID    *uuid.UUID
	CourierUnset bool
	Status       DeliveryStatus
	Accepted     *bool
	Cancelled    *bool

	Query     string
	DateField DateField
	From      *time.Time
	To        *time.Time
	Ascending bool

	Page  int
	Limit int
}

type DeliveryPage struct {
	Deliveries []*Delivery `json:"deliveries"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int         `json:"total"`
}
