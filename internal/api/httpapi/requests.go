package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
)

type specimenRequest struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Note     string `json:"note"`
	Code     string `json:"code"`
}

type createDeliveryRequest struct {
	PickupAddress    string            `json:"pickup_address" validate:"required"`
	PickupDept       string            `json:"pickup_dept"`
	PickupStaffName  string            `json:"pickup_staff_name"`
	DropoffAddress   string            `json:"dropoff_address" validate:"required"`
	DropoffDept      string            `json:"dropoff_dept"`
	DropoffStaffName string            `json:"dropoff_staff_name"`
	RecipientPhone1  string            `json:"recipient_phone_number_1" validate:"required"`
	RecipientPhone2  string            `json:"recipient_phone_number_2"`
	RecipientEmail   string            `json:"recipient_email" validate:"required,email"`
	Specimens        []specimenRequest `json:"specimen" validate:"dive"`
	Note             string            `json:"note"`
	Distance         string            `json:"distance"`
	Price            string            `json:"price"`
}

func (r createDeliveryRequest) input() models.DeliveryCreateInput {
	return models.DeliveryCreateInput{
		PickupAddress:    r.PickupAddress,
		PickupDept:       r.PickupDept,
		PickupStaffName:  r.PickupStaffName,
		DropoffAddress:   r.DropoffAddress,
		DropoffDept:      r.DropoffDept,
		DropoffStaffName: r.DropoffStaffName,
		Recipient: models.Recipient{
			PhoneNumber1: r.RecipientPhone1,
			PhoneNumber2: r.RecipientPhone2,
			Email:        strings.TrimSpace(r.RecipientEmail),
		},
		Specimens: specimens(r.Specimens),
		Note:      r.Note,
		Distance:  r.Distance,
		Price:     r.Price,
	}
}

func specimens(in []specimenRequest) []models.Specimen {
	out := make([]models.Specimen, 0, len(in))
	for _, s := range in {
		out = append(out, models.Specimen{Type: s.Type, Quantity: s.Quantity, Note: s.Note, Code: s.Code})
	}
	return out
}

type updateDeliveryRequest struct {
	PickupAddress    *string            `json:"pickup_address" validate:"omitempty,notblank"`
	PickupDept       *string            `json:"pickup_dept"`
	PickupStaffName  *string            `json:"pickup_staff_name"`
	DropoffAddress   *string            `json:"dropoff_address" validate:"omitempty,notblank"`
	DropoffDept      *string            `json:"dropoff_dept"`
	DropoffStaffName *string            `json:"dropoff_staff_name"`
	RecipientPhone1  *string            `json:"recipient_phone_number_1" validate:"omitempty,notblank"`
	RecipientPhone2  *string            `json:"recipient_phone_number_2"`
	RecipientEmail   *string            `json:"recipient_email" validate:"omitempty,notblank,email"`
	Distance         *string            `json:"distance"`
	Note             *string            `json:"note"`
	DeliveryDate     *time.Time         `json:"delivery_date"`
	Specimens        *[]specimenRequest `json:"specimen" validate:"omitempty,dive"`
}

func (r updateDeliveryRequest) input() models.DeliveryUpdateInput {
	in := models.DeliveryUpdateInput{
		PickupAddress:    r.PickupAddress,
		PickupDept:       r.PickupDept,
		PickupStaffName:  r.PickupStaffName,
		DropoffAddress:   r.DropoffAddress,
		DropoffDept:      r.DropoffDept,
		DropoffStaffName: r.DropoffStaffName,
		RecipientPhone1:  r.RecipientPhone1,
		RecipientPhone2:  r.RecipientPhone2,
		RecipientEmail:   r.RecipientEmail,
		Distance:         r.Distance,
		Note:             r.Note,
		DeliveryDate:     r.DeliveryDate,
	}
	if r.Specimens != nil {
		s := specimens(*r.Specimens)
		in.Specimens = &s
	}
	return in
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type evidenceRequest struct {
	DeliveryEvidence string `json:"delivery_evidence" validate:"required,url"`
}

type respondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpValidateRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,hexadecimal"`
}

type passwordChangeRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// listQuery holds the query string of the list endpoints.
type listQuery struct {
	Query     string `validate:"max=200"`
	Status    string `validate:"omitempty,oneof=pending in-transit awaiting-approval delivered cancelled"`
	Cancelled string `validate:"omitempty,oneof=true false"`
	DateField string `validate:"omitempty,oneof=creation-date delivery-date"`
	From      string `validate:"omitempty,datetime=2006-01-02"`
	To        string `validate:"omitempty,datetime=2006-01-02"`
	Sort      string `validate:"omitempty,oneof=asc desc"`
	Page      int    `validate:"min=0,max=100000"`
	Limit     int    `validate:"min=0,max=100"`
}

func parseListQuery(r *http.Request) (models.DeliveryFilter, error) {
	q := r.URL.Query()
	lq := listQuery{
		Query:     strings.TrimSpace(q.Get("q")),
		Status:    q.Get("status"),
		Cancelled: q.Get("cancelled"),
		DateField: q.Get("date_field"),
		From:      q.Get("from"),
		To:        q.Get("to"),
		Sort:      q.Get("sort"),
	}
	var err error
	if lq.Page, err = intParam(q.Get("page")); err != nil {
		return models.DeliveryFilter{}, apperrors.Invalid("page must be a number")
	}
	if lq.Limit, err = intParam(q.Get("limit")); err != nil {
		return models.DeliveryFilter{}, apperrors.Invalid("limit must be a number")
	}
	if err := validateStruct(&lq); err != nil {
		return models.DeliveryFilter{}, err
	}

	f := models.DeliveryFilter{
		Status:    models.DeliveryStatus(lq.Status),
		Query:     lq.Query,
		DateField: models.DateField(lq.DateField),
		Ascending: lq.Sort != "desc",
		Page:      lq.Page,
		Limit:     lq.Limit,
	}
	if lq.Cancelled != "" {
		c := lq.Cancelled == "true"
		f.Cancelled = &c
	}
	if lq.From != "" {
		t, _ := time.Parse(time.DateOnly, lq.From)
		f.From = &t
	}
	if lq.To != "" {
		// inclusive of the whole day
		t, _ := time.Parse(time.DateOnly, lq.To)
		t = t.Add(24*time.Hour - time.Nanosecond)
		f.To = &t
	}
	return f, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
