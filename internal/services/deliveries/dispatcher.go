package deliveries

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/sessions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type CreateResult struct {
	Delivery *models.Delivery `json:"delivery"`
	Slug     string           `json:"slug"`
}

// Create stores a new pending delivery and its recipient slug in one step,
// then emails the recipient the link to confirm the order.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.DeliveryCreateInput) (*CreateResult, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.Unauthorized("Account type is not a dispatcher")
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	slug, err := s.tokens.MintSlug(uuid.Nil)
	if err != nil {
		return nil, errors.Wrap(err, "mint slug")
	}
	d, err := s.repo.CreateDelivery(ctx, actor.ID, in, slug)
	if err != nil {
		return nil, errors.Wrap(err, "create delivery")
	}

	s.entry(d).Info("delivery created")
	s.notifyRecipient(d, "Delivery Request",
		fmt.Sprintf("A delivery (%s) has been scheduled for you. Please confirm it here: %s", d.TrackingID, s.recipientLink(slug.Slug)),
		models.NotificationNormal)
	s.publish(ctx, messages.DeliveryCreated, d, "")

	return &CreateResult{Delivery: d, Slug: slug.Slug}, nil
}

func validateCreate(in models.DeliveryCreateInput) error {
	switch {
	case strings.TrimSpace(in.PickupAddress) == "":
		return apperrors.Invalid("pickup_address is required")
	case strings.TrimSpace(in.DropoffAddress) == "":
		return apperrors.Invalid("dropoff_address is required")
	case strings.TrimSpace(in.Recipient.Email) == "":
		return apperrors.Invalid("recipient_email is required")
	case strings.TrimSpace(in.Recipient.PhoneNumber1) == "":
		return apperrors.Invalid("recipient_phone_number_1 is required")
	}
	for _, sp := range in.Specimens {
		if sp.Type == "" || sp.Quantity < 1 {
			return apperrors.Invalid("each specimen needs a type and a positive quantity")
		}
	}
	return nil
}

// validateUpdate holds an edit to the same rules as create: a field that is
// required there may be replaced but not blanked.
func validateUpdate(in models.DeliveryUpdateInput) error {
	switch {
	case blank(in.PickupAddress):
		return apperrors.Invalid("pickup_address is required")
	case blank(in.DropoffAddress):
		return apperrors.Invalid("dropoff_address is required")
	case blank(in.RecipientEmail):
		return apperrors.Invalid("recipient_email is required")
	case blank(in.RecipientPhone1):
		return apperrors.Invalid("recipient_phone_number_1 is required")
	}
	if in.Specimens != nil {
		for _, sp := range *in.Specimens {
			if sp.Type == "" || sp.Quantity < 1 {
				return apperrors.Invalid("each specimen needs a type and a positive quantity")
			}
		}
	}
	return nil
}

func checkFilter(f models.DeliveryFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return apperrors.Invalid("Unknown delivery status %q", f.Status)
	}
	return nil
}

func blank(v *string) bool {
	return v != nil && strings.TrimSpace(*v) == ""
}

// load fetches by tracking id and checks the actor may see it: the owning
// dispatcher, the assigned courier, or operations staff.
func (s *Service) load(ctx context.Context, actor models.Actor, trackingID string) (*models.Delivery, error) {
	d, err := s.repo.GetDeliveryByTrackingID(ctx, trackingID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("Delivery with Tracking ID %s not found", trackingID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get delivery")
	}

	switch {
	case actor.Role.Staff():
	case actor.Role == models.RoleDispatcher && d.DispatcherID == actor.ID:
	case actor.Role == models.RoleCourier && d.CourierID != nil && *d.CourierID == actor.ID:
	default:
		return nil, apperrors.Unauthorized("Permission denied")
	}
	return d, nil
}

// loadOwned is load restricted to the owning dispatcher and staff.
func (s *Service) loadOwned(ctx context.Context, actor models.Actor, trackingID string) (*models.Delivery, error) {
	if actor.Role == models.RoleCourier {
		return nil, apperrors.Unauthorized("Permission denied")
	}
	return s.load(ctx, actor, trackingID)
}

func (s *Service) View(ctx context.Context, actor models.Actor, trackingID string) (*models.Delivery, error) {
	d, err := s.load(ctx, actor, trackingID)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, actor models.Actor, trackingID string, in models.DeliveryUpdateInput) (*models.Delivery, error) {
	d, err := s.loadOwned(ctx, actor, trackingID)
	if err != nil {
		return nil, err
	}
	if !models.ValidTransition(models.ActionEdit, d.Status) {
		return nil, apperrors.Conflict("Order is already been %s", d.Status)
	}
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateDeliveryDetails(ctx, d.ID, in)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict("This delivery can no longer be edited")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update delivery")
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor models.Actor, trackingID, reason string) (*models.Delivery, error) {
	d, err := s.loadOwned(ctx, actor, trackingID)
	if err != nil {
		return nil, err
	}
	if d.IsCancelled {
		return nil, apperrors.Conflict("This delivery has already been cancelled")
	}
	if d.Active || !models.ValidTransition(models.ActionCancel, d.Status) {
		return nil, apperrors.Conflict("This delivery is already in service")
	}

	cancelled, err := s.repo.CancelDelivery(ctx, d.ID, strings.TrimSpace(reason))
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict("This delivery is already in service")
	}
	if err != nil {
		return nil, errors.Wrap(err, "cancel delivery")
	}

	s.entry(cancelled).Info("delivery cancelled")
	s.notifyRecipient(cancelled, "Delivery Cancelled",
		fmt.Sprintf("Delivery %s has been cancelled by the dispatcher.", cancelled.TrackingID),
		models.NotificationCanceled)
	s.publish(ctx, messages.DeliveryCancelled, cancelled, "")
	return cancelled, nil
}

// ListForDispatcher scopes to the caller's own deliveries; staff see all.
func (s *Service) ListForDispatcher(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	switch {
	case actor.Role.Staff():
		f.DispatcherID = nil
	case actor.Role == models.RoleDispatcher:
		f.DispatcherID = &actor.ID
	default:
		return nil, apperrors.Unauthorized("Account type is not a dispatcher")
	}
	if err := checkFilter(f); err != nil {
		return nil, err
	}
	f.CourierID = nil
	f.CourierUnset = false
	if f.Cancelled == nil {
		cancelled := false
		f.Cancelled = &cancelled
	}
	return s.repo.ListDeliveries(ctx, f)
}

type ResendResult struct {
	Message  string           `json:"message"`
	Delivery *models.Delivery `json:"delivery"`
}

// ResendRecipientRequest mints a fresh slug and emails the recipient again.
func (s *Service) ResendRecipientRequest(ctx context.Context, actor models.Actor, trackingID string) (*ResendResult, error) {
	d, err := s.loadOwned(ctx, actor, trackingID)
	if err != nil {
		return nil, err
	}
	if d.IsCancelled {
		return nil, apperrors.Conflict("This delivery has already been cancelled")
	}
	if !models.ValidTransition(models.ActionResendRequest, d.Status) {
		return nil, apperrors.Conflict("Order is already been %s", d.Status)
	}

	slug, err := s.tokens.IssueSlug(ctx, d.ID)
	if err != nil {
		return nil, errors.Wrap(err, "issue slug")
	}
	s.notifyRecipient(d, "Delivery Request",
		fmt.Sprintf("A delivery (%s) is waiting for your confirmation: %s", d.TrackingID, s.recipientLink(slug)),
		models.NotificationNormal)

	return &ResendResult{Message: "Request has been sent to the recipient for approval", Delivery: d}, nil
}

func (s *Service) expand(ctx context.Context, d *models.Delivery) error {
	return sessions.Expand(ctx, s.repo, d)
}
