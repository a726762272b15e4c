package deliveries

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
)

const notWaitingForPickup = "This delivery is no longer waiting to be picked up"

func requireCourier(actor models.Actor) error {
	if actor.Role != models.RoleCourier {
		return apperrors.Unauthorized("Account type is not a courier")
	}
	return nil
}

// ListAvailablePickups: pending, confirmed by the recipient, no courier yet.
func (s *Service) ListAvailablePickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	if err := requireCourier(actor); err != nil {
		return nil, err
	}
	accepted, cancelled := true, false
	f.DispatcherID = nil
	f.CourierID = nil
	f.CourierUnset = true
	f.Status = models.StatusPending
	f.Accepted = &accepted
	f.Cancelled = &cancelled
	return s.repo.ListDeliveries(ctx, f)
}

func (s *Service) ListMyPickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	if err := requireCourier(actor); err != nil {
		return nil, err
	}
	if err := checkFilter(f); err != nil {
		return nil, err
	}
	f.DispatcherID = nil
	f.CourierUnset = false
	f.CourierID = &actor.ID
	return s.repo.ListDeliveries(ctx, f)
}

type PickupResult struct {
	Delivery  *models.Delivery `json:"delivery"`
	SessionID string           `json:"sessionId"`
}

// AcceptPickup assigns the courier and opens the tracking session. If the
// session cannot be created the assignment is rolled back.
func (s *Service) AcceptPickup(ctx context.Context, actor models.Actor, trackingID string) (*PickupResult, error) {
	if err := requireCourier(actor); err != nil {
		return nil, err
	}

	d, err := s.repo.GetDeliveryByTrackingID(ctx, trackingID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("Delivery with Tracking ID %s not found", trackingID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get delivery")
	}
	if !models.ValidTransition(models.ActionAcceptPickup, d.Status) || d.CourierID != nil {
		return nil, apperrors.Conflict(notWaitingForPickup)
	}
	if !d.IsAccepted {
		return nil, apperrors.Conflict("This delivery has not been confirmed by the recipient yet")
	}

	picked, err := s.repo.AcceptPickup(ctx, d.ID, actor.ID)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict(notWaitingForPickup)
	}
	if err != nil {
		return nil, errors.Wrap(err, "accept pickup")
	}

	sessionID, err := s.sessions.Create(ctx, picked.ID)
	if err != nil {
		if rerr := s.repo.RevertPickup(ctx, picked.ID, actor.ID); rerr != nil {
			s.entry(picked).WithError(rerr).Error("revert pickup failed")
		}
		return nil, errors.Wrap(err, "open tracking session")
	}

	if err := s.expand(ctx, picked); err != nil {
		s.entry(picked).WithError(err).Warn("expand parties failed")
	}

	s.entry(picked).WithField("session_id", sessionID).Info("pickup accepted")
	link := s.sessionLink(sessionID)
	s.notifyUser(ctx, picked.Dispatcher, &picked.DispatcherID, "Delivery Picked Up",
		fmt.Sprintf("Delivery %s has been picked up by a courier. Track it live: %s", picked.TrackingID, link),
		models.NotificationTransit)
	s.notifyRecipient(picked, "Delivery In Transit",
		fmt.Sprintf("Your delivery %s is on its way. Track it live: %s", picked.TrackingID, link),
		models.NotificationTransit)
	s.publish(ctx, messages.DeliveryPickedUp, picked, sessionID)

	return &PickupResult{Delivery: picked, SessionID: sessionID}, nil
}

// ViewPickup shows the assigned courier its delivery and the live session id.
func (s *Service) ViewPickup(ctx context.Context, actor models.Actor, trackingID string) (*PickupResult, error) {
	if err := requireCourier(actor); err != nil {
		return nil, err
	}
	d, err := s.View(ctx, actor, trackingID)
	if err != nil {
		return nil, err
	}
	out := &PickupResult{Delivery: d}
	sess, err := s.sessions.ForDelivery(ctx, d.ID)
	switch {
	case err == nil:
		out.SessionID = sess.SessionID
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return out, nil
}

type EvidenceResult struct {
	Message  string           `json:"message"`
	Delivery *models.Delivery `json:"data"`
}

// SubmitPickupEvidence records the proof artifact and asks the recipient to
// confirm the drop-off.
func (s *Service) SubmitPickupEvidence(ctx context.Context, actor models.Actor, sessionID, evidence string) (*EvidenceResult, error) {
	if err := requireCourier(actor); err != nil {
		return nil, err
	}
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return nil, apperrors.Invalid("delivery_evidence is required")
	}

	deliveryID, err := s.sessions.DeliveryID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetDeliveryByID(ctx, deliveryID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("Delivery not found, please confirm the session ID")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get delivery")
	}
	if d.CourierID == nil || *d.CourierID != actor.ID {
		return nil, apperrors.Unauthorized("Permission denied")
	}
	if !models.ValidTransition(models.ActionSubmitEvidence, d.Status) {
		return nil, apperrors.Conflict("This delivery is not in transit")
	}

	updated, err := s.repo.SubmitPickupEvidence(ctx, d.ID, actor.ID, evidence)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict("This delivery is not in transit")
	}
	if err != nil {
		return nil, errors.Wrap(err, "submit evidence")
	}

	s.entry(updated).WithField("session_id", sessionID).Info("pickup evidence submitted")
	s.notifyRecipient(updated, "Please Confirm Your Delivery",
		fmt.Sprintf("Your delivery %s has arrived. Please confirm receipt here: %s", updated.TrackingID, s.sessionLink(sessionID)),
		models.NotificationBox)
	s.publish(ctx, messages.DeliveryAwaitingApproval, updated, sessionID)

	return &EvidenceResult{
		Message:  "Package submitted successfully, you'd been contacted once approved",
		Delivery: updated,
	}, nil
}
