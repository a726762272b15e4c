package deliveries

import (
	"context"
	"fmt"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Service) bySlug(ctx context.Context, slug string) (*models.Delivery, error) {
	id, err := s.tokens.ResolveSlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetDeliveryByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("Invalid or expired link")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get delivery")
	}
	return d, nil
}

// RecipientView has no side effects; a slug can be viewed any number of times.
func (s *Service) RecipientView(ctx context.Context, slug string) (*models.Delivery, error) {
	d, err := s.bySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.expand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RecipientRespond records the recipient's answer while the delivery is
// still pending. Rejecting only notifies the dispatcher; the delivery is left
// untouched. Accepting twice is a no-op.
func (s *Service) RecipientRespond(ctx context.Context, slug string, accept bool) (*models.Delivery, error) {
	d, err := s.bySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if d.IsCancelled || !models.ValidTransition(models.ActionRecipientAccept, d.Status) {
		return nil, apperrors.Conflict("This delivery is no longer awaiting your response")
	}

	if !accept {
		s.entry(d).Info("recipient rejected delivery")
		s.notifyUser(ctx, nil, &d.DispatcherID, "Delivery Rejected",
			fmt.Sprintf("The recipient has rejected delivery %s.", d.TrackingID),
			models.NotificationCanceled)
		s.publish(ctx, messages.DeliveryRecipientReplied, d, "")
		return d, nil
	}

	if d.IsAccepted {
		return d, nil
	}
	updated, err := s.repo.SetRecipientAccepted(ctx, d.ID)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict("This delivery is no longer awaiting your response")
	}
	if err != nil {
		return nil, errors.Wrap(err, "accept delivery")
	}

	s.entry(updated).Info("recipient accepted delivery")
	s.notifyUser(ctx, nil, &updated.DispatcherID, "Delivery Accepted",
		fmt.Sprintf("The recipient has accepted delivery %s. It is now available for pickup.", updated.TrackingID),
		models.NotificationNormal)
	s.publish(ctx, messages.DeliveryRecipientReplied, updated, "")
	return updated, nil
}

func (s *Service) ViewBySession(ctx context.Context, sessionID string) (*models.Delivery, error) {
	return s.sessions.ResolveDelivery(ctx, sessionID)
}

// ConfirmDelivered is the recipient's sign-off; only valid once the courier
// has submitted evidence.
func (s *Service) ConfirmDelivered(ctx context.Context, sessionID string) (*models.Delivery, error) {
	d, err := s.sessions.ResolveDelivery(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !models.ValidTransition(models.ActionConfirmDelivered, d.Status) {
		return nil, apperrors.Conflict("This delivery is not awaiting approval")
	}

	done, err := s.repo.ConfirmDelivered(ctx, d.ID)
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.Conflict("This delivery is not awaiting approval")
	}
	if err != nil {
		return nil, errors.Wrap(err, "confirm delivered")
	}
	done.Dispatcher, done.Courier = d.Dispatcher, d.Courier

	s.entry(done).WithField("session_id", sessionID).Info("delivery confirmed")
	s.notifyUser(ctx, done.Courier, done.CourierID, "Drop-off Confirmed",
		fmt.Sprintf("The recipient has confirmed delivery %s. Thank you!", done.TrackingID),
		models.NotificationSuccessful)
	s.notifyUser(ctx, done.Dispatcher, &done.DispatcherID, "Delivery Completed",
		fmt.Sprintf("Delivery %s has been received by the recipient.", done.TrackingID),
		models.NotificationSuccessful)
	s.publish(ctx, messages.DeliveryDelivered, done, sessionID)
	return done, nil
}

// ApplyLiveUpdate merges live tracking fields sent over the socket and
// returns the refreshed delivery.
func (s *Service) ApplyLiveUpdate(ctx context.Context, sessionID string, upd models.LiveUpdate) (*models.Delivery, error) {
	if upd.Empty() {
		return nil, apperrors.Invalid("No live tracking fields supplied")
	}
	id, err := s.sessions.DeliveryID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.ApplyLiveUpdate(ctx, id, upd)
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return nil, apperrors.Conflict("Live updates are only accepted while the delivery is in transit")
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.NotFound("Delivery not found, please confirm the session ID")
	case err != nil:
		return nil, errors.Wrap(err, "apply live update")
	}
	if err := s.expand(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
