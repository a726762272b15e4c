// Package deliveries owns the delivery lifecycle:
//
//	pending -> in-transit -> awaiting-approval -> delivered
//	pending -> cancelled
//
// Guards are checked here for a precise message and again by the storage
// UPDATE, which is what makes concurrent transitions safe.
package deliveries

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Repository interface {
	CreateDelivery(ctx context.Context, dispatcherID uuid.UUID, in models.DeliveryCreateInput, slug models.RecipientSlug) (*models.Delivery, error)
	GetDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	GetDeliveryByTrackingID(ctx context.Context, trackingID string) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, f models.DeliveryFilter) (*models.DeliveryPage, error)

	UpdateDeliveryDetails(ctx context.Context, id uuid.UUID, in models.DeliveryUpdateInput) (*models.Delivery, error)
	CancelDelivery(ctx context.Context, id uuid.UUID, reason string) (*models.Delivery, error)
	SetRecipientAccepted(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	AcceptPickup(ctx context.Context, id, courierID uuid.UUID) (*models.Delivery, error)
	RevertPickup(ctx context.Context, id, courierID uuid.UUID) error
	SubmitPickupEvidence(ctx context.Context, id, courierID uuid.UUID, evidence string) (*models.Delivery, error)
	ConfirmDelivered(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ApplyLiveUpdate(ctx context.Context, id uuid.UUID, upd models.LiveUpdate) (*models.Delivery, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type TokenIssuer interface {
	MintSlug(deliveryID uuid.UUID) (models.RecipientSlug, error)
	IssueSlug(ctx context.Context, deliveryID uuid.UUID) (string, error)
	ResolveSlug(ctx context.Context, slug string) (uuid.UUID, error)
}

type SessionRegistry interface {
	Create(ctx context.Context, deliveryID uuid.UUID) (string, error)
	DeliveryID(ctx context.Context, sessionID string) (uuid.UUID, error)
	ResolveDelivery(ctx context.Context, sessionID string) (*models.Delivery, error)
	ForDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error)
}

type Notifier interface {
	Dispatch(n models.Notification)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	tokens   TokenIssuer
	sessions SessionRegistry
	notifier Notifier
	log      *logger.Logger

	producer Producer
	topic    string

	recipientLinkBase string
	sessionLinkBase   string

	now func() time.Time
}

func New(repo Repository, tokens TokenIssuer, sessions SessionRegistry, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		sessions: sessions,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// WithEvents publishes a DeliveryEvent to topic after every transition.
func (s *Service) WithEvents(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

// WithLinks sets the client URLs embedded in recipient and session notifications.
func (s *Service) WithLinks(recipientBase, sessionBase string) *Service {
	s.recipientLinkBase = strings.TrimRight(recipientBase, "/")
	s.sessionLinkBase = strings.TrimRight(sessionBase, "/")
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) recipientLink(slug string) string {
	return s.recipientLinkBase + "/" + slug
}

func (s *Service) sessionLink(sessionID string) string {
	return s.sessionLinkBase + "/" + sessionID
}

func (s *Service) notify(address, subject, body string, category models.NotificationCategory) {
	if address == "" {
		return
	}
	s.notifier.Dispatch(models.Notification{Address: address, Subject: subject, Body: body, Category: category})
}

// notifyRecipient reaches the recipient on email and on the primary phone.
func (s *Service) notifyRecipient(d *models.Delivery, subject, body string, category models.NotificationCategory) {
	s.notify(d.Recipient.Email, subject, body, category)
	s.notify(d.Recipient.PhoneNumber1, subject, body, "")
}

func (s *Service) notifyUser(ctx context.Context, u *models.User, id *uuid.UUID, subject, body string, category models.NotificationCategory) {
	if u == nil && id != nil {
		var err error
		if u, err = s.repo.GetUser(ctx, *id); err != nil {
			s.log.WithError(err).WithField("user_id", id.String()).Warn("notify: user lookup failed")
			return
		}
	}
	if u != nil {
		s.notify(u.Email, subject, body, category)
	}
}

func (s *Service) publish(ctx context.Context, typ messages.DeliveryEventType, d *models.Delivery, sessionID string) {
	if s.producer == nil || s.topic == "" {
		return
	}
	key, value, err := messages.DeliveryEvent{
		Type:       typ,
		DeliveryID: d.ID.String(),
		TrackingID: d.TrackingID,
		SessionID:  sessionID,
		Status:     string(d.Status),
		OccurredAt: s.now().UTC(),
	}.Encode()
	if err == nil {
		err = s.producer.Publish(ctx, s.topic, key, value)
	}
	if err != nil {
		s.entry(d).WithError(err).WithField("event", string(typ)).Warn("delivery event publish failed")
	}
}

func (s *Service) entry(d *models.Delivery) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"tracking_id": d.TrackingID,
		"status":      string(d.Status),
	})
}
