// Package sessions maps tracking session ids to deliveries and to the live
// sockets of the three participants.
package sessions

import (
	"context"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/cache"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const sessionNotFound = "Delivery not found, please confirm the session ID"

type Repository interface {
	CreateSession(ctx context.Context, sessionID string, deliveryID uuid.UUID) (*models.TrackingSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.TrackingSession, error)
	GetSessionByDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error)
	BindSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) error
	ClearSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) (bool, error)

	GetDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Registry struct {
	repo     Repository
	cache    cache.BytesCache
	cacheTTL time.Duration
	log      *logger.Logger
}

func New(repo Repository, log *logger.Logger) *Registry {
	return &Registry{repo: repo, log: log}
}

// WithCache enables caching of the immutable session -> delivery mapping.
func (r *Registry) WithCache(c cache.BytesCache, ttl time.Duration) *Registry {
	r.cache = c
	r.cacheTTL = ttl
	return r
}

func (r *Registry) Create(ctx context.Context, deliveryID uuid.UUID) (string, error) {
	sess, err := r.repo.CreateSession(ctx, uuid.NewString(), deliveryID)
	if err != nil {
		return "", errors.Wrap(err, "create session")
	}
	r.remember(ctx, sess.SessionID, deliveryID)
	return sess.SessionID, nil
}

func (r *Registry) BindSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) error {
	err := r.repo.BindSocket(ctx, sessionID, p, socketID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(sessionNotFound)
	}
	if err != nil {
		return errors.Wrap(err, "bind socket")
	}
	return nil
}

// Unbind clears the role's socket id if it is still socketID.
func (r *Registry) Unbind(ctx context.Context, sessionID string, p models.Participant, socketID string) error {
	if _, err := r.repo.ClearSocket(ctx, sessionID, p, socketID); err != nil {
		return errors.Wrap(err, "unbind socket")
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, sessionID string) (models.SocketBindings, error) {
	sess, err := r.repo.GetSession(ctx, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.SocketBindings{}, apperrors.NotFound(sessionNotFound)
	}
	if err != nil {
		return models.SocketBindings{}, errors.Wrap(err, "get session")
	}
	return sess.Bindings(), nil
}

func (r *Registry) ForDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	sess, err := r.repo.GetSessionByDelivery(ctx, deliveryID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("No tracking session for this delivery")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session by delivery")
	}
	return sess, nil
}

func (r *Registry) DeliveryID(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if id, ok := r.recall(ctx, sessionID); ok {
		return id, nil
	}
	sess, err := r.repo.GetSession(ctx, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return uuid.Nil, apperrors.NotFound(sessionNotFound)
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "get session")
	}
	r.remember(ctx, sessionID, sess.DeliveryID)
	return sess.DeliveryID, nil
}

// ResolveDelivery loads the session's delivery with dispatcher and courier expanded.
func (r *Registry) ResolveDelivery(ctx context.Context, sessionID string) (*models.Delivery, error) {
	id, err := r.DeliveryID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	d, err := r.repo.GetDeliveryByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound(sessionNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get delivery")
	}
	if err := Expand(ctx, r.repo, d); err != nil {
		return nil, err
	}
	return d, nil
}

type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Expand fills Dispatcher and Courier by explicit lookups. A missing user
// leaves the field nil.
func Expand(ctx context.Context, users UserReader, d *models.Delivery) error {
	u, err := users.GetUser(ctx, d.DispatcherID)
	switch {
	case err == nil:
		d.Dispatcher = u
	case !errors.Is(err, apperrors.ErrNotFound):
		return errors.Wrap(err, "get dispatcher")
	}
	if d.CourierID != nil {
		u, err := users.GetUser(ctx, *d.CourierID)
		switch {
		case err == nil:
			d.Courier = u
		case !errors.Is(err, apperrors.ErrNotFound):
			return errors.Wrap(err, "get courier")
		}
	}
	return nil
}

func cacheKey(sessionID string) string {
	return "session:" + sessionID + ":delivery"
}

func (r *Registry) recall(ctx context.Context, sessionID string) (uuid.UUID, bool) {
	if r.cache == nil {
		return uuid.Nil, false
	}
	b, ok, err := r.cache.Get(ctx, cacheKey(sessionID))
	if err != nil {
		r.log.WithError(err).Warn("session cache get failed")
		return uuid.Nil, false
	}
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.ParseBytes(b)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (r *Registry) remember(ctx context.Context, sessionID string, deliveryID uuid.UUID) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(sessionID), []byte(deliveryID.String()), r.cacheTTL); err != nil {
		r.log.WithError(err).Warn("session cache set failed")
	}
}
