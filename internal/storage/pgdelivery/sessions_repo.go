package pgdelivery

import (
	"context"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const sessionColumns = `
  session_id, delivery_id, courier_socket_id, dispatcher_socket_id, recipient_socket_id,
  created_at, updated_at`

func scanSession(row rowScanner) (*models.TrackingSession, error) {
	var t models.TrackingSession
	if err := row.Scan(
		&t.SessionID, &t.DeliveryID, &t.CourierSocketID, &t.DispatcherSocketID, &t.RecipientSocketID,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func socketColumn(p models.Participant) (string, error) {
	switch p {
	case models.ParticipantCourier:
		return "courier_socket_id", nil
	case models.ParticipantDispatcher:
		return "dispatcher_socket_id", nil
	case models.ParticipantRecipient:
		return "recipient_socket_id", nil
	}
	return "", errors.Errorf("unknown participant %q", p)
}

func (s *Storage) CreateSession(ctx context.Context, sessionID string, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	now := time.Now().UTC()
	t, err := scanSession(s.db.QueryRow(ctx, `
INSERT INTO tracking_sessions (session_id, delivery_id, created_at, updated_at)
VALUES ($1,$2,$3,$3)
RETURNING`+sessionColumns, sessionID, deliveryID, now))
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}
	return t, nil
}

func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.TrackingSession, error) {
	t, err := scanSession(s.db.QueryRow(ctx, `SELECT`+sessionColumns+` FROM tracking_sessions WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	return t, nil
}

func (s *Storage) GetSessionByDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	t, err := scanSession(s.db.QueryRow(ctx, `SELECT`+sessionColumns+` FROM tracking_sessions WHERE delivery_id = $1`, deliveryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session by delivery")
	}
	return t, nil
}

// BindSocket overwrites the role's socket id (last writer wins).
func (s *Storage) BindSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) error {
	col, err := socketColumn(p)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE tracking_sessions SET `+col+` = $2, updated_at = now() WHERE session_id = $1`, sessionID, socketID)
	if err != nil {
		return errors.Wrap(err, "bind socket")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ClearSocket drops the binding only if it still points at socketID, so a
// late disconnect cannot erase a newer connection.
func (s *Storage) ClearSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) (bool, error) {
	col, err := socketColumn(p)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE tracking_sessions SET `+col+` = NULL, updated_at = now() WHERE session_id = $1 AND `+col+` = $2`, sessionID, socketID)
	if err != nil {
		return false, errors.Wrap(err, "clear socket")
	}
	return tag.RowsAffected() > 0, nil
}
