package pgdelivery

import (
	"context"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) InsertNotificationLog(ctx context.Context, entry models.NotificationLog) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO notifications (email, message, type, created_at)
VALUES ($1,$2,$3, now())
`, entry.Email, entry.Message, entry.Type)
	return errors.Wrap(err, "insert notification log")
}

func (s *Storage) ListNotificationLogs(ctx context.Context, email string, limit int) ([]*models.NotificationLog, error) {
	switch {
	case limit <= 0:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	rows, err := s.db.Query(ctx, `
SELECT id, email, message, type, created_at
FROM notifications
WHERE email = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, email, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	out := make([]*models.NotificationLog, 0, limit)
	for rows.Next() {
		var n models.NotificationLog
		if err := rows.Scan(&n.ID, &n.Email, &n.Message, &n.Type, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, &n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
