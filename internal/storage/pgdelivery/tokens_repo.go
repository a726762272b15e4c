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

func (s *Storage) InsertSlug(ctx context.Context, slug models.RecipientSlug) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO recipient_slugs (slug, delivery_id, expires_at, created_at)
VALUES ($1,$2,$3, now())
`, slug.Slug, slug.DeliveryID, slug.ExpiresAt.UTC())
	return errors.Wrap(err, "insert slug")
}

// FindSlug returns the slug only while it has not expired at now.
func (s *Storage) FindSlug(ctx context.Context, slug string, now time.Time) (*models.RecipientSlug, error) {
	var r models.RecipientSlug
	err := s.db.QueryRow(ctx, `
SELECT slug, delivery_id, expires_at, created_at
FROM recipient_slugs
WHERE slug = $1 AND expires_at > $2
`, slug, now.UTC()).Scan(&r.Slug, &r.DeliveryID, &r.ExpiresAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select slug")
	}
	return &r, nil
}

func (s *Storage) DeleteExpiredSlugs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM recipient_slugs WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "delete expired slugs")
	}
	return tag.RowsAffected(), nil
}

const otpColumns = `id, email, otp, is_active, token, expires_at, created_at, updated_at`

func scanOTP(row rowScanner) (*models.OTP, error) {
	var o models.OTP
	if err := row.Scan(&o.ID, &o.Email, &o.Code, &o.IsActive, &o.Token, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Storage) InsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*models.OTP, error) {
	o, err := scanOTP(s.db.QueryRow(ctx, `
INSERT INTO user_otps (id, email, otp, is_active, expires_at, created_at, updated_at)
VALUES ($1,$2,$3,true,$4, now(), now())
RETURNING `+otpColumns, uuid.New(), email, code, expiresAt.UTC()))
	if err != nil {
		return nil, errors.Wrap(err, "insert otp")
	}
	return o, nil
}

// FindOTP returns the newest record for (email, code) regardless of its state.
func (s *Storage) FindOTP(ctx context.Context, email, code string) (*models.OTP, error) {
	o, err := scanOTP(s.db.QueryRow(ctx, `
SELECT `+otpColumns+`
FROM user_otps
WHERE email = $1 AND otp = $2
ORDER BY created_at DESC
LIMIT 1
`, email, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select otp")
	}
	return o, nil
}

func (s *Storage) FindOTPByToken(ctx context.Context, token string) (*models.OTP, error) {
	o, err := scanOTP(s.db.QueryRow(ctx, `SELECT `+otpColumns+` FROM user_otps WHERE token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select otp by token")
	}
	return o, nil
}

// SetOTPToken stamps the exchange token once; a record that is inactive,
// expired at now or already carrying a token is a conflict.
func (s *Storage) SetOTPToken(ctx context.Context, id uuid.UUID, token string, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE user_otps SET token = $2, updated_at = now()
WHERE id = $1 AND is_active AND token IS NULL AND expires_at > $3
`, id, token, now.UTC())
	if err != nil {
		return errors.Wrap(err, "set otp token")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// ConsumeOTP deactivates the record and stores the new credential hash for its owner.
func (s *Storage) ConsumeOTP(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var email string
	err = tx.QueryRow(ctx, `
UPDATE user_otps SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active AND token IS NOT NULL AND expires_at > $2
RETURNING email
`, id, now.UTC()).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotAcceptable
	}
	if err != nil {
		return errors.Wrap(err, "deactivate otp")
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE email = $1`, email, passwordHash)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) DeactivateExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE user_otps SET is_active = false, updated_at = now()
WHERE is_active AND expires_at <= $1
`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deactivate expired otps")
	}
	return tag.RowsAffected(), nil
}
