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

const userColumns = `id, name, email, department, role, delivery_count, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Department, &u.Role, &u.DeliveryCount, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores an account. Credentials proper are owned by the identity
// provider; the hash column only receives password resets.
func (s *Storage) CreateUser(ctx context.Context, u models.User, passwordHash string) (*models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	out, err := scanUser(s.db.QueryRow(ctx, `
INSERT INTO users (id, name, email, department, role, password_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING `+userColumns, u.ID, u.Name, u.Email, u.Department, u.Role, passwordHash, now))
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return out, nil
}

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (s *Storage) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check user exists")
	}
	return exists, nil
}

func (s *Storage) GetPasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE email = $1`, email).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "select password hash")
	}
	return hash, nil
}
