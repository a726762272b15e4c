package pgdelivery

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  department TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  password_hash TEXT NOT NULL DEFAULT '',
  delivery_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Tracking ids come from here, never from a row count.
		`CREATE SEQUENCE IF NOT EXISTS delivery_tracking_seq START 1`,
		`
CREATE TABLE IF NOT EXISTS deliveries (
  id UUID PRIMARY KEY,
  tracking_id TEXT NOT NULL UNIQUE,
  dispatcher_id UUID NOT NULL REFERENCES users(id),
  courier_id UUID NULL REFERENCES users(id),
  pickup_address TEXT NOT NULL,
  pickup_dept TEXT NOT NULL DEFAULT '',
  pickup_staff_name TEXT NOT NULL DEFAULT '',
  dropoff_address TEXT NOT NULL,
  dropoff_dept TEXT NOT NULL DEFAULT '',
  dropoff_staff_name TEXT NOT NULL DEFAULT '',
  recipient_phone_1 TEXT NOT NULL,
  recipient_phone_2 TEXT NOT NULL DEFAULT '',
  recipient_email TEXT NOT NULL,
  specimen JSONB NOT NULL DEFAULT '[]',
  note TEXT NOT NULL DEFAULT '',
  distance TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  active BOOLEAN NOT NULL DEFAULT false,
  is_accepted BOOLEAN NOT NULL DEFAULT false,
  is_cancelled BOOLEAN NOT NULL DEFAULT false,
  reason TEXT NOT NULL DEFAULT '',
  delivery_evidence TEXT NOT NULL DEFAULT '',
  lat TEXT NOT NULL DEFAULT '',
  long TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  eta TEXT NOT NULL DEFAULT '',
  delivery_date TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT chk_courier_after_pickup CHECK (courier_id IS NULL OR status IN ('in-transit','awaiting-approval','delivered')),
  CONSTRAINT chk_cancelled_flag CHECK (is_cancelled = (status = 'cancelled'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_dispatcher_created ON deliveries(dispatcher_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_courier ON deliveries(courier_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_available ON deliveries(created_at) WHERE status = 'pending' AND is_accepted AND courier_id IS NULL`,
		`
CREATE TABLE IF NOT EXISTS tracking_sessions (
  session_id TEXT PRIMARY KEY,
  delivery_id UUID NOT NULL UNIQUE REFERENCES deliveries(id),
  courier_socket_id TEXT NULL,
  dispatcher_socket_id TEXT NULL,
  recipient_socket_id TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS recipient_slugs (
  slug TEXT PRIMARY KEY,
  delivery_id UUID NOT NULL REFERENCES deliveries(id),
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_recipient_slugs_expires_at ON recipient_slugs(expires_at)`,
		`
CREATE TABLE IF NOT EXISTS user_otps (
  id UUID PRIMARY KEY,
  email TEXT NOT NULL,
  otp TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT true,
  token TEXT NULL UNIQUE,
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_user_otps_email_otp ON user_otps(email, otp, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_user_otps_active_expires ON user_otps(expires_at) WHERE is_active`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL,
  message TEXT NOT NULL,
  type TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
