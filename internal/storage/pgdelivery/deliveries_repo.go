package pgdelivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

const deliveryColumns = `
  id, tracking_id, dispatcher_id, courier_id,
  pickup_address, pickup_dept, pickup_staff_name,
  dropoff_address, dropoff_dept, dropoff_staff_name,
  recipient_phone_1, recipient_phone_2, recipient_email,
  specimen, note, distance, price,
  status, active, is_accepted, is_cancelled, reason, delivery_evidence,
  lat, long, location, eta,
  delivery_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var d models.Delivery
	var specimens []models.Specimen
	if err := row.Scan(
		&d.ID, &d.TrackingID, &d.DispatcherID, &d.CourierID,
		&d.PickupAddress, &d.PickupDept, &d.PickupStaffName,
		&d.DropoffAddress, &d.DropoffDept, &d.DropoffStaffName,
		&d.Recipient.PhoneNumber1, &d.Recipient.PhoneNumber2, &d.Recipient.Email,
		&specimens, &d.Note, &d.Distance, &d.Price,
		&d.Status, &d.Active, &d.IsAccepted, &d.IsCancelled, &d.Reason, &d.DeliveryEvidence,
		&d.Lat, &d.Long, &d.Location, &d.ETA,
		&d.DeliveryDate, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if specimens == nil {
		specimens = []models.Specimen{}
	}
	d.Specimens = specimens
	return &d, nil
}

// CreateDelivery allocates the tracking id and stores the delivery together
// with its first recipient slug. Either both rows exist or neither does.
func (s *Storage) CreateDelivery(ctx context.Context, dispatcherID uuid.UUID, in models.DeliveryCreateInput, slug models.RecipientSlug) (*models.Delivery, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('delivery_tracking_seq')`).Scan(&seq); err != nil {
		return nil, errors.Wrap(err, "next tracking seq")
	}

	specimens := in.Specimens
	if specimens == nil {
		specimens = []models.Specimen{}
	}

	d, err := scanDelivery(tx.QueryRow(ctx, `
INSERT INTO deliveries (
  id, tracking_id, dispatcher_id,
  pickup_address, pickup_dept, pickup_staff_name,
  dropoff_address, dropoff_dept, dropoff_staff_name,
  recipient_phone_1, recipient_phone_2, recipient_email,
  specimen, note, distance, price,
  status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
RETURNING`+deliveryColumns,
		uuid.New(), models.FormatTrackingID(seq), dispatcherID,
		in.PickupAddress, in.PickupDept, in.PickupStaffName,
		in.DropoffAddress, in.DropoffDept, in.DropoffStaffName,
		in.Recipient.PhoneNumber1, in.Recipient.PhoneNumber2, in.Recipient.Email,
		specimens, in.Note, in.Distance, in.Price,
		models.StatusPending, now,
	))
	if err != nil {
		return nil, errors.Wrap(err, "insert delivery")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO recipient_slugs (slug, delivery_id, expires_at, created_at)
VALUES ($1,$2,$3,$4)
`, slug.Slug, d.ID, slug.ExpiresAt.UTC(), now)
	if err != nil {
		return nil, errors.Wrap(err, "insert slug")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return d, nil
}

func (s *Storage) GetDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT`+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select delivery")
	}
	return d, nil
}

func (s *Storage) GetDeliveryByTrackingID(ctx context.Context, trackingID string) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT`+deliveryColumns+` FROM deliveries WHERE tracking_id = $1`, trackingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select delivery by tracking id")
	}
	return d, nil
}

func (s *Storage) ListDeliveries(ctx context.Context, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	if f.Limit <= 0 || f.Limit > maxPageLimit {
		f.Limit = defaultPageLimit
	}
	if f.Page < 1 {
		f.Page = 1
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.DispatcherID != nil {
		conds = append(conds, "dispatcher_id = "+arg(*f.DispatcherID))
	}
	if f.CourierID != nil {
		conds = append(conds, "courier_id = "+arg(*f.CourierID))
	}
	if f.CourierUnset {
		conds = append(conds, "courier_id IS NULL")
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.Accepted != nil {
		conds = append(conds, "is_accepted = "+arg(*f.Accepted))
	}
	if f.Cancelled != nil {
		conds = append(conds, "is_cancelled = "+arg(*f.Cancelled))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		cols := []string{"tracking_id", "pickup_address", "dropoff_address", "location", "recipient_email", "recipient_phone_1", "recipient_phone_2"}
		ors := make([]string, 0, len(cols))
		for _, c := range cols {
			ors = append(ors, c+" ILIKE "+p)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	dateCol := "created_at"
	if f.DateField == models.DateFieldDelivery {
		dateCol = "delivery_date"
	}
	if f.From != nil {
		conds = append(conds, dateCol+" >= "+arg(f.From.UTC()))
	}
	if f.To != nil {
		conds = append(conds, dateCol+" <= "+arg(f.To.UTC()))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries`+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count deliveries")
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	limitArg := arg(f.Limit)
	offsetArg := arg((f.Page - 1) * f.Limit)

	rows, err := s.db.Query(ctx, `SELECT`+deliveryColumns+` FROM deliveries`+where+
		` ORDER BY created_at `+order+`, tracking_id `+order+
		` LIMIT `+limitArg+` OFFSET `+offsetArg, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select deliveries")
	}
	defer rows.Close()

	out := make([]*models.Delivery, 0, f.Limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan delivery")
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	return &models.DeliveryPage{Deliveries: out, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateDeliveryDetails edits a delivery that is still pending.
func (s *Storage) UpdateDeliveryDetails(ctx context.Context, id uuid.UUID, in models.DeliveryUpdateInput) (*models.Delivery, error) {
	var specimens any
	if in.Specimens != nil {
		specimens = *in.Specimens
	}

	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries SET
  pickup_address = COALESCE($3, pickup_address),
  pickup_dept = COALESCE($4, pickup_dept),
  pickup_staff_name = COALESCE($5, pickup_staff_name),
  dropoff_address = COALESCE($6, dropoff_address),
  dropoff_dept = COALESCE($7, dropoff_dept),
  dropoff_staff_name = COALESCE($8, dropoff_staff_name),
  recipient_phone_1 = COALESCE($9, recipient_phone_1),
  recipient_phone_2 = COALESCE($10, recipient_phone_2),
  recipient_email = COALESCE($11, recipient_email),
  distance = COALESCE($12, distance),
  note = COALESCE($13, note),
  delivery_date = COALESCE($14, delivery_date),
  specimen = COALESCE($15::jsonb, specimen),
  updated_at = now()
WHERE id = $1 AND status = ANY($2)
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionEdit),
		in.PickupAddress, in.PickupDept, in.PickupStaffName,
		in.DropoffAddress, in.DropoffDept, in.DropoffStaffName,
		in.RecipientPhone1, in.RecipientPhone2, in.RecipientEmail,
		in.Distance, in.Note, in.DeliveryDate, specimens,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update delivery")
	}
	return d, nil
}

// CancelDelivery moves a pending, not yet active delivery to cancelled.
func (s *Storage) CancelDelivery(ctx context.Context, id uuid.UUID, reason string) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries
SET status = $3, is_cancelled = true, reason = $4, updated_at = now()
WHERE id = $1 AND status = ANY($2) AND NOT active
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionCancel), models.StatusCancelled, reason,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cancel delivery")
	}
	return d, nil
}

func (s *Storage) SetRecipientAccepted(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries
SET is_accepted = true, updated_at = now()
WHERE id = $1 AND status = ANY($2)
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionRecipientAccept),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "accept delivery")
	}
	return d, nil
}

// AcceptPickup assigns the courier. Concurrent callers race on the row; only
// the one whose UPDATE still sees a free pending delivery wins.
func (s *Storage) AcceptPickup(ctx context.Context, id, courierID uuid.UUID) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries
SET status = $4, active = true, courier_id = $3, updated_at = now()
WHERE id = $1 AND status = ANY($2) AND is_accepted AND courier_id IS NULL AND NOT is_cancelled
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionAcceptPickup), courierID, models.StatusInTransit,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "accept pickup")
	}
	return d, nil
}

// RevertPickup undoes AcceptPickup when the follow-up session could not be created.
func (s *Storage) RevertPickup(ctx context.Context, id, courierID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
UPDATE deliveries
SET status = $3, active = false, courier_id = NULL, updated_at = now()
WHERE id = $1 AND courier_id = $2 AND status = $4
`, id, courierID, models.StatusPending, models.StatusInTransit)
	return errors.Wrap(err, "revert pickup")
}

func (s *Storage) SubmitPickupEvidence(ctx context.Context, id, courierID uuid.UUID, evidence string) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries
SET status = $4, delivery_evidence = $3, updated_at = now()
WHERE id = $1 AND status = ANY($2) AND courier_id = $5
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionSubmitEvidence), evidence, models.StatusAwaitingApproval, courierID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "submit evidence")
	}
	return d, nil
}

// ConfirmDelivered finishes the delivery and bumps the courier's lifetime counter
// in the same transaction.
func (s *Storage) ConfirmDelivered(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := scanDelivery(tx.QueryRow(ctx, `
UPDATE deliveries
SET status = $3, active = false, delivery_date = COALESCE(delivery_date, now()), updated_at = now()
WHERE id = $1 AND status = ANY($2)
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionConfirmDelivered), models.StatusDelivered,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "confirm delivered")
	}

	if d.CourierID != nil {
		if _, err := tx.Exec(ctx, `
UPDATE users SET delivery_count = delivery_count + 1, updated_at = now() WHERE id = $1
`, *d.CourierID); err != nil {
			return nil, errors.Wrap(err, "increment delivery count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return d, nil
}

// ApplyLiveUpdate merges the allow-listed live fields; nil fields are kept.
func (s *Storage) ApplyLiveUpdate(ctx context.Context, id uuid.UUID, upd models.LiveUpdate) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries SET
  lat = COALESCE($3, lat),
  long = COALESCE($4, long),
  location = COALESCE($5, location),
  eta = COALESCE($6, eta),
  updated_at = now()
WHERE id = $1 AND status = ANY($2)
RETURNING`+deliveryColumns,
		id, models.AllowedFrom(models.ActionLiveUpdate), upd.Lat, upd.Long, upd.Location, upd.ETA,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.guardMiss(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "apply live update")
	}
	return d, nil
}

// guardMiss tells an unknown delivery apart from one in the wrong state.
func (s *Storage) guardMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "check delivery exists")
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrConflict
}
