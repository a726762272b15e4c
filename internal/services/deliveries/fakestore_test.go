package deliveries

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for pgdelivery.Storage covering the
// delivery, session, slug and user tables.
type memStore struct {
	mu         sync.Mutex
	seq        int64
	deliveries map[uuid.UUID]*models.Delivery
	sessions   map[string]*models.TrackingSession
	slugs      map[string]models.RecipientSlug
	users      map[uuid.UUID]*models.User

	failCreateSession error
}

func newMemStore() *memStore {
	return &memStore{
		deliveries: map[uuid.UUID]*models.Delivery{},
		sessions:   map[string]*models.TrackingSession{},
		slugs:      map[string]models.RecipientSlug{},
		users:      map[uuid.UUID]*models.User{},
	}
}

func (m *memStore) addUser(role models.Role, email string) models.Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: email, Name: strings.Split(email, "@")[0], Role: role}
	m.users[u.ID] = u
	return models.Actor{ID: u.ID, Role: role, Email: email, Name: u.Name}
}

func clone(d *models.Delivery) *models.Delivery {
	c := *d
	c.Specimens = append([]models.Specimen(nil), d.Specimens...)
	c.Dispatcher, c.Courier = nil, nil
	return &c
}

func (m *memStore) CreateDelivery(_ context.Context, dispatcherID uuid.UUID, in models.DeliveryCreateInput, slug models.RecipientSlug) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.slugs[slug.Slug]; dup {
		return nil, apperrors.ErrConflict
	}
	m.seq++
	now := time.Now().UTC()
	d := &models.Delivery{
		ID: uuid.New(), TrackingID: models.FormatTrackingID(m.seq), DispatcherID: dispatcherID,
		PickupAddress: in.PickupAddress, DropoffAddress: in.DropoffAddress,
		Recipient: in.Recipient, Specimens: in.Specimens, Price: in.Price,
		Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	m.deliveries[d.ID] = d
	slug.DeliveryID = d.ID
	m.slugs[slug.Slug] = slug
	return clone(d), nil
}

func (m *memStore) GetDeliveryByID(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return clone(d), nil
}

func (m *memStore) GetDeliveryByTrackingID(_ context.Context, trackingID string) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.TrackingID == trackingID {
			return clone(d), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) ListDeliveries(_ context.Context, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Delivery
	for _, d := range m.deliveries {
		switch {
		case f.DispatcherID != nil && d.DispatcherID != *f.DispatcherID,
			f.CourierID != nil && (d.CourierID == nil || *d.CourierID != *f.CourierID),
			f.CourierUnset && d.CourierID != nil,
			f.Status != "" && d.Status != f.Status,
			f.Accepted != nil && d.IsAccepted != *f.Accepted,
			f.Cancelled != nil && d.IsCancelled != *f.Cancelled:
			continue
		}
		out = append(out, clone(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackingID < out[j].TrackingID })
	return &models.DeliveryPage{Deliveries: out, Page: 1, Limit: 10, Total: len(out)}, nil
}

// guarded applies fn when the delivery exists and ok holds.
func (m *memStore) guarded(id uuid.UUID, ok func(*models.Delivery) bool, fn func(*models.Delivery)) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, found := m.deliveries[id]
	if !found {
		return nil, apperrors.ErrNotFound
	}
	if !ok(d) {
		return nil, apperrors.ErrConflict
	}
	fn(d)
	d.UpdatedAt = time.Now().UTC()
	return clone(d), nil
}

func allowed(a models.Action) func(*models.Delivery) bool {
	return func(d *models.Delivery) bool { return models.ValidTransition(a, d.Status) }
}

func (m *memStore) UpdateDeliveryDetails(_ context.Context, id uuid.UUID, in models.DeliveryUpdateInput) (*models.Delivery, error) {
	return m.guarded(id, allowed(models.ActionEdit), func(d *models.Delivery) {
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = *v
			}
		}
		set(&d.PickupAddress, in.PickupAddress)
		set(&d.PickupDept, in.PickupDept)
		set(&d.PickupStaffName, in.PickupStaffName)
		set(&d.DropoffAddress, in.DropoffAddress)
		set(&d.DropoffDept, in.DropoffDept)
		set(&d.DropoffStaffName, in.DropoffStaffName)
		set(&d.Recipient.PhoneNumber1, in.RecipientPhone1)
		set(&d.Recipient.PhoneNumber2, in.RecipientPhone2)
		set(&d.Recipient.Email, in.RecipientEmail)
		set(&d.Distance, in.Distance)
		set(&d.Note, in.Note)
		if in.DeliveryDate != nil {
			t := *in.DeliveryDate
			d.DeliveryDate = &t
		}
		if in.Specimens != nil {
			d.Specimens = *in.Specimens
		}
	})
}

func (m *memStore) CancelDelivery(_ context.Context, id uuid.UUID, reason string) (*models.Delivery, error) {
	return m.guarded(id, func(d *models.Delivery) bool {
		return models.ValidTransition(models.ActionCancel, d.Status) && !d.Active
	}, func(d *models.Delivery) {
		d.Status, d.IsCancelled, d.Reason = models.StatusCancelled, true, reason
	})
}

func (m *memStore) SetRecipientAccepted(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	return m.guarded(id, allowed(models.ActionRecipientAccept), func(d *models.Delivery) { d.IsAccepted = true })
}

func (m *memStore) AcceptPickup(_ context.Context, id, courierID uuid.UUID) (*models.Delivery, error) {
	return m.guarded(id, func(d *models.Delivery) bool {
		return models.ValidTransition(models.ActionAcceptPickup, d.Status) && d.IsAccepted && d.CourierID == nil
	}, func(d *models.Delivery) {
		c := courierID
		d.Status, d.Active, d.CourierID = models.StatusInTransit, true, &c
	})
}

func (m *memStore) RevertPickup(_ context.Context, id, courierID uuid.UUID) error {
	_, err := m.guarded(id, func(d *models.Delivery) bool {
		return d.Status == models.StatusInTransit && d.CourierID != nil && *d.CourierID == courierID
	}, func(d *models.Delivery) {
		d.Status, d.Active, d.CourierID = models.StatusPending, false, nil
	})
	return err
}

func (m *memStore) SubmitPickupEvidence(_ context.Context, id, courierID uuid.UUID, evidence string) (*models.Delivery, error) {
	return m.guarded(id, func(d *models.Delivery) bool {
		return models.ValidTransition(models.ActionSubmitEvidence, d.Status) && d.CourierID != nil && *d.CourierID == courierID
	}, func(d *models.Delivery) {
		d.Status, d.DeliveryEvidence = models.StatusAwaitingApproval, evidence
	})
}

func (m *memStore) ConfirmDelivered(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	d, err := m.guarded(id, allowed(models.ActionConfirmDelivered), func(d *models.Delivery) {
		now := time.Now().UTC()
		d.Status, d.Active, d.DeliveryDate = models.StatusDelivered, false, &now
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.CourierID != nil {
		if u, ok := m.users[*d.CourierID]; ok {
			u.DeliveryCount++
		}
	}
	return d, nil
}

func (m *memStore) ApplyLiveUpdate(_ context.Context, id uuid.UUID, upd models.LiveUpdate) (*models.Delivery, error) {
	return m.guarded(id, allowed(models.ActionLiveUpdate), func(d *models.Delivery) {
		if upd.Lat != nil {
			d.Lat = *upd.Lat
		}
		if upd.Long != nil {
			d.Long = *upd.Long
		}
		if upd.Location != nil {
			d.Location = *upd.Location
		}
		if upd.ETA != nil {
			d.ETA = *upd.ETA
		}
	})
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memStore) CreateSession(_ context.Context, sessionID string, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateSession != nil {
		return nil, m.failCreateSession
	}
	t := &models.TrackingSession{SessionID: sessionID, DeliveryID: deliveryID}
	m.sessions[sessionID] = t
	c := *t
	return &c, nil
}

func (m *memStore) GetSession(_ context.Context, sessionID string) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memStore) GetSessionByDelivery(_ context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.sessions {
		if t.DeliveryID == deliveryID {
			c := *t
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) BindSocket(_ context.Context, sessionID string, p models.Participant, socketID string) error {
	return apperrors.ErrNotFound
}

func (m *memStore) ClearSocket(_ context.Context, sessionID string, p models.Participant, socketID string) (bool, error) {
	return false, nil
}

func (m *memStore) InsertSlug(_ context.Context, slug models.RecipientSlug) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slugs[slug.Slug] = slug
	return nil
}

func (m *memStore) FindSlug(_ context.Context, slug string, now time.Time) (*models.RecipientSlug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.slugs[slug]
	if !ok || r.Expired(now) {
		return nil, apperrors.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) slugFor(deliveryID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s, r := range m.slugs {
		if r.DeliveryID == deliveryID {
			return s
		}
	}
	return ""
}

func (m *memStore) UserExistsByEmail(context.Context, string) (bool, error) { return false, nil }
func (m *memStore) InsertOTP(context.Context, string, string, time.Time) (*models.OTP, error) {
	return nil, apperrors.ErrInvalid
}
func (m *memStore) FindOTP(context.Context, string, string) (*models.OTP, error) {
	return nil, apperrors.ErrNotFound
}
func (m *memStore) SetOTPToken(context.Context, uuid.UUID, string, time.Time) error {
	return apperrors.ErrConflict
}
func (m *memStore) FindOTPByToken(context.Context, string) (*models.OTP, error) {
	return nil, apperrors.ErrNotFound
}
func (m *memStore) ConsumeOTP(context.Context, uuid.UUID, string, time.Time) error {
	return apperrors.ErrNotAcceptable
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Dispatch(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) to(address string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.Address == address {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
