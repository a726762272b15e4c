package httpapi

import (
	"context"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/deliveries"
	"github.com/stretchr/testify/mock"
)

type deliveryServiceMock struct {
	mock.Mock
}

func delivery(args mock.Arguments) (*models.Delivery, error) {
	d, _ := args.Get(0).(*models.Delivery)
	return d, args.Error(1)
}

func page(args mock.Arguments) (*models.DeliveryPage, error) {
	p, _ := args.Get(0).(*models.DeliveryPage)
	return p, args.Error(1)
}

func pickup(args mock.Arguments) (*deliveries.PickupResult, error) {
	p, _ := args.Get(0).(*deliveries.PickupResult)
	return p, args.Error(1)
}

func (m *deliveryServiceMock) Create(ctx context.Context, actor models.Actor, in models.DeliveryCreateInput) (*deliveries.CreateResult, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*deliveries.CreateResult)
	return res, args.Error(1)
}

func (m *deliveryServiceMock) View(ctx context.Context, actor models.Actor, trackingID string) (*models.Delivery, error) {
	return delivery(m.Called(ctx, actor, trackingID))
}

func (m *deliveryServiceMock) Update(ctx context.Context, actor models.Actor, trackingID string, in models.DeliveryUpdateInput) (*models.Delivery, error) {
	return delivery(m.Called(ctx, actor, trackingID, in))
}

func (m *deliveryServiceMock) Cancel(ctx context.Context, actor models.Actor, trackingID, reason string) (*models.Delivery, error) {
	return delivery(m.Called(ctx, actor, trackingID, reason))
}

func (m *deliveryServiceMock) ListForDispatcher(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	return page(m.Called(ctx, actor, f))
}

func (m *deliveryServiceMock) ResendRecipientRequest(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.ResendResult, error) {
	args := m.Called(ctx, actor, trackingID)
	res, _ := args.Get(0).(*deliveries.ResendResult)
	return res, args.Error(1)
}

func (m *deliveryServiceMock) ListAvailablePickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	return page(m.Called(ctx, actor, f))
}

func (m *deliveryServiceMock) ListMyPickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error) {
	return page(m.Called(ctx, actor, f))
}

func (m *deliveryServiceMock) AcceptPickup(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.PickupResult, error) {
	return pickup(m.Called(ctx, actor, trackingID))
}

func (m *deliveryServiceMock) ViewPickup(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.PickupResult, error) {
	return pickup(m.Called(ctx, actor, trackingID))
}

func (m *deliveryServiceMock) SubmitPickupEvidence(ctx context.Context, actor models.Actor, sessionID, evidence string) (*deliveries.EvidenceResult, error) {
	args := m.Called(ctx, actor, sessionID, evidence)
	res, _ := args.Get(0).(*deliveries.EvidenceResult)
	return res, args.Error(1)
}

func (m *deliveryServiceMock) RecipientView(ctx context.Context, slug string) (*models.Delivery, error) {
	return delivery(m.Called(ctx, slug))
}

func (m *deliveryServiceMock) RecipientRespond(ctx context.Context, slug string, accept bool) (*models.Delivery, error) {
	return delivery(m.Called(ctx, slug, accept))
}

func (m *deliveryServiceMock) ViewBySession(ctx context.Context, sessionID string) (*models.Delivery, error) {
	return delivery(m.Called(ctx, sessionID))
}

func (m *deliveryServiceMock) ConfirmDelivered(ctx context.Context, sessionID string) (*models.Delivery, error) {
	return delivery(m.Called(ctx, sessionID))
}

type resetMock struct {
	mock.Mock
}

func (m *resetMock) IssueOTP(ctx context.Context, email string) (*models.OTP, error) {
	args := m.Called(ctx, email)
	o, _ := args.Get(0).(*models.OTP)
	return o, args.Error(1)
}

func (m *resetMock) ValidateOTP(ctx context.Context, email, code string) (string, error) {
	args := m.Called(ctx, email, code)
	return args.String(0), args.Error(1)
}

func (m *resetMock) ConsumeExchangeToken(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

type logsMock struct {
	mock.Mock
}

func (m *logsMock) ListNotificationLogs(ctx context.Context, email string, limit int) ([]*models.NotificationLog, error) {
	args := m.Called(ctx, email, limit)
	l, _ := args.Get(0).([]*models.NotificationLog)
	return l, args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
