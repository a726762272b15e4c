package mocks

import (
	"context"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateSession(ctx context.Context, sessionID string, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	args := m.Called(ctx, sessionID, deliveryID)
	var r *models.TrackingSession
	switch v := args.Get(0).(type) {
	case func(context.Context, string, uuid.UUID) *models.TrackingSession:
		r = v(ctx, sessionID, deliveryID)
	case *models.TrackingSession:
		r = v
	}
	return r, args.Error(1)
}

func (m *MockRepository) GetSession(ctx context.Context, sessionID string) (*models.TrackingSession, error) {
	args := m.Called(ctx, sessionID)
	var r *models.TrackingSession
	if v := args.Get(0); v != nil {
		r = v.(*models.TrackingSession)
	}
	return r, args.Error(1)
}

func (m *MockRepository) GetSessionByDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.TrackingSession, error) {
	args := m.Called(ctx, deliveryID)
	var r *models.TrackingSession
	if v := args.Get(0); v != nil {
		r = v.(*models.TrackingSession)
	}
	return r, args.Error(1)
}

func (m *MockRepository) BindSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) error {
	return m.Called(ctx, sessionID, p, socketID).Error(0)
}

func (m *MockRepository) ClearSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) (bool, error) {
	args := m.Called(ctx, sessionID, p, socketID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	args := m.Called(ctx, id)
	var r *models.Delivery
	if v := args.Get(0); v != nil {
		r = v.(*models.Delivery)
	}
	return r, args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	var r *models.User
	if v := args.Get(0); v != nil {
		r = v.(*models.User)
	}
	return r, args.Error(1)
}
