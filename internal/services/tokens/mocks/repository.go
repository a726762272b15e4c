package mocks

import (
	"context"
	"time"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertSlug(ctx context.Context, slug models.RecipientSlug) error {
	return m.Called(ctx, slug).Error(0)
}

func (m *MockRepository) FindSlug(ctx context.Context, slug string, now time.Time) (*models.RecipientSlug, error) {
	args := m.Called(ctx, slug, now)
	var r *models.RecipientSlug
	if v := args.Get(0); v != nil {
		r = v.(*models.RecipientSlug)
	}
	return r, args.Error(1)
}

func (m *MockRepository) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*models.OTP, error) {
	args := m.Called(ctx, email, code, expiresAt)
	var r *models.OTP
	if v := args.Get(0); v != nil {
		r = v.(*models.OTP)
	}
	return r, args.Error(1)
}

func (m *MockRepository) FindOTP(ctx context.Context, email, code string) (*models.OTP, error) {
	args := m.Called(ctx, email, code)
	var r *models.OTP
	if v := args.Get(0); v != nil {
		r = v.(*models.OTP)
	}
	return r, args.Error(1)
}

func (m *MockRepository) SetOTPToken(ctx context.Context, id uuid.UUID, token string, now time.Time) error {
	return m.Called(ctx, id, token, now).Error(0)
}

func (m *MockRepository) FindOTPByToken(ctx context.Context, token string) (*models.OTP, error) {
	args := m.Called(ctx, token)
	var r *models.OTP
	if v := args.Get(0); v != nil {
		r = v.(*models.OTP)
	}
	return r, args.Error(1)
}

func (m *MockRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error {
	return m.Called(ctx, id, passwordHash, now).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Dispatch(n models.Notification) {
	m.Called(n)
}
