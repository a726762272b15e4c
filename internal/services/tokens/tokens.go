// Package tokens issues the capability tokens that stand in for recipient
// authentication (slugs) and drive password reset (OTP and exchange token).
// Every token carries an expiry that is checked on read.
package tokens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/cache"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	SlugLength          = 16
	ExchangeTokenLength = 32

	DefaultSlugTTL = 72 * time.Hour
	DefaultOTPTTL  = 10 * time.Minute
)

type Repository interface {
	InsertSlug(ctx context.Context, slug models.RecipientSlug) error
	FindSlug(ctx context.Context, slug string, now time.Time) (*models.RecipientSlug, error)

	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	InsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*models.OTP, error)
	FindOTP(ctx context.Context, email, code string) (*models.OTP, error)
	SetOTPToken(ctx context.Context, id uuid.UUID, token string, now time.Time) error
	FindOTPByToken(ctx context.Context, token string) (*models.OTP, error)
	ConsumeOTP(ctx context.Context, id uuid.UUID, passwordHash string, now time.Time) error
}

type Notifier interface {
	Dispatch(n models.Notification)
}

type Issuer struct {
	repo     Repository
	notifier Notifier
	log      *logger.Logger

	limiter   cache.RateLimiter
	otpLimit  int64
	otpWindow time.Duration

	slugTTL    time.Duration
	otpTTL     time.Duration
	bcryptCost int
	now        func() time.Time
}

func New(repo Repository, notifier Notifier, log *logger.Logger) *Issuer {
	return &Issuer{
		repo:       repo,
		notifier:   notifier,
		log:        log,
		slugTTL:    DefaultSlugTTL,
		otpTTL:     DefaultOTPTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithRateLimiter caps OTP requests per email inside window.
func (i *Issuer) WithRateLimiter(l cache.RateLimiter, limit int64, window time.Duration) *Issuer {
	i.limiter = l
	i.otpLimit = limit
	i.otpWindow = window
	return i
}

func (i *Issuer) WithTTL(slugTTL, otpTTL time.Duration) *Issuer {
	if slugTTL > 0 {
		i.slugTTL = slugTTL
	}
	if otpTTL > 0 {
		i.otpTTL = otpTTL
	}
	return i
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) WithBcryptCost(cost int) *Issuer {
	i.bcryptCost = cost
	return i
}

// MintSlug generates a slug without storing it, for callers that persist it
// inside their own transaction.
func (i *Issuer) MintSlug(deliveryID uuid.UUID) (models.RecipientSlug, error) {
	s, err := randomSlug(SlugLength)
	if err != nil {
		return models.RecipientSlug{}, err
	}
	return models.RecipientSlug{DeliveryID: deliveryID, Slug: s, ExpiresAt: i.now().Add(i.slugTTL)}, nil
}

func (i *Issuer) IssueSlug(ctx context.Context, deliveryID uuid.UUID) (string, error) {
	slug, err := i.MintSlug(deliveryID)
	if err != nil {
		return "", err
	}
	if err := i.repo.InsertSlug(ctx, slug); err != nil {
		return "", errors.Wrap(err, "issue slug")
	}
	return slug.Slug, nil
}

// ResolveSlug is read-only: a slug keeps working until it expires.
func (i *Issuer) ResolveSlug(ctx context.Context, slug string) (uuid.UUID, error) {
	rec, err := i.repo.FindSlug(ctx, slug, i.now())
	if errors.Is(err, apperrors.ErrNotFound) {
		return uuid.Nil, apperrors.NotFound("Invalid or expired link")
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "resolve slug")
	}
	return rec.DeliveryID, nil
}

func (i *Issuer) IssueOTP(ctx context.Context, email string) (*models.OTP, error) {
	email = normalizeEmail(email)

	if i.limiter != nil {
		allowed, _, err := i.limiter.Allow(ctx, "otp:"+email, i.otpLimit, i.otpWindow)
		if err != nil {
			i.log.WithError(err).Warn("otp rate limiter unavailable")
		} else if !allowed {
			return nil, apperrors.TooManyRequests("Too many OTP requests, please try again later")
		}
	}

	exists, err := i.repo.UserExistsByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "check user")
	}
	if !exists {
		return nil, apperrors.NotFound("User not found")
	}

	code, err := randomOTP()
	if err != nil {
		return nil, err
	}
	expiresAt := i.now().Add(i.otpTTL)
	otp, err := i.repo.InsertOTP(ctx, email, code, expiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "store otp")
	}

	i.log.WithField("email", email).Debug("otp issued")
	i.notifier.Dispatch(models.Notification{
		Address: email,
		Subject: "OTP Request",
		Body: fmt.Sprintf("Your password reset OTP is %s, it would expire in %d minutes time: %s",
			code, int(i.otpTTL/time.Minute), expiresAt.UTC().Format(time.RFC1123)),
	})
	return otp, nil
}

// ValidateOTP exchanges a live code for a one-time exchange token. A code that
// is spent, expired or already exchanged triggers a fresh OTP and fails.
func (i *Issuer) ValidateOTP(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	code = strings.ToUpper(strings.TrimSpace(code))

	exists, err := i.repo.UserExistsByEmail(ctx, email)
	if err != nil {
		return "", errors.Wrap(err, "check user")
	}
	if !exists {
		return "", apperrors.NotFound("User not found")
	}

	otp, err := i.repo.FindOTP(ctx, email, code)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", apperrors.NotFound("Invalid OTP supplied")
	}
	if err != nil {
		return "", errors.Wrap(err, "find otp")
	}

	now := i.now()
	if !otp.Usable(now) {
		return "", i.stale(ctx, email)
	}

	token, err := randomSlug(ExchangeTokenLength)
	if err != nil {
		return "", err
	}
	if err := i.repo.SetOTPToken(ctx, otp.ID, token, now); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// lost a race with another validation or the expiry
			return "", i.stale(ctx, email)
		}
		return "", errors.Wrap(err, "stamp otp token")
	}
	return token, nil
}

// stale re-issues an OTP for a spent code. The reply only claims a new code
// was sent when the re-issue succeeded.
func (i *Issuer) stale(ctx context.Context, email string) error {
	if _, err := i.IssueOTP(ctx, email); err != nil {
		if apperrors.Kind(err) != nil {
			return err
		}
		i.log.WithError(err).WithField("email", email).Warn("otp reissue failed")
		return apperrors.Conflict("This OTP had already been used, please request a new one")
	}
	return apperrors.Conflict("This OTP had already been used, a new OTP has been sent to: %s", email)
}

// ConsumeExchangeToken sets a new password and retires the token.
func (i *Issuer) ConsumeExchangeToken(ctx context.Context, token, newPassword string) error {
	otp, err := i.repo.FindOTPByToken(ctx, token)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("Invalid OTP supplied")
	}
	if err != nil {
		return errors.Wrap(err, "find otp by token")
	}

	now := i.now()
	if !otp.Redeemable(now) {
		return apperrors.NotAcceptable("Password change process expired, please try again")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), i.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	err = i.repo.ConsumeOTP(ctx, otp.ID, string(hash), now)
	switch {
	case errors.Is(err, apperrors.ErrNotAcceptable):
		return apperrors.NotAcceptable("Password change process expired, please try again")
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NotFound("This user no longer exists in our system")
	case err != nil:
		return errors.Wrap(err, "consume otp")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
