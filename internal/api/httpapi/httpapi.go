// Package httpapi is the HTTP surface over the delivery lifecycle: the
// dispatcher, courier and recipient operations plus the password reset flow.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/deliveries"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type DeliveryService interface {
	Create(ctx context.Context, actor models.Actor, in models.DeliveryCreateInput) (*deliveries.CreateResult, error)
	View(ctx context.Context, actor models.Actor, trackingID string) (*models.Delivery, error)
	Update(ctx context.Context, actor models.Actor, trackingID string, in models.DeliveryUpdateInput) (*models.Delivery, error)
	Cancel(ctx context.Context, actor models.Actor, trackingID, reason string) (*models.Delivery, error)
	ListForDispatcher(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error)
	ResendRecipientRequest(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.ResendResult, error)

	ListAvailablePickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error)
	ListMyPickups(ctx context.Context, actor models.Actor, f models.DeliveryFilter) (*models.DeliveryPage, error)
	AcceptPickup(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.PickupResult, error)
	ViewPickup(ctx context.Context, actor models.Actor, trackingID string) (*deliveries.PickupResult, error)
	SubmitPickupEvidence(ctx context.Context, actor models.Actor, sessionID, evidence string) (*deliveries.EvidenceResult, error)

	RecipientView(ctx context.Context, slug string) (*models.Delivery, error)
	RecipientRespond(ctx context.Context, slug string, accept bool) (*models.Delivery, error)
	ViewBySession(ctx context.Context, sessionID string) (*models.Delivery, error)
	ConfirmDelivered(ctx context.Context, sessionID string) (*models.Delivery, error)
}

type PasswordReset interface {
	IssueOTP(ctx context.Context, email string) (*models.OTP, error)
	ValidateOTP(ctx context.Context, email, code string) (string, error)
	ConsumeExchangeToken(ctx context.Context, token, newPassword string) error
}

type NotificationLogReader interface {
	ListNotificationLogs(ctx context.Context, email string, limit int) ([]*models.NotificationLog, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	deliveries DeliveryService
	reset      PasswordReset
	logs       NotificationLogReader
	auth       *Authenticator
	log        *logger.Logger

	checks map[string]Pinger
}

func New(deliveries DeliveryService, reset PasswordReset, logs NotificationLogReader, auth *Authenticator, log *logger.Logger) *API {
	return &API{
		deliveries: deliveries,
		reset:      reset,
		logs:       logs,
		auth:       auth,
		log:        log,
		checks:     map[string]Pinger{},
	}
}

// WithHealthCheck adds a dependency probed by /healthz.
func (a *API) WithHealthCheck(name string, p Pinger) *API {
	a.checks[name] = p
	return a
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLog)

	r.Get("/healthz", a.health)

	r.Route("/api/v1", func(r chi.Router) {
		// Recipient links are capability URLs and carry no bearer token.
		r.Get("/recipient/{slug}", a.recipientView)
		r.Post("/recipient/{slug}/respond", a.recipientRespond)
		r.Get("/tracking/{sessionID}", a.trackingView)
		r.Post("/tracking/{sessionID}/confirm", a.trackingConfirm)

		r.Post("/auth/otp", a.requestOTP)
		r.Post("/auth/otp/validate", a.validateOTP)
		r.Post("/auth/password", a.changePassword)

		r.Group(func(r chi.Router) {
			r.Use(a.auth.Middleware)

			r.Post("/deliveries", a.createDelivery)
			r.Get("/deliveries", a.listDeliveries)
			r.Get("/deliveries/{trackingID}", a.viewDelivery)
			r.Patch("/deliveries/{trackingID}", a.updateDelivery)
			r.Post("/deliveries/{trackingID}/cancel", a.cancelDelivery)
			r.Post("/deliveries/{trackingID}/resend", a.resendRequest)

			r.Get("/pickups/available", a.availablePickups)
			r.Get("/pickups/mine", a.myPickups)
			r.Get("/pickups/{trackingID}", a.viewPickup)
			r.Post("/pickups/{trackingID}/accept", a.acceptPickup)
			r.Post("/sessions/{sessionID}/evidence", a.submitEvidence)

			r.Get("/notifications", a.listNotifications)
		})
	})
	return r
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// fail writes err and logs it when it is not part of the error taxonomy.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.Kind(err) == nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, r, err)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, p := range a.checks {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, out)
}
