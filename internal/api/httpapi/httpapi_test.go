package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/deliveries"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type APISuite struct {
	suite.Suite

	svc    *deliveryServiceMock
	reset  *resetMock
	logs   *logsMock
	auth   *Authenticator
	server *httptest.Server

	dispatcher models.Actor
	courier    models.Actor
}

func (s *APISuite) SetupTest() {
	s.svc = &deliveryServiceMock{}
	s.reset = &resetMock{}
	s.logs = &logsMock{}
	s.auth = NewAuthenticator("test-secret")
	api := New(s.svc, s.reset, s.logs, s.auth, logger.Discard())
	s.server = httptest.NewServer(api.Routes())

	s.dispatcher = models.Actor{ID: uuid.New(), Role: models.RoleDispatcher, Email: "d@x.com", Name: "d"}
	s.courier = models.Actor{ID: uuid.New(), Role: models.RoleCourier, Email: "c@x.com", Name: "c"}
}

func (s *APISuite) TearDownTest() {
	s.server.Close()
	s.svc.AssertExpectations(s.T())
	s.reset.AssertExpectations(s.T())
}

func (s *APISuite) token(actor models.Actor) string {
	tok, err := s.auth.Sign(actor, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path, token, body string) (int, map[string]any) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, rd)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		s.Require().NoError(json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

const createBody = `{
	"pickup_address": "1 Lab Road",
	"dropoff_address": "9 Ward Street",
	"recipient_phone_number_1": "+100",
	"recipient_email": "r@x.com",
	"specimen": [{"type": "blood", "quantity": 2}]
}`

func (s *APISuite) TestAuth_MissingAndBadToken() {
	status, body := s.do(http.MethodGet, "/api/v1/deliveries", "", "")
	s.Require().Equal(http.StatusUnauthorized, status)
	s.Require().Equal("Missing bearer token", body["message"])

	status, _ = s.do(http.MethodGet, "/api/v1/deliveries", "not-a-jwt", "")
	s.Require().Equal(http.StatusUnauthorized, status)

	other := NewAuthenticator("other-secret")
	tok, err := other.Sign(s.dispatcher, time.Hour)
	s.Require().NoError(err)
	status, _ = s.do(http.MethodGet, "/api/v1/deliveries", tok, "")
	s.Require().Equal(http.StatusUnauthorized, status)
}

func (s *APISuite) TestCreateDelivery() {
	d := &models.Delivery{TrackingID: "ORD0001", Status: models.StatusPending}
	s.svc.On("Create", mock.Anything, s.dispatcher, mock.MatchedBy(func(in models.DeliveryCreateInput) bool {
		return in.Recipient.Email == "r@x.com" && in.Recipient.PhoneNumber1 == "+100" &&
			len(in.Specimens) == 1 && in.Specimens[0].Quantity == 2
	})).Return(&deliveries.CreateResult{Delivery: d, Slug: "secret-slug"}, nil)

	status, body := s.do(http.MethodPost, "/api/v1/deliveries", s.token(s.dispatcher), createBody)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().Equal("ORD0001", body["tracking_id"])
	s.Require().NotContains(body, "slug", "the slug only travels to the recipient")
}

func (s *APISuite) TestCreateDelivery_Validation() {
	tok := s.token(s.dispatcher)

	status, body := s.do(http.MethodPost, "/api/v1/deliveries", tok, `{"pickup_address":"a","dropoff_address":"b","recipient_phone_number_1":"1"}`)
	s.Require().Equal(http.StatusBadRequest, status)
	s.Require().Equal("recipient_email is required", body["message"])

	status, _ = s.do(http.MethodPost, "/api/v1/deliveries", tok, `{"pickup_address":"a","dropoff_address":"b","recipient_phone_number_1":"1","recipient_email":"r@x.com","specimen":[{"type":"x","quantity":0}]}`)
	s.Require().Equal(http.StatusBadRequest, status)

	status, body = s.do(http.MethodPost, "/api/v1/deliveries", tok, `{"status":"delivered"}`)
	s.Require().Equal(http.StatusBadRequest, status)
	s.Require().Contains(body["message"], "Malformed request body")

	status, body = s.do(http.MethodPost, "/api/v1/deliveries", tok, "")
	s.Require().Equal(http.StatusBadRequest, status)
	s.Require().Equal("Request body is required", body["message"])
}

func (s *APISuite) TestErrorMapping() {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperrors.NotFound("Delivery with Tracking ID ORD9 not found"), http.StatusNotFound, "Delivery with Tracking ID ORD9 not found"},
		{apperrors.Unauthorized("Permission denied"), http.StatusForbidden, "Permission denied"},
		{apperrors.Conflict("This delivery is already in service"), http.StatusConflict, "This delivery is already in service"},
		{errors.New("pg: connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	tok := s.token(s.dispatcher)
	for _, tc := range cases {
		s.svc.On("View", mock.Anything, s.dispatcher, "ORD9").Return(nil, tc.err).Once()
		status, body := s.do(http.MethodGet, "/api/v1/deliveries/ORD9", tok, "")
		s.Require().Equal(tc.status, status)
		s.Require().Equal(tc.msg, body["message"])
	}
}

func (s *APISuite) TestCancelDelivery() {
	s.svc.On("Cancel", mock.Anything, s.dispatcher, "ORD0001", "wrong address").
		Return(nil, apperrors.Conflict("This delivery is already in service"))

	status, body := s.do(http.MethodPost, "/api/v1/deliveries/ORD0001/cancel", s.token(s.dispatcher), `{"reason":"wrong address"}`)
	s.Require().Equal(http.StatusConflict, status)
	s.Require().Equal("This delivery is already in service", body["message"])

	status, _ = s.do(http.MethodPost, "/api/v1/deliveries/ORD0001/cancel", s.token(s.dispatcher), `{}`)
	s.Require().Equal(http.StatusBadRequest, status)
}

func (s *APISuite) TestUpdateDelivery_PartialFields() {
	s.svc.On("Update", mock.Anything, s.dispatcher, "ORD0001", mock.MatchedBy(func(in models.DeliveryUpdateInput) bool {
		return in.Note != nil && *in.Note == "fragile" && in.PickupAddress == nil && in.Specimens == nil
	})).Return(&models.Delivery{TrackingID: "ORD0001", Note: "fragile"}, nil)

	status, body := s.do(http.MethodPatch, "/api/v1/deliveries/ORD0001", s.token(s.dispatcher), `{"note":"fragile"}`)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal("fragile", body["note"])
}

func (s *APISuite) TestListDeliveries_Query() {
	s.svc.On("ListForDispatcher", mock.Anything, s.dispatcher, mock.MatchedBy(func(f models.DeliveryFilter) bool {
		return f.Status == models.StatusPending && !f.Ascending && f.Page == 2 && f.Limit == 5 &&
			f.Cancelled != nil && *f.Cancelled && f.Query == "ward" &&
			f.DateField == models.DateFieldCreation && f.From != nil && f.To != nil && f.To.Hour() == 23
	})).Return(&models.DeliveryPage{Page: 2, Limit: 5}, nil)

	status, body := s.do(http.MethodGet,
		"/api/v1/deliveries?status=pending&sort=desc&page=2&limit=5&cancelled=true&q=ward&date_field=creation-date&from=2026-01-01&to=2026-01-31",
		s.token(s.dispatcher), "")
	s.Require().Equal(http.StatusOK, status)
	s.Require().EqualValues(2, body["page"])

	status, _ = s.do(http.MethodGet, "/api/v1/deliveries?status=lost", s.token(s.dispatcher), "")
	s.Require().Equal(http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/api/v1/deliveries?limit=1000", s.token(s.dispatcher), "")
	s.Require().Equal(http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/api/v1/deliveries?from=yesterday", s.token(s.dispatcher), "")
	s.Require().Equal(http.StatusBadRequest, status)
}

func (s *APISuite) TestCourierFlow() {
	tok := s.token(s.courier)
	s.svc.On("ListAvailablePickups", mock.Anything, s.courier, mock.MatchedBy(func(f models.DeliveryFilter) bool { return f.Ascending })).
		Return(&models.DeliveryPage{Deliveries: []*models.Delivery{{TrackingID: "ORD0001"}}, Total: 1}, nil)
	s.svc.On("AcceptPickup", mock.Anything, s.courier, "ORD0001").
		Return(&deliveries.PickupResult{Delivery: &models.Delivery{TrackingID: "ORD0001"}, SessionID: "sess-1"}, nil)
	s.svc.On("SubmitPickupEvidence", mock.Anything, s.courier, "sess-1", "https://blob.example.com/e.jpg").
		Return(&deliveries.EvidenceResult{Message: "Package submitted successfully, you'd been contacted once approved"}, nil)

	status, body := s.do(http.MethodGet, "/api/v1/pickups/available", tok, "")
	s.Require().Equal(http.StatusOK, status)
	s.Require().EqualValues(1, body["total"])

	status, body = s.do(http.MethodPost, "/api/v1/pickups/ORD0001/accept", tok, "")
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal("sess-1", body["sessionId"])

	status, body = s.do(http.MethodPost, "/api/v1/sessions/sess-1/evidence", tok, `{"delivery_evidence":"https://blob.example.com/e.jpg"}`)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal("Package submitted successfully, you'd been contacted once approved", body["message"])

	status, _ = s.do(http.MethodPost, "/api/v1/sessions/sess-1/evidence", tok, `{"delivery_evidence":"not a url"}`)
	s.Require().Equal(http.StatusBadRequest, status)
}

func (s *APISuite) TestRecipientEndpointsNeedNoToken() {
	s.svc.On("RecipientView", mock.Anything, "slug-1").Return(&models.Delivery{TrackingID: "ORD0001"}, nil)
	s.svc.On("RecipientRespond", mock.Anything, "slug-1", false).Return(&models.Delivery{TrackingID: "ORD0001"}, nil)
	s.svc.On("ViewBySession", mock.Anything, "sess-1").Return(&models.Delivery{TrackingID: "ORD0001"}, nil)
	s.svc.On("ConfirmDelivered", mock.Anything, "sess-1").
		Return(nil, apperrors.Conflict("This delivery is not awaiting approval"))

	status, _ := s.do(http.MethodGet, "/api/v1/recipient/slug-1", "", "")
	s.Require().Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/recipient/slug-1/respond", "", `{"accept":false}`)
	s.Require().Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/recipient/slug-1/respond", "", `{}`)
	s.Require().Equal(http.StatusBadRequest, status, "accept is required, false is not the default")

	status, _ = s.do(http.MethodGet, "/api/v1/tracking/sess-1", "", "")
	s.Require().Equal(http.StatusOK, status)

	status, body := s.do(http.MethodPost, "/api/v1/tracking/sess-1/confirm", "", "")
	s.Require().Equal(http.StatusConflict, status)
	s.Require().Equal("This delivery is not awaiting approval", body["message"])
}

func (s *APISuite) TestPasswordReset() {
	s.reset.On("IssueOTP", mock.Anything, "u@x.com").Return(&models.OTP{Code: "ABC123"}, nil).Once()
	s.reset.On("IssueOTP", mock.Anything, "u@x.com").Return(nil, apperrors.TooManyRequests("Too many OTP requests, please try again later")).Once()
	s.reset.On("ValidateOTP", mock.Anything, "u@x.com", "ABC123").Return("exchange-token", nil)
	s.reset.On("ConsumeExchangeToken", mock.Anything, "exchange-token", "new-password").
		Return(apperrors.NotAcceptable("Password change process expired, please try again"))

	status, body := s.do(http.MethodPost, "/api/v1/auth/otp", "", `{"email":"u@x.com"}`)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotContains(body["message"], "ABC123")

	status, _ = s.do(http.MethodPost, "/api/v1/auth/otp", "", `{"email":"u@x.com"}`)
	s.Require().Equal(http.StatusTooManyRequests, status)

	status, body = s.do(http.MethodPost, "/api/v1/auth/otp/validate", "", `{"email":"u@x.com","otp":"ABC123"}`)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal("exchange-token", body["token"])

	status, _ = s.do(http.MethodPost, "/api/v1/auth/otp/validate", "", `{"email":"u@x.com","otp":"12"}`)
	s.Require().Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/password", "", `{"token":"exchange-token","password":"new-password"}`)
	s.Require().Equal(http.StatusNotAcceptable, status)
}

func (s *APISuite) TestNotificationsScopedToCaller() {
	s.logs.On("ListNotificationLogs", mock.Anything, "c@x.com", 10).
		Return([]*models.NotificationLog{{Email: "c@x.com", Message: "hi"}}, nil)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/notifications?limit=10", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token(s.courier))
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var logs []models.NotificationLog
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&logs))
	s.Require().Len(logs, 1)

	status, _ := s.do(http.MethodGet, "/api/v1/notifications?limit=0", s.token(s.courier), "")
	s.Require().Equal(http.StatusBadRequest, status)
	s.logs.AssertExpectations(s.T())
}

func (s *APISuite) TestNotifications_LimitBoundsAndEmptyList() {
	s.logs.On("ListNotificationLogs", mock.Anything, "c@x.com", 100).
		Return(([]*models.NotificationLog)(nil), nil)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/notifications?limit=100", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token(s.courier))
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().JSONEq(`[]`, string(raw))

	status, body := s.do(http.MethodGet, "/api/v1/notifications?limit=150", s.token(s.courier), "")
	s.Require().Equal(http.StatusBadRequest, status)
	s.Require().Equal("limit must be between 1 and 100", body["message"])
	s.logs.AssertExpectations(s.T())
}

func (s *APISuite) TestUpdateDelivery_RejectsBlankRequired() {
	for _, field := range []string{"pickup_address", "dropoff_address", "recipient_phone_number_1", "recipient_email"} {
		status, body := s.do(http.MethodPatch, "/api/v1/deliveries/ORD0001", s.token(s.dispatcher), `{"`+field+`":"  "}`)
		s.Require().Equal(http.StatusBadRequest, status, field)
		s.Require().Contains(body["message"], field+" is required")
	}
	s.svc.AssertNotCalled(s.T(), "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestHealth(t *testing.T) {
	api := New(nil, nil, nil, NewAuthenticator("x"), logger.Discard()).
		WithHealthCheck("postgres", pingerFunc(func(context.Context) error { return nil })).
		WithHealthCheck("redis", pingerFunc(func(context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"postgres":"ok","redis":"down"}`, rec.Body.String())
}

func TestAuthenticator_RejectsUnknownRoleAndSubject(t *testing.T) {
	a := NewAuthenticator("secret")

	tok, err := a.Sign(models.Actor{ID: uuid.New(), Role: "pilot"}, time.Hour)
	require.NoError(t, err)
	_, err = a.Parse(tok)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	tok, err = a.Sign(models.Actor{ID: uuid.New(), Role: models.RoleCourier}, -time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(tok)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized, "expired")

	actor := models.Actor{ID: uuid.New(), Role: models.RoleAdmin, Email: "a@x.com", Name: "a"}
	tok, err = a.Sign(actor, time.Hour)
	require.NoError(t, err)
	got, err := a.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, actor, got)
}
