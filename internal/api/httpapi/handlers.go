package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/go-chi/chi/v5"
)

func (a *API) createDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.deliveries.Create(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Delivery)
}

func (a *API) listDeliveries(w http.ResponseWriter, r *http.Request) {
	f, err := parseListQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.deliveries.ListForDispatcher(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) viewDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := a.deliveries.View(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) updateDelivery(w http.ResponseWriter, r *http.Request) {
	var req updateDeliveryRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.deliveries.Update(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"), req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) cancelDelivery(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.deliveries.Cancel(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"), req.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) resendRequest(w http.ResponseWriter, r *http.Request) {
	res, err := a.deliveries.ResendRecipientRequest(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) availablePickups(w http.ResponseWriter, r *http.Request) {
	f, err := parseListQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.deliveries.ListAvailablePickups(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) myPickups(w http.ResponseWriter, r *http.Request) {
	f, err := parseListQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.deliveries.ListMyPickups(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) viewPickup(w http.ResponseWriter, r *http.Request) {
	res, err := a.deliveries.ViewPickup(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) acceptPickup(w http.ResponseWriter, r *http.Request) {
	res, err := a.deliveries.AcceptPickup(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "trackingID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) submitEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.deliveries.SubmitPickupEvidence(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "sessionID"), req.DeliveryEvidence)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) recipientView(w http.ResponseWriter, r *http.Request) {
	d, err := a.deliveries.RecipientView(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) recipientRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.deliveries.RecipientRespond(r.Context(), chi.URLParam(r, "slug"), *req.Accept)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) trackingView(w http.ResponseWriter, r *http.Request) {
	d, err := a.deliveries.ViewBySession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) trackingConfirm(w http.ResponseWriter, r *http.Request) {
	d, err := a.deliveries.ConfirmDelivered(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.reset.IssueOTP(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "An OTP has been sent to " + req.Email})
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (a *API) validateOTP(w http.ResponseWriter, r *http.Request) {
	var req otpValidateRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	token, err := a.reset.ValidateOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.reset.ConsumeExchangeToken(r.Context(), req.Token, req.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxNotificationLimit {
			writeError(w, r, errInvalidLimit)
			return
		}
		limit = n
	}
	logs, err := a.logs.ListNotificationLogs(r.Context(), actorFrom(r.Context()).Email, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if logs == nil {
		logs = []*models.NotificationLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
