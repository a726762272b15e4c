package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/DispatchBox/internal/integrations/channel"
	"github.com/stretchr/testify/require"
)

func TestClient_Send_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"channel":"email","recipient":"r@x.com","subject":"OTP Request","message":"code","html":true}`, string(b))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New("email", srv.URL, "tok")
	err := c.Send(context.Background(), channel.Message{To: "r@x.com", Subject: "OTP Request", Body: "code", HTML: true})
	require.NoError(t, err)
}

func TestClient_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("sms", srv.URL, "")
	err := c.Send(context.Background(), channel.Message{To: "+100", Body: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sms webhook http 502")
}

func TestClient_Send_Unreachable(t *testing.T) {
	c := New("sms", "http://127.0.0.1:1", "")
	require.Error(t, c.Send(context.Background(), channel.Message{To: "+100", Body: "hi"}))
}
