// README: End-to-end handler tests over the in-memory stack with a stub token verifier.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httptransport "vanbora/internal/http"
	"vanbora/internal/infra"
	"vanbora/internal/modules/payment"
	"vanbora/internal/testutil"
	"vanbora/internal/types"
)

// stubTokenVerifier treats the bearer token as "<uid>" or "<uid>:driver".
type stubTokenVerifier struct{}

func (stubTokenVerifier) VerifyIDToken(_ context.Context, token string) (*infra.Identity, error) {
	if token == "bad" {
		return nil, errors.New("invalid token")
	}
	uid, role, _ := strings.Cut(token, ":")
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &infra.Identity{UID: uid, Email: uid + "@example.com", Claims: claims}, nil
}

type env struct {
	*testutil.Stack
	router *gin.Engine
}

func newEnv(t *testing.T, secret string) env {
	gin.SetMode(gin.TestMode)
	s := testutil.NewStack(t)
	srv := httptransport.NewServer(httptransport.ServerDeps{
		Reservations:  s.Reservations,
		Trips:         s.Trips,
		Users:         s.Users,
		Webhooks:      s.Ingress,
		Verifier:      stubTokenVerifier{},
		Logger:        testutil.DiscardLogger(),
		Location:      time.UTC,
		Currency:      types.DefaultCurrency,
		WebhookSecret: secret,
	})
	return env{Stack: s, router: srv.Routes()}
}

func doRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	e := newEnv(t, "")
	w := doRequest(e.router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t, "")
	assert.Equal(t, http.StatusUnauthorized, doRequest(e.router, http.MethodGet, "/api/reservations", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(e.router, http.MethodGet, "/api/reservations", nil, "bad").Code)
	assert.Equal(t, http.StatusOK, doRequest(e.router, http.MethodGet, "/api/trips", nil, "").Code, "search is public")
}

func TestRegisterAndPublishFlow(t *testing.T) {
	e := newEnv(t, "")

	w := doRequest(e.router, http.MethodPost, "/api/users", map[string]any{"username": "dora", "is_driver": true, "pix_key": "dora@pix"}, "dora")
	assert.Equal(t, http.StatusForbidden, w.Code, "driver profile needs the driver claim")

	w = doRequest(e.router, http.MethodPost, "/api/users", map[string]any{"username": "dora", "is_driver": true, "pix_key": "dora@pix"}, "dora:driver")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "dora@example.com", decode(t, w)["email"])

	w = doRequest(e.router, http.MethodGet, "/api/users/me", nil, "dora:driver")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.00", decode(t, w)["balance"].(map[string]any)["amount"])

	departs := e.Clock.Now().Add(48 * time.Hour)
	w = doRequest(e.router, http.MethodPost, "/api/trips", map[string]any{
		"origin": "Sao Paulo", "destination": "Campinas",
		"date": departs.Format("2006-01-02"), "time": departs.Format("15:04"),
		"capacity": 2, "price": "20.00", "cancelable": true,
	}, "dora:driver")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, float64(2), created["available_seats"])
	assert.Equal(t, "20.00", created["price"].(map[string]any)["amount"])

	w = doRequest(e.router, http.MethodPost, "/api/trips", map[string]any{
		"origin": "A", "destination": "B", "departure_at": departs, "capacity": 2, "price": "-1",
	}, "dora:driver")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(e.router, http.MethodGet, "/api/trips?destination=camp", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["trips"], 1)
}

// TestSeatScenario walks the capacity-1 scenario: cash booking, full trip,
// cancel, PIX booking and a duplicated approval webhook.
func TestSeatScenario(t *testing.T) {
	e := newEnv(t, "s3cret")
	driver := e.Driver(t, "driver")
	e.Passenger(t, "ana")
	e.Passenger(t, "bia")
	tr := e.Trip(t, driver, testutil.TripOpts{Capacity: 1, Price: 2000, Cancelable: true})
	bookPath := "/api/trips/" + string(tr.ID) + "/reservations"

	w := doRequest(e.router, http.MethodPost, bookPath, map[string]any{"payment_method": "cash"}, "ana")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	anaRes := decode(t, w)["reservation"].(map[string]any)
	assert.Equal(t, "APPROVED", anaRes["payment_status"])
	assert.Equal(t, 0, e.Available(t, tr.ID))

	w = doRequest(e.router, http.MethodPost, bookPath, map[string]any{"payment_method": "PIX"}, "bia")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "trip_full", decode(t, w)["code"])

	w = doRequest(e.router, http.MethodPost, "/api/reservations/"+anaRes["id"].(string)+"/cancel", nil, "bia")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doRequest(e.router, http.MethodPost, "/api/reservations/"+anaRes["id"].(string)+"/cancel", nil, "ana")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED", decode(t, w)["status"])
	assert.Equal(t, 1, e.Available(t, tr.ID))

	w = doRequest(e.router, http.MethodPost, bookPath, map[string]any{"payment_method": "PIX"}, "bia")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	pay := body["payment"].(map[string]any)
	assert.NotEmpty(t, pay["qr_code"])
	assert.Equal(t, "PENDING", body["reservation"].(map[string]any)["payment_status"])
	paymentID := pay["payment_id"].(string)

	hook := func(secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments",
			strings.NewReader(`{"type":"payment","data":{"id":"`+paymentID+`"}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Secret", secret)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusUnauthorized, hook("wrong").Code)

	e.Gateway.SetStatus(paymentID, payment.GatewayApproved)
	w = hook("s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "applied", decode(t, w)["outcome"])
	assert.Equal(t, int64(2000), e.Balance(t, driver))

	w = hook("s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate", decode(t, w)["outcome"])
	assert.Equal(t, int64(2000), e.Balance(t, driver))
}

func TestWebhook_PayloadShapes(t *testing.T) {
	e := newEnv(t, "")
	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"query id", "/api/webhooks/payments?data.id=123", "", http.StatusOK},
		{"numeric body id", "/api/webhooks/payments", `{"data":{"id":123}}`, http.StatusOK},
		{"top-level id", "/api/webhooks/payments", `{"id":"abc"}`, http.StatusOK},
		{"no id", "/api/webhooks/payments", `{}`, http.StatusOK},
		{"not json", "/api/webhooks/payments", `ping`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "ignored", decode(t, w)["outcome"])
			}
		})
	}
}

func TestWebhook_GatewayDownIsRetryable(t *testing.T) {
	e := newEnv(t, "")
	d := e.Driver(t, "driver")
	e.Passenger(t, "ana")
	tr := e.Trip(t, d, testutil.TripOpts{})
	w := doRequest(e.router, http.MethodPost, "/api/trips/"+string(tr.ID)+"/reservations", map[string]any{"payment_method": "CREDIT_CARD"}, "ana")
	require.Equal(t, http.StatusCreated, w.Code)
	paymentID := decode(t, w)["payment"].(map[string]any)["payment_id"].(string)

	e.Gateway.StatusErr = errors.New("down")
	w = doRequest(e.router, http.MethodPost, "/api/webhooks/payments?data.id="+paymentID, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReservationErrorsMapToStatus(t *testing.T) {
	e := newEnv(t, "")
	d := e.Driver(t, "driver")
	e.Passenger(t, "ana")
	tr := e.Trip(t, d, testutil.TripOpts{Cancelable: false})
	other := e.Trip(t, d, testutil.TripOpts{Departs: 72 * time.Hour})

	w := doRequest(e.router, http.MethodPost, "/api/trips/"+string(tr.ID)+"/reservations", map[string]any{"payment_method": "gold"}, "ana")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(e.router, http.MethodPost, "/api/trips/"+string(tr.ID)+"/reservations", map[string]any{}, "ana")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(e.router, http.MethodPost, "/api/trips/missing/reservations", map[string]any{"payment_method": "CASH"}, "ana")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(e.router, http.MethodPost, "/api/trips/"+string(tr.ID)+"/reservations", map[string]any{"payment_method": "CASH"}, "ana")
	require.Equal(t, http.StatusCreated, w.Code)
	resID := decode(t, w)["reservation"].(map[string]any)["id"].(string)

	w = doRequest(e.router, http.MethodPost, "/api/reservations/"+resID+"/cancel", nil, "ana")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "trip_not_cancelable", decode(t, w)["code"])

	w = doRequest(e.router, http.MethodPut, "/api/reservations/"+resID, map[string]any{"new_trip_id": string(other.ID)}, "ana")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(other.ID), decode(t, w)["trip_id"])

	w = doRequest(e.router, http.MethodGet, "/api/reservations", nil, "ana")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["reservations"], 1)

	w = doRequest(e.router, http.MethodGet, "/api/trips/"+string(other.ID)+"/passengers", nil, "ana")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doRequest(e.router, http.MethodGet, "/api/trips/"+string(other.ID)+"/passengers", nil, "driver:driver")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["passengers"], 1)
}

func TestGatewayOutageOnCreateIs503(t *testing.T) {
	e := newEnv(t, "")
	d := e.Driver(t, "driver")
	e.Passenger(t, "ana")
	tr := e.Trip(t, d, testutil.TripOpts{Capacity: 1})
	e.Gateway.ChargeErr = errors.New("timeout")

	w := doRequest(e.router, http.MethodPost, "/api/trips/"+string(tr.ID)+"/reservations", map[string]any{"payment_method": "PIX"}, "ana")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "payment_gateway_unavailable", decode(t, w)["code"])
	assert.Equal(t, 1, e.Available(t, tr.ID))
}
