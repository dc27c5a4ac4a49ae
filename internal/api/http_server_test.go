package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/models"
	"fieldbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	renterKey = "renter-key"
	adminKey  = "admin-key"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testConfig() config.APIConfig {
	return config.APIConfig{
		Port: 0,
		Auth: config.APIAuthConfig{
			Enabled: true,
			Keys: []config.APIClientKey{
				{Key: renterKey, Name: "site", UserID: 10},
				{Key: adminKey, Name: "office", UserID: 1, Privileged: true},
			},
		},
	}
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2030, 8, 15, 12, 0, 0, 0, time.UTC)
	svc := service.NewBookingService(db, nil, nil, nil, nil, fixedClock{now}, time.UTC, 70, 365, nil)
	users := service.NewUserService(db, nil)
	return NewHTTPServer(testConfig(), svc, users, nil, nil)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func createPayload() map[string]interface{} {
	return map[string]interface{}{
		"renter_name":  "Анна",
		"renter_phone": "+79990001122",
		"date_of_rent": "2030-08-20",
		"start_time":   "10:00",
		"end_time":     "11:30",
	}
}

func createBooking(t *testing.T, srv *HTTPServer, payload map[string]interface{}) int64 {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", renterKey, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	return int64(data["id"].(float64))
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t)

	t.Run("MissingKey", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-08-20", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-08-20", "wrong", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("HealthzIsOpen", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("RequestIDHeaderSet", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})
}

func TestCreateBookingEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", renterKey, createPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, models.StatusPending, data["status"])
	assert.Equal(t, 105.0, data["total_price"])

	t.Run("ConflictingSlot", func(t *testing.T) {
		payload := createPayload()
		payload["start_time"] = "11:00"
		payload["end_time"] = "12:00"
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", renterKey, payload)
		require.Equal(t, http.StatusConflict, rec.Code)

		resp := decodeEnvelope(t, rec)
		assert.False(t, resp.Success)
		conflictData := resp.Data.(map[string]interface{})
		assert.Equal(t, "10:00", conflictData["start_time"])
	})

	t.Run("PastDate", func(t *testing.T) {
		payload := createPayload()
		payload["date_of_rent"] = "2030-08-01"
		rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", renterKey, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BadBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{"))
		req.Header.Set("x-api-key", renterKey)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetAndListBookings(t *testing.T) {
	srv := newTestServer(t)
	id := createBooking(t, srv, createPayload())

	t.Run("GetOwn", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", id), renterKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/bookings/9999", renterKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ListRequiresPrivilege", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/bookings", renterKey, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ListWithFilter", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/bookings?status=pending", adminKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEnvelope(t, rec)
		assert.Len(t, resp.Data, 1)
	})
}

func TestUpdateBookingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createBooking(t, srv, createPayload())

	t.Run("MoveWindow", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%d", id), renterKey,
			map[string]interface{}{"start_time": "14:00", "end_time": "16:00"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeEnvelope(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, 140.0, data["total_price"])
	})

	t.Run("StatusChangeForbiddenForRenter", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%d", id), renterKey,
			map[string]interface{}{"status": models.StatusConfirmed})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("AdminChangesRate", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%d", id), adminKey,
			map[string]interface{}{"price_per_hour": 100.0})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeEnvelope(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, 200.0, data["total_price"])
	})
}

func TestDeleteBookingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createBooking(t, srv, createPayload())

	t.Run("PrivilegedCancelsForeignBooking", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d", id), adminKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("RepeatedDeleteIsIdempotent", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d", id), renterKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEnvelope(t, rec)
		assert.True(t, resp.Success)
		assert.Contains(t, resp.Message, "already cancelled")
	})

	t.Run("SlotFreedAfterCancel", func(t *testing.T) {
		newID := createBooking(t, srv, createPayload())
		assert.NotZero(t, newID)
	})
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createBooking(t, srv, createPayload())

	t.Run("StatusChangeRequiresPrivilege", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), renterKey,
			map[string]string{"status": models.StatusConfirmed})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ConfirmBooking", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), adminKey,
			map[string]string{"status": models.StatusConfirmed})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeEnvelope(t, rec)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, models.StatusConfirmed, data["status"])
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), adminKey,
			map[string]string{"status": "done"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("AdminCancel", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", id), adminKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		// повторная отмена администратором молча успешна
		rec = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", id), adminKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("CancelledIsTerminal", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/status", id), adminKey,
			map[string]string{"status": models.StatusPending})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDayScheduleEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createBooking(t, srv, createPayload())

	t.Run("ReturnsBookings", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-08-20", renterKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEnvelope(t, rec)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("EmptyDayIsArray", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-08-21", renterKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})

	t.Run("BadDate", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-02-30", renterKey, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	srv := newTestServer(t)
	createBooking(t, srv, createPayload())

	t.Run("OwnProfileWithPoints", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/users/10", renterKey, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeEnvelope(t, rec)
		data := resp.Data.(map[string]interface{})
		// полуторачасовая бронь дает 2 балла
		assert.Equal(t, 2.0, data["points"])
	})

	t.Run("ForeignProfileForbidden", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/users/1", renterKey, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("OwnBookings", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/users/10/bookings", renterKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEnvelope(t, rec)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/users/777", adminKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}

	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2030, 8, 15, 12, 0, 0, 0, time.UTC)
	svc := service.NewBookingService(db, nil, nil, nil, nil, fixedClock{now}, time.UTC, 70, 365, nil)
	srv := NewHTTPServer(cfg, svc, service.NewUserService(db, nil), nil, nil)

	var last int
	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/schedule/2030-08-20", renterKey, nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
