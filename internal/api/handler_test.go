package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"booking-service/internal/apperror"
	"booking-service/internal/idempotency"
	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookings struct{ mock.Mock }

func (m *mockBookings) CreateBooking(ctx context.Context, req *service.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) MakePayment(ctx context.Context, req *service.PaymentRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) CancelBooking(ctx context.Context, bookingID string) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(bookings BookingAPI, deps map[string]Pinger) *gin.Engine {
	router := gin.New()
	NewHandler(bookings, idempotency.NewMemoryGuard(0), deps).SetupRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateBooking(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)

	bookings.On("CreateBooking", mock.Anything, &service.CreateBookingRequest{MenuID: "M1", UserID: "U1", Quantity: 2}).
		Return(&models.Booking{ID: "b-1", MenuID: "M1", UserID: "U1", Quantity: 2, TotalCost: 100, Status: models.BookingStatusInitiated}, nil)

	for _, path := range []string{"/bookings", "/api/v1/bookings"} {
		w := doJSON(router, http.MethodPost, path, gin.H{"menuId": "M1", "userId": "U1", "quantity": 2}, nil)

		assert.Equal(t, http.StatusOK, w.Code, path)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "b-1", data["id"])
		assert.Equal(t, float64(100), data["totalCost"])
		assert.Equal(t, "INITIATED", data["status"])
	}
}

func TestCreateBooking_BadBody(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)

	w := doJSON(router, http.MethodPost, "/bookings", gin.H{"menuId": "M1", "userId": "U1", "quantity": 0}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidBody, decodeBody(t, w)["error"])
	bookings.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestCreateBooking_Failure(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)

	bookings.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, apperror.New(apperror.KindInsufficientInventory, "not enough stock for menu item M1"))

	w := doJSON(router, http.MethodPost, "/bookings", gin.H{"menuId": "M1", "userId": "U1", "quantity": 50}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "not enough stock for menu item M1", decodeBody(t, w)["error"])
}

func TestMakePayment_StatusMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		status   int
		expected string
	}{
		{name: "expired", err: apperror.New(apperror.KindBookingExpired, "The booking has expired"), status: http.StatusBadRequest, expected: "The booking has expired"},
		{name: "duplicate", err: apperror.New(apperror.KindDuplicatePayment, "already booked"), status: http.StatusBadRequest, expected: "already booked"},
		{name: "user mismatch", err: apperror.New(apperror.KindUserMismatch, "user mismatch"), status: http.StatusBadRequest, expected: "user mismatch"},
		{name: "amount mismatch", err: apperror.New(apperror.KindPaymentAmountMismatch, "amount"), status: http.StatusPaymentRequired, expected: "amount"},
		{name: "not found", err: apperror.New(apperror.KindNotFound, "no booking"), status: http.StatusNotFound, expected: "no booking"},
		{name: "cancellation failed", err: apperror.New(apperror.KindCancellationFailed, "cancel down"), status: http.StatusInternalServerError, expected: "cancel down"},
		{name: "persistence", err: apperror.Wrap(apperror.KindPersistence, "commit failed", errors.New("pq: broken pipe")), status: http.StatusInternalServerError, expected: msgInternalError},
		{name: "unclassified", err: errors.New("boom"), status: http.StatusInternalServerError, expected: msgInternalError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bookings := &mockBookings{}
			router := newTestRouter(bookings, nil)
			bookings.On("MakePayment", mock.Anything, mock.Anything).Return(nil, tc.err)

			w := doJSON(router, http.MethodPost, "/bookings/payments",
				gin.H{"bookingId": "b-1", "userId": "U1", "totalCost": 100},
				map[string]string{headerIdempotencyKey: "k-" + tc.name})

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.expected, decodeBody(t, w)["error"])
		})
	}
}

func TestMakePayment_IdempotencyKey(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)
	body := gin.H{"bookingId": "b-1", "userId": "U1", "totalCost": 100}

	bookings.On("MakePayment", mock.Anything, &service.PaymentRequest{BookingID: "b-1", UserID: "U1", TotalCost: 100}).
		Return(&models.Booking{ID: "b-1", Status: models.BookingStatusBooked, TotalCost: 100}, nil).Once()

	w := doJSON(router, http.MethodPost, "/bookings/payments", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgMissingKey, decodeBody(t, w)["error"])

	w = doJSON(router, http.MethodPost, "/bookings/payments", body, map[string]string{headerIdempotencyKey: "k1", headerPayerName: "Ada"})
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "BOOKED", data["status"])

	w = doJSON(router, http.MethodPost, "/bookings/payments", body, map[string]string{headerIdempotencyKey: "k1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgDuplicateKey, decodeBody(t, w)["error"])

	bookings.AssertNumberOfCalls(t, "MakePayment", 1)
}

type failingGuard struct{}

func (failingGuard) CheckAndRecord(ctx context.Context, token string) (bool, error) {
	return false, apperror.Wrap(apperror.KindPersistence, "failed to record idempotency key", errors.New("redis down"))
}

func TestMakePayment_GuardFailure(t *testing.T) {
	bookings := &mockBookings{}
	router := gin.New()
	NewHandler(bookings, failingGuard{}, nil).SetupRoutes(router)

	w := doJSON(router, http.MethodPost, "/bookings/payments",
		gin.H{"bookingId": "b-1", "userId": "U1", "totalCost": 100},
		map[string]string{headerIdempotencyKey: "k1"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternalError, decodeBody(t, w)["error"])
	bookings.AssertNotCalled(t, "MakePayment", mock.Anything, mock.Anything)
}

func TestGetBooking(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)

	bookings.On("GetBooking", mock.Anything, "b-1").Return(&models.Booking{ID: "b-1"}, nil)
	bookings.On("GetBooking", mock.Anything, "missing").Return(nil, apperror.New(apperror.KindNotFound, "booking not found"))

	w := doJSON(router, http.MethodGet, "/bookings/b-1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/bookings/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelBooking(t *testing.T) {
	bookings := &mockBookings{}
	router := newTestRouter(bookings, nil)

	bookings.On("CancelBooking", mock.Anything, "b-1").Return(true, nil)
	bookings.On("CancelBooking", mock.Anything, "b-2").Return(false, apperror.New(apperror.KindInvalidTransition, "A booked booking cannot be cancelled"))

	w := doJSON(router, http.MethodPost, "/bookings/b-1/cancel", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["data"])

	w = doJSON(router, http.MethodPost, "/bookings/b-2/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReadiness(t *testing.T) {
	healthy := pingerFunc(func(ctx context.Context) error { return nil })
	broken := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	w := doJSON(newTestRouter(&mockBookings{}, map[string]Pinger{"postgres": healthy, "redis": healthy}), http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(newTestRouter(&mockBookings{}, map[string]Pinger{"postgres": healthy, "redis": broken}), http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	failed := decodeBody(t, w)["failed"].(map[string]interface{})
	assert.Contains(t, failed, "redis")
	assert.NotContains(t, failed, "postgres")
}

func TestHealth(t *testing.T) {
	w := doJSON(newTestRouter(&mockBookings{}, nil), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}
