package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/idempotency"
	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	headerIdempotencyKey = "x-idempotency-key"
	headerPayerName      = "name"

	msgMissingKey    = "The IDEMPOTENCY KEY is missing"
	msgDuplicateKey  = "cannot retry the request on a Successful Payment"
	msgInvalidBody   = "Invalid request body"
	msgInternalError = "Something went wrong"
)

// BookingAPI is the booking core as seen by the HTTP layer
type BookingAPI interface {
	CreateBooking(ctx context.Context, req *service.CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	MakePayment(ctx context.Context, req *service.PaymentRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (bool, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	bookings BookingAPI
	guard    idempotency.Guard
	deps     map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(bookings BookingAPI, guard idempotency.Guard, deps map[string]Pinger) *Handler {
	return &Handler{
		bookings: bookings,
		guard:    guard,
		deps:     deps,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.bookingRoutes(router.Group("/bookings"))
	h.bookingRoutes(router.Group("/api/v1/bookings"))
}

func (h *Handler) bookingRoutes(g *gin.RouterGroup) {
	g.POST("", h.createBooking)
	g.POST("/payments", h.makePayment)
	g.GET("/:id", h.getBooking)
	g.POST("/:id/cancel", h.cancelBooking)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers a ping
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if apperror.IsKind(err, apperror.KindInvalidRequest) {
			status = http.StatusBadRequest
		}
		h.respondFailure(c, status, err)
		return
	}

	respondData(c, booking)
}

// makePayment registers the idempotency key before any side effect, then
// confirms the booking.
func (h *Handler) makePayment(c *gin.Context) {
	key := c.GetHeader(headerIdempotencyKey)
	if key == "" {
		respondError(c, http.StatusBadRequest, msgMissingKey)
		return
	}

	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	seen, err := h.guard.CheckAndRecord(c.Request.Context(), key)
	if err != nil {
		h.respondFailure(c, http.StatusInternalServerError, err)
		return
	}
	if seen {
		util.IdempotencyRejectionsTotal.Inc()
		h.logger.Info("Rejected replayed payment",
			zap.String("idempotency_key", key),
			zap.String("booking_id", req.BookingID))
		respondError(c, http.StatusBadRequest, msgDuplicateKey)
		return
	}

	h.logger.Debug("Processing payment",
		zap.String("idempotency_key", key),
		zap.String("payer_name", c.GetHeader(headerPayerName)),
		zap.String("booking_id", req.BookingID))

	booking, err := h.bookings.MakePayment(c.Request.Context(), &req)
	if err != nil {
		h.respondFailure(c, statusFor(err), err)
		return
	}

	respondData(c, booking)
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondFailure(c, statusFor(err), err)
		return
	}

	respondData(c, booking)
}

// cancelBooking releases the stock of an unpaid booking
func (h *Handler) cancelBooking(c *gin.Context) {
	ok, err := h.bookings.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondFailure(c, statusFor(err), err)
		return
	}

	respondData(c, ok)
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindInvalidRequest,
		apperror.KindBookingExpired,
		apperror.KindDuplicatePayment,
		apperror.KindUserMismatch,
		apperror.KindIdempotencyViolation:
		return http.StatusBadRequest
	case apperror.KindPaymentAmountMismatch:
		return http.StatusPaymentRequired
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure logs err and writes its client-safe message. Internal
// errors collapse to a generic message.
func (h *Handler) respondFailure(c *gin.Context, status int, err error) {
	message := apperror.MessageOf(err, msgInternalError)
	switch apperror.KindOf(err) {
	case apperror.KindPersistence, apperror.KindUnknown:
		message = msgInternalError
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", apperror.KindOf(err).String()),
			zap.Error(err))
	}

	respondError(c, status, message)
}

func respondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
