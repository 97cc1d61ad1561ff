package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created with inventory reserved",
	})

	BookingsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_paid_total",
		Help: "Total number of bookings moved to BOOKED",
	})

	BookingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of bookings moved to CANCELLED",
	}, []string{"reason"})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of failed booking operations by operation and error kind",
	}, []string{"operation", "kind"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment processing",
		Buckets: prometheus.DefBuckets,
	})

	InventoryRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_request_latency_seconds",
		Help:    "Latency of calls to the inventory service",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	IdempotencyRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_rejections_total",
		Help: "Total number of requests rejected for a reused idempotency key",
	})

	ExpirySweepEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expiry_sweep_enqueued_total",
		Help: "Total number of expired bookings enqueued for cancellation",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
