package service

import (
	"context"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgBookingExpired   = "The booking has expired"
	msgAlreadyBooked    = "You have already booked! You can't retry the request on a successful booking ID"
	msgAmountMismatch   = "There is a discrepancy in the amount of the payment"
	msgUserMismatch     = "The user corresponding to the booking doesn't match"
	msgPaymentNotFound  = "For the request you made, there is no booking / user available for payment"
	msgPaymentUnhandled = "The payment could not be processed"
)

// PaymentRequest represents a payment against an INITIATED booking.
// Capture is simulated: a successful payment is the INITIATED -> BOOKED transition.
type PaymentRequest struct {
	BookingID string `json:"bookingId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	TotalCost int64  `json:"totalCost"`
}

// MakePayment confirms a booking. Preconditions are checked in order and each
// fails with its own kind: NotFound, BookingExpired (cancelled),
// DuplicatePayment (booked), BookingExpired (window elapsed, the booking is
// cancelled first), PaymentAmountMismatch, UserMismatch.
func (s *BookingService) MakePayment(ctx context.Context, req *PaymentRequest) (booking *models.Booking, err error) {
	ctx, span := util.StartSpan(ctx, "BookingService.MakePayment", attribute.String("booking.id", req.BookingID))
	defer func() { util.EndSpan(span, err) }()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	expired := false
	err = s.withinTx(ctx, func(tx store.Tx) error {
		current, err := s.store.GetBooking(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}

		switch current.Status {
		case models.BookingStatusCancelled:
			return apperror.New(apperror.KindBookingExpired, msgBookingExpired)
		case models.BookingStatusBooked:
			return apperror.New(apperror.KindDuplicatePayment, msgAlreadyBooked)
		}

		if current.IsExpired(s.now(), s.expiryWindow) {
			expired = true
			return apperror.New(apperror.KindBookingExpired, msgBookingExpired)
		}

		if req.TotalCost != current.TotalCost {
			return apperror.New(apperror.KindPaymentAmountMismatch, msgAmountMismatch)
		}

		if req.UserID != current.UserID {
			return apperror.New(apperror.KindUserMismatch, msgUserMismatch)
		}

		if !current.Status.CanTransitionTo(models.BookingStatusBooked) {
			return apperror.New(apperror.KindInvalidTransition, "booking cannot be paid in its current state")
		}

		if err := s.store.UpdateBooking(ctx, tx, current.ID, models.StatusPatch(models.BookingStatusBooked)); err != nil {
			return err
		}

		// read-only confirmation that the item still exists upstream
		if _, err := s.inventory.FetchItem(ctx, current.MenuID); err != nil {
			return err
		}

		current.Status = models.BookingStatusBooked
		booking = current
		return nil
	})

	if expired {
		// The payment unit of work has been rolled back, so the row lock is free.
		// InvalidTransition means a concurrent request settled the booking
		// first; this payment still answers BookingExpired.
		_, cancelErr := s.cancel(ctx, req.BookingID, "expired")
		if cancelErr != nil && !apperror.IsKind(cancelErr, apperror.KindInvalidTransition) {
			err = cancelErr
		}
	}

	if err != nil {
		err = mapPaymentError(err)
		util.BookingsFailedTotal.WithLabelValues("payment", apperror.KindOf(err).String()).Inc()
		s.logger.Warn("Payment rejected",
			zap.String("booking_id", req.BookingID),
			zap.String("user_id", req.UserID),
			zap.Int64("total_cost", req.TotalCost),
			zap.Error(err))
		return nil, err
	}

	util.BookingsPaidTotal.Inc()
	s.logger.Info("Booking paid",
		zap.String("booking_id", booking.ID),
		zap.Int64("total_cost", booking.TotalCost))

	s.publish(ctx, models.EventTypeBookingConfirmed, booking, "")
	return booking, nil
}

// mapPaymentError keeps taxonomy errors and folds lookups that failed
// anywhere in the flow into a single booking/user lookup failure.
func mapPaymentError(err error) error {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return apperror.Wrap(apperror.KindNotFound, msgPaymentNotFound, err)
	case apperror.KindUnknown:
		return apperror.Wrap(apperror.KindPersistence, msgPaymentUnhandled, err)
	default:
		return err
	}
}
