package service

import (
	"context"

	"booking-service/internal/apperror"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgCancelNotFound = "For the request you made, there is no booking available to cancel"
	msgCancelFailed   = "Sorry! The cancellation was unsuccessful. Cancellation service is down"
	msgCancelBooked   = "A booked booking cannot be cancelled"
)

// CancelBooking releases the reserved stock and marks the booking CANCELLED.
// Cancelling an already cancelled booking is a no-op that returns true
// without touching inventory.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (bool, error) {
	return s.cancel(ctx, bookingID, "requested")
}

// ExpireBooking cancels a booking on behalf of the expiry sweep
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID string) (bool, error) {
	return s.cancel(ctx, bookingID, "expired")
}

func (s *BookingService) cancel(ctx context.Context, bookingID, reason string) (ok bool, err error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CancelBooking",
		attribute.String("booking.id", bookingID),
		attribute.String("cancel.reason", reason))
	defer func() { util.EndSpan(span, err) }()

	var cancelled *models.Booking
	found, released := false, false
	err = s.withinTx(ctx, func(tx store.Tx) error {
		current, err := s.store.GetBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		found = true

		if current.Status == models.BookingStatusCancelled {
			return nil
		}

		if !current.Status.CanTransitionTo(models.BookingStatusCancelled) {
			return apperror.New(apperror.KindInvalidTransition, msgCancelBooked)
		}

		if err := s.inventory.Release(ctx, current.MenuID, current.Quantity); err != nil {
			return err
		}
		released = true

		if err := s.store.UpdateBooking(ctx, tx, bookingID, models.StatusPatch(models.BookingStatusCancelled)); err != nil {
			return err
		}

		current.Status = models.BookingStatusCancelled
		cancelled = current
		return nil
	})

	if err != nil {
		if released {
			s.logger.Error("Stock released but cancellation was not committed",
				zap.String("booking_id", bookingID),
				zap.Error(err))
		}
		util.BookingsFailedTotal.WithLabelValues("cancel", apperror.KindOf(err).String()).Inc()

		// NotFound is reserved for the booking lookup; a 404 from the menu
		// service on release is a failed cancellation.
		switch {
		case !found && apperror.IsKind(err, apperror.KindNotFound):
			return false, apperror.Wrap(apperror.KindNotFound, msgCancelNotFound, err)
		case apperror.IsKind(err, apperror.KindInvalidTransition):
			return false, err
		default:
			return false, apperror.Wrap(apperror.KindCancellationFailed, msgCancelFailed, err)
		}
	}

	if cancelled == nil {
		s.logger.Debug("Booking already cancelled", zap.String("booking_id", bookingID))
		return true, nil
	}

	util.BookingsCancelledTotal.WithLabelValues(reason).Inc()
	s.logger.Info("Booking cancelled and stock released",
		zap.String("booking_id", bookingID),
		zap.String("reason", reason))

	s.publish(ctx, models.EventTypeBookingCancelled, cancelled, reason)
	return true, nil
}
