package worker

import (
	"context"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepLockKey = "expiry-sweep"

// ExpiredLister finds INITIATED bookings created before a cutoff
type ExpiredLister interface {
	ListExpiredBookings(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error)
}

// Locker is a best-effort distributed lock
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// CancelRequester enqueues cancellations
type CancelRequester interface {
	PublishCancelRequested(ctx context.Context, event *models.CancelRequestedEvent) error
}

// Expirer cancels a booking whose payment window has elapsed
type Expirer interface {
	ExpireBooking(ctx context.Context, bookingID string) (bool, error)
}

// ExpirySweeper periodically enqueues cancel requests for bookings that were
// never paid. Only the replica holding the sweep lock does work on a tick.
type ExpirySweeper struct {
	bookings     ExpiredLister
	locker       Locker
	requests     CancelRequester
	expiryWindow time.Duration
	interval     time.Duration
	batchSize    int
	now          func() time.Time
	logger       *zap.Logger
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(
	bookings ExpiredLister,
	locker Locker,
	requests CancelRequester,
	expiryWindow, interval time.Duration,
	batchSize int,
) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpirySweeper{
		bookings:     bookings,
		locker:       locker,
		requests:     requests,
		expiryWindow: expiryWindow,
		interval:     interval,
		batchSize:    batchSize,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

// Start runs a sweep on every tick until ctx is done
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting expiry sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("expiry_window", s.expiryWindow))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep enqueues one batch of expired bookings and returns how many were
// enqueued. It does nothing when another replica holds the lock.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	acquired, err := s.locker.AcquireLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		return 0, err
	}
	if !acquired {
		s.logger.Debug("Expiry sweep skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := s.locker.ReleaseLock(ctx, sweepLockKey); err != nil {
			s.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	cutoff := s.now().Add(-s.expiryWindow)
	expired, err := s.bookings.ListExpiredBookings(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, b := range expired {
		event := &models.CancelRequestedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.NewString(),
				EventType: models.EventTypeBookingCancelRequested,
				Timestamp: s.now(),
			},
			BookingID: b.ID,
			Reason:    "expired",
		}
		if err := s.requests.PublishCancelRequested(ctx, event); err != nil {
			s.logger.Error("Failed to enqueue cancel request",
				zap.String("booking_id", b.ID),
				zap.Error(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		util.ExpirySweepEnqueuedTotal.Add(float64(enqueued))
		s.logger.Info("Enqueued expired bookings for cancellation", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

// CancellationWorker consumes cancel requests and expires the bookings
type CancellationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	bookings     Expirer
	logger       *zap.Logger
}

// NewCancellationWorker creates a new cancellation worker
func NewCancellationWorker(consumer *broker.Consumer, bookings Expirer) *CancellationWorker {
	w := &CancellationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		bookings:     bookings,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCancelRequested(w.handleCancelRequested)
	return w
}

// Start starts the worker
func (w *CancellationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cancellation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CancellationWorker) Stop() error {
	w.logger.Info("Stopping cancellation worker")
	return w.consumer.Close()
}

func (w *CancellationWorker) handleCancelRequested(ctx context.Context, event *models.CancelRequestedEvent) error {
	_, err := w.bookings.ExpireBooking(ctx, event.BookingID)
	switch {
	case err == nil:
		return nil
	case apperror.IsKind(err, apperror.KindNotFound), apperror.IsKind(err, apperror.KindInvalidTransition):
		// paid or deleted since the sweep; nothing left to release
		w.logger.Info("Skipping cancel request",
			zap.String("booking_id", event.BookingID),
			zap.String("reason", apperror.KindOf(err).String()))
		return nil
	default:
		return err
	}
}
