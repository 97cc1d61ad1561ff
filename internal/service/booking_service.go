package service

import (
	"context"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultExpiryWindow is how long an INITIATED booking waits for payment
const DefaultExpiryWindow = 5 * time.Minute

// BookingStore is the transactional persistence the state machine runs on
type BookingStore interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	CreateBooking(ctx context.Context, tx store.Tx, booking *models.Booking) error
	GetBooking(ctx context.Context, tx store.Tx, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, tx store.Tx, id string, patch models.BookingPatch) error
}

// EventPublisher receives booking lifecycle events after commit
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingEvent) error
	PublishBookingConfirmed(ctx context.Context, event *models.BookingEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingEvent) error
}

// BookingService runs the booking state machine:
// INITIATED -> BOOKED on payment, INITIATED -> CANCELLED on expiry or cancel.
type BookingService struct {
	store        BookingStore
	inventory    Inventory
	events       EventPublisher
	expiryWindow time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewBookingService creates a new booking service. events may be nil.
func NewBookingService(
	store BookingStore,
	inventory Inventory,
	events EventPublisher,
	expiryWindow time.Duration,
) *BookingService {
	if expiryWindow <= 0 {
		expiryWindow = DefaultExpiryWindow
	}
	return &BookingService{
		store:        store,
		inventory:    inventory,
		events:       events,
		expiryWindow: expiryWindow,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	MenuID   string `json:"menuId" binding:"required"`
	UserID   string `json:"userId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// CreateBooking prices the item, records an INITIATED booking and reserves
// stock, all in one unit of work.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (booking *models.Booking, err error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking",
		attribute.String("menu.id", req.MenuID),
		attribute.Int("quantity", req.Quantity))
	defer func() { util.EndSpan(span, err) }()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	reserved := false
	err = s.withinTx(ctx, func(tx store.Tx) error {
		item, err := s.inventory.FetchItem(ctx, req.MenuID)
		if err != nil {
			return err
		}

		candidate := &models.Booking{
			ID:        uuid.NewString(),
			MenuID:    req.MenuID,
			UserID:    req.UserID,
			Quantity:  req.Quantity,
			TotalCost: int64(req.Quantity) * item.Price,
		}

		if err := s.store.CreateBooking(ctx, tx, candidate); err != nil {
			return err
		}

		if err := s.inventory.Reserve(ctx, req.MenuID, req.Quantity); err != nil {
			return err
		}
		reserved = true

		booking = candidate
		return nil
	})
	if err != nil {
		if reserved {
			// stock left the inventory but the booking never committed
			s.releaseBestEffort(ctx, req.MenuID, req.Quantity, "create_commit_failed")
		}
		util.BookingsFailedTotal.WithLabelValues("create", apperror.KindOf(err).String()).Inc()
		s.logger.Warn("Booking creation failed",
			zap.String("menu_id", req.MenuID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return nil, err
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID),
		zap.String("menu_id", booking.MenuID),
		zap.Int64("total_cost", booking.TotalCost))

	s.publish(ctx, models.EventTypeBookingCreated, booking, "")
	return booking, nil
}

// GetBooking retrieves a booking by ID
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (booking *models.Booking, err error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetBooking", attribute.String("booking.id", bookingID))
	defer func() { util.EndSpan(span, err) }()

	err = s.withinTx(ctx, func(tx store.Tx) error {
		booking, err = s.store.GetBooking(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// withinTx runs fn in a unit of work: commit when fn succeeds, roll back otherwise
func (s *BookingService) withinTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to commit transaction", err)
	}
	return nil
}

func (s *BookingService) releaseBestEffort(ctx context.Context, menuID string, quantity int, reason string) {
	if err := s.inventory.Release(ctx, menuID, quantity); err != nil {
		s.logger.Error("Failed to release reserved stock",
			zap.String("menu_id", menuID),
			zap.Int("quantity", quantity),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *models.Booking, reason string) {
	if s.events == nil {
		return
	}

	event := &models.BookingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		BookingID: booking.ID,
		MenuID:    booking.MenuID,
		UserID:    booking.UserID,
		Quantity:  booking.Quantity,
		TotalCost: booking.TotalCost,
		Status:    booking.Status,
		Reason:    reason,
	}

	var err error
	switch eventType {
	case models.EventTypeBookingCreated:
		err = s.events.PublishBookingCreated(ctx, event)
	case models.EventTypeBookingConfirmed:
		err = s.events.PublishBookingConfirmed(ctx, event)
	case models.EventTypeBookingCancelled:
		err = s.events.PublishBookingCancelled(ctx, event)
	}
	if err != nil {
		s.logger.Error("Failed to publish booking event",
			zap.String("event_type", eventType),
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
}

func validateCreate(req *CreateBookingRequest) error {
	switch {
	case req.MenuID == "":
		return apperror.New(apperror.KindInvalidRequest, "menuId is required")
	case req.UserID == "":
		return apperror.New(apperror.KindInvalidRequest, "userId is required")
	case req.Quantity <= 0:
		return apperror.New(apperror.KindInvalidRequest, "quantity must be positive")
	}
	return nil
}
