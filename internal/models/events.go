package models

import "time"

// Event types
const (
	EventTypeBookingCreated         = "BOOKING_CREATED"
	EventTypeBookingConfirmed       = "BOOKING_CONFIRMED"
	EventTypeBookingCancelled       = "BOOKING_CANCELLED"
	EventTypeBookingCancelRequested = "BOOKING_CANCEL_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingEvent describes a booking lifecycle change
type BookingEvent struct {
	BaseEvent
	BookingID string        `json:"booking_id"`
	MenuID    string        `json:"menu_id"`
	UserID    string        `json:"user_id"`
	Quantity  int           `json:"quantity"`
	TotalCost int64         `json:"total_cost"`
	Status    BookingStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
}

// CancelRequestedEvent asks the cancellation worker to cancel a booking
type CancelRequestedEvent struct {
	BaseEvent
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}
