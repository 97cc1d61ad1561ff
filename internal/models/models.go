package models

import "time"

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

// Booking statuses
const (
	BookingStatusInitiated BookingStatus = "INITIATED"
	BookingStatusBooked    BookingStatus = "BOOKED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition leaves the status
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusBooked || s == BookingStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// CANCELLED -> CANCELLED is accepted as a no-op.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusInitiated:
		return next == BookingStatusBooked || next == BookingStatusCancelled
	case BookingStatusCancelled:
		return next == BookingStatusCancelled
	default:
		return false
	}
}

// Booking represents one reservation attempt against an inventory item
type Booking struct {
	ID        string        `db:"id" json:"id"`
	MenuID    string        `db:"menu_id" json:"menuId"`
	UserID    string        `db:"user_id" json:"userId"`
	Quantity  int           `db:"quantity" json:"quantity"`
	TotalCost int64         `db:"total_cost" json:"totalCost"`
	Status    BookingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether an unpaid booking has outlived window at now
func (b *Booking) IsExpired(now time.Time, window time.Duration) bool {
	return b.Status == BookingStatusInitiated && now.Sub(b.CreatedAt) > window
}

// BookingPatch is a partial update of a booking. Nil fields are left untouched.
type BookingPatch struct {
	Status *BookingStatus
}

// StatusPatch builds a patch that only changes the status
func StatusPatch(status BookingStatus) BookingPatch {
	return BookingPatch{Status: &status}
}

// MenuItem is the inventory view of a bookable item
type MenuItem struct {
	ID                string
	Price             int64
	AvailableQuantity int
}
