package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{BookingStatusInitiated, BookingStatusBooked, true},
		{BookingStatusInitiated, BookingStatusCancelled, true},
		{BookingStatusInitiated, BookingStatusInitiated, false},
		{BookingStatusCancelled, BookingStatusCancelled, true},
		{BookingStatusCancelled, BookingStatusBooked, false},
		{BookingStatusBooked, BookingStatusCancelled, false},
		{BookingStatusBooked, BookingStatusBooked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.False(t, BookingStatusInitiated.IsTerminal())
	assert.True(t, BookingStatusBooked.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
}

func TestBookingIsExpired(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{Status: BookingStatusInitiated, CreatedAt: created}

	assert.False(t, b.IsExpired(created.Add(5*time.Minute), 5*time.Minute))
	assert.True(t, b.IsExpired(created.Add(5*time.Minute+time.Second), 5*time.Minute))

	b.Status = BookingStatusBooked
	assert.False(t, b.IsExpired(created.Add(time.Hour), 5*time.Minute))
}
