package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/apperror"
	"booking-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = "id, menu_id, user_id, quantity, total_cost, status, created_at, updated_at"

// CreateBooking inserts a new booking with status INITIATED
func (s *Store) CreateBooking(ctx context.Context, tx Tx, booking *models.Booking) error {
	q, err := execer(tx)
	if err != nil {
		return err
	}

	booking.Status = models.BookingStatusInitiated

	query := `
		INSERT INTO bookings (id, menu_id, user_id, quantity, total_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	row := q.QueryRowxContext(ctx, query,
		booking.ID, booking.MenuID, booking.UserID, booking.Quantity, booking.TotalCost, string(booking.Status))
	if err := row.Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to create booking", err)
	}
	return nil
}

// GetBooking retrieves a booking and locks its row for the rest of tx
func (s *Store) GetBooking(ctx context.Context, tx Tx, id string) (*models.Booking, error) {
	q, err := execer(tx)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperror.New(apperror.KindNotFound, "booking not found")
	}

	var booking models.Booking
	err = sqlx.GetContext(ctx, q, &booking,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.KindNotFound, "booking not found", err)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to get booking", err)
	}
	return &booking, nil
}

// UpdateBooking applies a partial update to a booking
func (s *Store) UpdateBooking(ctx context.Context, tx Tx, id string, patch models.BookingPatch) error {
	q, err := execer(tx)
	if err != nil {
		return err
	}
	if !validID(id) {
		return apperror.New(apperror.KindNotFound, "booking not found")
	}

	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := "UPDATE bookings SET " + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d", len(args))

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to update booking", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to update booking", err)
	}
	if affected == 0 {
		return apperror.New(apperror.KindNotFound, "booking not found")
	}
	return nil
}

// ListExpiredBookings returns INITIATED bookings created before the cutoff,
// oldest first. It runs outside any unit of work.
func (s *Store) ListExpiredBookings(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT "+bookingColumns+" FROM bookings WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3",
		string(models.BookingStatusInitiated), createdBefore, limit)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to list expired bookings", err)
	}
	return bookings, nil
}

// validID reports whether id can match the uuid primary key. Anything else
// would be rejected by Postgres as a malformed value.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
