package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const bookingColumns = `booking_id, showtime_id, user_id, seats, total_price_cents, payment_status, created_at, updated_at`

// createBooking inserts a booking.  The seat codes are stored as a JSON
// array and never rewritten afterwards.
func createBooking(ctx context.Context, q querier, b *model.Booking) error {
	if b.TotalPriceCents < 0 {
		return errors.New("create booking: negative total price")
	}
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO bookings (showtime_id, user_id, seats, total_price_cents, payment_status, created_at, updated_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, ins,
		b.ShowtimeID, b.UserID, seats, b.TotalPriceCents, string(b.PaymentStatus),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (model.Booking, error) {
	var (
		b      model.Booking
		seats  []byte
		status string
	)
	if err := r.Scan(&b.ID, &b.ShowtimeID, &b.UserID, &seats, &b.TotalPriceCents, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &b.Seats); err != nil {
			return model.Booking{}, err
		}
	}
	if b.Seats == nil {
		b.Seats = []string{}
	}
	b.PaymentStatus = model.PaymentStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func findBooking(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func updateBooking(ctx context.Context, q querier, id uint64, p BookingPatch) error {
	const upd = `UPDATE bookings SET payment_status = ?, updated_at = ? WHERE booking_id = ?`
	res, err := q.ExecContext(ctx, upd, string(p.PaymentStatus), p.UpdatedAt.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// listBookings returns the bookings whose column equals id, newest first.
// column is one of the two indexed foreign keys and never user input.
func listBookings(ctx context.Context, q querier, column string, id uint64) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + column + ` = ? ORDER BY created_at DESC, booking_id DESC`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
