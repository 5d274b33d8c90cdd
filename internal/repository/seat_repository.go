package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const seatColumns = `seat_id, showtime_id, screen_id, seat_row, seat_number, status, booking_id, hold_id`

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func appendIDs(args []any, ids []uint64) []any {
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func appendStatuses(args []any, st []model.SeatStatus) []any {
	for _, s := range st {
		args = append(args, string(s))
	}
	return args
}

// findSeats loads the seats matching f.  The showtime is mandatory so a
// lock never spans more than one showtime.
func findSeats(ctx context.Context, q querier, f SeatFilter, forUpdate bool) ([]model.Seat, error) {
	if f.ShowtimeID == 0 {
		return nil, errors.New("find seats: showtime id is required")
	}
	query := `SELECT ` + seatColumns + ` FROM screen_seats WHERE showtime_id = ?`
	args := []any{f.ShowtimeID}
	if len(f.SeatIDs) > 0 {
		query += ` AND seat_id IN (` + placeholders(len(f.SeatIDs)) + `)`
		args = appendIDs(args, f.SeatIDs)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		args = appendStatuses(args, f.Statuses)
	}
	query += ` ORDER BY seat_row, seat_number`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var (
			s         model.Seat
			status    string
			bookingID sql.NullInt64
			holdID    sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.ScreenID, &s.Row, &s.Column, &status, &bookingID, &holdID); err != nil {
			return nil, err
		}
		s.Status = model.SeatStatus(status)
		if bookingID.Valid {
			id := uint64(bookingID.Int64)
			s.BookingID = &id
		}
		s.HoldID = holdID.String
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// updateSeats runs one conditional UPDATE and returns the matched row
// count (the DSN sets clientFoundRows).
func updateSeats(ctx context.Context, q querier, showtimeID uint64, ids []uint64, p SeatPatch) (int64, error) {
	if showtimeID == 0 {
		return 0, errors.New("update seats: showtime id is required")
	}
	if len(ids) == 0 && p.WhereBookingID == nil {
		return 0, errors.New("update seats: no seat ids and no booking condition")
	}
	if !p.Status.Valid() {
		return 0, errors.New("update seats: invalid status " + string(p.Status))
	}

	set := []string{"status = ?", "hold_id = ?"}
	args := []any{string(p.Status), nullString(p.HoldID)}
	switch {
	case p.BookingID != nil:
		set = append(set, "booking_id = ?")
		args = append(args, *p.BookingID)
	case p.ClearBooking:
		set = append(set, "booking_id = NULL")
	}
	set = append(set, "updated_at = UTC_TIMESTAMP()")

	query := `UPDATE screen_seats SET ` + strings.Join(set, ", ") + ` WHERE showtime_id = ?`
	args = append(args, showtimeID)
	if len(ids) > 0 {
		query += ` AND seat_id IN (` + placeholders(len(ids)) + `)`
		args = appendIDs(args, ids)
	}
	if len(p.WhereStatus) > 0 {
		query += ` AND status IN (` + placeholders(len(p.WhereStatus)) + `)`
		args = appendStatuses(args, p.WhereStatus)
	}
	if p.WhereBookingID != nil {
		query += ` AND booking_id = ?`
		args = append(args, *p.WhereBookingID)
	}
	if p.WhereHoldID != "" {
		query += ` AND hold_id = ?`
		args = append(args, p.WhereHoldID)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
