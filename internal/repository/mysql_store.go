package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store on a MySQL database.  All timestamps are
// written and read in UTC.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying *sql.DB.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// WithTx begins a transaction, runs fn and commits.  Any error from fn,
// or a panic, rolls the transaction back.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&mysqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) FindSeats(ctx context.Context, f SeatFilter) ([]model.Seat, error) {
	return findSeats(ctx, s.db, f, false)
}

func (s *MySQLStore) ListBookingsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error) {
	return listBookings(ctx, s.db, "showtime_id", showtimeID)
}

func (s *MySQLStore) ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return listBookings(ctx, s.db, "user_id", userID)
}

// mysqlTx implements Tx on a *sql.Tx.
type mysqlTx struct {
	q querier
}

func (t *mysqlTx) FindSeats(ctx context.Context, f SeatFilter, forUpdate bool) ([]model.Seat, error) {
	return findSeats(ctx, t.q, f, forUpdate)
}

func (t *mysqlTx) UpdateSeats(ctx context.Context, showtimeID uint64, ids []uint64, p SeatPatch) (int64, error) {
	return updateSeats(ctx, t.q, showtimeID, ids, p)
}

func (t *mysqlTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	return createBooking(ctx, t.q, b)
}

func (t *mysqlTx) FindBooking(ctx context.Context, id uint64, forUpdate bool) (*model.Booking, error) {
	return findBooking(ctx, t.q, id, forUpdate)
}

func (t *mysqlTx) UpdateBooking(ctx context.Context, id uint64, p BookingPatch) error {
	return updateBooking(ctx, t.q, id, p)
}

func (t *mysqlTx) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT showtime_id, screen_id, starts_at FROM showtimes WHERE showtime_id = ?`
	var st model.Showtime
	err := t.q.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.ScreenID, &st.StartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st.StartsAt = st.StartsAt.UTC()
	return &st, nil
}
