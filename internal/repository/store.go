package repository

import (
	"context"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// SeatFilter selects seats of one showtime.  Empty fields do not
// constrain the query.
type SeatFilter struct {
	ShowtimeID uint64
	SeatIDs    []uint64
	Statuses   []model.SeatStatus
}

// SeatPatch describes a conditional seat update.  Rows are matched by
// id (when ids are given), by WhereStatus, WhereBookingID and WhereHoldID;
// only matched rows change.  BookingID sets the owning booking and
// ClearBooking resets it to NULL.  HoldID is always written, so every
// update that does not place a hold clears it.
type SeatPatch struct {
	Status         model.SeatStatus
	BookingID      *uint64
	ClearBooking   bool
	HoldID         string
	WhereStatus    []model.SeatStatus
	WhereBookingID *uint64
	WhereHoldID    string
}

// BookingPatch updates the payment status of a booking.
type BookingPatch struct {
	PaymentStatus model.PaymentStatus
	UpdatedAt     time.Time
}

// Store is the transactional reservation store.
type Store interface {
	// WithTx runs fn in a transaction.  The transaction commits when fn
	// returns nil and rolls back otherwise, including on panic.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// FindSeats reads seats outside of any transaction, ordered by row
	// then column.
	FindSeats(ctx context.Context, f SeatFilter) ([]model.Seat, error)
	ListBookingsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// Tx is the set of operations available inside one transaction.
type Tx interface {
	// FindSeats returns the matching seats ordered by row then column.
	// With forUpdate the rows stay locked until the transaction ends.
	FindSeats(ctx context.Context, f SeatFilter, forUpdate bool) ([]model.Seat, error)
	// UpdateSeats applies p to the seats of showtimeID whose ids are
	// listed (all seats when ids is empty and p.WhereBookingID is set)
	// and returns the number of rows matched.
	UpdateSeats(ctx context.Context, showtimeID uint64, ids []uint64, p SeatPatch) (int64, error)
	// CreateBooking inserts b and stores the generated id in b.ID.
	CreateBooking(ctx context.Context, b *model.Booking) error
	FindBooking(ctx context.Context, id uint64, forUpdate bool) (*model.Booking, error)
	UpdateBooking(ctx context.Context, id uint64, p BookingPatch) error
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
}
