// Package repotest provides an in-memory repository.Store for engine and
// sweeper tests.  Transactions are serialised by a mutex and work on a
// copy of the data that replaces the original on commit, so rollback and
// conditional updates behave like the MySQL store.
package repotest

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

type state struct {
	seats     map[uint64]model.Seat
	bookings  map[uint64]model.Booking
	showtimes map[uint64]model.Showtime
	nextID    uint64
}

func (s *state) clone() *state {
	c := &state{
		seats:     make(map[uint64]model.Seat, len(s.seats)),
		bookings:  make(map[uint64]model.Booking, len(s.bookings)),
		showtimes: make(map[uint64]model.Showtime, len(s.showtimes)),
		nextID:    s.nextID,
	}
	for k, v := range s.seats {
		c.seats[k] = copySeat(v)
	}
	for k, v := range s.bookings {
		v.Seats = append([]string(nil), v.Seats...)
		c.bookings[k] = v
	}
	for k, v := range s.showtimes {
		c.showtimes[k] = v
	}
	return c
}

func copySeat(s model.Seat) model.Seat {
	if s.BookingID != nil {
		id := *s.BookingID
		s.BookingID = &id
	}
	return s
}

// Memory implements repository.Store.  Hooks, when set, inject failures:
// FailUpdateSeats runs before every seat update and FailCommit before
// every commit.
type Memory struct {
	txMu sync.Mutex // serialises transactions
	mu   sync.Mutex // guards data
	data *state

	FailUpdateSeats func(showtimeID uint64, ids []uint64) error
	FailCommit      func() error
}

// New returns an empty store.
func New() *Memory {
	return &Memory{data: &state{
		seats:     map[uint64]model.Seat{},
		bookings:  map[uint64]model.Booking{},
		showtimes: map[uint64]model.Showtime{},
		nextID:    1,
	}}
}

// AddShowtime registers a showtime.
func (m *Memory) AddShowtime(st model.Showtime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.showtimes[st.ID] = st
}

// AddSeats registers seats as they are; ids must be unique.
func (m *Memory) AddSeats(seats ...model.Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range seats {
		m.data.seats[s.ID] = copySeat(s)
	}
}

// Seat returns a copy of a seat.
func (m *Memory) Seat(id uint64) (model.Seat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data.seats[id]
	return copySeat(s), ok
}

// Booking returns a copy of a booking.
func (m *Memory) Booking(id uint64) (model.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data.bookings[id]
	return b, ok
}

// Snapshot returns the current data.  Used by tests to assert nothing
// changed after a failed operation.
func (m *Memory) Snapshot() ([]model.Seat, []model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.data.clone()
	seats := make([]model.Seat, 0, len(c.seats))
	for _, s := range c.seats {
		seats = append(seats, s)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].ID < seats[j].ID })
	bookings := make([]model.Booking, 0, len(c.bookings))
	for _, b := range c.bookings {
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return seats, bookings
}

func (m *Memory) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	work := m.data.clone()
	m.mu.Unlock()

	if err := fn(&memTx{m: m, s: work}); err != nil {
		return err
	}
	if m.FailCommit != nil {
		if err := m.FailCommit(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.data = work
	m.mu.Unlock()
	return nil
}

func (m *Memory) FindSeats(_ context.Context, f repository.SeatFilter) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return findSeats(m.data, f), nil
}

func (m *Memory) ListBookingsByShowtime(_ context.Context, showtimeID uint64) ([]model.Booking, error) {
	return m.listBookings(func(b model.Booking) bool { return b.ShowtimeID == showtimeID }), nil
}

func (m *Memory) ListBookingsByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	return m.listBookings(func(b model.Booking) bool { return b.UserID == userID }), nil
}

func (m *Memory) listBookings(keep func(model.Booking) bool) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Booking{}
	for _, b := range m.data.bookings {
		if keep(b) {
			b.Seats = append([]string(nil), b.Seats...)
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func findSeats(s *state, f repository.SeatFilter) []model.Seat {
	var out []model.Seat
	for _, seat := range s.seats {
		if f.ShowtimeID != 0 && seat.ShowtimeID != f.ShowtimeID {
			continue
		}
		if len(f.SeatIDs) > 0 && !contains(f.SeatIDs, seat.ID) {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, seat.Status) {
			continue
		}
		out = append(out, copySeat(seat))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out
}

type memTx struct {
	m *Memory
	s *state
}

func (t *memTx) FindSeats(_ context.Context, f repository.SeatFilter, _ bool) ([]model.Seat, error) {
	return findSeats(t.s, f), nil
}

func (t *memTx) UpdateSeats(_ context.Context, showtimeID uint64, ids []uint64, p repository.SeatPatch) (int64, error) {
	if t.m.FailUpdateSeats != nil {
		if err := t.m.FailUpdateSeats(showtimeID, ids); err != nil {
			return 0, err
		}
	}
	var n int64
	for id, seat := range t.s.seats {
		if seat.ShowtimeID != showtimeID {
			continue
		}
		if len(ids) > 0 && !contains(ids, id) {
			continue
		}
		if len(ids) == 0 && p.WhereBookingID == nil {
			continue
		}
		if len(p.WhereStatus) > 0 && !contains(p.WhereStatus, seat.Status) {
			continue
		}
		if p.WhereBookingID != nil && (seat.BookingID == nil || *seat.BookingID != *p.WhereBookingID) {
			continue
		}
		if p.WhereHoldID != "" && seat.HoldID != p.WhereHoldID {
			continue
		}
		seat.Status = p.Status
		seat.HoldID = p.HoldID
		switch {
		case p.BookingID != nil:
			bid := *p.BookingID
			seat.BookingID = &bid
		case p.ClearBooking:
			seat.BookingID = nil
		}
		t.s.seats[id] = seat
		n++
	}
	return n, nil
}

func (t *memTx) CreateBooking(_ context.Context, b *model.Booking) error {
	b.ID = t.s.nextID
	t.s.nextID++
	stored := *b
	stored.Seats = append([]string(nil), b.Seats...)
	t.s.bookings[b.ID] = stored
	return nil
}

func (t *memTx) FindBooking(_ context.Context, id uint64, _ bool) (*model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b.Seats = append([]string(nil), b.Seats...)
	return &b, nil
}

func (t *memTx) UpdateBooking(_ context.Context, id uint64, p repository.BookingPatch) error {
	b, ok := t.s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PaymentStatus = p.PaymentStatus
	b.UpdatedAt = p.UpdatedAt
	t.s.bookings[id] = b
	return nil
}

func (t *memTx) GetShowtime(_ context.Context, id uint64) (*model.Showtime, error) {
	st, ok := t.s.showtimes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}
