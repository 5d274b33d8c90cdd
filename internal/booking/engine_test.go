package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/allocator"
	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/lease/leasetest"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository/repotest"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// mapCache is a Cache kept in memory with the same JSON round trip as Redis.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setHits int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	bs, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(bs, dst)
}

func (c *mapCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = bs
	c.setHits++
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type fixture struct {
	e      *Engine
	store  *repotest.Memory
	leases *leasetest.Memory
	clk    *clock.Fake
	pub    *recorder
	cache  *mapCache
}

// newFixture seeds showtime 1 (starting 48h after t0) with rows A and B of
// five seats each: A1..A5 have ids 1..5, B1..B5 ids 6..10.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(t0)
	store := repotest.New()
	store.AddShowtime(model.Showtime{ID: 1, ScreenID: 1, StartsAt: t0.Add(48 * time.Hour)})
	var id uint64
	for _, row := range []string{"A", "B"} {
		for col := 1; col <= 5; col++ {
			id++
			store.AddSeats(model.Seat{ID: id, ShowtimeID: 1, ScreenID: 1, Row: row, Column: col, Status: model.SeatAvailable})
		}
	}
	leases := leasetest.NewMemory()
	leases.Now = clk.Now
	pub := &recorder{}
	c := newMapCache()
	logger := log.New("test")
	logger.SetOutput(io.Discard)
	e := New(store, leases, c, WithClock(clk), WithPublisher(pub), WithLogger(logger))
	return &fixture{e: e, store: store, leases: leases, clk: clk, pub: pub, cache: c}
}

func (f *fixture) seat(t *testing.T, id uint64) model.Seat {
	t.Helper()
	s, ok := f.store.Seat(id)
	require.True(t, ok)
	return s
}

func (f *fixture) book(t *testing.T, seatIDs ...uint64) *model.Booking {
	t.Helper()
	b, err := f.e.CreateBooking(context.Background(), CreateBookingRequest{ShowtimeID: 1, UserID: 42, SeatIDs: seatIDs, TotalPriceCents: 1500})
	require.NoError(t, err)
	return b
}

func seatCodes(seats []model.Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.Code()
	}
	return out
}

func TestHoldAutomaticTakesFirstRun(t *testing.T) {
	f := newFixture(t)
	res, err := f.e.Hold(context.Background(), HoldRequest{ShowtimeID: 1, Count: 2})
	require.NoError(t, err)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A1", "A2"}, seatCodes(res.Seats))
	assert.Equal(t, t0.Add(5*time.Minute), res.ExpiresAt)
	assert.NotEmpty(t, res.HoldID)

	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatHeld, f.seat(t, id).Status)
		raw, ok, err := f.leases.Get(context.Background(), lease.HoldKey(1, id))
		require.NoError(t, err)
		require.True(t, ok)
		l, err := lease.Decode(lease.HoldKey(1, id), raw)
		require.NoError(t, err)
		assert.Equal(t, res.HoldID, l.HoldID)
		assert.True(t, l.ExpiresAt.Equal(res.ExpiresAt))
	}
	assert.Equal(t, model.SeatAvailable, f.seat(t, 3).Status)
}

func TestHoldSelectionLeavingGapFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	seatsBefore, _ := f.store.Snapshot()
	res, err := f.e.Hold(context.Background(), HoldRequest{ShowtimeID: 1, Selection: []string{"A1", "A3"}})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, allocator.ReasonLonelySeat, res.Reason)
	seatsAfter, _ := f.store.Snapshot()
	assert.Equal(t, seatsBefore, seatsAfter)
	assert.Empty(t, f.leases.Keys())
}

func TestHoldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Count: 3, Selection: []string{"A1", "A2"}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.e.Hold(ctx, HoldRequest{ShowtimeID: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.e.Hold(ctx, HoldRequest{Count: 1})
	assert.ErrorIs(t, err, ErrValidation)

	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Count: 11})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, allocator.ReasonNotEnough, res.Reason)
}

func TestHoldConcurrentRequestsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.e.Hold(context.Background(), HoldRequest{ShowtimeID: 1, Selection: []string{"A1", "A2"}})
			if err != nil {
				assert.ErrorIs(t, err, ErrConflict)
				return
			}
			if res.OK {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)
	assert.Equal(t, model.SeatHeld, f.seat(t, 2).Status)
	assert.Len(t, f.leases.Keys(), 2)
}

func TestHoldLeaseFailureReleasesSeats(t *testing.T) {
	f := newFixture(t)
	f.leases.Fail = func(op, key string) error {
		if op == "set" && key == lease.HoldKey(1, 2) {
			return errors.New("redis down")
		}
		return nil
	}
	_, err := f.e.Hold(context.Background(), HoldRequest{ShowtimeID: 1, Count: 2})
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, model.SeatAvailable, f.seat(t, 1).Status)
	assert.Equal(t, model.SeatAvailable, f.seat(t, 2).Status)
	assert.Empty(t, f.leases.Keys())
}

func TestCreateBookingFromHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Count: 2})
	require.NoError(t, err)
	require.True(t, res.OK)

	b, err := f.e.CreateBooking(ctx, CreateBookingRequest{ShowtimeID: 1, UserID: 42, SeatIDs: []uint64{2, 1}, TotalPriceCents: 3000})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, []string{"A1", "A2"}, b.Seats)
	assert.Equal(t, t0, b.CreatedAt)

	for _, id := range []uint64{1, 2} {
		s := f.seat(t, id)
		assert.Equal(t, model.SeatReserved, s.Status)
		require.NotNil(t, s.BookingID)
		assert.Equal(t, b.ID, *s.BookingID)
	}
	assert.Equal(t, []string{lease.PaymentKey(1, b.ID)}, f.leases.Keys())
	assert.Equal(t, []string{queue.EventBookingCreated}, f.pub.types())
}

func TestCreateBookingConflictLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1)
	seatsBefore, bookingsBefore := f.store.Snapshot()

	_, err := f.e.CreateBooking(context.Background(), CreateBookingRequest{ShowtimeID: 1, UserID: 7, SeatIDs: []uint64{1, 2}})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "A1")

	seatsAfter, bookingsAfter := f.store.Snapshot()
	assert.Equal(t, seatsBefore, seatsAfter)
	assert.Equal(t, bookingsBefore, bookingsAfter)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for name, req := range map[string]CreateBookingRequest{
		"no seats":       {ShowtimeID: 1, UserID: 1},
		"duplicate seat": {ShowtimeID: 1, UserID: 1, SeatIDs: []uint64{1, 1}},
		"negative price": {ShowtimeID: 1, UserID: 1, SeatIDs: []uint64{1}, TotalPriceCents: -1},
		"no user":        {ShowtimeID: 1, SeatIDs: []uint64{1}},
	} {
		_, err := f.e.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
	_, err := f.e.CreateBooking(ctx, CreateBookingRequest{ShowtimeID: 1, UserID: 1, SeatIDs: []uint64{1, 99}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, 1, 2)

	res, err := f.e.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "Booking COMPLETED successfully.", res.Message)

	got, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, model.SeatOccupied, f.seat(t, 1).Status)
	assert.Equal(t, model.SeatOccupied, f.seat(t, 2).Status)
	assert.Empty(t, f.leases.Keys())

	_, err = f.e.ConfirmBooking(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.e.ConfirmBooking(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{queue.EventBookingCreated, queue.EventBookingConfirmed}, f.pub.types())
}

func TestCancelBookingRefundBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exact := f.book(t, 1)
	short := f.book(t, 3)
	late := f.book(t, 5)

	// Showtime starts at t0+48h; the policy is 24h.
	f.clk.Set(t0.Add(24 * time.Hour))
	res, err := f.e.CancelBooking(ctx, 42, exact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.RefundCents)

	f.clk.Set(t0.Add(24*time.Hour + time.Second))
	res, err = f.e.CancelBooking(ctx, 42, short.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RefundCents)
	assert.Equal(t, "Booking CANCELED successfully.", res.Message)

	f.clk.Set(t0.Add(48 * time.Hour))
	_, err = f.e.CancelBooking(ctx, 42, late.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	got, _ := f.store.Booking(late.ID)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestCancelBookingReleasesSeatsAndKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, 6, 7)
	_, err := f.e.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.e.CancelBooking(ctx, 42, b.ID)
	require.NoError(t, err)
	for _, id := range []uint64{6, 7} {
		s := f.seat(t, id)
		assert.Equal(t, model.SeatAvailable, s.Status)
		assert.Nil(t, s.BookingID)
	}
	got, _ := f.store.Booking(b.ID)
	assert.Equal(t, model.PaymentCanceled, got.PaymentStatus)
	assert.Equal(t, []string{"B1", "B2"}, got.Seats)

	_, err = f.e.CancelBooking(ctx, 42, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.e.ConfirmBooking(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelBookingOwnership(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 1)
	_, err := f.e.CancelBooking(context.Background(), 7, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.e.CancelBooking(context.Background(), 42, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseSeatsIsIdempotentAndSparesBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Selection: []string{"A1", "A2"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	b := f.book(t, 6)

	require.NoError(t, f.e.ReleaseSeats(ctx, 1, []uint64{1, 2, 6}))
	assert.Equal(t, model.SeatAvailable, f.seat(t, 1).Status)
	assert.Equal(t, model.SeatAvailable, f.seat(t, 2).Status)
	assert.Equal(t, model.SeatReserved, f.seat(t, 6).Status)
	assert.Equal(t, []string{lease.PaymentKey(1, b.ID)}, f.leases.Keys())

	require.NoError(t, f.e.ReleaseSeats(ctx, 1, []uint64{1, 2}))
	require.NoError(t, f.e.ReleaseSeats(ctx, 1, nil))
	assert.Equal(t, model.SeatAvailable, f.seat(t, 1).Status)
}

func TestReleaseSeatsRestoresLeasesOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Count: 1})
	require.NoError(t, err)
	require.True(t, res.OK)

	f.store.FailUpdateSeats = func(uint64, []uint64) error { return errors.New("deadlock") }
	err = f.e.ReleaseSeats(ctx, 1, []uint64{1})
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)
	assert.Equal(t, []string{lease.HoldKey(1, 1)}, f.leases.Keys())
}

func TestReleaseHoldChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Selection: []string{"A1", "A2"}})
	require.NoError(t, err)
	require.True(t, res.OK)

	err = f.e.ReleaseHold(ctx, 1, "someone-else", []uint64{1, 2})
	assert.ErrorIs(t, err, ErrForbidden)
	err = f.e.ReleaseHold(ctx, 1, res.HoldID, []uint64{1, 3})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)

	require.NoError(t, f.e.ReleaseHold(ctx, 1, res.HoldID, []uint64{1, 2}))
	assert.Equal(t, model.SeatAvailable, f.seat(t, 1).Status)
	assert.Empty(t, f.leases.Keys())

	assert.ErrorIs(t, f.e.ReleaseHold(ctx, 1, "", []uint64{1}), ErrValidation)
}

func TestReleaseExpiredOnlyTouchesThatHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Selection: []string{"A1"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, res.HoldID, f.seat(t, 1).HoldID)

	ok, err := f.e.ReleaseExpired(ctx, 1, 1, res.HoldID)
	require.NoError(t, err)
	assert.False(t, ok, "live hold")
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)

	f.clk.Set(t0.Add(5*time.Minute + 30*time.Second))
	ok, err = f.e.ReleaseExpired(ctx, 1, 1, "another-hold")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)
	assert.Len(t, f.leases.Keys(), 1)

	ok, err = f.e.ReleaseExpired(ctx, 1, 1, res.HoldID)
	require.NoError(t, err)
	assert.True(t, ok)
	s := f.seat(t, 1)
	assert.Equal(t, model.SeatAvailable, s.Status)
	assert.Empty(t, s.HoldID)
	assert.Empty(t, f.leases.Keys())

	ok, err = f.e.ReleaseExpired(ctx, 1, 1, res.HoldID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseExpiredRestoresLeaseOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.e.Hold(ctx, HoldRequest{ShowtimeID: 1, Selection: []string{"A1"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	f.clk.Set(t0.Add(5*time.Minute + 30*time.Second))

	f.store.FailUpdateSeats = func(uint64, []uint64) error { return errors.New("deadlock") }
	ok, err := f.e.ReleaseExpired(ctx, 1, 1, res.HoldID)
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, ok)
	assert.Equal(t, model.SeatHeld, f.seat(t, 1).Status)
	assert.Equal(t, []string{lease.HoldKey(1, 1)}, f.leases.Keys())
}

func TestExpireBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.book(t, 1)
	done := f.book(t, 3)
	_, err := f.e.ConfirmBooking(ctx, done.ID)
	require.NoError(t, err)

	ok, err := f.e.ExpireBooking(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := f.store.Booking(pending.ID)
	assert.Equal(t, model.PaymentCanceled, got.PaymentStatus)
	assert.Equal(t, model.SeatAvailable, f.seat(t, 1).Status)

	ok, err = f.e.ExpireBooking(ctx, done.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.SeatOccupied, f.seat(t, 3).Status)
	assert.Contains(t, f.pub.types(), queue.EventBookingExpired)
}

func TestListBookingsByShowtimeIsCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty, err := f.e.ListBookingsByShowtime(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.True(t, f.cache.has("bookings:showtime:1"))

	b := f.book(t, 1)
	assert.False(t, f.cache.has("bookings:showtime:1"))

	list, err := f.e.ListBookingsByShowtime(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	// Served from cache.
	hits := f.cache.setHits
	list, err = f.e.ListBookingsByShowtime(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, hits, f.cache.setHits)
}

func TestListBookingsFallsThroughOnCacheError(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1)
	f.cache.getErr = errors.New("redis down")
	list, err := f.e.ListBookingsByShowtime(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListBookingHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, 1)
	b := f.book(t, 3)
	f.book(t, 5)
	_, err := f.e.ConfirmBooking(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.e.CancelBooking(ctx, 42, b.ID)
	require.NoError(t, err)

	h, err := f.e.ListBookingHistory(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, h.Completed, 1)
	assert.Len(t, h.Canceled, 1)
	assert.Len(t, h.Pending, 1)

	h, err = f.e.ListBookingHistory(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, h.Completed)
	assert.NotNil(t, h.Completed)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	b := f.book(t, 1)
	_, err := f.e.ConfirmBooking(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := classify("op", cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal storage error", err.Error())

	var be *Error
	require.ErrorAs(t, error(newError(ErrConflict, "hold", "taken")), &be)
	assert.Equal(t, "hold", be.Op)
	assert.NotErrorIs(t, be, ErrStore)
}
