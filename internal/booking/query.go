package booking

import (
	"context"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// ListBookingsByShowtime returns every booking of a showtime, newest first.
// Results are cached for ListCacheTTL and dropped on any mutation.
func (e *Engine) ListBookingsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error) {
	const op = "list_showtime"
	if showtimeID == 0 {
		return nil, newError(ErrValidation, op, "showtime id is required")
	}
	key := cache.ShowtimeBookingsKey(showtimeID)
	var out []model.Booking
	if e.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := e.store.ListBookingsByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, e.storeFailure(op, err)
	}
	if out == nil {
		out = []model.Booking{}
	}
	e.fill(ctx, key, out)
	return out, nil
}

// ListBookingHistory returns a user's bookings grouped by payment status.
func (e *Engine) ListBookingHistory(ctx context.Context, userID uint64) (model.BookingHistory, error) {
	const op = "history"
	if userID == 0 {
		return model.BookingHistory{}, newError(ErrValidation, op, "user id is required")
	}
	key := cache.UserBookingsKey(userID)
	var h model.BookingHistory
	if e.cached(ctx, key, &h) {
		return h, nil
	}
	bookings, err := e.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return model.BookingHistory{}, e.storeFailure(op, err)
	}
	h = model.GroupHistory(bookings)
	e.fill(ctx, key, h)
	return h, nil
}

// cached reads key into dst.  Cache errors count as a miss.
func (e *Engine) cached(ctx context.Context, key string, dst any) bool {
	hit, err := e.cache.Get(ctx, key, dst)
	if err != nil {
		e.log.Warnj(log.JSON{"msg": "cache read failed", "key": key, "error": err.Error()})
		return false
	}
	return hit
}

func (e *Engine) fill(ctx context.Context, key string, v any) {
	if err := e.cache.Set(ctx, key, v, e.cfg.ListCacheTTL); err != nil {
		e.log.Warnj(log.JSON{"msg": "cache write failed", "key": key, "error": err.Error()})
	}
}
