package booking

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// CreateBookingRequest turns seats (normally held by the caller) into a
// PENDING booking.
type CreateBookingRequest struct {
	ShowtimeID      uint64
	UserID          uint64
	SeatIDs         []uint64
	TotalPriceCents int64
}

// Result is returned by the transitions that only report success.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// CancelResult reports a cancellation and the amount to refund.
type CancelResult struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	RefundCents int64  `json:"refund_cents"`
}

func (r CreateBookingRequest) validate() error {
	const op = "create"
	switch {
	case r.ShowtimeID == 0:
		return newError(ErrValidation, op, "showtime id is required")
	case r.UserID == 0:
		return newError(ErrValidation, op, "user id is required")
	case len(r.SeatIDs) == 0:
		return newError(ErrValidation, op, "no seats specified")
	case r.TotalPriceCents < 0:
		return newError(ErrValidation, op, "total price must not be negative")
	}
	seen := make(map[uint64]bool, len(r.SeatIDs))
	for _, id := range r.SeatIDs {
		if id == 0 || seen[id] {
			return newError(ErrValidation, op, "seat ids must be unique and non-zero")
		}
		seen[id] = true
	}
	return nil
}

// CreateBooking writes a PENDING booking for the requested seats and marks
// them reserved.  Seats already reserved or occupied fail the whole
// request with ErrConflict; unknown seat ids fail it with ErrNotFound.
// The seat codes are captured into the booking and never change again.
// The booking must be confirmed within PaymentTTL or the sweep expires it.
func (e *Engine) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	const op = "create"
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := e.clock.Now()
	var b model.Booking

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		seats, err := tx.FindSeats(ctx, repository.SeatFilter{ShowtimeID: req.ShowtimeID, SeatIDs: req.SeatIDs}, true)
		if err != nil {
			return err
		}
		if len(seats) != len(req.SeatIDs) {
			return newError(ErrNotFound, op, "some seats are invalid")
		}
		var taken, codes []string
		for _, s := range seats {
			codes = append(codes, s.Code())
			if s.Status == model.SeatReserved || s.Status == model.SeatOccupied {
				taken = append(taken, s.Code())
			}
		}
		if len(taken) > 0 {
			return newError(ErrConflict, op, "seats not available: %s", strings.Join(taken, ", "))
		}

		b = model.Booking{
			ShowtimeID:      req.ShowtimeID,
			UserID:          req.UserID,
			Seats:           codes,
			TotalPriceCents: req.TotalPriceCents,
			PaymentStatus:   model.PaymentPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateBooking(ctx, &b); err != nil {
			return err
		}
		n, err := tx.UpdateSeats(ctx, req.ShowtimeID, req.SeatIDs, repository.SeatPatch{
			Status:      model.SeatReserved,
			BookingID:   &b.ID,
			WhereStatus: []model.SeatStatus{model.SeatAvailable, model.SeatHeld},
		})
		if err != nil {
			return err
		}
		if n != int64(len(req.SeatIDs)) {
			return newError(ErrConflict, op, "seats were taken concurrently, please retry")
		}
		return nil
	})
	if err != nil {
		return nil, e.storeFailure(op, err)
	}

	e.dropLeases(ctx, lease.HoldKeys(req.ShowtimeID, req.SeatIDs)...)
	e.writePaymentLease(ctx, b, now)
	e.invalidate(ctx, cache.ShowtimeBookingsKey(b.ShowtimeID), cache.UserBookingsKey(b.UserID))
	e.publish(ctx, bookingEvent(queue.EventBookingCreated, b, now))
	return &b, nil
}

func (e *Engine) writePaymentLease(ctx context.Context, b model.Booking, now time.Time) {
	l := model.Lease{Phase: model.LeasePayment, ShowtimeID: b.ShowtimeID, BookingID: b.ID, ExpiresAt: now.Add(e.cfg.PaymentTTL)}
	value, err := lease.Encode(l)
	if err == nil {
		err = e.leases.SetWithExpiry(ctx, lease.PaymentKey(b.ShowtimeID, b.ID), value, e.leaseTTL(e.cfg.PaymentTTL))
	}
	if err != nil {
		e.log.Warnj(log.JSON{"msg": "payment lease write failed", "booking_id": b.ID, "error": err.Error()})
	}
}

// ConfirmBooking marks a PENDING booking COMPLETED and its seats occupied.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID uint64) (Result, error) {
	const op = "confirm"
	if bookingID == 0 {
		return Result{}, newError(ErrValidation, op, "booking id is required")
	}
	now := e.clock.Now()
	var b *model.Booking

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		b, err = tx.FindBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		if b.PaymentStatus != model.PaymentPending {
			return newError(ErrInvalidState, op, "booking is not in a valid state for confirmation")
		}
		if err := tx.UpdateBooking(ctx, b.ID, repository.BookingPatch{PaymentStatus: model.PaymentCompleted, UpdatedAt: now}); err != nil {
			return err
		}
		_, err = tx.UpdateSeats(ctx, b.ShowtimeID, nil, repository.SeatPatch{
			Status:         model.SeatOccupied,
			WhereStatus:    []model.SeatStatus{model.SeatReserved},
			WhereBookingID: &b.ID,
		})
		return err
	})
	if err != nil {
		return Result{}, e.storeFailure(op, err)
	}

	b.PaymentStatus = model.PaymentCompleted
	b.UpdatedAt = now
	e.dropLeases(ctx, lease.PaymentKey(b.ShowtimeID, b.ID))
	e.invalidate(ctx, cache.ShowtimeBookingsKey(b.ShowtimeID), cache.UserBookingsKey(b.UserID))
	e.publish(ctx, bookingEvent(queue.EventBookingConfirmed, *b, now))
	return Result{OK: true, Message: "Booking COMPLETED successfully."}, nil
}

// CancelBooking cancels a booking on behalf of its owner and frees its
// seats.  The refund is the full price when the showtime starts at least
// RefundPolicy from now, and nothing otherwise.  Showtimes that already
// started cannot be cancelled.
func (e *Engine) CancelBooking(ctx context.Context, userID, bookingID uint64) (CancelResult, error) {
	const op = "cancel"
	if bookingID == 0 || userID == 0 {
		return CancelResult{}, newError(ErrValidation, op, "booking id and user id are required")
	}
	now := e.clock.Now()
	var (
		b      *model.Booking
		refund int64
	)

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		b, err = tx.FindBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return newError(ErrForbidden, op, "booking does not belong to this user")
		}
		if b.PaymentStatus == model.PaymentCanceled {
			return newError(ErrInvalidState, op, "booking is already canceled")
		}
		st, err := tx.GetShowtime(ctx, b.ShowtimeID)
		if err != nil {
			return err
		}
		until := st.StartsAt.Sub(now)
		if until <= 0 {
			return newError(ErrInvalidState, op, "showtime has already started")
		}
		if until >= e.cfg.RefundPolicy {
			refund = b.TotalPriceCents
		}
		return e.cancelTx(ctx, tx, b, now)
	})
	if err != nil {
		return CancelResult{}, e.storeFailure(op, err)
	}

	e.afterCancel(ctx, *b, queue.EventBookingCanceled, refund, now)
	return CancelResult{OK: true, Message: "Booking CANCELED successfully.", RefundCents: refund}, nil
}

// ExpireBooking cancels a booking whose payment window lapsed.  Only
// PENDING bookings are affected; for any other state it reports false.
func (e *Engine) ExpireBooking(ctx context.Context, bookingID uint64) (bool, error) {
	const op = "expire"
	now := e.clock.Now()
	var (
		b       *model.Booking
		expired bool
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		b, err = tx.FindBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		if b.PaymentStatus != model.PaymentPending {
			return nil
		}
		expired = true
		return e.cancelTx(ctx, tx, b, now)
	})
	if err != nil {
		return false, e.storeFailure(op, err)
	}
	if !expired {
		e.dropLeases(ctx, lease.PaymentKey(b.ShowtimeID, b.ID))
		return false, nil
	}
	e.afterCancel(ctx, *b, queue.EventBookingExpired, 0, now)
	return true, nil
}

// cancelTx marks b CANCELED and frees every seat it owns.
func (e *Engine) cancelTx(ctx context.Context, tx repository.Tx, b *model.Booking, now time.Time) error {
	if err := tx.UpdateBooking(ctx, b.ID, repository.BookingPatch{PaymentStatus: model.PaymentCanceled, UpdatedAt: now}); err != nil {
		return err
	}
	_, err := tx.UpdateSeats(ctx, b.ShowtimeID, nil, repository.SeatPatch{
		Status:         model.SeatAvailable,
		ClearBooking:   true,
		WhereBookingID: &b.ID,
	})
	return err
}

func (e *Engine) afterCancel(ctx context.Context, b model.Booking, eventType string, refund int64, now time.Time) {
	b.PaymentStatus = model.PaymentCanceled
	b.UpdatedAt = now
	e.dropLeases(ctx, lease.PaymentKey(b.ShowtimeID, b.ID))
	e.invalidate(ctx, cache.ShowtimeBookingsKey(b.ShowtimeID), cache.UserBookingsKey(b.UserID))
	ev := bookingEvent(eventType, b, now)
	ev.RefundCents = refund
	e.publish(ctx, ev)
}

func bookingEvent(typ string, b model.Booking, now time.Time) queue.BookingEvent {
	ev := queue.NewBookingEvent(typ, now)
	ev.BookingID = b.ID
	ev.ShowtimeID = b.ShowtimeID
	ev.UserID = b.UserID
	ev.Seats = append([]string(nil), b.Seats...)
	ev.TotalPriceCents = b.TotalPriceCents
	return ev
}
