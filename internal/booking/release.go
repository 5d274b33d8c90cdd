package booking

import (
	"context"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// ReleaseSeats returns held seats of a showtime to the available pool and
// deletes their hold leases.  Seats that are not held (already released,
// reserved or occupied) are left alone, which makes the call idempotent
// and safe to race with CreateBooking.
//
// Leases go first.  While a seat is still held no other request can write
// its lease key, so the delete cannot remove a newer hold's lease.  If
// the seat update then fails the leases are restored so a later sweep
// retries.
func (e *Engine) ReleaseSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) error {
	const op = "release"
	if showtimeID == 0 {
		return newError(ErrValidation, op, "showtime id is required")
	}
	if len(seatIDs) == 0 {
		return nil
	}
	_, err := e.release(ctx, op, showtimeID, seatIDs, "")
	return err
}

// ReleaseHold releases seats on behalf of the customer who holds them.
// Every seat must still carry a hold lease written for holdID; otherwise
// nothing is released.
func (e *Engine) ReleaseHold(ctx context.Context, showtimeID uint64, holdID string, seatIDs []uint64) error {
	const op = "release"
	if holdID == "" {
		return newError(ErrValidation, op, "hold id is required")
	}
	if len(seatIDs) == 0 {
		return newError(ErrValidation, op, "no seats specified")
	}
	for _, id := range seatIDs {
		key := lease.HoldKey(showtimeID, id)
		raw, ok, err := e.leases.Get(ctx, key)
		if err != nil {
			return e.storeFailure(op, err)
		}
		if !ok {
			return newError(ErrNotFound, op, "hold not found or expired")
		}
		l, err := lease.Decode(key, raw)
		if err != nil || l.HoldID != holdID {
			return newError(ErrForbidden, op, "seat %d is not part of this hold", id)
		}
	}
	_, err := e.release(ctx, op, showtimeID, seatIDs, holdID)
	return err
}

// ReleaseExpired releases one seat whose hold lease for holdID has
// expired.  It reports false without touching anything when the lease is
// gone, still live, or now belongs to another hold.  The lease is removed
// only while it still holds the value that was checked and the seat only
// while the database still records holdID on it, so a pass working from a
// stale read can never free a seat somebody re-held in the meantime.
func (e *Engine) ReleaseExpired(ctx context.Context, showtimeID, seatID uint64, holdID string) (bool, error) {
	const op = "release"
	key := lease.HoldKey(showtimeID, seatID)
	raw, ok, err := e.leases.Get(ctx, key)
	if err != nil {
		return false, e.storeFailure(op, err)
	}
	if !ok {
		return false, nil
	}
	l, err := lease.Decode(key, raw)
	if err != nil {
		return false, newError(ErrValidation, op, "malformed lease %s", key)
	}
	if l.HoldID != holdID || !l.Expired(e.clock.Now()) {
		return false, nil
	}
	deleted, err := e.leases.DeleteIfEqual(ctx, key, raw)
	if err != nil {
		return false, e.storeFailure(op, err)
	}
	if !deleted {
		return false, nil
	}

	n, err := e.updateReleased(ctx, showtimeID, []uint64{seatID}, holdID)
	if err != nil {
		e.restoreLeases(ctx, op, map[string][]byte{key: raw})
		return false, e.storeFailure(op, err)
	}
	return n == 1, nil
}

// release frees held seats.  With a holdID only leases and seats still
// carrying that hold are touched; each lease is removed by compare and
// delete against the value read.
func (e *Engine) release(ctx context.Context, op string, showtimeID uint64, seatIDs []uint64, holdID string) (int64, error) {
	keys := lease.HoldKeys(showtimeID, seatIDs)
	saved := make(map[string][]byte, len(keys))
	for _, k := range keys {
		raw, ok, err := e.leases.Get(ctx, k)
		if err != nil {
			return 0, e.storeFailure(op, err)
		}
		if !ok {
			continue
		}
		if holdID != "" {
			if l, err := lease.Decode(k, raw); err != nil || l.HoldID != holdID {
				continue
			}
		}
		saved[k] = raw
	}

	if holdID == "" {
		if err := e.leases.Delete(ctx, keys...); err != nil {
			return 0, e.storeFailure(op, err)
		}
	} else {
		for k, raw := range saved {
			deleted, err := e.leases.DeleteIfEqual(ctx, k, raw)
			if err != nil {
				e.restoreLeases(ctx, op, saved)
				return 0, e.storeFailure(op, err)
			}
			if !deleted {
				delete(saved, k)
			}
		}
	}

	n, err := e.updateReleased(ctx, showtimeID, seatIDs, holdID)
	if err != nil {
		e.restoreLeases(ctx, op, saved)
		return 0, e.storeFailure(op, err)
	}
	return n, nil
}

func (e *Engine) updateReleased(ctx context.Context, showtimeID uint64, seatIDs []uint64, holdID string) (int64, error) {
	var n int64
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.UpdateSeats(ctx, showtimeID, seatIDs, repository.SeatPatch{
			Status:       model.SeatAvailable,
			ClearBooking: true,
			WhereStatus:  []model.SeatStatus{model.SeatHeld},
			WhereHoldID:  holdID,
		})
		return err
	})
	return n, err
}

func (e *Engine) restoreLeases(ctx context.Context, op string, saved map[string][]byte) {
	for k, raw := range saved {
		if err := e.leases.SetWithExpiry(ctx, k, raw, e.leaseTTL(e.cfg.HoldTTL)); err != nil {
			e.log.Errorj(log.JSON{"op": op, "msg": "lease restore failed", "key": k, "error": err.Error()})
		}
	}
}
