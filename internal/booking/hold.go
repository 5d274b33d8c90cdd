package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/allocator"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// HoldRequest asks for Count seats of a showtime, or for the seats named
// in Selection.  When both are given they must agree.
type HoldRequest struct {
	ShowtimeID uint64
	Count      int
	Selection  []string
}

// HoldResult is the outcome of Hold.  A request the allocator cannot
// satisfy is not an error: OK is false and Reason explains why.
type HoldResult struct {
	OK        bool         `json:"ok"`
	Seats     []model.Seat `json:"seats,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	HoldID    string       `json:"hold_id,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

// Hold allocates seats and marks them held for HoldTTL.  Seats move from
// available to held in one conditional update; if a concurrent request
// took any of them first, nothing is held and ErrConflict is returned.
// Leases are written once the transaction commits; should that fail the
// seats are released again so holds and leases never diverge.
func (e *Engine) Hold(ctx context.Context, req HoldRequest) (HoldResult, error) {
	const op = "hold"
	if req.ShowtimeID == 0 {
		return HoldResult{}, newError(ErrValidation, op, "showtime id is required")
	}
	if len(req.Selection) == 0 && req.Count <= 0 {
		return HoldResult{}, newError(ErrValidation, op, "seat count must be positive")
	}
	if len(req.Selection) > 0 && req.Count > 0 && req.Count != len(req.Selection) {
		return HoldResult{}, newError(ErrValidation, op, "seat count %d does not match %d selected seats", req.Count, len(req.Selection))
	}

	pool, err := e.store.FindSeats(ctx, repository.SeatFilter{
		ShowtimeID: req.ShowtimeID,
		Statuses:   []model.SeatStatus{model.SeatAvailable},
	})
	if err != nil {
		return HoldResult{}, e.storeFailure(op, err)
	}
	byID := make(map[uint64]model.Seat, len(pool))
	candidates := make([]allocator.Candidate, len(pool))
	for i, s := range pool {
		byID[s.ID] = s
		candidates[i] = allocator.Candidate{SeatID: s.ID, Code: s.Code()}
	}

	res := allocator.Allocate(candidates, req.Count, req.Selection)
	if !res.OK {
		return HoldResult{OK: false, Reason: res.Reason}, nil
	}
	ids := make([]uint64, len(res.Seats))
	for i, c := range res.Seats {
		ids[i] = c.SeatID
	}

	holdID := uuid.NewString()
	err = e.store.WithTx(ctx, func(tx repository.Tx) error {
		n, err := tx.UpdateSeats(ctx, req.ShowtimeID, ids, repository.SeatPatch{
			Status:      model.SeatHeld,
			HoldID:      holdID,
			WhereStatus: []model.SeatStatus{model.SeatAvailable},
		})
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return newError(ErrConflict, op, "some of the selected seats were just taken, please choose again")
		}
		return nil
	})
	if err != nil {
		return HoldResult{}, e.storeFailure(op, err)
	}

	now := e.clock.Now()
	expiresAt := now.Add(e.cfg.HoldTTL)
	value, err := lease.Encode(model.Lease{Phase: model.LeaseHold, HoldID: holdID, ExpiresAt: expiresAt})
	if err == nil {
		for _, id := range ids {
			if err = e.leases.SetWithExpiry(ctx, lease.HoldKey(req.ShowtimeID, id), value, e.leaseTTL(e.cfg.HoldTTL)); err != nil {
				break
			}
		}
	}
	if err != nil {
		e.log.Errorj(log.JSON{"op": op, "msg": "lease write failed, releasing hold", "showtime_id": req.ShowtimeID, "error": err.Error()})
		if _, rerr := e.release(ctx, op, req.ShowtimeID, ids, holdID); rerr != nil {
			e.log.Errorj(log.JSON{"op": op, "msg": "release after lease failure", "error": rerr.Error()})
		}
		return HoldResult{}, &Error{Kind: ErrStore, Op: op, Msg: "internal storage error", Err: err}
	}

	seats := make([]model.Seat, len(ids))
	for i, id := range ids {
		s := byID[id]
		s.Status = model.SeatHeld
		s.HoldID = holdID
		seats[i] = s
	}
	return HoldResult{OK: true, Seats: seats, HoldID: holdID, ExpiresAt: expiresAt}, nil
}
