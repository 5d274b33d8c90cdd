// Package sweeper reclaims seats whose hold expired and bookings whose
// payment window lapsed.  A pass scans the lease keys, so its cost is
// proportional to the number of outstanding leases, not to the number of
// seats.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// Releaser is the part of the booking engine the sweeper drives.
type Releaser interface {
	ReleaseExpired(ctx context.Context, showtimeID, seatID uint64, holdID string) (bool, error)
	ExpireBooking(ctx context.Context, bookingID uint64) (bool, error)
}

// Report counts what one pass did.
type Report struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Expired  int `json:"expired"`
	Failed   int `json:"failed"`
}

// Sweeper runs reclamation passes.
type Sweeper struct {
	leases lease.Store
	engine Releaser
	clock  clock.Clock
	log    *log.Logger
}

// New returns a sweeper.  A nil clock means the system clock and a nil
// logger a "sweeper" prefixed one.
func New(leases lease.Store, engine Releaser, c clock.Clock, logger *log.Logger) *Sweeper {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = log.New("sweeper")
	}
	return &Sweeper{leases: leases, engine: engine, clock: c, log: logger}
}

// SweepOnce releases every expired lease once.  A failure on one lease is
// logged and counted and the pass moves on; only a failed key scan aborts
// the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	var r Report
	now := s.clock.Now()

	holds, err := s.leases.ScanKeys(ctx, lease.HoldPrefix)
	if err != nil {
		return r, err
	}
	for _, key := range holds {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		r.Scanned++
		l, ok := s.expired(ctx, key, now, &r)
		if !ok {
			continue
		}
		released, err := s.engine.ReleaseExpired(ctx, l.ShowtimeID, l.SeatID, l.HoldID)
		if err != nil {
			r.Failed++
			s.log.Errorj(log.JSON{"msg": "release failed", "key": key, "error": err.Error()})
			continue
		}
		if released {
			r.Released++
		}
	}

	payments, err := s.leases.ScanKeys(ctx, lease.PaymentPrefix)
	if err != nil {
		return r, err
	}
	for _, key := range payments {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		r.Scanned++
		l, ok := s.expired(ctx, key, now, &r)
		if !ok {
			continue
		}
		expired, err := s.engine.ExpireBooking(ctx, l.BookingID)
		if err != nil && !errors.Is(err, booking.ErrNotFound) {
			r.Failed++
			s.log.Errorj(log.JSON{"msg": "expire failed", "key": key, "error": err.Error()})
			continue
		}
		if err := s.leases.Delete(ctx, key); err != nil {
			s.log.Warnj(log.JSON{"msg": "lease delete failed", "key": key, "error": err.Error()})
		}
		if expired {
			r.Expired++
		}
	}

	if r.Released > 0 || r.Expired > 0 || r.Failed > 0 {
		s.log.Infoj(log.JSON{"msg": "sweep done", "scanned": r.Scanned, "released": r.Released, "expired": r.Expired, "failed": r.Failed})
	}
	return r, nil
}

// expired loads the lease under key and reports whether it is due.
// Malformed leases are counted as failures and left in place for an
// operator to inspect; their TTL removes them eventually.
func (s *Sweeper) expired(ctx context.Context, key string, now time.Time, r *Report) (model.Lease, bool) {
	raw, ok, err := s.leases.Get(ctx, key)
	if err != nil {
		r.Failed++
		s.log.Errorj(log.JSON{"msg": "lease read failed", "key": key, "error": err.Error()})
		return model.Lease{}, false
	}
	if !ok {
		return model.Lease{}, false
	}
	l, err := lease.Decode(key, raw)
	if err != nil {
		r.Failed++
		s.log.Warnj(log.JSON{"msg": "skipping malformed lease", "key": key, "error": err.Error()})
		return model.Lease{}, false
	}
	return l, l.Expired(now)
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Infof("reclamation sweep every %s", interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reclamation sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Errorf("sweep failed: %v", err)
			}
		}
	}
}
