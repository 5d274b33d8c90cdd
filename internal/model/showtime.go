package model

import "time"

// Showtime is the scheduling data the booking engine reads to apply the
// refund policy.  Showtimes are authored elsewhere; this service only
// reads them.
type Showtime struct {
	ID       uint64    // showtimes.showtime_id
	ScreenID uint64    // showtimes.screen_id
	StartsAt time.Time // showtimes.starts_at (UTC)
}

// Lease phases.  A hold lease covers the few minutes a customer needs to
// decide; a payment lease covers the pending-payment window of a booking.
const (
	LeaseHold    = "hold"
	LeasePayment = "payment"
)

// Lease is an advisory, time bounded claim mirrored into the TTL store.
// It never decides allocation; it only drives the reclamation sweep.
type Lease struct {
	ShowtimeID uint64
	SeatID     uint64 // set for hold leases
	BookingID  uint64 // set for payment leases
	Phase      string
	HoldID     string
	ExpiresAt  time.Time
}

// Expired reports whether the lease expiry is at or before now.
func (l Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
