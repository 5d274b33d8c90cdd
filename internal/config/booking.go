package config

import "time"

// BookingConfig carries the timing rules of the booking lifecycle.
type BookingConfig struct {
	HoldTTL       time.Duration // how long a hold reserves seats
	LeaseSkew     time.Duration // extra lifetime of a lease key past its recorded expiry
	PaymentTTL    time.Duration // how long a booking may stay PENDING
	RefundPolicy  time.Duration // minimum lead time before the show for a full refund
	SweepInterval time.Duration // period of the reclamation sweep
}

// LoadBookingConfig reads the booking settings.  REFUND_POLICY_HOURS is a
// number of hours and may be fractional; everything else is a Go duration.
func LoadBookingConfig() BookingConfig {
	c := BookingConfig{
		HoldTTL:       envDur("HOLD_TTL", 5*time.Minute),
		LeaseSkew:     envDur("HOLD_LEASE_SKEW", time.Minute),
		PaymentTTL:    envDur("PAYMENT_TTL", 30*time.Minute),
		RefundPolicy:  time.Duration(envFloat("REFUND_POLICY_HOURS", 24) * float64(time.Hour)),
		SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),
	}
	if c.HoldTTL <= 0 {
		c.HoldTTL = 5 * time.Minute
	}
	if c.LeaseSkew < 0 {
		c.LeaseSkew = 0
	}
	if c.PaymentTTL <= 0 {
		c.PaymentTTL = 30 * time.Minute
	}
	if c.RefundPolicy < 0 {
		c.RefundPolicy = 0
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}
