// Package lease stores the short lived, advisory claims that mirror seat
// holds and pending payments into a TTL key-value store.  Leases never
// decide who gets a seat (the relational store does); they let the
// reclamation sweep find holds that were abandoned.
package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Store is the contract of the external TTL store.
type Store interface {
	// SetWithExpiry writes value under key; the key disappears after ttl.
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes the keys.  Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// DeleteIfEqual removes key only while it still holds value and
	// reports whether it did.
	DeleteIfEqual(ctx context.Context, key string, value []byte) (bool, error)
	// ScanKeys lists every key starting with prefix.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
}

// Key prefixes.  The hold layout matches the keys written by earlier
// versions of the service so leases survive a rolling deploy.
const (
	HoldPrefix    = "hold:showtime:"
	PaymentPrefix = "pending:showtime:"
)

// ErrMalformed is returned when a key or value cannot be decoded.
var ErrMalformed = errors.New("malformed lease")

// HoldKey is the key of the hold lease for one seat of a showtime.
func HoldKey(showtimeID, seatID uint64) string {
	return fmt.Sprintf("%s%d:seats:%d", HoldPrefix, showtimeID, seatID)
}

// PaymentKey is the key of the pending-payment lease of a booking.
func PaymentKey(showtimeID, bookingID uint64) string {
	return fmt.Sprintf("%s%d:booking:%d", PaymentPrefix, showtimeID, bookingID)
}

// HoldKeys returns the hold keys of several seats of one showtime.
func HoldKeys(showtimeID uint64, seatIDs []uint64) []string {
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = HoldKey(showtimeID, id)
	}
	return keys
}

// ParseHoldKey extracts the showtime and seat ids from a hold key.
func ParseHoldKey(key string) (showtimeID, seatID uint64, err error) {
	return parseKey(key, "hold", "seats")
}

// ParsePaymentKey extracts the showtime and booking ids from a payment key.
func ParsePaymentKey(key string) (showtimeID, bookingID uint64, err error) {
	return parseKey(key, "pending", "booking")
}

// parseKey accepts "<head>:showtime:<id>:<kind>:<id>".
func parseKey(key, head, kind string) (uint64, uint64, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != head || parts[1] != "showtime" || parts[3] != kind {
		return 0, 0, fmt.Errorf("%w: key %q", ErrMalformed, key)
	}
	a, errA := strconv.ParseUint(parts[2], 10, 64)
	b, errB := strconv.ParseUint(parts[4], 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, fmt.Errorf("%w: key %q", ErrMalformed, key)
	}
	return a, b, nil
}

// value is the JSON document stored under a lease key.
type value struct {
	ExpiresAt time.Time `json:"expires_at"`
	HoldID    string    `json:"hold_id,omitempty"`
	Phase     string    `json:"phase"`
}

// Encode serialises the parts of l that are not already in its key.
func Encode(l model.Lease) ([]byte, error) {
	return json.Marshal(value{ExpiresAt: l.ExpiresAt.UTC(), HoldID: l.HoldID, Phase: l.Phase})
}

// Decode rebuilds a lease from its key and stored value.
func Decode(key string, raw []byte) (model.Lease, error) {
	var v value
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Lease{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	l := model.Lease{Phase: v.Phase, HoldID: v.HoldID, ExpiresAt: v.ExpiresAt}
	var err error
	switch {
	case strings.HasPrefix(key, HoldPrefix):
		l.ShowtimeID, l.SeatID, err = ParseHoldKey(key)
		if l.Phase == "" {
			l.Phase = model.LeaseHold
		}
	case strings.HasPrefix(key, PaymentPrefix):
		l.ShowtimeID, l.BookingID, err = ParsePaymentKey(key)
		if l.Phase == "" {
			l.Phase = model.LeasePayment
		}
	default:
		err = fmt.Errorf("%w: key %q", ErrMalformed, key)
	}
	if err != nil {
		return model.Lease{}, err
	}
	if l.ExpiresAt.IsZero() {
		return model.Lease{}, fmt.Errorf("%w: no expiry under %q", ErrMalformed, key)
	}
	return l, nil
}
