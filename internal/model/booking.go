package model

import "time"

// PaymentStatus tracks the lifecycle of a booking.  A booking starts as
// PENDING, becomes COMPLETED once payment is confirmed and may be
// CANCELED from either state.  CANCELED is terminal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentCanceled  PaymentStatus = "CANCELED"
)

// CanTransition reports whether a booking in status p may move to next.
func (p PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch p {
	case PaymentPending:
		return next == PaymentCompleted || next == PaymentCanceled
	case PaymentCompleted:
		return next == PaymentCanceled
	}
	return false
}

// Booking is a durable claim of one user on a set of seats of a
// showtime.  Seats holds the seat codes captured when the booking was
// written; the list is never modified afterwards, even when the seats
// are released by a cancellation.
//
// Fields:
//
//	ID              – bookings.booking_id.
//	ShowtimeID      – showtime the seats belong to.
//	UserID          – customer who owns the booking.
//	Seats           – immutable snapshot of seat codes.
//	TotalPriceCents – total price in cents, never negative.
//	PaymentStatus   – PENDING, COMPLETED or CANCELED.
//	CreatedAt       – creation timestamp (UTC).
//	UpdatedAt       – last status change (UTC).
type Booking struct {
	ID              uint64        `json:"booking_id"`
	ShowtimeID      uint64        `json:"showtime_id"`
	UserID          uint64        `json:"user_id"`
	Seats           []string      `json:"seats"`
	TotalPriceCents int64         `json:"total_price_cents"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BookingHistory groups a user's bookings by payment status.
type BookingHistory struct {
	Completed []Booking `json:"completed"`
	Canceled  []Booking `json:"canceled"`
	Pending   []Booking `json:"pending"`
}

// GroupHistory splits bookings into a BookingHistory, preserving order
// inside each group.  The groups are never nil so they encode as [].
func GroupHistory(bookings []Booking) BookingHistory {
	h := BookingHistory{
		Completed: []Booking{},
		Canceled:  []Booking{},
		Pending:   []Booking{},
	}
	for _, b := range bookings {
		switch b.PaymentStatus {
		case PaymentCompleted:
			h.Completed = append(h.Completed, b)
		case PaymentCanceled:
			h.Canceled = append(h.Canceled, b)
		default:
			h.Pending = append(h.Pending, b)
		}
	}
	return h
}
