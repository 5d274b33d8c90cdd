// Package queue carries booking lifecycle events over RabbitMQ.  The
// publisher is fire-and-forget from the engine's point of view; the
// consumer appends every event to an audit log.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCanceled  = "booking.canceled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is published after every committed booking transition.  It
// contains enough information for downstream consumers to log, notify or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	ID              string   `json:"event_id"`
	Type            string   `json:"type"`
	BookingID       uint64   `json:"booking_id"`
	ShowtimeID      uint64   `json:"showtime_id"`
	UserID          uint64   `json:"user_id"`
	Seats           []string `json:"seats"`
	TotalPriceCents int64    `json:"total_price_cents"`
	RefundCents     int64    `json:"refund_cents,omitempty"`
	OccurredAt      string   `json:"occurred_at"`
}

// NewBookingEvent stamps an event with a fresh id and the given time.
func NewBookingEvent(typ string, at time.Time) BookingEvent {
	return BookingEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

// Line renders the event as one human-friendly log line, newline included.
func (ev BookingEvent) Line() string {
	seats := "[]"
	if len(ev.Seats) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(ev.Seats, ","))
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | showtime_id=%d | total=%d cents | seats=%s",
		ev.OccurredAt, ev.Type, ev.BookingID, ev.UserID, ev.ShowtimeID, ev.TotalPriceCents, seats)
	if ev.Type == EventBookingCanceled {
		line += fmt.Sprintf(" | refund=%d cents", ev.RefundCents)
	}
	return line + "\n"
}
