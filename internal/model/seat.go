package model

import (
	"errors"
	"strconv"
	"strings"
)

// SeatStatus is the allocation state of a seat for one showtime.  The
// value stored in screen_seats.status is the source of truth for
// allocation; leases only mirror it for the reclamation sweep.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatReserved  SeatStatus = "reserved"
	SeatOccupied  SeatStatus = "occupied"
)

// Valid reports whether s is one of the known seat states.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatHeld, SeatReserved, SeatOccupied:
		return true
	}
	return false
}

// Seat describes a seat of a screen as scheduled for a specific
// showtime.  Seats are positioned by a row label and a column number;
// the pair forms the seat code shown to customers (e.g. "A1").
//
// Fields:
//
//	ID         – screen_seats.seat_id.
//	ShowtimeID – screen_seats.showtime_id.
//	ScreenID   – screen that physically holds the seat.
//	Row        – screen_seats.seat_row, one or more letters.
//	Column     – screen_seats.seat_number, 1-based.
//	Status     – available, held, reserved or occupied.
//	BookingID  – booking currently owning the seat (nil when free or held).
//	HoldID     – hold that placed the seat on hold; empty unless held.
type Seat struct {
	ID         uint64     `json:"seat_id"`
	ShowtimeID uint64     `json:"showtime_id"`
	ScreenID   uint64     `json:"screen_id"`
	Row        string     `json:"row"`
	Column     int        `json:"column"`
	Status     SeatStatus `json:"status"`
	BookingID  *uint64    `json:"booking_id,omitempty"`
	HoldID     string     `json:"-"`
}

// Code returns the customer facing seat code, row followed by column.
func (s Seat) Code() string {
	return SeatCode(s.Row, s.Column)
}

// SeatCode formats a row label and column as a seat code.
func SeatCode(row string, column int) string {
	return row + strconv.Itoa(column)
}

// ErrInvalidSeatCode is returned by ParseSeatCode for malformed codes.
var ErrInvalidSeatCode = errors.New("invalid seat code")

// ParseSeatCode splits a seat code such as "B12" into its row label and
// column number.  Row labels are upper-cased ASCII letters; the column
// must be a positive integer.
func ParseSeatCode(code string) (string, int, error) {
	code = strings.TrimSpace(code)
	i := 0
	for i < len(code) && isLetter(code[i]) {
		i++
	}
	if i == 0 || i == len(code) {
		return "", 0, ErrInvalidSeatCode
	}
	col, err := strconv.Atoi(code[i:])
	if err != nil || col <= 0 {
		return "", 0, ErrInvalidSeatCode
	}
	return strings.ToUpper(code[:i]), col, nil
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
