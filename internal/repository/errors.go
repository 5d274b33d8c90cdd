// Package repository persists seats, bookings and showtimes.  Every
// lifecycle operation runs inside one transaction obtained from
// Store.WithTx; reads that only feed a listing use the Store directly.
//
// The sentinel values below let higher layers distinguish failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a booking or showtime does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.  Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a seat that was taken by a concurrent
// transaction.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
