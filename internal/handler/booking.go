package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// BookingService is the part of the booking engine exposed over HTTP.
type BookingService interface {
	Hold(ctx context.Context, req booking.HoldRequest) (booking.HoldResult, error)
	ReleaseHold(ctx context.Context, showtimeID uint64, holdID string, seatIDs []uint64) error
	CreateBooking(ctx context.Context, req booking.CreateBookingRequest) (*model.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID uint64) (booking.Result, error)
	CancelBooking(ctx context.Context, userID, bookingID uint64) (booking.CancelResult, error)
	ListBookingsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Booking, error)
	ListBookingHistory(ctx context.Context, userID uint64) (model.BookingHistory, error)
}

// BookingHandler serves the /v1/bookings endpoints.  All methods assume
// JWTAuth already ran; a missing or malformed user id yields 401.
type BookingHandler struct {
	Bookings BookingService
}

// NewBookingHandler panics when svc is nil.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc}
}

type holdRequest struct {
	Count int      `json:"count"`
	Seats []string `json:"seats"`
}

type releaseRequest struct {
	HoldID  string   `json:"hold_id"`
	SeatIDs []uint64 `json:"seat_ids"`
}

type createRequest struct {
	SeatIDs         []uint64 `json:"seat_ids"`
	TotalPriceCents int64    `json:"total_price_cents"`
}

// Hold handles POST /v1/bookings/hold/:showtimeId.  The body carries
// either a seat count, a list of seat codes, or both.  A request the
// allocator cannot satisfy is answered with 422 and the reason.
func (h *BookingHandler) Hold(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "showtimeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Bookings.Hold(c.Request().Context(), booking.HoldRequest{
		ShowtimeID: showtimeID,
		Count:      req.Count,
		Selection:  req.Seats,
	})
	if err != nil {
		return writeError(c, err)
	}
	if !res.OK {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}
	return c.JSON(http.StatusCreated, res)
}

// Release handles DELETE /v1/bookings/hold/:showtimeId and gives held
// seats back before their hold expires.
func (h *BookingHandler) Release(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "showtimeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Bookings.ReleaseHold(c.Request().Context(), showtimeID, req.HoldID, req.SeatIDs); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, booking.Result{OK: true, Message: "Seats released."})
}

// Create handles POST /v1/bookings/new/:showtimeId.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "showtimeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.Bookings.CreateBooking(c.Request().Context(), booking.CreateBookingRequest{
		ShowtimeID:      showtimeID,
		UserID:          userID,
		SeatIDs:         req.SeatIDs,
		TotalPriceCents: req.TotalPriceCents,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Confirm handles POST /v1/bookings/confirm/:bookingId.  It is called by
// the payment flow, so the route is restricted to admins.
func (h *BookingHandler) Confirm(c echo.Context) error {
	bookingID, ok := pathID(c, "bookingId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	res, err := h.Bookings.ConfirmBooking(c.Request().Context(), bookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/bookings/cancel/:bookingId for the booking's
// owner.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "bookingId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	res, err := h.Bookings.CancelBooking(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListByShowtime handles GET /v1/bookings/all/:showtimeId.
func (h *BookingHandler) ListByShowtime(c echo.Context) error {
	showtimeID, ok := pathID(c, "showtimeId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	list, err := h.Bookings.ListBookingsByShowtime(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Own handles GET /v1/bookings/own and returns the caller's bookings
// grouped by payment status.
func (h *BookingHandler) Own(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hist, err := h.Bookings.ListBookingHistory(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hist)
}

// writeError maps an engine error kind onto an HTTP status.  Storage
// failures are reported without detail; the engine already logged them.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrAllocation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		return c.JSON(status, echo.Map{"error": "internal server error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// getUserID extracts the user_id set by JWTAuth.  JSON numbers decode as
// float64, string subjects are parsed.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}
