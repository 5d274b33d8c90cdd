package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterBookings registers the booking endpoints under /v1/bookings.
// Every route requires a valid access token.  Holding seats is rate
// limited by holdLimit; confirmation is reserved for admins because it is
// driven by the payment flow, not by customers.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, holdLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin))

	g.POST("/hold/:showtimeId", h.Hold, holdLimit)
	g.DELETE("/hold/:showtimeId", h.Release)
	g.POST("/new/:showtimeId", h.Create)
	g.POST("/cancel/:bookingId", h.Cancel)
	g.GET("/all/:showtimeId", h.ListByShowtime)
	g.GET("/own", h.Own)
	g.POST("/confirm/:bookingId", h.Confirm, middleware.RequireRole(middleware.RoleAdmin))
}
