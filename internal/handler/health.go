package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency and returns nil when it is usable.
type Check func(ctx context.Context) error

// Health returns the health-check endpoint used by load balancers.  Every
// check runs with a short deadline; when all pass the response is a plain
// text "ok" with 200, otherwise 503 lists the failing dependencies.
func Health(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "failed": failed})
		}
		return c.String(http.StatusOK, "ok")
	}
}
