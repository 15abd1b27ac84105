package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sqlx.DB and *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is a liveness check for load balancers. It returns "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Readiness reports whether the database answers a ping within two seconds.
func Readiness(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error", "database": "unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "ok"})
	}
}
