package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/handler"
	"github.com/iliyamo/game-rental-reservation/internal/middleware"
	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// RegisterAdmin registers staff-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/reservations/:id/complete", r.Complete)
}
