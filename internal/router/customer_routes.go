package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/handler"
	"github.com/iliyamo/game-rental-reservation/internal/middleware"
	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// RegisterCustomer registers the reservation and profile endpoints under
// /v1. They require a valid JWT; ownership is checked by the service.
func RegisterCustomer(e *echo.Echo, r *handler.ReservationHandler, u *handler.UserHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	g.GET("/reservations", r.List)
	g.POST("/reservations", r.Create)
	g.GET("/reservations/:id", r.Get)
	g.PUT("/reservations/:id", r.Update)
	g.PATCH("/reservations/:id", r.Update)
	g.DELETE("/reservations/:id", r.Cancel)

	g.GET("/users/profile", u.Profile)
}
