package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
	"github.com/iliyamo/game-rental-reservation/internal/service"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	Users *repository.UserRepo
	Svc   *service.ReservationService
}

func NewUserHandler(users *repository.UserRepo, svc *service.ReservationService) *UserHandler {
	return &UserHandler{Users: users, Svc: svc}
}

type profileResp struct {
	User  model.User             `json:"user"`
	Stats model.ReservationStats `json:"stats"`
}

// Profile handles GET /v1/users/profile.
func (h *UserHandler) Profile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// the account itself
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "not_found", "user not found")
		}
		return respondError(c, err)
	}
	// per-status counts and total spent
	stats, err := h.Svc.Stats(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, profileResp{User: u, Stats: stats})
}
