package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
	"github.com/iliyamo/game-rental-reservation/internal/service"
)

// GameHandler serves the public catalog and availability endpoints.
type GameHandler struct {
	Games        *repository.GameRepo        // catalog reads
	Reservations *service.ReservationService // availability and reserved dates
}

func NewGameHandler(games *repository.GameRepo, svc *service.ReservationService) *GameHandler {
	return &GameHandler{Games: games, Reservations: svc}
}

type gameDetail struct {
	model.Game
	ReservedDates []model.Date `json:"reserved_dates"` // days from today with an active reservation
}

type calendarResp struct {
	GameID uint64                 `json:"game_id"`
	From   model.Date             `json:"from"`
	To     model.Date             `json:"to"`
	Days   []service.Availability `json:"days"`
}

// List handles GET /v1/games?category=.
func (h *GameHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	games, err := h.Games.ListAvailable(ctx, c.QueryParam("category"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"games": games, "count": len(games)})
}

// Get handles GET /v1/games/:id. Unsellable games are hidden.
func (h *GameHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid game id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// load the game with images and rules
	g, err := h.Games.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondError(c, service.ErrGameNotFound)
		}
		return respondError(c, err)
	}
	// games that are not sellable are hidden from the public catalog
	if !g.Available {
		return respondError(c, service.ErrGameNotFound)
	}
	days, err := h.Reservations.ReservedDates(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, gameDetail{Game: g, ReservedDates: days})
}

// Availability handles GET /v1/games/:id/availability?date=YYYY-MM-DD.
func (h *GameHandler) Availability(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid game id")
	}
	day, err := queryDate(c, "date")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	a, err := h.Reservations.Availability(ctx, id, day)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Calendar handles GET /v1/games/:id/calendar?from=&to=.
func (h *GameHandler) Calendar(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid game id")
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return respondError(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	days, err := h.Reservations.Calendar(ctx, id, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, calendarResp{GameID: id, From: from, To: to, Days: days})
}

func queryDate(c echo.Context, name string) (model.Date, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return model.Date{}, fmt.Errorf("%w: %s is required", service.ErrValidation, name)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %s: %v", service.ErrInvalidDate, name, err)
	}
	return d, nil
}
