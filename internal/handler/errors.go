package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/service"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string       `json:"error"`             // machine-readable code, e.g. date_fully_booked
	Message string       `json:"message"`           // human-readable text
	Details []fieldIssue `json:"details,omitempty"` // per-field validation failures
}

type fieldIssue struct {
	Field string `json:"field"`           // json name of the field
	Rule  string `json:"rule"`            // failed validator tag
	Param string `json:"param,omitempty"` // tag parameter, e.g. 500 for max=500
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Error: code, Message: msg})
}

// respondError maps a service error to its status code. Unknown errors
// are logged and reported as 500 without detail.
func respondError(c echo.Context, err error) error {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrInvalidDate):
		status, code = http.StatusBadRequest, "invalid_date"
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrDateFullyBooked):
		status, code = http.StatusConflict, "date_fully_booked"
	case errors.Is(err, service.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrAlreadyCancelled):
		status, code = http.StatusConflict, "already_cancelled"
	case errors.Is(err, service.ErrGameUnavailable):
		status, code = http.StatusConflict, "game_unavailable"
	default:
		// Unexpected: log with the request id, hide the detail from the client.
		slog.Error("request failed",
			"method", c.Request().Method, "path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID), "err", err)
		return fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
	return fail(c, status, code, err.Error())
}

// validationFailed renders the result of c.Validate.
func validationFailed(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fail(c, http.StatusBadRequest, "validation_error", err.Error())
	}
	details := make([]fieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldIssue{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return c.JSON(http.StatusBadRequest, errorBody{
		Error:   "validation_error",
		Message: "request validation failed",
		Details: details,
	})
}
