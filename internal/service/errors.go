package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// Every reservation operation fails with one of these (possibly wrapped
// with detail). Callers match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrGameNotFound        = fmt.Errorf("game %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrForbidden           = errors.New("reservation belongs to another user")
	ErrInvalidDate         = errors.New("invalid date")
	ErrDateFullyBooked     = errors.New("date fully booked")
	ErrGameUnavailable     = errors.New("game is not available for rental")
	ErrValidation          = errors.New("validation failed")

	ErrInvalidTransition = model.ErrInvalidTransition
	ErrAlreadyCancelled  = model.ErrAlreadyCancelled
)
