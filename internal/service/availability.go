package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
)

// Availability is the stock picture for one game on one day.
type Availability struct {
	GameID         uint64     `json:"game_id"`
	Date           model.Date `json:"date"`
	Available      bool       `json:"available"`       // a unit is free and the day is not past
	TotalStock     int        `json:"total_stock"`     // game stock
	ReservedCount  int        `json:"reserved_count"`  // active reservations on Date
	AvailableStock int        `json:"available_stock"` // max(0, TotalStock-ReservedCount)
}

// Availability reports how many units of a sellable game are free on day.
// Past days are never available but still report their counts.
func (s *ReservationService) Availability(ctx context.Context, gameID uint64, day model.Date) (Availability, error) {
	if day.IsZero() {
		return Availability{}, fmt.Errorf("%w: date is required", ErrValidation)
	}
	game, err := s.sellableGame(ctx, gameID)
	if err != nil {
		return Availability{}, err
	}
	// Lock-free read; the answer may be stale by the time a create runs.
	n, err := s.reservations.CountActive(ctx, game.ID, day)
	if err != nil {
		return Availability{}, fmt.Errorf("count active: %w", err)
	}
	return s.availabilityOf(game, day, n), nil
}

// Calendar reports availability for every day in [from, to].
func (s *ReservationService) Calendar(ctx context.Context, gameID uint64, from, to model.Date) ([]Availability, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", ErrValidation)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", ErrValidation)
	}
	// The range is inclusive on both ends.
	days := from.DaysUntil(to) + 1
	if days > s.maxCalendarDays {
		return nil, fmt.Errorf("%w: range spans %d days, at most %d allowed", ErrValidation, days, s.maxCalendarDays)
	}
	game, err := s.sellableGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	// One grouped query; days without reservations are absent from the map.
	counts, err := s.reservations.CountActiveRange(ctx, game.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count active range: %w", err)
	}
	out := make([]Availability, 0, days)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, s.availabilityOf(game, d, counts[d]))
	}
	return out, nil
}

// ReservedDates lists the days from today on that have at least one
// active reservation for the game.
func (s *ReservationService) ReservedDates(ctx context.Context, gameID uint64) ([]model.Date, error) {
	return s.reservations.ActiveDatesFrom(ctx, gameID, s.Today())
}

func (s *ReservationService) sellableGame(ctx context.Context, gameID uint64) (model.Game, error) {
	game, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Game{}, ErrGameNotFound
		}
		return model.Game{}, err
	}
	if !game.Available {
		return model.Game{}, ErrGameNotFound
	}
	return game, nil
}

func (s *ReservationService) availabilityOf(game model.Game, day model.Date, reserved int) Availability {
	free := game.Stock - reserved
	if free < 0 {
		free = 0
	}
	return Availability{
		GameID:         game.ID,
		Date:           day,
		Available:      free > 0 && !day.Before(s.Today()),
		TotalStock:     game.Stock,
		ReservedCount:  reserved,
		AvailableStock: free,
	}
}
