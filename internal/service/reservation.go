// Package service holds the reservation lifecycle and availability rules.
// Handlers translate HTTP into calls on ReservationService and map the
// returned sentinel errors back to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/queue"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
)

// EventPublisher receives an event after each committed reservation change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

const publishTimeout = 3 * time.Second

// Options tunes a ReservationService. Zero values fall back to defaults.
type Options struct {
	Location        *time.Location
	Now             func() time.Time
	MaxCalendarDays int
	Events          EventPublisher
	Logger          *slog.Logger
}

// ReservationService validates and applies reservation changes. Every
// write runs in one transaction that first locks the game row (creates and
// date moves) or the reservation row (status and field edits), so the
// active count for a (game, date) pair never exceeds the game's stock.
type ReservationService struct {
	db              *database.DB
	games           *repository.GameRepo
	reservations    *repository.ReservationRepo
	events          EventPublisher
	log             *slog.Logger
	loc             *time.Location
	now             func() time.Time
	maxCalendarDays int
}

func NewReservationService(db *database.DB, games *repository.GameRepo, reservations *repository.ReservationRepo, opts Options) *ReservationService {
	s := &ReservationService{
		db:              db,
		games:           games,
		reservations:    reservations,
		events:          opts.Events,
		log:             opts.Logger,
		loc:             opts.Location,
		now:             opts.Now,
		maxCalendarDays: opts.MaxCalendarDays,
	}
	if s.events == nil {
		s.events = queue.NopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxCalendarDays <= 0 {
		s.maxCalendarDays = 92
	}
	return s
}

// Today is the current calendar date in the business timezone.
func (s *ReservationService) Today() model.Date { return model.Today(s.now(), s.loc) }

// CreateInput is a new reservation request from UserID.
type CreateInput struct {
	UserID          uint64
	GameID          uint64
	ReservationDate model.Date
	ReturnDate      *model.Date
	Notes           *string
}

// Create books one unit of a game for a day. The reservation starts
// active and snapshots the game's current price.
func (s *ReservationService) Create(ctx context.Context, in CreateInput) (model.Reservation, error) {
	if in.GameID == 0 || in.UserID == 0 {
		return model.Reservation{}, fmt.Errorf("%w: game_id is required", ErrValidation)
	}
	if in.ReservationDate.IsZero() {
		return model.Reservation{}, fmt.Errorf("%w: reservation_date is required", ErrValidation)
	}

	var out model.Reservation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		// Lock the game row first; every writer for this game queues here.
		game, err := s.lockSellableGame(ctx, tx, in.GameID)
		if err != nil {
			return err
		}
		if err := s.checkNotPast(in.ReservationDate); err != nil {
			return err
		}
		if in.ReturnDate != nil && in.ReturnDate.Before(in.ReservationDate) {
			return fmt.Errorf("%w: return_date %s is before reservation_date %s", ErrInvalidDate, in.ReturnDate, in.ReservationDate)
		}
		// Count under the lock, then insert.
		if err := s.checkCapacity(ctx, tx, game, in.ReservationDate, 0); err != nil {
			return err
		}

		now := model.NewTimestamp(s.now())
		res := model.Reservation{
			UserID:          in.UserID,
			GameID:          game.ID,
			ReservationDate: in.ReservationDate,
			ReturnDate:      model.NullDateFrom(in.ReturnDate),
			Status:          model.StatusActive,
			TotalPrice:      game.Price,
			Notes:           cleanNotes(in.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.reservations.InsertTx(ctx, tx, &res); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		// Re-read with the game join for the response.
		out, err = s.reservations.GetByIDTx(ctx, tx, res.ID)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	// Publish only after the commit.
	s.publish(ctx, queue.EventReservationCreated, out)
	return out, nil
}

// Update applies a partial change requested by the reservation's owner.
func (s *ReservationService) Update(ctx context.Context, id, requester uint64, p model.Patch) (model.Reservation, error) {
	if p.Empty() {
		return model.Reservation{}, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	var before, out model.Reservation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		// Lock and load the reservation, checking ownership.
		cur, err := s.lockOwned(ctx, tx, id, requester)
		if err != nil {
			return err
		}
		before = cur

		next, err := model.CheckPatch(cur.Status, p)
		if err != nil {
			if errors.Is(err, model.ErrUnknownStatus) {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			return err
		}

		// Apply the patch to a copy.
		upd := cur
		upd.Status = next
		if p.ReservationDate != nil {
			upd.ReservationDate = *p.ReservationDate
		}
		if p.ReturnDate != nil {
			if p.ReturnDate.Clear {
				upd.ReturnDate = model.NullDate{}
			} else {
				upd.ReturnDate = model.NullDateFrom(&p.ReturnDate.Value)
			}
		}
		if p.Notes != nil {
			if p.Notes.Clear {
				upd.Notes = nil
			} else {
				upd.Notes = cleanNotes(&p.Notes.Value)
			}
		}
		if rd := upd.ReturnDate.Ptr(); rd != nil && rd.Before(upd.ReservationDate) {
			return fmt.Errorf("%w: return_date %s is before reservation_date %s", ErrInvalidDate, rd, upd.ReservationDate)
		}

		// A moved active reservation needs a free slot on the new day.
		if !upd.ReservationDate.Equal(cur.ReservationDate) {
			if err := s.checkNotPast(upd.ReservationDate); err != nil {
				return err
			}
			if upd.Status.HoldsSlot() {
				game, err := s.lockSellableGame(ctx, tx, cur.GameID)
				if err != nil {
					return err
				}
				if err := s.checkCapacity(ctx, tx, game, upd.ReservationDate, cur.ID); err != nil {
					return err
				}
			}
		}

		upd.UpdatedAt = model.NewTimestamp(s.now())
		if err := s.reservations.UpdateTx(ctx, tx, &upd); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		out, err = s.reservations.GetByIDTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, eventFor(before.Status, out.Status), out)
	return out, nil
}

// Cancel releases the owner's reservation. Cancelling twice fails with
// ErrAlreadyCancelled.
func (s *ReservationService) Cancel(ctx context.Context, id, requester uint64) (model.Reservation, error) {
	out, err := s.setStatus(ctx, id, func(cur model.Reservation) error {
		if cur.UserID != requester {
			return ErrForbidden
		}
		return model.CheckCancel(cur.Status)
	}, model.StatusCancelled)
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, queue.EventReservationCancelled, out)
	return out, nil
}

// Complete marks an active reservation as returned. It is a staff action
// and does not check ownership.
func (s *ReservationService) Complete(ctx context.Context, id uint64) (model.Reservation, error) {
	out, err := s.setStatus(ctx, id, func(cur model.Reservation) error {
		return model.CheckComplete(cur.Status)
	}, model.StatusCompleted)
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, queue.EventReservationCompleted, out)
	return out, nil
}

// Get returns one reservation if requester owns it.
func (s *ReservationService) Get(ctx context.Context, id, requester uint64) (model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	if res.UserID != requester {
		return model.Reservation{}, ErrForbidden
	}
	return res, nil
}

// List returns the user's reservations, newest date first. An empty
// status returns all of them.
func (s *ReservationService) List(ctx context.Context, userID uint64, status string) ([]model.Reservation, error) {
	var filter *model.Status
	if status = strings.TrimSpace(status); status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		filter = &st
	}
	return s.reservations.ListByUser(ctx, userID, filter)
}

// Stats summarises the user's reservations.
func (s *ReservationService) Stats(ctx context.Context, userID uint64) (model.ReservationStats, error) {
	return s.reservations.StatsForUser(ctx, userID)
}

func (s *ReservationService) setStatus(ctx context.Context, id uint64, guard func(model.Reservation) error, to model.Status) (model.Reservation, error) {
	var out model.Reservation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if err := guard(cur); err != nil {
			return err
		}
		cur.Status = to
		cur.UpdatedAt = model.NewTimestamp(s.now())
		if err := s.reservations.UpdateTx(ctx, tx, &cur); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		out, err = s.reservations.GetByIDTx(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *ReservationService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginWrite(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *ReservationService) lockOwned(ctx context.Context, tx *sqlx.Tx, id, requester uint64) (model.Reservation, error) {
	cur, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	if cur.UserID != requester {
		return model.Reservation{}, ErrForbidden
	}
	return cur, nil
}

func (s *ReservationService) lockSellableGame(ctx context.Context, tx *sqlx.Tx, gameID uint64) (model.Game, error) {
	game, err := s.games.GetForUpdateTx(ctx, tx, gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Game{}, ErrGameNotFound
		}
		return model.Game{}, err
	}
	if !game.Available {
		return model.Game{}, fmt.Errorf("%w: %s", ErrGameUnavailable, game.Name)
	}
	return game, nil
}

func (s *ReservationService) checkNotPast(day model.Date) error {
	if today := s.Today(); day.Before(today) {
		return fmt.Errorf("%w: %s is before today (%s)", ErrInvalidDate, day, today)
	}
	return nil
}

func (s *ReservationService) checkCapacity(ctx context.Context, tx *sqlx.Tx, game model.Game, day model.Date, excludeID uint64) error {
	n, err := s.reservations.CountActiveTx(ctx, tx, game.ID, day, excludeID)
	if err != nil {
		return fmt.Errorf("count active: %w", err)
	}
	if n >= game.Stock {
		return fmt.Errorf("%w: all %d units of %s are reserved on %s", ErrDateFullyBooked, game.Stock, game.Name, day)
	}
	return nil
}

func (s *ReservationService) publish(ctx context.Context, typ string, res model.Reservation) {
	ev := queue.NewReservationEvent(typ, res, s.now())
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.Warn("publish reservation event failed",
			"type", typ, "reservation_id", res.ID, "event_id", ev.EventID, "err", err)
	}
}

func eventFor(from, to model.Status) string {
	if from == to {
		return queue.EventReservationUpdated
	}
	switch to {
	case model.StatusCancelled:
		return queue.EventReservationCancelled
	case model.StatusCompleted:
		return queue.EventReservationCompleted
	}
	return queue.EventReservationUpdated
}

func cleanNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
