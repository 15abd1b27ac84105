package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// ReservationRepo persists reservations. Rows are never deleted;
// cancellation is a status change. The *Tx variants run inside a caller's
// write transaction and must be preceded by GameRepo.GetForUpdateTx on the
// same game when they feed a capacity decision.
type ReservationRepo struct {
	db *database.DB // shared handle; Dialect selects the lock clause
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *database.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `r.id, r.user_id, r.game_id, r.reservation_date, r.return_date, r.status,
	r.total_price, r.notes, r.created_at, r.updated_at`

const reservationJoinedCols = reservationCols + `, g.name AS game_name, g.category AS game_category, g.price AS game_price`

// CountActiveTx counts active reservations of a game on a day, ignoring
// excludeID (pass 0 to count all).
func (r *ReservationRepo) CountActiveTx(ctx context.Context, tx *sqlx.Tx, gameID uint64, day model.Date, excludeID uint64) (int, error) {
	return countActive(ctx, tx, gameID, day, excludeID)
}

// CountActive is the lock-free read used by availability queries.
func (r *ReservationRepo) CountActive(ctx context.Context, gameID uint64, day model.Date) (int, error) {
	return countActive(ctx, r.db, gameID, day, 0)
}

func countActive(ctx context.Context, q sqlx.QueryerContext, gameID uint64, day model.Date, excludeID uint64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		`SELECT COUNT(*) FROM reservations
		 WHERE game_id = ? AND reservation_date = ? AND status = ? AND id <> ?`,
		gameID, day, model.StatusActive, excludeID)
	return n, err
}

type dayCount struct {
	Day   model.Date `db:"day"` // reservation_date
	Count int        `db:"n"`   // active reservations on Day
}

// CountActiveRange returns active counts per day for days in [from, to]
// that have at least one active reservation.
func (r *ReservationRepo) CountActiveRange(ctx context.Context, gameID uint64, from, to model.Date) (map[model.Date]int, error) {
	var rows []dayCount
	err := r.db.SelectContext(ctx, &rows,
		`SELECT reservation_date AS day, COUNT(*) AS n FROM reservations
		 WHERE game_id = ? AND status = ? AND reservation_date >= ? AND reservation_date <= ?
		 GROUP BY reservation_date`,
		gameID, model.StatusActive, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Date]int, len(rows))
	for _, row := range rows {
		out[row.Day] = row.Count
	}
	return out, nil
}

// ActiveDatesFrom lists the distinct days on or after from that hold at
// least one active reservation of the game.
func (r *ReservationRepo) ActiveDatesFrom(ctx context.Context, gameID uint64, from model.Date) ([]model.Date, error) {
	days := []model.Date{}
	err := r.db.SelectContext(ctx, &days,
		`SELECT DISTINCT reservation_date FROM reservations
		 WHERE game_id = ? AND status = ? AND reservation_date >= ?
		 ORDER BY reservation_date`,
		gameID, model.StatusActive, from)
	return days, err
}

// InsertTx writes a new reservation and sets its ID.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	// total_price is the caller's snapshot of the game price; it is never
	// recomputed afterwards.
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (user_id, game_id, reservation_date, return_date, status, total_price, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.UserID, res.GameID, res.ReservationDate, res.ReturnDate, res.Status, res.TotalPrice, res.Notes, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetForUpdateTx reads (and on MySQL locks) one reservation row without
// the game join.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Reservation, error) {
	var res model.Reservation
	if err := tx.GetContext(ctx, &res, reservationLockQuery(r.db.Dialect), id); err != nil {
		return model.Reservation{}, notFound(err)
	}
	return res, nil
}

// reservationLockQuery is the locking read of one reservation row, without
// the game join so that only the reservation row is locked.
func reservationLockQuery(d database.Dialect) string {
	return `SELECT ` + reservationCols + ` FROM reservations r WHERE r.id = ?` + d.LockClause()
}

// UpdateTx writes every mutable column of res.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations SET reservation_date = ?, return_date = ?, status = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		res.ReservationDate, res.ReturnDate, res.Status, res.Notes, res.UpdatedAt, res.ID)
	return err
}

// GetByIDTx reads a reservation with its game summary inside tx.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Reservation, error) {
	return getReservation(ctx, tx, id)
}

// GetByID reads a reservation with its game summary.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return getReservation(ctx, r.db, id)
}

func getReservation(ctx context.Context, q sqlx.QueryerContext, id uint64) (model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, q, &res,
		`SELECT `+reservationJoinedCols+` FROM reservations r JOIN games g ON g.id = r.game_id WHERE r.id = ?`, id)
	if err != nil {
		return model.Reservation{}, notFound(err)
	}
	return res, nil
}

// ListByUser returns the user's reservations, newest date first. A nil
// status returns every status.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, status *model.Status) ([]model.Reservation, error) {
	q := `SELECT ` + reservationJoinedCols + ` FROM reservations r JOIN games g ON g.id = r.game_id WHERE r.user_id = ?`
	args := []any{userID}
	if status != nil {
		q += ` AND r.status = ?`
		args = append(args, *status)
	}
	// Newest date first; id breaks ties so the order is stable.
	q += ` ORDER BY r.reservation_date DESC, r.id DESC`

	out := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// StatsForUser aggregates counts per status and the sum of total_price.
func (r *ReservationRepo) StatsForUser(ctx context.Context, userID uint64) (model.ReservationStats, error) {
	var s model.ReservationStats
	err := r.db.GetContext(ctx, &s,
		`SELECT
		   COUNT(*) AS total_reservations,
		   COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active_reservations,
		   COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_reservations,
		   COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_reservations,
		   COALESCE(SUM(total_price), 0) AS total_spent
		 FROM reservations WHERE user_id = ?`, userID)
	return s, err
}
