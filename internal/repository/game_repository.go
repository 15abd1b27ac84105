package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// GameRepo reads the game catalog. Games are written only by the seed
// command, so there are no mutators here.
type GameRepo struct {
	db *database.DB // shared handle; Dialect selects the lock clause
}

// NewGameRepo returns a new GameRepo bound to the given database.
func NewGameRepo(db *database.DB) *GameRepo { return &GameRepo{db: db} }

const gameCols = `id, name, category, summary, description, how_to_play, price, players, duration, stock, available`

// ListAvailable returns sellable games ordered by name with images and
// rules attached. An empty category matches all.
func (r *GameRepo) ListAvailable(ctx context.Context, category string) ([]model.Game, error) {
	q := `SELECT ` + gameCols + ` FROM games WHERE available = 1`
	args := []any{}
	if c := strings.TrimSpace(category); c != "" {
		q += ` AND LOWER(category) = LOWER(?)`
		args = append(args, c)
	}
	q += ` ORDER BY name`

	games := []model.Game{}
	if err := r.db.SelectContext(ctx, &games, q, args...); err != nil {
		return nil, err
	}
	if err := r.attachMedia(ctx, games); err != nil {
		return nil, err
	}
	return games, nil
}

// GetByID returns the bare game row, sellable or not.
func (r *GameRepo) GetByID(ctx context.Context, id uint64) (model.Game, error) {
	var g model.Game
	if err := r.db.GetContext(ctx, &g, `SELECT `+gameCols+` FROM games WHERE id = ?`, id); err != nil {
		return model.Game{}, notFound(err)
	}
	return g, nil
}

// GetDetail returns a game with images and rules, sellable or not.
func (r *GameRepo) GetDetail(ctx context.Context, id uint64) (model.Game, error) {
	g, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Game{}, err
	}
	one := []model.Game{g}
	if err := r.attachMedia(ctx, one); err != nil {
		return model.Game{}, err
	}
	return one[0], nil
}

// GetForUpdateTx reads the bare game row inside tx and, on MySQL, locks it.
// Reservation writers take this lock first so that counting active
// reservations and writing one happen as a unit per game.
func (r *GameRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Game, error) {
	var g model.Game
	if err := tx.GetContext(ctx, &g, gameLockQuery(r.db.Dialect), id); err != nil {
		return model.Game{}, notFound(err)
	}
	return g, nil
}

// gameLockQuery is the locking read of one game row. On MySQL it ends in
// FOR UPDATE, which under READ COMMITTED serialises writers per game.
func gameLockQuery(d database.Dialect) string {
	return `SELECT ` + gameCols + ` FROM games WHERE id = ?` + d.LockClause()
}

func (r *GameRepo) attachMedia(ctx context.Context, games []model.Game) error {
	if len(games) == 0 {
		return nil
	}
	// Index the games by id and start every carousel and rule list empty,
	// so games without media render [] rather than null.
	ids := make([]uint64, len(games))
	byID := make(map[uint64]int, len(games))
	for i := range games {
		ids[i] = games[i].ID
		byID[games[i].ID] = i
		games[i].Images = []model.GameImage{}
		games[i].Rules = []model.GameRule{}
	}

	// One IN query per child table, expanded by sqlx.In and rebound to the
	// driver's placeholder style.
	q, args, err := sqlx.In(`SELECT game_id, image_url, display_order FROM game_images WHERE game_id IN (?) ORDER BY game_id, display_order`, ids)
	if err != nil {
		return err
	}
	var images []model.GameImage
	if err := r.db.SelectContext(ctx, &images, r.db.Rebind(q), args...); err != nil {
		return err
	}
	for _, img := range images {
		i := byID[img.GameID]
		games[i].Images = append(games[i].Images, img)
	}

	q, args, err = sqlx.In(`SELECT game_id, rule_text, rule_order FROM game_rules WHERE game_id IN (?) ORDER BY game_id, rule_order`, ids)
	if err != nil {
		return err
	}
	var rules []model.GameRule
	if err := r.db.SelectContext(ctx, &rules, r.db.Rebind(q), args...); err != nil {
		return err
	}
	for _, rule := range rules {
		i := byID[rule.GameID]
		games[i].Rules = append(games[i].Rules, rule)
	}
	return nil
}
