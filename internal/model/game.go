package model

import "github.com/shopspring/decimal"

// Game is a rentable title in the catalog. Games are read-only to the API;
// they are loaded by the seed command.
//
// Fields:
//
//	Price     – per-day rental rate, copied into each reservation at creation.
//	Stock     – units that may be out on any single date.
//	Available – whether the game may be booked at all ("sellable").
type Game struct {
	ID          uint64          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Summary     string          `db:"summary" json:"summary"`
	Description string          `db:"description" json:"description"`
	HowToPlay   string          `db:"how_to_play" json:"how_to_play"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Players     string          `db:"players" json:"players"`
	Duration    string          `db:"duration" json:"duration"`
	Stock       int             `db:"stock" json:"stock"`
	Available   bool            `db:"available" json:"available"`
	Images      []GameImage     `db:"-" json:"images"`
	Rules       []GameRule      `db:"-" json:"rules"`
}

// GameImage is one entry of a game's image carousel.
type GameImage struct {
	GameID       uint64 `db:"game_id" json:"-"`
	ImageURL     string `db:"image_url" json:"image_url"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
}

// GameRule is one numbered rule of a game.
type GameRule struct {
	GameID    uint64 `db:"game_id" json:"-"`
	RuleText  string `db:"rule_text" json:"rule_text"`
	RuleOrder int    `db:"rule_order" json:"rule_order"`
}
