package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Reservation books one unit of a game for one calendar day.
//
// Fields:
//
//	ReservationDate – the day the slot is held.
//	ReturnDate      – optional, never before ReservationDate.
//	TotalPrice      – game price at creation; edits never recompute it.
//	GameName etc.   – joined from games for display, not stored.
type Reservation struct {
	ID              uint64          `db:"id" json:"id"`
	UserID          uint64          `db:"user_id" json:"user_id"`
	GameID          uint64          `db:"game_id" json:"game_id"`
	ReservationDate Date            `db:"reservation_date" json:"reservation_date"`
	ReturnDate      NullDate        `db:"return_date" json:"-"`
	Status          Status          `db:"status" json:"status"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	Notes           *string         `db:"notes" json:"notes"`
	CreatedAt       Timestamp       `db:"created_at" json:"created_at"`
	UpdatedAt       Timestamp       `db:"updated_at" json:"updated_at"`

	GameName     string          `db:"game_name" json:"game_name,omitempty"`
	GameCategory string          `db:"game_category" json:"game_category,omitempty"`
	GamePrice    decimal.Decimal `db:"game_price" json:"game_price"`
}

// MarshalJSON flattens the nullable return date into a plain date or null.
func (r Reservation) MarshalJSON() ([]byte, error) {
	type plain Reservation
	return json.Marshal(struct {
		plain
		ReturnDate *Date `json:"return_date"`
	}{plain: plain(r), ReturnDate: r.ReturnDate.Ptr()})
}

// ReservationStats summarises a user's reservations for the profile page.
type ReservationStats struct {
	Total      int             `db:"total_reservations" json:"total_reservations"`
	Active     int             `db:"active_reservations" json:"active_reservations"`
	Completed  int             `db:"completed_reservations" json:"completed_reservations"`
	Cancelled  int             `db:"cancelled_reservations" json:"cancelled_reservations"`
	TotalSpent decimal.Decimal `db:"total_spent" json:"total_spent"`
}
