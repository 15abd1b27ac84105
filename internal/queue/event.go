// Package queue carries reservation events over RabbitMQ: the publisher
// used by the reservation service and the audit consumer that writes each
// event to a rotating log file.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/game-rental-reservation/internal/model"
)

// Event types.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCompleted = "reservation.completed"
)

// ReservationEvent is published after a reservation change commits. It
// carries enough for consumers to log or notify without reading the
// primary database.
type ReservationEvent struct {
	EventID         string `json:"event_id"`
	Type            string `json:"type"`
	ReservationID   uint64 `json:"reservation_id"`
	UserID          uint64 `json:"user_id"`
	GameID          uint64 `json:"game_id"`
	GameName        string `json:"game_name"`
	ReservationDate string `json:"reservation_date"`
	ReturnDate      string `json:"return_date,omitempty"`
	Status          string `json:"status"`
	TotalPrice      string `json:"total_price"`
	OccurredAt      string `json:"occurred_at"`
}

// NewReservationEvent snapshots r for an event of type typ.
func NewReservationEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	ev := ReservationEvent{
		EventID:         uuid.NewString(),
		Type:            typ,
		ReservationID:   r.ID,
		UserID:          r.UserID,
		GameID:          r.GameID,
		GameName:        r.GameName,
		ReservationDate: r.ReservationDate.String(),
		Status:          string(r.Status),
		TotalPrice:      r.TotalPrice.StringFixed(2),
		OccurredAt:      at.UTC().Format(time.RFC3339),
	}
	if rd := r.ReturnDate.Ptr(); rd != nil {
		ev.ReturnDate = rd.String()
	}
	return ev
}
