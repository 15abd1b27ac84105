package model

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrInvalidTransition rejects mutations of a reservation that is no
	// longer active, other than cancelling it.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyCancelled rejects cancelling a cancelled reservation.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	// ErrUnknownStatus is returned by ParseStatus.
	ErrUnknownStatus = errors.New("unknown status")
)

// ParseStatus is case-insensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no ordinary mutation may follow.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// HoldsSlot reports whether a reservation in this state counts against stock.
func (s Status) HoldsSlot() bool { return s == StatusActive }

// Patch is a partial reservation change. Nil fields are left untouched.
// ReturnDate and Notes use a pointer-to-Optional so that "clear" can be told
// apart from "absent".
type Patch struct {
	ReservationDate *Date
	ReturnDate      *Optional[Date]
	Status          *Status
	Notes           *Optional[string]
}

// Optional carries a value that may be explicitly cleared.
type Optional[T any] struct {
	Value T
	Clear bool
}

func Set[T any](v T) *Optional[T]  { return &Optional[T]{Value: v} }
func Cleared[T any]() *Optional[T] { return &Optional[T]{Clear: true} }

func (p Patch) Empty() bool {
	return p.ReservationDate == nil && p.ReturnDate == nil && p.Status == nil && p.Notes == nil
}

// OnlyCancels reports whether the patch does nothing but set status=cancelled.
func (p Patch) OnlyCancels() bool {
	return p.Status != nil && *p.Status == StatusCancelled &&
		p.ReservationDate == nil && p.ReturnDate == nil && p.Notes == nil
}

// CheckPatch decides whether a patch may be applied to a reservation in
// state from and returns the resulting status.
//
//	active     -> anything valid
//	completed  -> only a pure cancel
//	cancelled  -> nothing (AlreadyCancelled when the patch asks to cancel)
func CheckPatch(from Status, p Patch) (Status, error) {
	to := from
	if p.Status != nil {
		if !p.Status.Valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownStatus, string(*p.Status))
		}
		to = *p.Status
	}
	switch from {
	case StatusActive:
		return to, nil
	case StatusCancelled:
		if p.Status != nil && *p.Status == StatusCancelled {
			return "", ErrAlreadyCancelled
		}
		return "", ErrInvalidTransition
	case StatusCompleted:
		if p.OnlyCancels() {
			return StatusCancelled, nil
		}
		return "", ErrInvalidTransition
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, string(from))
}

// CheckCancel guards the cancel operation. Only cancelled is refused.
func CheckCancel(from Status) error {
	if from == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, string(from))
	}
	return nil
}

// CheckComplete guards the staff completion path.
func CheckComplete(from Status) error {
	if from != StatusActive {
		return ErrInvalidTransition
	}
	return nil
}
