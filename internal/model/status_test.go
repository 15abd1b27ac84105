package model

import (
	"errors"
	"testing"
	"time"
)

func statusPtr(s Status) *Status { return &s }

func TestCheckPatchTable(t *testing.T) {
	day := NewDate(2025, time.December, 5)
	notes := Patch{Notes: Set("x")}
	cancel := Patch{Status: statusPtr(StatusCancelled)}
	complete := Patch{Status: statusPtr(StatusCompleted)}
	reactivate := Patch{Status: statusPtr(StatusActive)}
	move := Patch{ReservationDate: &day}
	cancelAndNote := Patch{Status: statusPtr(StatusCancelled), Notes: Set("bye")}

	cases := []struct {
		name    string
		from    Status
		patch   Patch
		want    Status
		wantErr error
	}{
		{"active notes", StatusActive, notes, StatusActive, nil},
		{"active move", StatusActive, move, StatusActive, nil},
		{"active cancel", StatusActive, cancel, StatusCancelled, nil},
		{"active complete", StatusActive, complete, StatusCompleted, nil},
		{"active cancel with notes", StatusActive, cancelAndNote, StatusCancelled, nil},
		{"completed notes", StatusCompleted, notes, "", ErrInvalidTransition},
		{"completed move", StatusCompleted, move, "", ErrInvalidTransition},
		{"completed cancel", StatusCompleted, cancel, StatusCancelled, nil},
		{"completed cancel with notes", StatusCompleted, cancelAndNote, "", ErrInvalidTransition},
		{"completed reactivate", StatusCompleted, reactivate, "", ErrInvalidTransition},
		{"cancelled cancel", StatusCancelled, cancel, "", ErrAlreadyCancelled},
		{"cancelled notes", StatusCancelled, notes, "", ErrInvalidTransition},
		{"cancelled reactivate", StatusCancelled, reactivate, "", ErrInvalidTransition},
		{"cancelled complete", StatusCancelled, complete, "", ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CheckPatch(tc.from, tc.patch)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCheckPatchUnknownStatus(t *testing.T) {
	if _, err := CheckPatch(StatusActive, Patch{Status: statusPtr("archived")}); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckCancel(t *testing.T) {
	if err := CheckCancel(StatusActive); err != nil {
		t.Fatalf("active: %v", err)
	}
	if err := CheckCancel(StatusCompleted); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if err := CheckCancel(StatusCancelled); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("cancelled: %v", err)
	}
}

func TestCheckComplete(t *testing.T) {
	if err := CheckComplete(StatusActive); err != nil {
		t.Fatalf("active: %v", err)
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if err := CheckComplete(s); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Cancelled "); err != nil || s != StatusCancelled {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("pending"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("err = %v", err)
	}
}

func TestNoPathReactivates(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		got, err := CheckPatch(from, Patch{Status: statusPtr(StatusActive)})
		if err == nil || got == StatusActive {
			t.Fatalf("%s reactivated", from)
		}
	}
}
