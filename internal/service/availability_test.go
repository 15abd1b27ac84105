package service

import (
	"context"
	"errors"
	"testing"
)

func TestAvailabilityPastDay(t *testing.T) {
	f := newFixture(t)
	catan := f.game(t, "Catan", "25.00", 2, true)

	a, err := f.svc.Availability(context.Background(), catan, day(1))
	if err != nil {
		t.Fatal(err)
	}
	if a.Available || a.AvailableStock != 2 || a.ReservedCount != 0 {
		t.Fatalf("past availability = %+v", a)
	}

	a, err = f.svc.Availability(context.Background(), catan, day(10))
	if err != nil || !a.Available {
		t.Fatalf("today availability = %+v, %v", a, err)
	}
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	catan := f.game(t, "Catan", "25.00", 2, true)
	f.create(t, f.alice, catan, day(12))
	f.create(t, f.bob, catan, day(12))
	f.create(t, f.alice, catan, day(14))

	cal, err := f.svc.Calendar(ctx, catan, day(11), day(15))
	if err != nil {
		t.Fatal(err)
	}
	if len(cal) != 5 {
		t.Fatalf("calendar has %d days", len(cal))
	}
	wantReserved := []int{0, 2, 0, 1, 0}
	for i, a := range cal {
		if a.Date != day(11+i) || a.ReservedCount != wantReserved[i] {
			t.Fatalf("day %d = %+v", i, a)
		}
	}
	if cal[1].Available || !cal[3].Available || cal[3].AvailableStock != 1 {
		t.Fatalf("calendar flags wrong: %+v", cal)
	}

	if _, err := f.svc.Calendar(ctx, catan, day(15), day(11)); !errors.Is(err, ErrValidation) {
		t.Fatalf("reversed range err = %v", err)
	}
	if _, err := f.svc.Calendar(ctx, catan, day(1), day(1).AddDays(40)); !errors.Is(err, ErrValidation) {
		t.Fatalf("long range err = %v", err)
	}
	if _, err := f.svc.Calendar(ctx, 999, day(11), day(12)); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("missing game err = %v", err)
	}
}

func TestReservedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	catan := f.game(t, "Catan", "25.00", 2, true)
	f.create(t, f.alice, catan, day(20))
	f.create(t, f.bob, catan, day(20))
	r := f.create(t, f.alice, catan, day(12))
	if _, err := f.svc.Cancel(ctx, r.ID, f.alice); err != nil {
		t.Fatal(err)
	}

	days, err := f.svc.ReservedDates(ctx, catan)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0] != day(20) {
		t.Fatalf("reserved dates = %v", days)
	}
}
