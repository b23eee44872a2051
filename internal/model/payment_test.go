package model

import (
	"testing"
	"time"
)

func TestAmountCentsFor(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		end   time.Time
		price uint32
		want  int64
	}{
		{"one hour", start.Add(time.Hour), 500, 500},
		{"two hours", start.Add(2 * time.Hour), 500, 1000},
		{"half hour rounds", start.Add(30 * time.Minute), 500, 250},
		{"90 minutes", start.Add(90 * time.Minute), 500, 750},
		{"fractional cent rounds nearest", start.Add(20 * time.Minute), 100, 33},
		{"full day", start.Add(24 * time.Hour), 250, 6000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AmountCentsFor(start, tc.end, tc.price); got != tc.want {
				t.Fatalf("AmountCentsFor = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReservationStatus(t *testing.T) {
	for _, s := range []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if ReservationStatus("archivada").Valid() {
		t.Fatal("unknown status should be invalid")
	}
	if !ReservationCancelled.Terminal() || !ReservationCompleted.Terminal() {
		t.Fatal("cancelada and completada are terminal")
	}
	if ReservationPending.Terminal() || ReservationConfirmed.Terminal() {
		t.Fatal("pendiente and confirmada are not terminal")
	}
	if !ReservationPending.Payable() || !ReservationConfirmed.Payable() {
		t.Fatal("pendiente and confirmada are payable")
	}
	if ReservationCancelled.Payable() || ReservationCompleted.Payable() {
		t.Fatal("terminal states are not payable")
	}
}
