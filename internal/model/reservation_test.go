package model

import (
	"testing"
	"time"
)

func ts(h int) time.Time {
	return time.Date(2026, 3, 10, h, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint before", ts(8), ts(9), ts(10), ts(12), false},
		{"disjoint after", ts(13), ts(14), ts(10), ts(12), false},
		{"contained", ts(10), ts(11), ts(9), ts(12), true},
		{"containing", ts(9), ts(12), ts(10), ts(11), true},
		{"partial left", ts(9), ts(11), ts(10), ts(12), true},
		{"partial right", ts(11), ts(13), ts(10), ts(12), true},
		{"identical", ts(10), ts(12), ts(10), ts(12), true},
		// Closed intervals: a window starting exactly when another
		// ends still conflicts.
		{"touching start", ts(12), ts(14), ts(10), ts(12), true},
		{"touching end", ts(8), ts(10), ts(10), ts(12), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps(%v,%v,%v,%v) = %v, want %v", tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
			// The predicate is symmetric.
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps not symmetric for %s", tc.name)
			}
		})
	}
}
