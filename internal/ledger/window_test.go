package ledger

import (
	"errors"
	"testing"

	"fintrack/internal/core"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		name             string
		period, from, to string
		want             WindowKind
		wantErr          bool
	}{
		{"empty defaults to all", "", "", "", WindowAll, false},
		{"all", "all", "", "", WindowAll, false},
		{"current month", "current_month", "", "", WindowCurrentMonth, false},
		{"recent", "recent", "", "", WindowTrailingDays, false},
		{"custom", "custom", "2025-01-01", "2025-03-31", WindowRange, false},
		{"custom missing end", "custom", "2025-01-01", "", 0, true},
		{"custom bad start", "custom", "01/01/2025", "2025-03-31", 0, true},
		{"custom inverted", "custom", "2025-03-31", "2025-01-01", 0, true},
		{"unknown period falls back to all", "yearly", "", "", WindowAll, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := ParseWindow(tc.period, tc.from, tc.to)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedRange) {
					t.Fatalf("expected ErrMalformedRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.Kind != tc.want {
				t.Fatalf("kind = %v, want %v", w.Kind, tc.want)
			}
		})
	}
}

func TestParseWindowRecentDays(t *testing.T) {
	w, err := ParseWindow("recent", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Days != DefaultTrailingDays {
		t.Fatalf("days = %d, want %d", w.Days, DefaultTrailingDays)
	}
}

func TestWindowRangeInclusiveBounds(t *testing.T) {
	w := Range(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
	in := core.Entry{Date: core.NewDate(2025, 1, 1)}
	in.DerivePeriod()
	out := core.Entry{Date: core.NewDate(2025, 2, 1)}
	out.DerivePeriod()
	if !w.contains(in, core.NewDate(2025, 6, 1).Time) {
		t.Fatalf("start bound must be inclusive")
	}
	edge := core.Entry{Date: core.NewDate(2025, 1, 31)}
	edge.DerivePeriod()
	if !w.contains(edge, core.NewDate(2025, 6, 1).Time) {
		t.Fatalf("end bound must be inclusive")
	}
	if w.contains(out, core.NewDate(2025, 6, 1).Time) {
		t.Fatalf("entry past end must be excluded")
	}
}
