package ledger

import (
	"errors"
	"time"

	"fintrack/internal/core"
)

// WindowKind identifies how an aggregation window scopes entries in time.
type WindowKind int

const (
	WindowAll WindowKind = iota
	WindowCurrentMonth
	WindowTrailingDays
	WindowRange
)

// DefaultTrailingDays is the lookback used by the "recent" dashboard view.
const DefaultTrailingDays = 180

var ErrMalformedRange = errors.New("malformed date range")

// Window scopes an aggregation to a slice of time. The zero value is
// WindowAll (no time filter).
type Window struct {
	Kind  WindowKind
	Days  int
	Start core.Date
	End   core.Date
}

func All() Window                       { return Window{Kind: WindowAll} }
func CurrentMonth() Window              { return Window{Kind: WindowCurrentMonth} }
func TrailingDays(n int) Window         { return Window{Kind: WindowTrailingDays, Days: n} }
func Range(start, end core.Date) Window { return Window{Kind: WindowRange, Start: start, End: end} }

// ParseWindow maps query parameters to a Window. period selects the kind;
// start and end are only consulted for period "custom" and must both be
// present as YYYY-MM-DD with start <= end. Unknown or empty periods fall
// back to WindowAll.
func ParseWindow(period, start, end string) (Window, error) {
	switch period {
	case "", "all":
		return All(), nil
	case "current_month":
		return CurrentMonth(), nil
	case "recent":
		return TrailingDays(DefaultTrailingDays), nil
	case "custom":
		s, err := core.ParseDate(start)
		if err != nil {
			return Window{}, ErrMalformedRange
		}
		e, err := core.ParseDate(end)
		if err != nil {
			return Window{}, ErrMalformedRange
		}
		if e.Before(s.Time) {
			return Window{}, ErrMalformedRange
		}
		return Range(s, e), nil
	}
	return All(), nil
}

// contains reports whether the entry falls inside the window, evaluated
// against now. CurrentMonth compares the stored month/year fields so no
// date parsing happens per entry; the write path keeps them in sync with
// the entry date.
func (w Window) contains(e core.Entry, now time.Time) bool {
	switch w.Kind {
	case WindowAll:
		return true
	case WindowCurrentMonth:
		return e.Month == int(now.Month()) && e.Year == now.Year()
	case WindowTrailingDays:
		cutoff := now.AddDate(0, 0, -w.Days)
		return !e.Date.Time.Before(truncateDay(cutoff))
	case WindowRange:
		d := e.Date.Time
		return !d.Before(w.Start.Time) && !d.After(w.End.Time)
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
