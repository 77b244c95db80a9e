package ledger

import (
	"context"

	"fintrack/internal/core"
)

// Filter narrows a ListEntries query. Zero fields mean "no constraint";
// Month/Year constrain the stored period fields, From/To the entry date
// (inclusive on both ends).
type Filter struct {
	Month int
	Year  int
	From  core.Date
	To    core.Date
}

// Store is the read contract the aggregation engine depends on. Every
// query is scoped to one owner; implementations must never return another
// owner's entries and must not truncate result sets.
type Store interface {
	ListEntries(ctx context.Context, kind core.EntryKind, ownerID string, f Filter) ([]core.Entry, error)
}
