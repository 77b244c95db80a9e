package sheets

import (
	"context"

	"fintrack/internal/ledger"
)

// SummaryWriter is the outbound port for pushing monthly summaries to a
// spreadsheet. The worker replaces the sheet contents on every sync so the
// spreadsheet always mirrors the ledger.
type SummaryWriter interface {
	WriteMonthlySummaries(ctx context.Context, summaries []ledger.MonthlySummary) (sheetRef string, err error)
}
