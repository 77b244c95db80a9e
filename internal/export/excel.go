// Package export renders a user's ledger as an Excel workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const (
	sheetCategories = "Categories"
	sheetIncomes    = "Incomes"
	sheetExpenses   = "Expenses"
	sheetSummary    = "Summary"
	sheetMonthly    = "Monthly Summary"
	sheetProjection = "Projection"
)

// BuildWorkbook assembles the export from raw ledger data plus the computed
// reports. Totals on the summary sheet are re-derived here from the entry
// lists.
func BuildWorkbook(categories []core.Category, incomes, expenses []core.Entry, monthly []ledger.MonthlySummary, projection ledger.ProjectionReport) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetCategories); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetIncomes, sheetExpenses, sheetSummary, sheetMonthly, sheetProjection} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeCategories(f, headerStyle, categories); err != nil {
		return nil, err
	}
	if err := writeEntries(f, sheetIncomes, headerStyle, incomes); err != nil {
		return nil, err
	}
	if err := writeEntries(f, sheetExpenses, headerStyle, expenses); err != nil {
		return nil, err
	}
	if err := writeSummary(f, headerStyle, incomes, expenses); err != nil {
		return nil, err
	}
	if err := writeMonthly(f, headerStyle, monthly); err != nil {
		return nil, err
	}
	if err := writeProjection(f, headerStyle, projection); err != nil {
		return nil, err
	}

	return f, nil
}

func writeCategories(f *excelize.File, headerStyle int, categories []core.Category) error {
	if err := setHeader(f, sheetCategories, headerStyle, []any{"Name", "Type", "Color"}); err != nil {
		return err
	}
	for i, c := range categories {
		row := []any{c.Name, string(c.Kind), c.Color}
		if err := setRow(f, sheetCategories, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeEntries(f *excelize.File, sheet string, headerStyle int, entries []core.Entry) error {
	if err := setHeader(f, sheet, headerStyle, []any{"Date", "Description", "Category", "Method", "Amount"}); err != nil {
		return err
	}
	for i, e := range entries {
		row := []any{e.Date.String(), e.Description, e.Category, e.Method, e.Amount.Units()}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, headerStyle int, incomes, expenses []core.Entry) error {
	var totalIncome, totalExpense int64
	for _, e := range incomes {
		totalIncome += e.Amount.Cents
	}
	for _, e := range expenses {
		totalExpense += e.Amount.Cents
	}
	balance := totalIncome - totalExpense

	if err := setHeader(f, sheetSummary, headerStyle, []any{"Metric", "Value"}); err != nil {
		return err
	}
	rows := [][]any{
		{"Total Income", float64(totalIncome) / 100.0},
		{"Total Expense", float64(totalExpense) / 100.0},
		{"Balance", float64(balance) / 100.0},
		{"Income Entries", len(incomes)},
		{"Expense Entries", len(expenses)},
	}
	for i, row := range rows {
		if err := setRow(f, sheetSummary, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeMonthly(f *excelize.File, headerStyle int, monthly []ledger.MonthlySummary) error {
	header := []any{"Year", "Month", "Income", "Expense", "Balance", "Savings %", "Status"}
	if err := setHeader(f, sheetMonthly, headerStyle, header); err != nil {
		return err
	}
	for i, m := range monthly {
		row := []any{
			m.Year,
			m.Month,
			float64(m.IncomeCents) / 100.0,
			float64(m.ExpenseCents) / 100.0,
			float64(m.BalanceCents) / 100.0,
			m.SavingsRatio,
			m.Status,
		}
		if err := setRow(f, sheetMonthly, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeProjection(f *excelize.File, headerStyle int, projection ledger.ProjectionReport) error {
	header := []any{"Period", "Income", "Expense", "Balance", "Trend"}
	if err := setHeader(f, sheetProjection, headerStyle, header); err != nil {
		return err
	}
	for i, p := range projection.NextPeriods {
		row := []any{
			p.Period,
			float64(p.IncomeCents) / 100.0,
			float64(p.ExpenseCents) / 100.0,
			float64(p.BalanceCents) / 100.0,
			projection.Trend,
		}
		if err := setRow(f, sheetProjection, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setHeader(f *excelize.File, sheet string, style int, header []any) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", end, style); err != nil {
		return fmt.Errorf("style header on %s: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d on %s: %w", rowNum, sheet, err)
	}
	return nil
}
