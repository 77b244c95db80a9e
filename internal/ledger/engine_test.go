package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type fakeStore struct {
	incomes  []core.Entry
	expenses []core.Entry
	err      error
}

func (f *fakeStore) ListEntries(_ context.Context, kind core.EntryKind, ownerID string, _ Filter) ([]core.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var src []core.Entry
	if kind == core.KindIncome {
		src = f.incomes
	} else {
		src = f.expenses
	}
	out := []core.Entry{}
	for _, e := range src {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(owner string, y, m, d int, desc, cat string, cents int64) core.Entry {
	e := core.Entry{
		OwnerID:     owner,
		Date:        core.NewDate(y, m, d),
		Description: desc,
		Category:    cat,
		Amount:      core.Money{Cents: cents},
	}
	e.DerivePeriod()
	return e
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, log.New(log.DefaultConfig()))
}

func TestDashboardWorkedExample(t *testing.T) {
	store := &fakeStore{
		incomes: []core.Entry{
			entry("u1", 2025, 1, 5, "salary", "Salary", 100000),
			entry("u1", 2025, 2, 5, "salary", "Salary", 120000),
		},
		expenses: []core.Entry{
			entry("u1", 2025, 1, 10, "groceries", "Food", 30000),
			entry("u1", 2025, 1, 12, "bus pass", "Transport", 20000),
			entry("u1", 2025, 2, 8, "groceries", "Food", 25000),
		},
	}
	eng := newTestEngine(store)

	got, err := eng.Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalIncomeCents != 220000 {
		t.Fatalf("total income = %d, want 220000", got.TotalIncomeCents)
	}
	if got.TotalExpenseCents != 75000 {
		t.Fatalf("total expense = %d, want 75000", got.TotalExpenseCents)
	}
	if got.BalanceCents != 145000 {
		t.Fatalf("balance = %d, want 145000", got.BalanceCents)
	}
	if got.SavingsRatio != 65.91 {
		t.Fatalf("savings ratio = %v, want 65.91", got.SavingsRatio)
	}
	if got.Status != StatusSurplus {
		t.Fatalf("status = %q, want %q", got.Status, StatusSurplus)
	}

	wantDist := []CategoryTotal{
		{Category: "Food", TotalCents: 55000},
		{Category: "Transport", TotalCents: 20000},
	}
	if len(got.CategoryDistribution) != len(wantDist) {
		t.Fatalf("distribution size = %d, want %d", len(got.CategoryDistribution), len(wantDist))
	}
	for i, w := range wantDist {
		if got.CategoryDistribution[i] != w {
			t.Fatalf("distribution[%d] = %+v, want %+v", i, got.CategoryDistribution[i], w)
		}
	}

	wantEvo := []MonthFlow{
		{Year: 2025, Month: 1, IncomeCents: 100000, ExpenseCents: 50000, BalanceCents: 50000},
		{Year: 2025, Month: 2, IncomeCents: 120000, ExpenseCents: 25000, BalanceCents: 95000},
	}
	if len(got.MonthlyEvolution) != len(wantEvo) {
		t.Fatalf("evolution size = %d, want %d", len(got.MonthlyEvolution), len(wantEvo))
	}
	for i, w := range wantEvo {
		if got.MonthlyEvolution[i] != w {
			t.Fatalf("evolution[%d] = %+v, want %+v", i, got.MonthlyEvolution[i], w)
		}
	}
}

func TestDashboardBalanceIdentity(t *testing.T) {
	store := &fakeStore{
		incomes: []core.Entry{
			entry("u1", 2025, 3, 1, "a", "Salary", 333),
			entry("u1", 2025, 3, 2, "b", "Sales", 667),
		},
		expenses: []core.Entry{
			entry("u1", 2025, 3, 3, "c", "Food", 123),
			entry("u1", 2025, 3, 4, "d", "Food", 456),
		},
	}
	got, err := newTestEngine(store).Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BalanceCents != got.TotalIncomeCents-got.TotalExpenseCents {
		t.Fatalf("balance %d != income %d - expense %d", got.BalanceCents, got.TotalIncomeCents, got.TotalExpenseCents)
	}
}

func TestDashboardZeroIncomeRatioGuard(t *testing.T) {
	store := &fakeStore{
		expenses: []core.Entry{entry("u1", 2025, 1, 1, "x", "Food", 50000)},
	}
	got, err := newTestEngine(store).Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SavingsRatio != 0 {
		t.Fatalf("savings ratio = %v, want 0 with no income", got.SavingsRatio)
	}
	if got.Status != StatusDeficit {
		t.Fatalf("status = %q, want %q", got.Status, StatusDeficit)
	}
}

func TestDashboardStatusTieBreak(t *testing.T) {
	store := &fakeStore{
		incomes:  []core.Entry{entry("u1", 2025, 1, 1, "a", "Salary", 500)},
		expenses: []core.Entry{entry("u1", 2025, 1, 2, "b", "Food", 500)},
	}
	got, err := newTestEngine(store).Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BalanceCents != 0 {
		t.Fatalf("balance = %d, want 0", got.BalanceCents)
	}
	if got.Status != StatusSurplus {
		t.Fatalf("status = %q, zero balance must be surplus", got.Status)
	}
}

func TestDashboardEmptyHistory(t *testing.T) {
	got, err := newTestEngine(&fakeStore{}).Dashboard(context.Background(), "nobody", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalIncomeCents != 0 || got.TotalExpenseCents != 0 || got.BalanceCents != 0 {
		t.Fatalf("expected zeroed totals, got %+v", got)
	}
	if got.CategoryDistribution == nil || len(got.CategoryDistribution) != 0 {
		t.Fatalf("expected empty distribution, got %v", got.CategoryDistribution)
	}
	if got.MonthlyEvolution == nil || len(got.MonthlyEvolution) != 0 {
		t.Fatalf("expected empty evolution, got %v", got.MonthlyEvolution)
	}
}

func TestDashboardDefaultCategory(t *testing.T) {
	store := &fakeStore{
		expenses: []core.Entry{
			entry("u1", 2025, 1, 1, "mystery", "", 100),
			entry("u1", 2025, 1, 2, "mystery two", "  ", 200),
		},
	}
	got, err := newTestEngine(store).Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.CategoryDistribution) != 1 {
		t.Fatalf("expected single bucket, got %v", got.CategoryDistribution)
	}
	if d := got.CategoryDistribution[0]; d.Category != "Other" || d.TotalCents != 300 {
		t.Fatalf("unexpected bucket %+v", d)
	}
}

func TestDashboardOwnerScoping(t *testing.T) {
	store := &fakeStore{
		incomes: []core.Entry{
			entry("u1", 2025, 1, 1, "mine", "Salary", 1000),
			entry("u2", 2025, 1, 1, "theirs", "Salary", 9999),
		},
	}
	got, err := newTestEngine(store).Dashboard(context.Background(), "u1", All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalIncomeCents != 1000 {
		t.Fatalf("total income = %d, another owner's data leaked", got.TotalIncomeCents)
	}
}

func TestDashboardWindows(t *testing.T) {
	now := core.NewDate(2025, 6, 15).Time
	store := &fakeStore{
		incomes: []core.Entry{
			entry("u1", 2025, 6, 1, "this month", "Salary", 100),
			entry("u1", 2025, 5, 1, "last month", "Salary", 200),
			entry("u1", 2024, 6, 1, "last year", "Salary", 400),
		},
	}
	cases := []struct {
		name   string
		window Window
		want   int64
	}{
		{"all", All(), 700},
		{"current month", CurrentMonth(), 100},
		{"trailing 180 days", TrailingDays(180), 300},
		{"custom range inclusive", Range(core.NewDate(2025, 5, 1), core.NewDate(2025, 6, 1)), 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(store)
			e.now = func() time.Time { return now }
			got, err := e.Dashboard(context.Background(), "u1", tc.window)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.TotalIncomeCents != tc.want {
				t.Fatalf("total income = %d, want %d", got.TotalIncomeCents, tc.want)
			}
		})
	}
}

func TestDashboardStoreFailure(t *testing.T) {
	boom := errors.New("store down")
	_, err := newTestEngine(&fakeStore{err: boom}).Dashboard(context.Background(), "u1", All())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestRecurringDescriptionThreshold(t *testing.T) {
	store := &fakeStore{
		expenses: []core.Entry{
			entry("u1", 2025, 1, 5, "Supermercado", "Food", 30000),
			entry("u1", 2025, 2, 5, "supermercado", "Food", 25000),
			entry("u1", 2025, 1, 9, "cinema", "Leisure", 4000),
		},
	}
	got, err := newTestEngine(store).Recurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.RecurringDescriptions) != 1 {
		t.Fatalf("expected one recurring description, got %v", got.RecurringDescriptions)
	}
	d := got.RecurringDescriptions[0]
	if d.Description != "Supermercado" {
		t.Fatalf("display form = %q, want %q", d.Description, "Supermercado")
	}
	if d.Count != 2 || d.TotalCents != 55000 || d.AverageCents != 27500 {
		t.Fatalf("unexpected group %+v", d)
	}
}

func TestRecurringViewsAndCaps(t *testing.T) {
	store := &fakeStore{}
	// 12 categories with one entry each, except "Food" with three entries.
	for i := 0; i < 12; i++ {
		cat := string(rune('A' + i))
		store.expenses = append(store.expenses, entry("u1", 2025, 1, 1+i, "item "+cat, cat, int64(100*(i+1))))
	}
	store.expenses = append(store.expenses,
		entry("u1", 2025, 2, 1, "lunch", "Food", 1000),
		entry("u1", 2025, 2, 2, "dinner", "Food", 2000),
		entry("u1", 2025, 2, 3, "snack", "Food", 1001),
	)
	got, err := newTestEngine(store).Recurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.TopCategories) != 10 {
		t.Fatalf("top categories size = %d, want cap of 10", len(got.TopCategories))
	}
	if got.TopCategories[0].Category != "Food" || got.TopCategories[0].Count != 3 {
		t.Fatalf("most frequent = %+v, want Food x3", got.TopCategories[0])
	}
	// 4001 cents over 3 entries rounds half-up to 1334.
	if got.TopCategories[0].AverageCents != 1334 {
		t.Fatalf("average = %d, want 1334", got.TopCategories[0].AverageCents)
	}
	// The average view reports every category; only the first two views cap.
	if len(got.CategoryAverages) != 13 {
		t.Fatalf("category averages size = %d, want all 13", len(got.CategoryAverages))
	}
	if got.CategoryAverages[0].Category != "Food" {
		t.Fatalf("highest spend = %+v, want Food", got.CategoryAverages[0])
	}
}

func TestRecurringCategoryAveragesUncapped(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 12; i++ {
		cat := string(rune('A' + i))
		store.expenses = append(store.expenses, entry("u1", 2025, 1, 1+i, "item "+cat, cat, int64(100*(i+1))))
	}
	got, err := newTestEngine(store).Recurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.TopCategories) != 10 {
		t.Fatalf("top categories size = %d, want cap of 10", len(got.TopCategories))
	}
	if len(got.CategoryAverages) != 12 {
		t.Fatalf("category averages size = %d, want 12", len(got.CategoryAverages))
	}
	// Spend ordering: category L (1200 cents) first, A (100 cents) last.
	if got.CategoryAverages[0].Category != "L" || got.CategoryAverages[11].Category != "A" {
		t.Fatalf("unexpected spend ordering %+v", got.CategoryAverages)
	}
}

func TestRecurringEmptyHistory(t *testing.T) {
	got, err := newTestEngine(&fakeStore{}).Recurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.TopCategories) != 0 || len(got.RecurringDescriptions) != 0 || len(got.CategoryAverages) != 0 {
		t.Fatalf("expected three empty views, got %+v", got)
	}
	if got.TopCategories == nil || got.RecurringDescriptions == nil || got.CategoryAverages == nil {
		t.Fatalf("views must be empty slices, not nil")
	}
}

func TestMonthlySummaries(t *testing.T) {
	store := &fakeStore{
		incomes: []core.Entry{
			entry("u1", 2024, 12, 1, "salary", "Salary", 100000),
			entry("u1", 2025, 1, 1, "salary", "Salary", 100000),
		},
		expenses: []core.Entry{
			entry("u1", 2025, 2, 1, "rent", "Housing", 80000),
		},
	}
	got, err := newTestEngine(store).MonthlySummaries(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(got))
	}
	// Ascending by (year, month): Dec 2024 before Jan 2025.
	if got[0].Year != 2024 || got[0].Month != 12 {
		t.Fatalf("first summary = %d/%d, want 12/2024", got[0].Month, got[0].Year)
	}
	if got[1].Year != 2025 || got[1].Month != 1 {
		t.Fatalf("second summary = %d/%d, want 1/2025", got[1].Month, got[1].Year)
	}
	// Expense-only month contributes zero income and a deficit status.
	last := got[2]
	if last.IncomeCents != 0 || last.ExpenseCents != 80000 || last.Status != StatusDeficit {
		t.Fatalf("unexpected expense-only month %+v", last)
	}
	if last.SavingsRatio != 0 {
		t.Fatalf("ratio = %v, want 0 for zero-income month", last.SavingsRatio)
	}
	if got[0].SavingsRatio != 100 || got[0].Status != StatusSurplus {
		t.Fatalf("unexpected income-only month %+v", got[0])
	}
}

func TestProjectionUsesThreeLatestPeriods(t *testing.T) {
	store := &fakeStore{}
	// Five months of activity; only Mar, Apr, May 2025 should count.
	for m := 1; m <= 5; m++ {
		store.incomes = append(store.incomes, entry("u1", 2025, m, 1, "salary", "Salary", int64(m*10000)))
	}
	got, err := newTestEngine(store).Projection(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (30000+40000+50000)/3 = 40000.
	if got.AvgIncomeCents != 40000 {
		t.Fatalf("avg income = %d, want 40000", got.AvgIncomeCents)
	}
	if got.AvgExpenseCents != 0 {
		t.Fatalf("avg expense = %d, want 0", got.AvgExpenseCents)
	}
	if got.ProjectedBalanceCents != 40000 || got.Trend != TrendGrowth {
		t.Fatalf("unexpected projection %+v", got)
	}
}

func TestProjectionFlatForward(t *testing.T) {
	store := &fakeStore{
		incomes:  []core.Entry{entry("u1", 2025, 4, 1, "salary", "Salary", 90000)},
		expenses: []core.Entry{entry("u1", 2025, 4, 2, "rent", "Housing", 30000)},
	}
	got, err := newTestEngine(store).Projection(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.NextPeriods) != 6 {
		t.Fatalf("expected 6 forward periods, got %d", len(got.NextPeriods))
	}
	for i, p := range got.NextPeriods {
		if p.Period != i+1 {
			t.Fatalf("period[%d] numbered %d", i, p.Period)
		}
		if p.IncomeCents != got.AvgIncomeCents || p.ExpenseCents != got.AvgExpenseCents || p.BalanceCents != got.ProjectedBalanceCents {
			t.Fatalf("period[%d] = %+v, want averages repeated", i, p)
		}
	}
}

func TestProjectionDegenerate(t *testing.T) {
	got, err := newTestEngine(&fakeStore{}).Projection(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AvgIncomeCents != 0 || got.AvgExpenseCents != 0 || got.ProjectedBalanceCents != 0 {
		t.Fatalf("expected zeroed averages, got %+v", got)
	}
	if got.Trend != TrendFlat {
		t.Fatalf("trend = %q, want flat", got.Trend)
	}
	if len(got.NextPeriods) != 6 {
		t.Fatalf("expected 6 zero periods, got %d", len(got.NextPeriods))
	}
	for i, p := range got.NextPeriods {
		if p.IncomeCents != 0 || p.ExpenseCents != 0 || p.BalanceCents != 0 {
			t.Fatalf("period[%d] = %+v, want zeros", i, p)
		}
	}
}

func TestProjectionDecline(t *testing.T) {
	store := &fakeStore{
		incomes:  []core.Entry{entry("u1", 2025, 4, 1, "salary", "Salary", 10000)},
		expenses: []core.Entry{entry("u1", 2025, 4, 2, "rent", "Housing", 30000)},
	}
	got, err := newTestEngine(store).Projection(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Trend != TrendDecline {
		t.Fatalf("trend = %q, want decline", got.Trend)
	}
}
