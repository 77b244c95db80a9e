// Package ledger implements the dashboard aggregation engine: time-filtered
// financial summaries, recurring-expense analysis and flat-average trend
// projection over a user's income and expense history.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	// StatusSurplus is reported whenever balance >= 0; zero is not a deficit.
	StatusSurplus = "surplus"
	StatusDeficit = "deficit"

	TrendGrowth  = "growth"
	TrendDecline = "decline"
	TrendFlat    = "flat"

	// recurringCap bounds the frequency and description views of the
	// recurring report. The per-category averages are never truncated.
	recurringCap = 10
	// projectionPeriods is how many recent periods feed the averages and
	// how many forward rows the projection emits.
	projectionPeriods = 3
	projectionHorizon = 6

	// fallbackCategory labels expenses whose category is empty.
	fallbackCategory = "Other"
)

type (
	CategoryTotal struct {
		Category   string `json:"category"`
		TotalCents int64  `json:"total_cents"`
	}

	MonthFlow struct {
		Year         int   `json:"year"`
		Month        int   `json:"month"`
		IncomeCents  int64 `json:"income_cents"`
		ExpenseCents int64 `json:"expense_cents"`
		BalanceCents int64 `json:"balance_cents"`
	}

	DashboardSummary struct {
		TotalIncomeCents     int64           `json:"total_income_cents"`
		TotalExpenseCents    int64           `json:"total_expense_cents"`
		BalanceCents         int64           `json:"balance_cents"`
		SavingsRatio         float64         `json:"savings_ratio"`
		Status               string          `json:"status"`
		CategoryDistribution []CategoryTotal `json:"category_distribution"`
		MonthlyEvolution     []MonthFlow     `json:"monthly_evolution"`
	}

	CategoryFrequency struct {
		Category     string `json:"category"`
		Count        int    `json:"count"`
		TotalCents   int64  `json:"total_cents"`
		AverageCents int64  `json:"average_cents"`
	}

	DescriptionGroup struct {
		Description  string `json:"description"`
		Count        int    `json:"count"`
		TotalCents   int64  `json:"total_cents"`
		AverageCents int64  `json:"average_cents"`
	}

	CategoryAverage struct {
		Category     string `json:"category"`
		Count        int    `json:"count"`
		TotalCents   int64  `json:"total_cents"`
		AverageCents int64  `json:"average_cents"`
	}

	RecurringReport struct {
		TopCategories         []CategoryFrequency `json:"top_categories"`
		RecurringDescriptions []DescriptionGroup  `json:"recurring_descriptions"`
		CategoryAverages      []CategoryAverage   `json:"category_averages"`
	}

	MonthlySummary struct {
		Year         int     `json:"year"`
		Month        int     `json:"month"`
		IncomeCents  int64   `json:"income_cents"`
		ExpenseCents int64   `json:"expense_cents"`
		BalanceCents int64   `json:"balance_cents"`
		SavingsRatio float64 `json:"savings_ratio"`
		Status       string  `json:"status"`
	}

	ProjectionPeriod struct {
		Period       int   `json:"period"`
		IncomeCents  int64 `json:"income_cents"`
		ExpenseCents int64 `json:"expense_cents"`
		BalanceCents int64 `json:"balance_cents"`
	}

	ProjectionReport struct {
		AvgIncomeCents        int64              `json:"avg_income_cents"`
		AvgExpenseCents       int64              `json:"avg_expense_cents"`
		ProjectedBalanceCents int64              `json:"projected_balance_cents"`
		Trend                 string             `json:"trend"`
		NextPeriods           []ProjectionPeriod `json:"next_periods"`
	}
)

// period keys the month grouping maps. Sorting compares year before month.
type period struct {
	year  int
	month int
}

func (p period) less(q period) bool {
	if p.year != q.year {
		return p.year < q.year
	}
	return p.month < q.month
}

// Engine computes aggregation reports from a Store. It is stateless; every
// call is a pure function of the stored data and the window.
type Engine struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *log.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
}

// fetchBoth loads income and expense entries concurrently. Both fetches must
// finish before any reduction starts; a failure on either side cancels the
// other and propagates.
func (e *Engine) fetchBoth(ctx context.Context, ownerID string) (incomes, expenses []core.Entry, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = e.store.ListEntries(ctx, core.KindIncome, ownerID, Filter{})
		if err != nil {
			return fmt.Errorf("list incomes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = e.store.ListEntries(ctx, core.KindExpense, ownerID, Filter{})
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return incomes, expenses, nil
}

// Dashboard computes totals, balance, savings ratio, category distribution
// and month-by-month evolution for the owner's entries inside the window.
// An owner with no matching entries gets a zeroed summary, never an error.
func (e *Engine) Dashboard(ctx context.Context, ownerID string, w Window) (DashboardSummary, error) {
	incomes, expenses, err := e.fetchBoth(ctx, ownerID)
	if err != nil {
		return DashboardSummary{}, err
	}
	now := e.now()
	incomes = filterWindow(incomes, w, now)
	expenses = filterWindow(expenses, w, now)

	var totalIncome, totalExpense int64
	for _, in := range incomes {
		totalIncome += in.Amount.Cents
	}
	for _, ex := range expenses {
		totalExpense += ex.Amount.Cents
	}
	balance := totalIncome - totalExpense

	summary := DashboardSummary{
		TotalIncomeCents:     totalIncome,
		TotalExpenseCents:    totalExpense,
		BalanceCents:         balance,
		SavingsRatio:         savingsRatio(balance, totalIncome),
		Status:               statusFor(balance),
		CategoryDistribution: categoryDistribution(expenses),
		MonthlyEvolution:     monthlyEvolution(incomes, expenses),
	}
	e.logger.DebugContext(ctx, "dashboard computed",
		log.FieldUserID, ownerID,
		"income_cents", totalIncome,
		"expense_cents", totalExpense,
	)
	return summary, nil
}

// Recurring derives three all-time views over the owner's expenses: category
// frequency, repeated descriptions and per-category averages. Each view is
// capped at 10 rows.
func (e *Engine) Recurring(ctx context.Context, ownerID string) (RecurringReport, error) {
	expenses, err := e.store.ListEntries(ctx, core.KindExpense, ownerID, Filter{})
	if err != nil {
		return RecurringReport{}, fmt.Errorf("list expenses: %w", err)
	}

	type group struct {
		label string
		count int
		total int64
		order int
	}
	byCategory := map[string]*group{}
	byDescription := map[string]*group{}
	for i, ex := range expenses {
		cat := ex.Category
		if strings.TrimSpace(cat) == "" {
			cat = fallbackCategory
		}
		g, ok := byCategory[cat]
		if !ok {
			g = &group{label: cat, order: i}
			byCategory[cat] = g
		}
		g.count++
		g.total += ex.Amount.Cents

		desc := strings.ToLower(strings.TrimSpace(ex.Description))
		d, ok := byDescription[desc]
		if !ok {
			d = &group{label: desc, order: i}
			byDescription[desc] = d
		}
		d.count++
		d.total += ex.Amount.Cents
	}

	categories := make([]*group, 0, len(byCategory))
	for _, g := range byCategory {
		categories = append(categories, g)
	}

	// View 1: frequency ranking, first-seen order breaks ties.
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].count != categories[j].count {
			return categories[i].count > categories[j].count
		}
		return categories[i].order < categories[j].order
	})
	report := RecurringReport{
		TopCategories:         []CategoryFrequency{},
		RecurringDescriptions: []DescriptionGroup{},
		CategoryAverages:      []CategoryAverage{},
	}
	for _, g := range categories {
		if len(report.TopCategories) == recurringCap {
			break
		}
		report.TopCategories = append(report.TopCategories, CategoryFrequency{
			Category:     g.label,
			Count:        g.count,
			TotalCents:   g.total,
			AverageCents: divRound(g.total, int64(g.count)),
		})
	}

	// View 2: case-folded descriptions seen more than once.
	descriptions := make([]*group, 0, len(byDescription))
	for _, d := range byDescription {
		if d.count > 1 {
			descriptions = append(descriptions, d)
		}
	}
	sort.SliceStable(descriptions, func(i, j int) bool {
		if descriptions[i].count != descriptions[j].count {
			return descriptions[i].count > descriptions[j].count
		}
		return descriptions[i].order < descriptions[j].order
	})
	for _, d := range descriptions {
		if len(report.RecurringDescriptions) == recurringCap {
			break
		}
		report.RecurringDescriptions = append(report.RecurringDescriptions, DescriptionGroup{
			Description:  titleCase(d.label),
			Count:        d.count,
			TotalCents:   d.total,
			AverageCents: divRound(d.total, int64(d.count)),
		})
	}

	// View 3: same category groups, ranked by spend instead of frequency.
	// Unlike the first two views this one is not capped; every category gets
	// an average row.
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].total != categories[j].total {
			return categories[i].total > categories[j].total
		}
		return categories[i].order < categories[j].order
	})
	for _, g := range categories {
		report.CategoryAverages = append(report.CategoryAverages, CategoryAverage{
			Category:     g.label,
			Count:        g.count,
			TotalCents:   g.total,
			AverageCents: divRound(g.total, int64(g.count)),
		})
	}
	return report, nil
}

// MonthlySummaries returns one row per distinct (year, month) with any
// activity, chronologically ascending. Months active on only one side
// contribute zero to the other.
func (e *Engine) MonthlySummaries(ctx context.Context, ownerID string) ([]MonthlySummary, error) {
	incomes, expenses, err := e.fetchBoth(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	flows := monthlyEvolution(incomes, expenses)
	summaries := make([]MonthlySummary, 0, len(flows))
	for _, f := range flows {
		summaries = append(summaries, MonthlySummary{
			Year:         f.Year,
			Month:        f.Month,
			IncomeCents:  f.IncomeCents,
			ExpenseCents: f.ExpenseCents,
			BalanceCents: f.BalanceCents,
			SavingsRatio: savingsRatio(f.BalanceCents, f.IncomeCents),
			Status:       statusFor(f.BalanceCents),
		})
	}
	return summaries, nil
}

// Projection averages the 3 most recent active periods and repeats that
// average over the next 6 periods. With no history at all it still emits 6
// zero rows and a flat trend.
func (e *Engine) Projection(ctx context.Context, ownerID string) (ProjectionReport, error) {
	incomes, expenses, err := e.fetchBoth(ctx, ownerID)
	if err != nil {
		return ProjectionReport{}, err
	}

	income := map[period]int64{}
	expense := map[period]int64{}
	seen := map[period]bool{}
	for _, in := range incomes {
		p := period{year: in.Year, month: in.Month}
		income[p] += in.Amount.Cents
		seen[p] = true
	}
	for _, ex := range expenses {
		p := period{year: ex.Year, month: ex.Month}
		expense[p] += ex.Amount.Cents
		seen[p] = true
	}

	periods := make([]period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[j].less(periods[i]) })
	if len(periods) > projectionPeriods {
		periods = periods[:projectionPeriods]
	}

	report := ProjectionReport{Trend: TrendFlat, NextPeriods: make([]ProjectionPeriod, 0, projectionHorizon)}
	if n := int64(len(periods)); n > 0 {
		var totalIncome, totalExpense int64
		for _, p := range periods {
			totalIncome += income[p]
			totalExpense += expense[p]
		}
		report.AvgIncomeCents = divRound(totalIncome, n)
		report.AvgExpenseCents = divRound(totalExpense, n)
		report.ProjectedBalanceCents = report.AvgIncomeCents - report.AvgExpenseCents
		switch {
		case report.ProjectedBalanceCents > 0:
			report.Trend = TrendGrowth
		case report.ProjectedBalanceCents < 0:
			report.Trend = TrendDecline
		}
	}
	for i := 1; i <= projectionHorizon; i++ {
		report.NextPeriods = append(report.NextPeriods, ProjectionPeriod{
			Period:       i,
			IncomeCents:  report.AvgIncomeCents,
			ExpenseCents: report.AvgExpenseCents,
			BalanceCents: report.ProjectedBalanceCents,
		})
	}
	return report, nil
}

func filterWindow(entries []core.Entry, w Window, now time.Time) []core.Entry {
	if w.Kind == WindowAll {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if w.contains(e, now) {
			out = append(out, e)
		}
	}
	return out
}

// savingsRatio is balance as a percentage of income, rounded half-up (away
// from zero) to two decimals. Zero income always yields 0, never a division.
func savingsRatio(balanceCents, incomeCents int64) float64 {
	if incomeCents <= 0 {
		return 0
	}
	ratio := float64(balanceCents) / float64(incomeCents) * 100
	return math.Round(ratio*100) / 100
}

func statusFor(balanceCents int64) string {
	if balanceCents >= 0 {
		return StatusSurplus
	}
	return StatusDeficit
}

// divRound divides non-negative cent totals rounding half-up.
func divRound(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return (total + count/2) / count
}

func categoryDistribution(expenses []core.Entry) []CategoryTotal {
	totals := map[string]int64{}
	order := map[string]int{}
	for i, ex := range expenses {
		cat := ex.Category
		if strings.TrimSpace(cat) == "" {
			cat = fallbackCategory
		}
		if _, ok := totals[cat]; !ok {
			order[cat] = i
		}
		totals[cat] += ex.Amount.Cents
	}
	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategoryTotal{Category: cat, TotalCents: total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalCents != out[j].TotalCents {
			return out[i].TotalCents > out[j].TotalCents
		}
		return order[out[i].Category] < order[out[j].Category]
	})
	return out
}

func monthlyEvolution(incomes, expenses []core.Entry) []MonthFlow {
	income := map[period]int64{}
	expense := map[period]int64{}
	seen := map[period]bool{}
	for _, in := range incomes {
		p := period{year: in.Year, month: in.Month}
		income[p] += in.Amount.Cents
		seen[p] = true
	}
	for _, ex := range expenses {
		p := period{year: ex.Year, month: ex.Month}
		expense[p] += ex.Amount.Cents
		seen[p] = true
	}
	periods := make([]period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].less(periods[j]) })

	flows := make([]MonthFlow, 0, len(periods))
	for _, p := range periods {
		flows = append(flows, MonthFlow{
			Year:         p.year,
			Month:        p.month,
			IncomeCents:  income[p],
			ExpenseCents: expense[p],
			BalanceCents: income[p] - expense[p],
		})
	}
	return flows
}

// titleCase upper-cases the first letter of each space-separated word of an
// already lower-cased string. Lossy: original mixed casing is not recovered.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
