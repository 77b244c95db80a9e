package core

import (
	"errors"
	"strings"
	"time"
)

// EntryKind selects which ledger collection an entry belongs to.
// Income and expense entries share a shape but live in disjoint tables.
type EntryKind string

const (
	KindIncome  EntryKind = "income"
	KindExpense EntryKind = "expense"
)

// Subscription plans and statuses, mirrored by the payment provider events.
const (
	PlanTrial      = "trial"
	PlanMonthly    = "monthly"
	PlanSemiannual = "semiannual"
	PlanAnnual     = "annual"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

type (
	// Date is a calendar date. Time-of-day is never meaningful; all dates
	// are stored and compared at UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Entry is one ledger record. Month and Year are derived from Date at
	// write time and stored redundantly for cheap grouping; DerivePeriod
	// re-derives them, writes never trust the client-supplied values.
	Entry struct {
		ID          string
		OwnerID     string
		Date        Date
		Description string
		Category    string
		Method      string
		Amount      Money
		Month       int
		Year        int
	}

	// Category is a plain tag. Entries reference it by name, not by id, so
	// deleting a category leaves existing entries untouched.
	Category struct {
		ID      string
		OwnerID string
		Name    string
		Kind    EntryKind
		Color   string
	}

	User struct {
		ID                 string
		Name               string
		Email              string
		PasswordHash       string
		CreatedAt          time.Time
		Plan               string
		SubscriptionStatus string
		ExpiresAt          *time.Time
		SubscriberCode     string
	}

	// Subscription is the audit record written when a purchase event is
	// applied to a user.
	Subscription struct {
		ID             string
		UserID         string
		Plan           string
		Status         string
		StartedAt      time.Time
		EndsAt         *time.Time
		Amount         Money
		Transaction    string
		SubscriberCode string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidMethod    = errors.New("invalid method")
	ErrEmptyOwner       = errors.New("empty owner id")
	ErrInvalidKind      = errors.New("invalid entry kind")
)

// Payment/receipt channels. Income and expense entries draw from different
// sets, matching the two dropdowns the frontend offers.
var (
	incomeMethods = map[string]bool{
		"pix":           true,
		"salary":        true,
		"cash":          true,
		"bank_transfer": true,
		"sales":         true,
	}
	expenseMethods = map[string]bool{
		"pix":           true,
		"credit_card":   true,
		"debit_card":    true,
		"cash":          true,
		"bank_transfer": true,
		"boleto":        true,
	}
)

// ValidMethod reports whether method is an accepted channel for the kind.
func ValidMethod(kind EntryKind, method string) bool {
	switch kind {
	case KindIncome:
		return incomeMethods[method]
	case KindExpense:
		return expenseMethods[method]
	}
	return false
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Month returns the calendar month (1-12).
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// String renders the date in the storage format.
func (d Date) String() string {
	return d.Time.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// DerivePeriod recomputes the stored month/year from the entry date. Writes
// must call this so the redundant fields can never disagree with the date.
func (e *Entry) DerivePeriod() {
	e.Month = e.Date.Month()
	e.Year = e.Date.Year()
}

// Validate checks an entry against the rules enforced at the write boundary.
// Kind decides which method set applies.
func (e Entry) Validate(kind EntryKind) error {
	if kind != KindIncome && kind != KindExpense {
		return ErrInvalidKind
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !ValidMethod(kind, e.Method) {
		return ErrInvalidMethod
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Month != e.Date.Month() || e.Year != e.Date.Year() {
		return errors.New("stored month/year disagree with date")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if c.Kind != KindIncome && c.Kind != KindExpense {
		return ErrInvalidKind
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("empty name")
	}
	if !strings.Contains(u.Email, "@") || strings.TrimSpace(u.Email) == "" {
		return errors.New("invalid email")
	}
	return nil
}
