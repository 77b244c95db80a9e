package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-07")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2025 || d.Month() != 2 {
		t.Fatalf("unexpected date %v", d)
	}
	for _, s := range []string{"", "07/02/2025", "2025-13-01", "2025-02-30", "not-a-date"} {
		if _, err := ParseDate(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestEntryDerivePeriod(t *testing.T) {
	e := Entry{Date: NewDate(2025, 3, 15), Month: 1, Year: 1999}
	e.DerivePeriod()
	if e.Month != 3 || e.Year != 2025 {
		t.Fatalf("expected 3/2025, got %d/%d", e.Month, e.Year)
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		OwnerID:     "u1",
		Date:        NewDate(2025, 1, 1),
		Description: "supermercado",
		Category:    "Food",
		Method:      "pix",
		Amount:      Money{Cents: 100},
	}
	good.DerivePeriod()
	if err := good.Validate(KindExpense); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mk := func(mut func(*Entry)) Entry {
		e := good
		mut(&e)
		return e
	}
	bads := []Entry{
		mk(func(e *Entry) { e.OwnerID = "" }),
		mk(func(e *Entry) { e.Date = Date{}; e.Month = 0; e.Year = 0 }),
		mk(func(e *Entry) { e.Description = "  " }),
		mk(func(e *Entry) { e.Category = "" }),
		mk(func(e *Entry) { e.Method = "salary" }), // income-only method
		mk(func(e *Entry) { e.Method = "telepathy" }),
		mk(func(e *Entry) { e.Amount = Money{Cents: 0} }),
		mk(func(e *Entry) { e.Month = 12 }), // period out of sync with date
	}
	for i, e := range bads {
		if err := e.Validate(KindExpense); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	if err := good.Validate("refund"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestValidMethod(t *testing.T) {
	cases := []struct {
		kind   EntryKind
		method string
		ok     bool
	}{
		{KindIncome, "salary", true},
		{KindIncome, "pix", true},
		{KindIncome, "credit_card", false},
		{KindExpense, "credit_card", true},
		{KindExpense, "boleto", true},
		{KindExpense, "salary", false},
		{KindExpense, "", false},
	}
	for i, tc := range cases {
		if got := ValidMethod(tc.kind, tc.method); got != tc.ok {
			t.Fatalf("case %d: ValidMethod(%q, %q) = %v, want %v", i, tc.kind, tc.method, got, tc.ok)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{OwnerID: "u1", Name: "Food", Kind: KindExpense, Color: "#FF6B6B"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Category{
		{OwnerID: "", Name: "Food", Kind: KindExpense},
		{OwnerID: "u1", Name: "", Kind: KindExpense},
		{OwnerID: "u1", Name: "Food", Kind: "other"},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Name: "Ana", Email: "ana@example.com"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []User{
		{Name: "", Email: "ana@example.com"},
		{Name: "Ana", Email: "not-an-email"},
	}
	for i, u := range bads {
		if err := u.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
