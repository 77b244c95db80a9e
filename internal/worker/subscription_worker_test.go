package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type fakeWorkerStore struct {
	users         map[string]core.User
	updates       []string
	lastPlan      string
	lastStatus    string
	lastExpires   *time.Time
	subscriptions []core.Subscription
	updateErr     error
	canceledUsers []string
}

func (f *fakeWorkerStore) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	u, ok := f.users[email]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeWorkerStore) UpdateUserSubscription(_ context.Context, email, plan, status string, expiresAt *time.Time, _ string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, email)
	f.lastPlan = plan
	f.lastStatus = status
	f.lastExpires = expiresAt
	return nil
}

func (f *fakeWorkerStore) CreateSubscription(_ context.Context, s *core.Subscription) error {
	f.subscriptions = append(f.subscriptions, *s)
	return nil
}

func (f *fakeWorkerStore) CancelActiveSubscriptions(_ context.Context, userID string) (int64, error) {
	f.canceledUsers = append(f.canceledUsers, userID)
	var n int64
	for i, s := range f.subscriptions {
		if s.UserID == userID && s.Status == core.SubscriptionActive {
			f.subscriptions[i].Status = core.SubscriptionCanceled
			n++
		}
	}
	return n, nil
}

func newTestWorker(store Store) *SubscriptionWorker {
	return NewSubscriptionWorker(store, nil, nil, log.New(log.DefaultConfig()))
}

func TestPurchaseCompleteAnnual(t *testing.T) {
	store := &fakeWorkerStore{users: map[string]core.User{
		"ana@example.com": {ID: "u1", Email: "ana@example.com"},
	}}
	w := newTestWorker(store)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	msg := amqp.NewSubscriptionEventMessage(amqp.EventPurchaseComplete, "ana@example.com", core.PlanAnnual, 19900, "TX-1", "SUB-1")
	if err := w.HandleSubscriptionEvent(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastPlan != core.PlanAnnual || store.lastStatus != core.SubscriptionActive {
		t.Fatalf("unexpected transition: plan=%s status=%s", store.lastPlan, store.lastStatus)
	}
	want := fixed.Add(365 * 24 * time.Hour)
	if store.lastExpires == nil || !store.lastExpires.Equal(want) {
		t.Fatalf("expires = %v, want %v", store.lastExpires, want)
	}
	if len(store.subscriptions) != 1 {
		t.Fatalf("expected one audit record, got %d", len(store.subscriptions))
	}
	if s := store.subscriptions[0]; s.UserID != "u1" || s.Amount.Cents != 19900 || s.Transaction != "TX-1" {
		t.Fatalf("unexpected audit record %+v", s)
	}
}

func TestPurchaseCompleteMonthlyGrant(t *testing.T) {
	store := &fakeWorkerStore{users: map[string]core.User{
		"ana@example.com": {ID: "u1", Email: "ana@example.com"},
	}}
	w := newTestWorker(store)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	msg := amqp.NewSubscriptionEventMessage(amqp.EventPurchaseComplete, "ana@example.com", core.PlanMonthly, 2990, "TX-2", "SUB-1")
	if err := w.HandleSubscriptionEvent(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := fixed.Add(30 * 24 * time.Hour)
	if store.lastExpires == nil || !store.lastExpires.Equal(want) {
		t.Fatalf("expires = %v, want %v", store.lastExpires, want)
	}
}

func TestCancellationEvents(t *testing.T) {
	for _, event := range []string{amqp.EventPurchaseCanceled, amqp.EventPurchaseRefunded, amqp.EventSubscriptionCancellation} {
		t.Run(event, func(t *testing.T) {
			store := &fakeWorkerStore{users: map[string]core.User{
				"ana@example.com": {ID: "u1", Email: "ana@example.com", Plan: core.PlanMonthly, SubscriptionStatus: core.SubscriptionActive},
			}}
			w := newTestWorker(store)
			msg := amqp.NewSubscriptionEventMessage(event, "ana@example.com", "", 0, "", "")
			if err := w.HandleSubscriptionEvent(context.Background(), msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.lastPlan != core.PlanTrial || store.lastStatus != core.SubscriptionCanceled {
				t.Fatalf("unexpected transition: plan=%s status=%s", store.lastPlan, store.lastStatus)
			}
			if store.lastExpires != nil {
				t.Fatalf("expires should be cleared, got %v", store.lastExpires)
			}
			if len(store.canceledUsers) != 1 || store.canceledUsers[0] != "u1" {
				t.Fatalf("audit records not canceled: %v", store.canceledUsers)
			}
		})
	}
}

func TestUnknownUserDropped(t *testing.T) {
	store := &fakeWorkerStore{users: map[string]core.User{}}
	w := newTestWorker(store)
	msg := amqp.NewSubscriptionEventMessage(amqp.EventPurchaseComplete, "ghost@example.com", core.PlanMonthly, 2990, "TX-3", "")
	if err := w.HandleSubscriptionEvent(context.Background(), msg); err != nil {
		t.Fatalf("unknown user must not requeue, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("no update expected for unknown user")
	}
}

func TestUnknownEventDropped(t *testing.T) {
	store := &fakeWorkerStore{users: map[string]core.User{
		"ana@example.com": {ID: "u1", Email: "ana@example.com"},
	}}
	w := newTestWorker(store)
	msg := amqp.NewSubscriptionEventMessage("SOMETHING_ELSE", "ana@example.com", "", 0, "", "")
	if err := w.HandleSubscriptionEvent(context.Background(), msg); err != nil {
		t.Fatalf("unknown event must not requeue, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("no update expected for unknown event")
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	store := &fakeWorkerStore{
		users:     map[string]core.User{"ana@example.com": {ID: "u1", Email: "ana@example.com"}},
		updateErr: boom,
	}
	w := newTestWorker(store)
	msg := amqp.NewSubscriptionEventMessage(amqp.EventPurchaseComplete, "ana@example.com", core.PlanMonthly, 2990, "TX-4", "")
	if err := w.HandleSubscriptionEvent(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

type fakeSummaryWriter struct {
	got []ledger.MonthlySummary
}

func (f *fakeSummaryWriter) WriteMonthlySummaries(_ context.Context, summaries []ledger.MonthlySummary) (string, error) {
	f.got = summaries
	return "Monthly Summary!A1:G3", nil
}

type fakeEntryStore struct {
	incomes []core.Entry
}

func (f *fakeEntryStore) ListEntries(_ context.Context, kind core.EntryKind, ownerID string, _ ledger.Filter) ([]core.Entry, error) {
	if kind == core.KindIncome {
		return f.incomes, nil
	}
	return []core.Entry{}, nil
}

func TestPushMonthlySummaries(t *testing.T) {
	e := core.Entry{OwnerID: "u1", Date: core.NewDate(2025, 1, 5), Description: "salary", Category: "Salary", Amount: core.Money{Cents: 100000}}
	e.DerivePeriod()
	engine := ledger.NewEngine(&fakeEntryStore{incomes: []core.Entry{e}}, log.New(log.DefaultConfig()))
	writer := &fakeSummaryWriter{}
	w := NewSubscriptionWorker(&fakeWorkerStore{}, engine, writer, log.New(log.DefaultConfig()))

	if err := w.PushMonthlySummaries(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.got) != 1 {
		t.Fatalf("expected one summary row, got %d", len(writer.got))
	}
	if writer.got[0].IncomeCents != 100000 {
		t.Fatalf("unexpected summary %+v", writer.got[0])
	}
}
