// Package worker applies subscription events from the payment queue and
// mirrors monthly summaries to a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// Plan durations granted on purchase. Annual plans get a full year; every
// other paid plan renews in 30-day windows, matching the provider's billing.
const (
	annualGrant  = 365 * 24 * time.Hour
	defaultGrant = 30 * 24 * time.Hour
)

// Store is the persistence surface the worker needs.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUserSubscription(ctx context.Context, email, plan, status string, expiresAt *time.Time, subscriberCode string) error
	CreateSubscription(ctx context.Context, s *core.Subscription) error
	CancelActiveSubscriptions(ctx context.Context, userID string) (int64, error)
}

// SubscriptionWorker consumes payment events and keeps user plan state and
// the subscription audit trail in sync.
type SubscriptionWorker struct {
	store  Store
	engine *ledger.Engine
	sheets sheets.SummaryWriter
	logger *log.Logger
	now    func() time.Time
}

func NewSubscriptionWorker(store Store, engine *ledger.Engine, writer sheets.SummaryWriter, logger *log.Logger) *SubscriptionWorker {
	return &SubscriptionWorker{
		store:  store,
		engine: engine,
		sheets: writer,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleSubscriptionEvent applies one payment event. Unknown users and
// unknown event names are logged and dropped rather than requeued; transient
// store failures propagate so the delivery is retried.
func (w *SubscriptionWorker) HandleSubscriptionEvent(ctx context.Context, msg *amqp.SubscriptionEventMessage) error {
	user, err := w.store.GetUserByEmail(ctx, msg.Email)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "subscription event for unknown user",
			log.FieldEvent, msg.Event,
			log.FieldEmail, msg.Email,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	switch msg.Event {
	case amqp.EventPurchaseComplete:
		return w.activate(ctx, user, msg)
	case amqp.EventPurchaseCanceled, amqp.EventPurchaseRefunded, amqp.EventSubscriptionCancellation:
		return w.cancel(ctx, user, msg)
	}

	w.logger.WarnContext(ctx, "unknown subscription event",
		log.FieldEvent, msg.Event,
		log.FieldEmail, msg.Email,
	)
	return nil
}

func (w *SubscriptionWorker) activate(ctx context.Context, user core.User, msg *amqp.SubscriptionEventMessage) error {
	plan := msg.Plan
	if plan == "" {
		plan = core.PlanMonthly
	}
	grant := defaultGrant
	if plan == core.PlanAnnual {
		grant = annualGrant
	}
	now := w.now().UTC()
	expires := now.Add(grant)

	if err := w.store.UpdateUserSubscription(ctx, user.Email, plan, core.SubscriptionActive, &expires, msg.SubscriberCode); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	sub := core.Subscription{
		UserID:         user.ID,
		Plan:           plan,
		Status:         core.SubscriptionActive,
		StartedAt:      now,
		EndsAt:         &expires,
		Amount:         core.Money{Cents: msg.AmountCents},
		Transaction:    msg.Transaction,
		SubscriberCode: msg.SubscriberCode,
	}
	if err := w.store.CreateSubscription(ctx, &sub); err != nil {
		return fmt.Errorf("record subscription: %w", err)
	}

	w.logger.InfoContext(ctx, "subscription activated",
		log.FieldEmail, user.Email,
		log.FieldPlan, plan,
		"expires_at", expires,
	)
	return nil
}

func (w *SubscriptionWorker) cancel(ctx context.Context, user core.User, msg *amqp.SubscriptionEventMessage) error {
	if err := w.store.UpdateUserSubscription(ctx, user.Email, core.PlanTrial, core.SubscriptionCanceled, nil, user.SubscriberCode); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	canceled, err := w.store.CancelActiveSubscriptions(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("cancel subscription records: %w", err)
	}
	w.logger.InfoContext(ctx, "subscription canceled",
		log.FieldEvent, msg.Event,
		log.FieldEmail, user.Email,
		"records_canceled", canceled,
	)
	return nil
}

// PushMonthlySummaries recomputes the owner's monthly summaries and writes
// them to the configured spreadsheet.
func (w *SubscriptionWorker) PushMonthlySummaries(ctx context.Context, ownerID string) error {
	if w.sheets == nil {
		return errors.New("sheets writer not configured")
	}
	summaries, err := w.engine.MonthlySummaries(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("compute summaries: %w", err)
	}
	ref, err := w.sheets.WriteMonthlySummaries(ctx, summaries)
	if err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	w.logger.InfoContext(ctx, "monthly summaries pushed",
		log.FieldUserID, ownerID,
		log.FieldSheetsRef, ref,
		"periods", len(summaries),
	)
	return nil
}
