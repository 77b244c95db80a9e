// Package storage persists users, categories, ledger entries and
// subscriptions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Open opens the SQLite database at path with the pragmas the application
// relies on. Callers own the returned handle.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	return db, nil
}

// Repository is the SQL-backed store. It satisfies ledger.Store and the
// HTTP layer's persistence contract; every query scopes by owner.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// tableFor maps an entry kind to its table. Kinds are a closed set so the
// table name is never caller-controlled.
func tableFor(kind core.EntryKind) (string, error) {
	switch kind {
	case core.KindIncome:
		return "incomes", nil
	case core.KindExpense:
		return "expenses", nil
	}
	return "", core.ErrInvalidKind
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Plan == "" {
		u.Plan = core.PlanTrial
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = core.SubscriptionActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, plan, subscription_status, expires_at, subscriber_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339),
		u.Plan, u.SubscriptionStatus, nullableTime(u.ExpiresAt), u.SubscriberCode,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE email = ?`, email))
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
}

const userSelect = `
	SELECT id, name, email, password_hash, created_at, plan, subscription_status, expires_at, subscriber_code
	FROM users`

func (r *Repository) scanUser(row *sql.Row) (core.User, error) {
	var (
		u         core.User
		createdAt string
		expiresAt sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &u.Plan, &u.SubscriptionStatus, &expiresAt, &u.SubscriberCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return core.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return core.User{}, fmt.Errorf("parse expires_at: %w", err)
		}
		u.ExpiresAt = &t
	}
	return u, nil
}

// UpdateUserSubscription applies a payment event outcome to the user row
// matched by email.
func (r *Repository) UpdateUserSubscription(ctx context.Context, email, plan, status string, expiresAt *time.Time, subscriberCode string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET plan = ?, subscription_status = ?, expires_at = ?, subscriber_code = ?
		WHERE email = ?`,
		plan, status, nullableTime(expiresAt), subscriberCode, email,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateSubscription(ctx context.Context, s *core.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, plan, status, started_at, ends_at, amount_cents, transaction_ref, subscriber_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Plan, s.Status, s.StartedAt.Format(time.RFC3339),
		nullableTime(s.EndsAt), s.Amount.Cents, s.Transaction, s.SubscriberCode,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// CancelActiveSubscriptions marks all of the user's active subscription
// records canceled. Returns the number of rows updated.
func (r *Repository) CancelActiveSubscriptions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = ? WHERE user_id = ? AND status = ?`,
		core.SubscriptionCanceled, userID, core.SubscriptionActive,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel subscriptions rows: %w", err)
	}
	return n, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, kind, color)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, string(c.Kind), c.Color,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %s: %w", c.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, kind, color FROM categories
		WHERE owner_id = ? ORDER BY kind, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &kind, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.EntryKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, kind = ?, color = ?
		WHERE id = ? AND owner_id = ?`,
		c.Name, string(c.Kind), c.Color, c.ID, c.OwnerID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %s: %w", c.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteCategory removes the category row only. Entries keep their category
// string; tags are not referential.
func (r *Repository) DeleteCategory(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOrNotFound(res)
}

// --- ledger entries ---

func (r *Repository) CreateEntry(ctx context.Context, kind core.EntryKind, e *core.Entry) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.DerivePeriod()
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, occurred_on, description, category, method, amount_cents, month, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		e.ID, e.OwnerID, e.Date.String(), e.Description, e.Category, e.Method, e.Amount.Cents, e.Month, e.Year,
	)
	if err != nil {
		return fmt.Errorf("insert %s entry: %w", kind, err)
	}
	return nil
}

func (r *Repository) GetEntry(ctx context.Context, kind core.EntryKind, id, ownerID string) (core.Entry, error) {
	table, err := tableFor(kind)
	if err != nil {
		return core.Entry{}, err
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, owner_id, occurred_on, description, category, method, amount_cents, month, year
		FROM %s WHERE id = ? AND owner_id = ?`, table), id, ownerID)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ErrNotFound
	}
	return e, err
}

// UpdateEntry replaces the whole row; partial patches are not supported.
// The period fields are re-derived from the new date.
func (r *Repository) UpdateEntry(ctx context.Context, kind core.EntryKind, e *core.Entry) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	e.DerivePeriod()
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET occurred_on = ?, description = ?, category = ?, method = ?, amount_cents = ?, month = ?, year = ?
		WHERE id = ? AND owner_id = ?`, table),
		e.Date.String(), e.Description, e.Category, e.Method, e.Amount.Cents, e.Month, e.Year, e.ID, e.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update %s entry: %w", kind, err)
	}
	return affectedOrNotFound(res)
}

func (r *Repository) DeleteEntry(ctx context.Context, kind core.EntryKind, id, ownerID string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND owner_id = ?`, table), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s entry: %w", kind, err)
	}
	return affectedOrNotFound(res)
}

// ListEntries returns every matching entry for the owner, newest first.
// There is no row cap; aggregation needs complete result sets.
func (r *Repository) ListEntries(ctx context.Context, kind core.EntryKind, ownerID string, f ledger.Filter) ([]core.Entry, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, owner_id, occurred_on, description, category, method, amount_cents, month, year
		FROM %s WHERE owner_id = ?`, table)
	args := []any{ownerID}
	if f.Month != 0 {
		query += ` AND month = ?`
		args = append(args, f.Month)
	}
	if f.Year != 0 {
		query += ` AND year = ?`
		args = append(args, f.Year)
	}
	if !f.From.IsZero() {
		query += ` AND occurred_on >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND occurred_on <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY occurred_on DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}
	defer rows.Close()

	out := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(scan func(...any) error) (core.Entry, error) {
	var (
		e          core.Entry
		occurredOn string
	)
	err := scan(&e.ID, &e.OwnerID, &occurredOn, &e.Description, &e.Category, &e.Method, &e.Amount.Cents, &e.Month, &e.Year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, err
		}
		return core.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if e.Date, err = core.ParseDate(occurredOn); err != nil {
		return core.Entry{}, fmt.Errorf("parse occurred_on %q: %w", occurredOn, err)
	}
	return e, nil
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
