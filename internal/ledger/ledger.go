// Package ledger meters daily token balances for metered plans. Balances
// reset implicitly at each UTC day boundary; unmetered plans never touch
// the ledger.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/storage"
)

// Balance is a point-in-time view of a user's token budget.
type Balance struct {
	Remaining int
	Quota     int
	Unlimited bool
}

// Store persists per-user token balances.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// NewStore creates a ledger store over the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewStoreWithNow creates a store with an injected clock for tests.
func NewStoreWithNow(db *storage.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

const dateLayout = "2006-01-02"

func (s *Store) today() string {
	return s.now().UTC().Format(dateLayout)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// CurrentBalance returns the user's remaining tokens for the current UTC
// day, crediting the daily quota if the stored period is stale or absent.
func (s *Store) CurrentBalance(ctx context.Context, userID string, p plan.Plan) (Balance, error) {
	ents := plan.Entitlements(p)
	if ents.Unlimited() {
		return Balance{Unlimited: true}, nil
	}

	ctx = storage.EnsureContext(ctx)
	var balance Balance
	err := storage.RetryOnBusy(ctx, func() error {
		tx, err := s.db.Handle().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin ledger tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		remaining, err := s.ensureCurrentRow(ctx, tx, userID, ents.DailyTokenQuota)
		if err != nil {
			return err
		}
		balance = Balance{Remaining: remaining, Quota: ents.DailyTokenQuota}
		return tx.Commit()
	})
	if err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// TryDebit atomically spends amount tokens, failing with
// ErrInsufficientTokens when the balance cannot cover it. A zero amount
// or an unmetered plan debits nothing.
func (s *Store) TryDebit(ctx context.Context, userID string, p plan.Plan, amount int) (Balance, error) {
	ents := plan.Entitlements(p)
	if ents.Unlimited() {
		return Balance{Unlimited: true}, nil
	}
	if amount < 0 {
		return Balance{}, services.Wrap(services.ErrValidation, "ledger", "debit", "negative amount", nil)
	}
	if amount == 0 {
		return s.CurrentBalance(ctx, userID, p)
	}

	ctx = storage.EnsureContext(ctx)
	var balance Balance
	err := storage.RetryOnBusy(ctx, func() error {
		tx, err := s.db.Handle().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin ledger tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := s.ensureCurrentRow(ctx, tx, userID, ents.DailyTokenQuota); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE token_ledger SET balance = balance - ?, updated_at = ? WHERE user_id = ? AND balance >= ?",
			amount, s.timestamp(), userID, amount)
		if err != nil {
			return fmt.Errorf("debit tokens: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit tokens: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrInsufficientTokens, "ledger", "debit",
				fmt.Sprintf("need %d tokens", amount), nil)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx,
			"SELECT balance FROM token_ledger WHERE user_id = ?", userID).Scan(&remaining); err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		balance = Balance{Remaining: remaining, Quota: ents.DailyTokenQuota}
		return tx.Commit()
	})
	if err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// ApplyPlanChange adjusts the ledger when a user's plan changes. Upgrades
// reset the balance to the new daily quota immediately; downgrades clamp
// the current balance to the new quota. Moving to an unmetered plan
// clears the row entirely.
func (s *Store) ApplyPlanChange(ctx context.Context, userID string, oldPlan, newPlan plan.Plan) (Balance, error) {
	newEnts := plan.Entitlements(newPlan)
	ctx = storage.EnsureContext(ctx)

	if newEnts.Unlimited() {
		if _, err := s.db.ExecRetry(ctx, "DELETE FROM token_ledger WHERE user_id = ?", userID); err != nil {
			return Balance{}, fmt.Errorf("clear ledger row: %w", err)
		}
		return Balance{Unlimited: true}, nil
	}

	upgrade := newPlan.Tier() > oldPlan.Tier()
	var balance Balance
	err := storage.RetryOnBusy(ctx, func() error {
		tx, err := s.db.Handle().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin ledger tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		remaining, err := s.ensureCurrentRow(ctx, tx, userID, newEnts.DailyTokenQuota)
		if err != nil {
			return err
		}

		switch {
		case upgrade:
			remaining = newEnts.DailyTokenQuota
			if _, err := tx.ExecContext(ctx,
				"UPDATE token_ledger SET balance = ?, period_start = ?, updated_at = ? WHERE user_id = ?",
				remaining, s.today(), s.timestamp(), userID); err != nil {
				return fmt.Errorf("reset balance on upgrade: %w", err)
			}
		case remaining > newEnts.DailyTokenQuota:
			remaining = newEnts.DailyTokenQuota
			if _, err := tx.ExecContext(ctx,
				"UPDATE token_ledger SET balance = ?, updated_at = ? WHERE user_id = ?",
				remaining, s.timestamp(), userID); err != nil {
				return fmt.Errorf("clamp balance on downgrade: %w", err)
			}
		}

		balance = Balance{Remaining: remaining, Quota: newEnts.DailyTokenQuota}
		return tx.Commit()
	})
	if err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// ensureCurrentRow guarantees a ledger row exists for the current UTC day
// and returns the balance after any reset. Called inside a transaction.
func (s *Store) ensureCurrentRow(ctx context.Context, tx *sql.Tx, userID string, quota int) (int, error) {
	today := s.today()

	var (
		balance     int
		periodStart string
	)
	err := tx.QueryRowContext(ctx,
		"SELECT balance, period_start FROM token_ledger WHERE user_id = ?", userID).
		Scan(&balance, &periodStart)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO token_ledger (user_id, balance, period_start, updated_at) VALUES (?, ?, ?, ?)",
			userID, quota, today, s.timestamp()); err != nil {
			return 0, fmt.Errorf("create ledger row: %w", err)
		}
		return quota, nil
	case err != nil:
		return 0, fmt.Errorf("read ledger row: %w", err)
	}

	if len(periodStart) >= len(dateLayout) {
		periodStart = periodStart[:len(dateLayout)]
	}
	if periodStart != today {
		if _, err := tx.ExecContext(ctx,
			"UPDATE token_ledger SET balance = ?, period_start = ?, updated_at = ? WHERE user_id = ?",
			quota, today, s.timestamp(), userID); err != nil {
			return 0, fmt.Errorf("reset daily balance: %w", err)
		}
		return quota, nil
	}
	return balance, nil
}
