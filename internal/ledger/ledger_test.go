package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"songforge/internal/ledger"
	"songforge/internal/plan"
	"songforge/internal/services"
	"songforge/internal/storage"
	"songforge/internal/testsupport"
)

func newDB(t *testing.T) *storage.DB {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenDB(t, cfg)
}

func TestCurrentBalanceCreditsQuota(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	bal, err := store.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if bal.Remaining != 20 || bal.Quota != 20 || bal.Unlimited {
		t.Fatalf("balance = %+v, want 20/20 metered", bal)
	}
}

func TestTryDebitSpendsTokens(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	bal, err := store.TryDebit(ctx, "user-1", plan.Basic, 4)
	if err != nil {
		t.Fatalf("TryDebit: %v", err)
	}
	if bal.Remaining != 16 {
		t.Fatalf("remaining = %d, want 16", bal.Remaining)
	}

	// Five generations at 4 tokens exhaust the basic quota.
	for i := 0; i < 4; i++ {
		if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 4); err != nil {
			t.Fatalf("debit %d: %v", i+2, err)
		}
	}
	_, err = store.TryDebit(ctx, "user-1", plan.Basic, 4)
	if !errors.Is(err, services.ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}

	bal, err = store.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if bal.Remaining != 0 {
		t.Fatalf("remaining after exhaustion = %d, want 0", bal.Remaining)
	}
}

func TestTryDebitNeverGoesNegative(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 18); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 4); !errors.Is(err, services.ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
	bal, err := store.CurrentBalance(ctx, "user-1", plan.Basic)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if bal.Remaining != 2 {
		t.Fatalf("remaining = %d, want untouched 2", bal.Remaining)
	}
}

func TestConcurrentDebitsAdmitExactlyOne(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	// Leave exactly one generation's worth of tokens.
	if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 16); err != nil {
		t.Fatalf("setup debit: %v", err)
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TryDebit(ctx, "user-1", plan.Basic, 4)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, services.ErrInsufficientTokens):
				failed++
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	if failed != workers-1 {
		t.Fatalf("failed = %d, want %d", failed, workers-1)
	}
}

func TestUnlimitedPlanBypassesLedger(t *testing.T) {
	db := newDB(t)
	store := ledger.NewStore(db)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		bal, err := store.TryDebit(ctx, "user-1", plan.ProPlus, 0)
		if err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
		if !bal.Unlimited {
			t.Fatal("expected unlimited balance")
		}
	}

	var rows int
	if err := db.Handle().QueryRow("SELECT COUNT(1) FROM token_ledger").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 0 {
		t.Fatalf("ledger rows = %d, want 0 for unmetered plan", rows)
	}
}

func TestDailyResetAtUTCBoundary(t *testing.T) {
	db := newDB(t)
	current := time.Date(2026, 8, 30, 23, 50, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	store := ledger.NewStoreWithNow(db, now)
	ctx := context.Background()

	if _, err := store.TryDebit(ctx, "user-1", plan.Pro, 2); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := store.CurrentBalance(ctx, "user-1", plan.Pro)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	if bal.Remaining != 38 {
		t.Fatalf("remaining = %d, want 38", bal.Remaining)
	}

	mu.Lock()
	current = time.Date(2026, 8, 31, 0, 5, 0, 0, time.UTC)
	mu.Unlock()

	bal, err = store.CurrentBalance(ctx, "user-1", plan.Pro)
	if err != nil {
		t.Fatalf("CurrentBalance after midnight: %v", err)
	}
	if bal.Remaining != 40 {
		t.Fatalf("remaining after reset = %d, want full quota 40", bal.Remaining)
	}
}

func TestApplyPlanChangeUpgradeResets(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 16); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := store.ApplyPlanChange(ctx, "user-1", plan.Basic, plan.Pro)
	if err != nil {
		t.Fatalf("ApplyPlanChange: %v", err)
	}
	if bal.Remaining != 40 {
		t.Fatalf("remaining = %d, want full pro quota 40", bal.Remaining)
	}
}

func TestApplyPlanChangeDowngradeClamps(t *testing.T) {
	store := ledger.NewStore(newDB(t))
	ctx := context.Background()

	if _, err := store.TryDebit(ctx, "user-1", plan.Pro, 2); err != nil {
		t.Fatalf("debit: %v", err)
	}
	// 38 remaining, clamped to basic's 20.
	bal, err := store.ApplyPlanChange(ctx, "user-1", plan.Pro, plan.Basic)
	if err != nil {
		t.Fatalf("ApplyPlanChange: %v", err)
	}
	if bal.Remaining != 20 {
		t.Fatalf("remaining = %d, want clamped 20", bal.Remaining)
	}

	// A balance below the new quota is left alone.
	if _, err := store.TryDebit(ctx, "user-1", plan.Basic, 12); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err = store.ApplyPlanChange(ctx, "user-1", plan.Basic, plan.Basic)
	if err != nil {
		t.Fatalf("ApplyPlanChange: %v", err)
	}
	if bal.Remaining != 8 {
		t.Fatalf("remaining = %d, want untouched 8", bal.Remaining)
	}
}

func TestApplyPlanChangeToUnlimitedClearsRow(t *testing.T) {
	db := newDB(t)
	store := ledger.NewStore(db)
	ctx := context.Background()

	if _, err := store.TryDebit(ctx, "user-1", plan.Pro, 2); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := store.ApplyPlanChange(ctx, "user-1", plan.Pro, plan.ProPlus)
	if err != nil {
		t.Fatalf("ApplyPlanChange: %v", err)
	}
	if !bal.Unlimited {
		t.Fatal("expected unlimited balance")
	}

	var rows int
	if err := db.Handle().QueryRow("SELECT COUNT(1) FROM token_ledger WHERE user_id = 'user-1'").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 0 {
		t.Fatalf("ledger rows = %d, want 0", rows)
	}
}
