package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestService() (*Service, Repository) {
	repo := NewMemoryRepository()
	return NewService(repo, Defaults{DailySavingAmount: decimal.RequireFromString("27.40"), Currency: "USD"}), repo
}

func TestServiceCreateAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	userID := uuid.NewString()

	w, err := svc.Create(ctx, CreateInput{UserID: userID})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if !w.TotalBalance.IsZero() || w.Status != StatusActive || w.Currency != "USD" {
		t.Fatalf("unexpected new wallet: %+v", w)
	}
	if w.DailySavingAmount.String() != "27.4" {
		t.Fatalf("expected default daily amount 27.40, got %s", w.DailySavingAmount)
	}

	fetched, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.UserID != userID {
		t.Fatalf("expected wallet for %s, got %s", userID, fetched.UserID)
	}

	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := svc.Provision(ctx, userID); err != nil {
		t.Fatalf("provision existing wallet: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{UserID: "not-a-uuid"}); err == nil {
		t.Fatalf("expected invalid user id error")
	}
	if _, err := svc.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceUpdateSettings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	for _, raw := range []string{"0", "-1", "1.005"} {
		if _, err := svc.UpdateSettings(ctx, userID, decimal.RequireFromString(raw)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", raw, err)
		}
	}

	w, err := svc.UpdateSettings(ctx, userID, decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if !w.DailySavingAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50, got %s", w.DailySavingAmount)
	}
}

func TestRepositoryApplyRecordsEntryOnce(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	credit := func(w *Wallet) error {
		w.Balance = w.Balance.Add(decimal.NewFromInt(10))
		return nil
	}
	entry := Entry{Kind: KindTopUp, Reference: "ref-1", Amount: decimal.NewFromInt(10)}

	w, recorded, err := repo.Apply(ctx, userID, entry, credit)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !w.TotalBalance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected total 10, got %s", w.TotalBalance)
	}
	if recorded.ID == "" || !recorded.TotalAfter.Equal(w.TotalBalance) {
		t.Fatalf("unexpected entry snapshot: %+v", recorded)
	}

	if _, _, err := repo.Apply(ctx, userID, entry, credit); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}

	history, err := svc.History(ctx, userID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
}

func TestRepositoryApplyRejectsInvariantBreach(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	_, _, err := repo.Apply(ctx, userID, Entry{Kind: KindLock, Reference: "overdraw"}, func(w *Wallet) error {
		w.Balance = w.Balance.Sub(decimal.NewFromInt(1))
		return nil
	})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}

	w, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("failed mutation must not persist, balance %s", w.Balance)
	}
}

func TestRepositoryApplySerialisesPerWallet(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := repo.Apply(ctx, userID, Entry{Kind: KindTopUp, Reference: uuid.NewString()}, func(w *Wallet) error {
				w.Balance = w.Balance.Add(decimal.RequireFromString("0.50"))
				return nil
			})
			if err != nil {
				t.Errorf("apply %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	w, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected balance 10.00 after %d credits, got %s", workers, w.Balance)
	}
}

func TestRepositoryListActivePages(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, CreateInput{UserID: uuid.NewString()}); err != nil {
			t.Fatalf("create wallet: %v", err)
		}
	}
	suspended := Wallet{
		UserID:            uuid.NewString(),
		Status:            StatusSuspended,
		DailySavingAmount: decimal.NewFromInt(1),
	}
	if err := repo.Create(ctx, suspended); err != nil {
		t.Fatalf("create suspended wallet: %v", err)
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := repo.ListActive(ctx, cursor, 3)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, w := range page {
			if seen[w.UserID] {
				t.Fatalf("wallet %s listed twice", w.UserID)
			}
			seen[w.UserID] = true
		}
		cursor = page[len(page)-1].UserID
	}
	if len(seen) != 7 || seen[suspended.UserID] {
		t.Fatalf("expected the 7 active wallets, got %d", len(seen))
	}
}

func TestServiceStats(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	streaks := []int{1, 3}
	for i, streak := range streaks {
		userID := uuid.NewString()
		if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
			t.Fatalf("create wallet: %v", err)
		}
		_, _, err := repo.Apply(ctx, userID, Entry{Kind: KindDailySaving, Reference: FormatDate(day), Amount: decimal.RequireFromString("27.40")}, func(w *Wallet) error {
			w.Balance = w.Balance.Add(decimal.RequireFromString("27.40"))
			w.ReferralEarnings = decimal.NewFromInt(int64(i))
			w.CurrentStreak = streak
			w.LastDailySavingDate = day
			return nil
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	st, err := svc.Stats(ctx, day)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Wallets != 2 || st.SaversOnDay != 2 || st.LongestStreak != 3 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.SavedOnDay.String() != "54.8" || st.TotalHoldings.String() != "55.8" || st.AverageStreak.String() != "2" {
		t.Fatalf("unexpected sums: saved=%s holdings=%s avg=%s", st.SavedOnDay, st.TotalHoldings, st.AverageStreak)
	}
}

func TestServiceStatsIgnoresBrokenStreaks(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	lastSaved := map[time.Time]int{day: 2, day.AddDate(0, 0, -1): 5, day.AddDate(0, 0, -3): 9}
	for last, streak := range lastSaved {
		userID := uuid.NewString()
		if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
			t.Fatalf("create wallet: %v", err)
		}
		_, _, err := repo.Apply(ctx, userID, Entry{Kind: KindDailySaving, Reference: FormatDate(last), Amount: decimal.RequireFromString("1")}, func(w *Wallet) error {
			w.Balance = w.Balance.Add(decimal.RequireFromString("1"))
			w.CurrentStreak = streak
			w.LastDailySavingDate = last
			return nil
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	st, err := svc.Stats(ctx, day)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.LongestStreak != 5 || st.AverageStreak.String() != "2.33" {
		t.Fatalf("expected the 9-day streak to count as broken, got longest=%d avg=%s", st.LongestStreak, st.AverageStreak)
	}

	later, err := svc.Stats(ctx, day.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if later.LongestStreak != 0 || !later.AverageStreak.IsZero() {
		t.Fatalf("expected every streak broken two days later, got longest=%d avg=%s", later.LongestStreak, later.AverageStreak)
	}
}
