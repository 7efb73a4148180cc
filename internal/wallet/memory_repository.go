package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
	entries map[string][]Entry
	keys    map[string]struct{}

	// userLocks serialises Apply per wallet so one slow mutation does not block other users.
	userLocks map[string]*sync.Mutex
}

// NewMemoryRepository constructs an in-memory repository for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		wallets:   make(map[string]Wallet),
		entries:   make(map[string][]Entry),
		keys:      make(map[string]struct{}),
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	w.Recompute()
	if err := w.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.UserID]; exists {
		return ErrExists
	}
	r.wallets[w.UserID] = w
	return nil
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) ListActive(_ context.Context, afterUserID string, limit int) ([]Wallet, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.wallets))
	for id, w := range r.wallets {
		if w.Status == StatusActive && id > afterUserID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Wallet, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.wallets[id])
	}
	return out, nil
}

func (r *memoryRepository) Apply(_ context.Context, userID string, entry Entry, mutate MutateFunc) (Wallet, Entry, error) {
	lock := r.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	key := entryKey(userID, entry.Kind, entry.Reference)
	r.mu.RLock()
	w, ok := r.wallets[userID]
	_, recorded := r.keys[key]
	r.mu.RUnlock()
	if !ok {
		return Wallet{}, Entry{}, ErrNotFound
	}
	if recorded {
		return w, Entry{}, ErrDuplicateEntry
	}

	if err := mutate(&w); err != nil {
		return Wallet{}, Entry{}, err
	}
	w.Recompute()
	if err := w.Validate(); err != nil {
		return Wallet{}, Entry{}, err
	}
	now := time.Now().UTC()
	w.UpdatedAt = now
	entry.ID = uuid.NewString()
	entry.CreatedAt = now
	entry.snapshot(w)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[userID] = w
	r.keys[key] = struct{}{}
	r.entries[userID] = append(r.entries[userID], entry)
	return w, entry, nil
}

func (r *memoryRepository) UpdateDailyAmount(_ context.Context, userID string, amount decimal.Decimal) (Wallet, error) {
	lock := r.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	w.DailySavingAmount = amount
	w.UpdatedAt = time.Now().UTC()
	r.wallets[userID] = w
	return w, nil
}

func (r *memoryRepository) Entries(_ context.Context, userID string, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.wallets[userID]; !ok {
		return nil, ErrNotFound
	}
	all := r.entries[userID]
	out := make([]Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepository) Stats(_ context.Context, day time.Time) (Stats, error) {
	day = Day(day)
	st := Stats{Day: day}
	reference := FormatDate(day)
	streaks := decimal.Zero

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		st.Wallets++
		if w.Status == StatusActive {
			st.ActiveWallets++
		}
		st.TotalBalance = st.TotalBalance.Add(w.Balance)
		st.TotalLocked = st.TotalLocked.Add(w.Locked)
		st.TotalReferral = st.TotalReferral.Add(w.ReferralEarnings)
		st.TotalHoldings = st.TotalHoldings.Add(w.TotalBalance)
		if w.LastDailySavingDate.Equal(day) {
			st.SaversOnDay++
		}
		streak := w.StreakOn(day)
		if streak > st.LongestStreak {
			st.LongestStreak = streak
		}
		streaks = streaks.Add(decimal.NewFromInt(int64(streak)))

		for _, e := range r.entries[w.UserID] {
			if e.Kind == KindDailySaving && e.Reference == reference {
				st.SavedOnDay = st.SavedOnDay.Add(e.Amount)
			}
		}
	}
	if st.Wallets > 0 {
		st.AverageStreak = streaks.DivRound(decimal.NewFromInt(st.Wallets), 2)
	}
	return st, nil
}

func (r *memoryRepository) lockFor(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.userLocks[userID] = l
	}
	return l
}

func entryKey(userID, kind, reference string) string {
	return userID + "|" + kind + "|" + reference
}
