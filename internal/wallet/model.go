package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Entry kinds. Together with Entry.Reference they form the idempotence key of a mutation.
const (
	KindDailySaving = "daily_saving"
	KindLock        = "lock"
	KindUnlock      = "unlock"
	KindReferral    = "referral"
	KindTopUp       = "top_up"

	// KindMissedSaving records a declined daily saving. It moves no money and resets the streak.
	KindMissedSaving = "missed_saving"
)

// AmountPlaces is the number of decimal places money amounts may carry.
const AmountPlaces = 2

var (
	ErrNotFound       = errors.New("wallet not found")
	ErrExists         = errors.New("wallet already exists")
	ErrDuplicateEntry = errors.New("entry already recorded")
	ErrInvariant      = errors.New("wallet invariant violated")
	ErrInvalidAmount  = errors.New("amount must be positive with at most two decimal places")
)

// Wallet is the per-user balance aggregate. TotalBalance is derived and must
// always equal Balance + Locked + ReferralEarnings.
type Wallet struct {
	UserID           string
	Currency         string
	Status           string
	Balance          decimal.Decimal
	Locked           decimal.Decimal
	ReferralEarnings decimal.Decimal
	TotalBalance     decimal.Decimal
	CurrentStreak    int

	// LastDailySavingDate is a UTC midnight; zero when no daily saving has succeeded yet.
	LastDailySavingDate time.Time
	DailySavingAmount   decimal.Decimal
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Entry is the journal record of one successful wallet mutation.
type Entry struct {
	ID           string
	UserID       string
	Kind         string
	Reference    string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	LockedAfter  decimal.Decimal
	TotalAfter   decimal.Decimal
	CreatedAt    time.Time
}

// Stats aggregates wallets for the operations dashboard.
type Stats struct {
	Day           time.Time
	Wallets       int64
	ActiveWallets int64
	TotalBalance  decimal.Decimal
	TotalLocked   decimal.Decimal
	TotalReferral decimal.Decimal
	TotalHoldings decimal.Decimal
	SaversOnDay   int64
	SavedOnDay    decimal.Decimal
	AverageStreak decimal.Decimal
	LongestStreak int
}

// Recompute re-derives TotalBalance from its components.
func (w *Wallet) Recompute() {
	w.TotalBalance = w.Balance.Add(w.Locked).Add(w.ReferralEarnings)
}

// Validate checks every invariant a wallet must satisfy before it is persisted.
func (w Wallet) Validate() error {
	switch {
	case w.Balance.IsNegative():
		return fmt.Errorf("%w: negative balance", ErrInvariant)
	case w.Locked.IsNegative():
		return fmt.Errorf("%w: negative locked funds", ErrInvariant)
	case w.ReferralEarnings.IsNegative():
		return fmt.Errorf("%w: negative referral earnings", ErrInvariant)
	case !w.TotalBalance.Equal(w.Balance.Add(w.Locked).Add(w.ReferralEarnings)):
		return fmt.Errorf("%w: total balance %s does not match components", ErrInvariant, w.TotalBalance)
	case w.CurrentStreak < 0:
		return fmt.Errorf("%w: negative streak", ErrInvariant)
	case !w.DailySavingAmount.IsPositive():
		return fmt.Errorf("%w: daily saving amount must be positive", ErrInvariant)
	}
	return nil
}

// ValidAmount reports whether amount is a positive money value with at most
// AmountPlaces decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(AmountPlaces))
}

// HasSaved reports whether a daily saving has ever succeeded for this wallet.
func (w Wallet) HasSaved() bool {
	return !w.LastDailySavingDate.IsZero()
}

// StreakOn returns the streak as it stands on day. A wallet whose last daily
// saving is older than the day before has missed a day and reports 0.
func (w Wallet) StreakOn(day time.Time) int {
	if !w.HasSaved() || w.LastDailySavingDate.Before(Day(day).AddDate(0, 0, -1)) {
		return 0
	}
	return w.CurrentStreak
}

// snapshot fills the post-mutation balances of e from w.
func (e *Entry) snapshot(w Wallet) {
	e.UserID = w.UserID
	e.BalanceAfter = w.Balance
	e.LockedAfter = w.Locked
	e.TotalAfter = w.TotalBalance
}
