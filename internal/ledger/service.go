package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/wallet"
)

const (
	defaultOperationTimeout = 5 * time.Second
	fundingReferencePrefix  = "daily"
)

// Service applies balance mutations to wallets. Every mutation runs inside one
// repository unit that locks the wallet, recomputes its total and records an entry.
type Service struct {
	repo    wallet.Repository
	funding FundingSource
	timeout time.Duration
}

// NewService builds a ledger. timeout bounds each store and funding call.
func NewService(repo wallet.Repository, funding FundingSource, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &Service{repo: repo, funding: funding, timeout: timeout}
}

// ApplyDailySaving charges the funding source and credits amount to the wallet's
// balance for date. It succeeds at most once per user and calendar date.
func (s *Service) ApplyDailySaving(ctx context.Context, userID string, amount decimal.Decimal, date time.Time) (Result, error) {
	if !wallet.ValidAmount(amount) {
		return Result{}, ErrInvalidAmount
	}
	day := wallet.Day(date)
	reference := wallet.FormatDate(day)
	entry := wallet.Entry{Kind: wallet.KindDailySaving, Reference: reference, Amount: amount}

	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		if w.Status != wallet.StatusActive {
			return ErrWalletInactive
		}
		if w.HasSaved() {
			switch {
			case day.Equal(w.LastDailySavingDate):
				return ErrAlreadyProcessed
			case day.Before(w.LastDailySavingDate):
				return fmt.Errorf("%w: %s is before %s", ErrOutOfOrder, reference, wallet.FormatDate(w.LastDailySavingDate))
			}
		}

		if err := s.charge(ctx, userID, amount, fundingReference(userID, reference)); err != nil {
			return err
		}

		if w.HasSaved() && wallet.NextDay(w.LastDailySavingDate, day) {
			w.CurrentStreak++
		} else {
			w.CurrentStreak = 1
		}
		w.LastDailySavingDate = day
		w.Balance = w.Balance.Add(amount)
		return nil
	})
}

// RecordMissedSaving journals that the daily saving for date was declined and
// resets the streak. Nothing happens to a wallet that already saved on date or later.
func (s *Service) RecordMissedSaving(ctx context.Context, userID string, date time.Time) (Result, error) {
	day := wallet.Day(date)
	entry := wallet.Entry{Kind: wallet.KindMissedSaving, Reference: wallet.FormatDate(day), Amount: decimal.Zero}

	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		if w.HasSaved() && !day.After(w.LastDailySavingDate) {
			return ErrAlreadyProcessed
		}
		w.CurrentStreak = 0
		return nil
	})
}

// LockFunds moves amount from the spendable balance into locked savings.
func (s *Service) LockFunds(ctx context.Context, userID string, amount decimal.Decimal, reference string) (Result, error) {
	if err := validate(amount, reference); err != nil {
		return Result{}, err
	}
	entry := wallet.Entry{Kind: wallet.KindLock, Reference: reference, Amount: amount}
	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		if amount.GreaterThan(w.Balance) {
			return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, w.Balance.StringFixed(wallet.AmountPlaces), amount.StringFixed(wallet.AmountPlaces))
		}
		w.Balance = w.Balance.Sub(amount)
		w.Locked = w.Locked.Add(amount)
		return nil
	})
}

// UnlockFunds moves amount from locked savings back to the spendable balance.
func (s *Service) UnlockFunds(ctx context.Context, userID string, amount decimal.Decimal, reference string) (Result, error) {
	if err := validate(amount, reference); err != nil {
		return Result{}, err
	}
	entry := wallet.Entry{Kind: wallet.KindUnlock, Reference: reference, Amount: amount}
	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		if amount.GreaterThan(w.Locked) {
			return fmt.Errorf("%w: locked %s, requested %s", ErrInsufficientBalance, w.Locked.StringFixed(wallet.AmountPlaces), amount.StringFixed(wallet.AmountPlaces))
		}
		w.Locked = w.Locked.Sub(amount)
		w.Balance = w.Balance.Add(amount)
		return nil
	})
}

// CreditReferral adds a referral reward to the wallet.
func (s *Service) CreditReferral(ctx context.Context, userID string, amount decimal.Decimal, reference string) (Result, error) {
	if err := validate(amount, reference); err != nil {
		return Result{}, err
	}
	entry := wallet.Entry{Kind: wallet.KindReferral, Reference: reference, Amount: amount}
	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		w.ReferralEarnings = w.ReferralEarnings.Add(amount)
		return nil
	})
}

// TopUp credits externally authorised funds to the spendable balance.
func (s *Service) TopUp(ctx context.Context, userID string, amount decimal.Decimal, reference string) (Result, error) {
	if err := validate(amount, reference); err != nil {
		return Result{}, err
	}
	entry := wallet.Entry{Kind: wallet.KindTopUp, Reference: reference, Amount: amount}
	return s.apply(ctx, userID, entry, func(w *wallet.Wallet) error {
		if w.Status != wallet.StatusActive {
			return ErrWalletInactive
		}
		w.Balance = w.Balance.Add(amount)
		return nil
	})
}

func (s *Service) apply(ctx context.Context, userID string, entry wallet.Entry, mutate wallet.MutateFunc) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w, e, err := s.repo.Apply(ctx, userID, entry, mutate)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrDuplicateEntry) && (entry.Kind == wallet.KindDailySaving || entry.Kind == wallet.KindMissedSaving):
			return Result{Wallet: w}, ErrAlreadyProcessed
		case errors.Is(err, wallet.ErrDuplicateEntry):
			return Result{Wallet: w}, ErrDuplicateTransaction
		case errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout):
			return Result{}, fmt.Errorf("%w: %s %s: %v", ErrTimeout, entry.Kind, entry.Reference, err)
		}
		return Result{}, err
	}
	return Result{Wallet: w, Entry: e}, nil
}

func (s *Service) charge(ctx context.Context, userID string, amount decimal.Decimal, reference string) error {
	if s.funding == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.funding.Charge(ctx, userID, amount, reference); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: funding source: %v", ErrTimeout, err)
		}
		return err
	}
	return nil
}

func validate(amount decimal.Decimal, reference string) error {
	if !wallet.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if reference == "" || len(reference) > maxReferenceLength {
		return ErrInvalidReference
	}
	return nil
}

func fundingReference(userID, date string) string {
	return fundingReferencePrefix + ":" + userID + ":" + date
}
