package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Defaults seeds newly provisioned wallets.
type Defaults struct {
	DailySavingAmount decimal.Decimal
	Currency          string
}

// Service exposes wallet provisioning and read models.
type Service struct {
	repo     Repository
	defaults Defaults
	now      func() time.Time
}

// NewService builds a wallet service instance.
func NewService(repo Repository, defaults Defaults) *Service {
	if defaults.Currency == "" {
		defaults.Currency = "USD"
	}
	if !defaults.DailySavingAmount.IsPositive() {
		defaults.DailySavingAmount = decimal.RequireFromString("27.40")
	}
	return &Service{repo: repo, defaults: defaults, now: time.Now}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID   string
	Currency string
}

// Create provisions the zero-balance wallet of a user.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return Wallet{}, fmt.Errorf("invalid user id: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.defaults.Currency
	}

	now := s.now().UTC()
	w := Wallet{
		UserID:            input.UserID,
		Currency:          currency,
		Status:            StatusActive,
		Balance:           decimal.Zero,
		Locked:            decimal.Zero,
		ReferralEarnings:  decimal.Zero,
		DailySavingAmount: s.defaults.DailySavingAmount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	w.Recompute()

	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Provision creates the default wallet of a newly registered user. An existing wallet is left untouched.
func (s *Service) Provision(ctx context.Context, userID string) error {
	_, err := s.Create(ctx, CreateInput{UserID: userID})
	if errors.Is(err, ErrExists) {
		return nil
	}
	return err
}

// Get returns the wallet owned by userID.
func (s *Service) Get(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateSettings changes the per-day contribution of a wallet.
func (s *Service) UpdateSettings(ctx context.Context, userID string, dailyAmount decimal.Decimal) (Wallet, error) {
	if !ValidAmount(dailyAmount) {
		return Wallet{}, ErrInvalidAmount
	}
	return s.repo.UpdateDailyAmount(ctx, userID, dailyAmount)
}

// History lists the latest journal entries of a wallet.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return s.repo.Entries(ctx, userID, limit)
}

// Stats aggregates all wallets for the given calendar day.
func (s *Service) Stats(ctx context.Context, day time.Time) (Stats, error) {
	if day.IsZero() {
		day = s.now()
	}
	return s.repo.Stats(ctx, Day(day))
}
