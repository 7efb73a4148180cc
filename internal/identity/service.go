package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tierZero = "tier0"
	tierOne  = "tier1"
)

// WalletProvisioner creates the wallet that every registered user owns.
type WalletProvisioner interface {
	Provision(ctx context.Context, userID string) error
}

// Service manages identity lifecycle.
type Service struct {
	repo    Repository
	wallets WalletProvisioner
	logger  *slog.Logger
}

// NewService creates a new identity service. wallets may be nil.
func NewService(repo Repository, wallets WalletProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, wallets: wallets, logger: logger}
}

// Register creates a new Tier0 user with a hashed PIN and provisions its wallet.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	if !validPIN(creds.PIN) {
		return User{}, ErrWeakPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.PIN), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:        uuid.New().String(),
		Phone:     creds.Phone,
		Tier:      tierZero,
		PINHash:   hash,
		DeviceID:  creds.DeviceID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if s.wallets != nil {
		if err := s.wallets.Provision(ctx, user.ID); err != nil {
			if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error("rollback registration", slog.String("user_id", user.ID), slog.Any("error", delErr))
			}
			return User{}, fmt.Errorf("provision wallet: %w", err)
		}
	}

	return user, nil
}

// Authenticate verifies credentials and device binding.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByPhone(ctx, creds.Phone)
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(creds.PIN)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	if user.DeviceID == "" {
		if creds.DeviceID == "" {
			return User{}, ErrDeviceRequired
		}
		if err := s.repo.UpdateDevice(ctx, user.ID, creds.DeviceID); err != nil {
			return User{}, err
		}
		user.DeviceID = creds.DeviceID
	} else if creds.DeviceID != "" && user.DeviceID != creds.DeviceID {
		return User{}, ErrDeviceMismatch
	}

	if user.Tier == tierZero {
		if err := s.repo.UpdateTier(ctx, user.ID, tierOne); err != nil {
			return User{}, err
		}
		user.Tier = tierOne
	}

	return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
