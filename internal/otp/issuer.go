package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kolo-save/kolo/internal/metrics"
	"github.com/kolo-save/kolo/internal/notification"
)

const (
	defaultTTL         = 5 * time.Minute
	defaultMaxAttempts = 5
	defaultTimeout     = 5 * time.Second
	defaultRetention   = 24 * time.Hour
	maxSuperseded      = 64
)

// Config bounds issued codes. Timeout bounds each store and SMS call. Replaced
// codes are recognised as expired for Retention past their own expiry.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	HashCost    int
	Timeout     time.Duration
	Retention   time.Duration
}

// Issued reports the outcome of Issue. The code is considered issued even when
// the SMS could not be delivered.
type Issued struct {
	Phone       string
	ExpiresAt   time.Time
	Delivered   bool
	DeliveryErr error
}

// Issuer hands out single-use numeric codes, one active code per phone.
type Issuer struct {
	store  Store
	sms    notification.SMSSender
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	random io.Reader
}

// NewIssuer builds an issuer; zero Config fields fall back to defaults.
func NewIssuer(store Store, sms notification.SMSSender, cfg Config, logger *slog.Logger) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HashCost < bcrypt.MinCost || cfg.HashCost > bcrypt.MaxCost {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{store: store, sms: sms, cfg: cfg, logger: logger, now: time.Now, random: rand.Reader}
}

// Issue generates a new code for phone, atomically replacing any previous one, and sends it by SMS.
func (i *Issuer) Issue(ctx context.Context, phone string) (Issued, error) {
	code, err := generateCode(i.random)
	if err != nil {
		return Issued{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), i.cfg.HashCost)
	if err != nil {
		return Issued{}, fmt.Errorf("hash code: %w", err)
	}
	stale, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return Issued{}, fmt.Errorf("hash code: %w", err)
	}

	now := i.now().UTC()
	rec := Record{
		Phone:     phone,
		CodeHash:  hash,
		StaleHash: stale,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.cfg.TTL),
	}

	storeCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	err = i.store.Update(storeCtx, phone, func(current *Record) (Change, error) {
		if current != nil {
			rec.Superseded = supersede(current, now, i.cfg.Retention)
		}
		return Change{Op: Put, Record: rec}, nil
	})
	cancel()
	if err != nil {
		return Issued{}, storeError(err)
	}

	issued := Issued{Phone: phone, ExpiresAt: rec.ExpiresAt, Delivered: true}
	if i.sms != nil {
		smsCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
		if err := i.sms.SendCode(smsCtx, phone, code); err != nil {
			issued.Delivered = false
			issued.DeliveryErr = err
			i.logger.Warn("otp sms delivery failed",
				slog.String("phone", notification.MaskPhone(phone)),
				slog.Any("error", err))
		}
	}
	if issued.Delivered {
		metrics.RecordOTP("issue", "delivered")
	} else {
		metrics.RecordOTP("issue", "undelivered")
	}
	return issued, nil
}

// Verify checks code against the active record of phone. A match consumes the record.
func (i *Issuer) Verify(ctx context.Context, phone, code string) error {
	now := i.now().UTC()
	storeCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	err := i.store.Update(storeCtx, phone, func(current *Record) (Change, error) {
		if current == nil {
			return Change{Op: Keep}, ErrNotFound
		}
		if now.After(current.ExpiresAt) {
			return Change{Op: Keep}, ErrExpired
		}
		if current.Attempts >= i.cfg.MaxAttempts {
			return Change{Op: Keep}, ErrAttemptsExceeded
		}
		if bcrypt.CompareHashAndPassword(current.CodeHash, []byte(code)) == nil {
			return Change{Op: Delete}, nil
		}
		for _, old := range current.Superseded {
			if bcrypt.CompareHashAndPassword(old.Hash, []byte(code)) == nil {
				return Change{Op: Keep}, ErrExpired
			}
		}
		next := *current
		next.Attempts++
		return Change{Op: Put, Record: next}, ErrInvalidCode
	})
	metrics.RecordOTP("verify", verifyResult(err))
	return storeError(err)
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	default:
		return "error"
	}
}

// supersede moves the code of current to the front of its stale list and drops
// entries past their retention. At most maxSuperseded codes are kept.
func supersede(current *Record, now time.Time, retention time.Duration) []StaleCode {
	codes := make([]StaleCode, 0, len(current.Superseded)+1)
	codes = append(codes, StaleCode{Hash: current.StaleHash, ExpiresAt: current.ExpiresAt})
	for _, c := range current.Superseded {
		if len(codes) == maxSuperseded {
			break
		}
		if now.After(c.ExpiresAt.Add(retention)) {
			continue
		}
		codes = append(codes, c)
	}
	return codes
}

func generateCode(r io.Reader) (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(r, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func storeError(err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
