package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kolo-save/kolo/internal/auth"
	"github.com/kolo-save/kolo/internal/config"
	"github.com/kolo-save/kolo/internal/funding"
	"github.com/kolo-save/kolo/internal/identity"
	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/notification"
	"github.com/kolo-save/kolo/internal/otp"
	"github.com/kolo-save/kolo/internal/savings"
	"github.com/kolo-save/kolo/internal/wallet"
)

const otpRetention = 24 * time.Hour

// Deps aggregates shared infrastructure handles. DB and Cache may be nil in
// development, in which case in-memory stores are used.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Components holds the wired domain services.
type Components struct {
	Deps

	Validate  *validator.Validate
	Tokens    *auth.JWTGateway
	Identity  *identity.Service
	Wallets   *wallet.Service
	Ledger    *ledger.Service
	Funding   *funding.Service
	Issuer    *otp.Issuer
	Processor *savings.Processor
	Notifier  notification.Notifier

	closers []func() error
}

// NewComponents builds every service on top of d.
func NewComponents(d Deps) (*Components, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	c := &Components{Deps: d, Validate: validator.New()}

	var (
		walletRepo   wallet.Repository
		identityRepo identity.Repository
		otpStore     otp.Store
	)
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		otpStore = otp.NewRedisStore(d.Cache, otpRetention)
	} else {
		otpStore = otp.NewMemoryStore()
	}

	notifier, err := c.newNotifier()
	if err != nil {
		return nil, err
	}
	c.Notifier = notifier

	source := funding.NewStaticSource()
	timeout := d.Cfg.OperationTimeout

	c.Tokens = auth.NewJWTGateway(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	c.Wallets = wallet.NewService(walletRepo, wallet.Defaults{
		DailySavingAmount: d.Cfg.DailySavings.DefaultAmount,
		Currency:          d.Cfg.DailySavings.Currency,
	})
	c.Identity = identity.NewService(identityRepo, c.Wallets, d.Logger)
	c.Ledger = ledger.NewService(walletRepo, source, timeout)
	if c.Funding, err = funding.NewService(c.Ledger, source, timeout); err != nil {
		return nil, err
	}

	sms := notification.NewThrottledSMSSender(notification.NewLoggerSMSSender(d.Logger), d.Cfg.OTP.SMSRatePerSecond)
	c.Issuer = otp.NewIssuer(otpStore, sms, otp.Config{
		TTL:         d.Cfg.OTP.TTL,
		MaxAttempts: d.Cfg.OTP.MaxAttempts,
		HashCost:    d.Cfg.OTP.HashCost,
		Timeout:     timeout,
		Retention:   otpRetention,
	}, d.Logger)

	c.Processor = savings.NewProcessor(walletRepo, c.Ledger, notifier, d.Logger, savings.Config{
		Workers:       d.Cfg.DailySavings.Workers,
		Timeout:       2 * timeout,
		DefaultAmount: d.Cfg.DailySavings.DefaultAmount,
	})
	return c, nil
}

func (c *Components) newNotifier() (notification.Notifier, error) {
	if len(c.Cfg.Kafka.Brokers) == 0 {
		return notification.NewLoggerNotifier(c.Logger), nil
	}
	producer, err := notification.NewKafkaProducer(c.Cfg.Kafka.Brokers, c.Cfg.AppName, c.Cfg.OperationTimeout)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	n := notification.NewKafkaNotifier(producer, c.Cfg.Kafka.Topic)
	c.closers = append(c.closers, n.Close)
	c.Logger.Info("kafka notifier enabled", slog.Any("brokers", c.Cfg.Kafka.Brokers), slog.String("topic", c.Cfg.Kafka.Topic))
	return n, nil
}

// Close releases resources owned by the components. Deps are closed by their owner.
func (c *Components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
