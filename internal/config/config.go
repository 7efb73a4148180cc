package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName          = "Kolo"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultOperationTimeout = 5 * time.Second
	defaultDailyAmount      = "27.40"
	defaultCurrency         = "USD"
	defaultTimezone         = "UTC"
	defaultWorkers          = 8
	defaultOTPTTL           = 5 * time.Minute
	defaultOTPMaxAttempts   = 5
	defaultOTPHashCost      = 10
	defaultSMSRatePerSecond = 10.0
	defaultKafkaTopic       = "kolo.notifications"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	dailyAmountEnvVar       = "DEFAULT_DAILY_SAVING_AMOUNT"
	dailySavingsTimezoneVar = "DAILY_SAVINGS_TIMEZONE"
	devSecret               = "dev-secret-change-me"
	amountPlaces            = 2
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	LogFormat        string
	DatabaseURL      string
	RedisURL         string
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
	OperationTimeout time.Duration

	JWTSecret      string
	AccessTokenTTL time.Duration
	CronSecret     string

	DailySavings DailySavingsConfig
	OTP          OTPConfig
	Kafka        KafkaConfig
}

// DailySavingsConfig drives the daily contribution batch.
type DailySavingsConfig struct {
	// Schedule is a cron expression; empty disables the in-process scheduler.
	Schedule      string
	Location      *time.Location
	Workers       int
	DefaultAmount decimal.Decimal
	Currency      string
}

// OTPConfig bounds one-time code issuance.
type OTPConfig struct {
	TTL              time.Duration
	MaxAttempts      int
	HashCost         int
	SMSRatePerSecond float64
}

// KafkaConfig enables the Kafka notifier when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", defaultLogFormat)
	v.SetDefault("ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
	v.SetDefault("OPERATION_TIMEOUT", defaultOperationTimeout)
	v.SetDefault(dailyAmountEnvVar, defaultDailyAmount)
	v.SetDefault("DEFAULT_CURRENCY", defaultCurrency)
	v.SetDefault(dailySavingsTimezoneVar, defaultTimezone)
	v.SetDefault("DAILY_SAVINGS_WORKERS", defaultWorkers)
	v.SetDefault("OTP_TTL", defaultOTPTTL)
	v.SetDefault("OTP_MAX_ATTEMPTS", defaultOTPMaxAttempts)
	v.SetDefault("OTP_HASH_COST", defaultOTPHashCost)
	v.SetDefault("SMS_RATE_PER_SECOND", defaultSMSRatePerSecond)
	v.SetDefault("KAFKA_TOPIC", defaultKafkaTopic)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppName:          v.GetString("APP_NAME"),
		AppEnv:           v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(v.GetString("LOG_FORMAT")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		AccessTokenTTL:   v.GetDuration("ACCESS_TOKEN_TTL"),
		OperationTimeout: v.GetDuration("OPERATION_TIMEOUT"),
		CronSecret:       v.GetString("CRON_SECRET"),
		DailySavings: DailySavingsConfig{
			Schedule: strings.TrimSpace(v.GetString("DAILY_SAVINGS_CRON")),
			Workers:  v.GetInt("DAILY_SAVINGS_WORKERS"),
			Currency: strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		},
		OTP: OTPConfig{
			TTL:              v.GetDuration("OTP_TTL"),
			MaxAttempts:      v.GetInt("OTP_MAX_ATTEMPTS"),
			HashCost:         v.GetInt("OTP_HASH_COST"),
			SMSRatePerSecond: v.GetFloat64("SMS_RATE_PER_SECOND"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationSetting(v, shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationSetting(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	amount, err := decimal.NewFromString(v.GetString(dailyAmountEnvVar))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", dailyAmountEnvVar, err)
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(amountPlaces)) {
		return Config{}, fmt.Errorf("invalid %s: must be positive with at most %d decimal places", dailyAmountEnvVar, amountPlaces)
	}
	cfg.DailySavings.DefaultAmount = amount

	loc, err := time.LoadLocation(v.GetString(dailySavingsTimezoneVar))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", dailySavingsTimezoneVar, err)
	}
	cfg.DailySavings.Location = loc

	if cfg.DailySavings.Workers <= 0 {
		cfg.DailySavings.Workers = defaultWorkers
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	if cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devSecret
		}
		if cfg.CronSecret == "" {
			cfg.CronSecret = devSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.CronSecret == "" {
		return Config{}, fmt.Errorf("CRON_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service runs in a local/dev environment,
// where Postgres and Redis are optional and in-memory stores are used instead.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationSetting prefers the integer-seconds variable, then the Go duration variable.
func durationSetting(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if raw := v.GetString(secondsKey); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
