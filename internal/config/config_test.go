package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("Address() = %q, want %q", cfg.Address(), ":8080")
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay {
		t.Errorf("ShutdownPeriod = %v, want %v", cfg.ShutdownPeriod, defaultShutdownDelay)
	}
	if cfg.DailySavings.DefaultAmount.String() != "27.4" {
		t.Errorf("DefaultAmount = %s, want 27.4", cfg.DailySavings.DefaultAmount)
	}
	if cfg.DailySavings.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.DailySavings.Location)
	}
	if cfg.JWTSecret == "" || cfg.CronSecret == "" {
		t.Error("development config should fall back to non-empty secrets")
	}
}

func TestLoadDurationVariants(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(idemTTLDurEnvVar, "90m")
	t.Setenv("OTP_TTL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Errorf("ShutdownPeriod = %v, want 3s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Minute {
		t.Errorf("IdempotencyTTL = %v, want 90m", cfg.IdempotencyTTL)
	}
	if cfg.OTP.TTL != 2*time.Minute {
		t.Errorf("OTP.TTL = %v, want 2m", cfg.OTP.TTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"shutdown seconds", shutdownSecondsEnvVar, "soon"},
		{"daily amount", dailyAmountEnvVar, "abc"},
		{"negative daily amount", dailyAmountEnvVar, "-1"},
		{"zero daily amount", dailyAmountEnvVar, "0"},
		{"sub-cent daily amount", dailyAmountEnvVar, "1.234"},
		{"timezone", dailySavingsTimezoneVar, "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CRON_SECRET", "c")

	if _, err := Load(); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://kolo@localhost/kolo")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoadAcceptsCentAmount(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv(dailyAmountEnvVar, "12.50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DailySavings.DefaultAmount.StringFixed(2) != "12.50" {
		t.Errorf("DefaultAmount = %s, want 12.50", cfg.DailySavings.DefaultAmount)
	}
}
