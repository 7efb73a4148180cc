package wallet

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestWalletRecomputeAndValidate(t *testing.T) {
	w := Wallet{
		Balance:           decimal.RequireFromString("10.10"),
		Locked:            decimal.RequireFromString("5.05"),
		ReferralEarnings:  decimal.RequireFromString("1.00"),
		DailySavingAmount: decimal.RequireFromString("27.40"),
	}
	if err := w.Validate(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected stale total to fail validation, got %v", err)
	}
	w.Recompute()
	if w.TotalBalance.String() != "16.15" {
		t.Fatalf("expected total 16.15, got %s", w.TotalBalance)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	w.Locked = decimal.NewFromInt(-1)
	w.Recompute()
	if err := w.Validate(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected negative locked to fail, got %v", err)
	}
}

func TestValidAmount(t *testing.T) {
	cases := map[string]bool{
		"27.40": true,
		"0.01":  true,
		"100":   true,
		"0":     false,
		"-5":    false,
		"1.001": false,
	}
	for raw, want := range cases {
		if got := ValidAmount(decimal.RequireFromString(raw)); got != want {
			t.Fatalf("ValidAmount(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestDayHelpers(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	late := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)
	if got := FormatDate(Day(late)); got != "2024-01-01" {
		t.Fatalf("expected local calendar day 2024-01-01, got %s", got)
	}

	d, err := ParseDate("2024-02-28")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !NextDay(d, d.AddDate(0, 0, 1)) || NextDay(d, d.AddDate(0, 0, 2)) || NextDay(d, d) {
		t.Fatalf("NextDay mismatch around %s", FormatDate(d))
	}
	if _, err := ParseDate("2024/01/01"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestStreakOn(t *testing.T) {
	last := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	w := Wallet{CurrentStreak: 4, LastDailySavingDate: last}

	cases := []struct {
		day  time.Time
		want int
	}{
		{last, 4},
		{last.AddDate(0, 0, 1), 4},
		{last.AddDate(0, 0, 2), 0},
		{last.AddDate(0, 1, 0), 0},
	}
	for _, tc := range cases {
		if got := w.StreakOn(tc.day); got != tc.want {
			t.Fatalf("streak on %s: expected %d, got %d", FormatDate(tc.day), tc.want, got)
		}
	}
	if got := (Wallet{CurrentStreak: 2}).StreakOn(last); got != 0 {
		t.Fatalf("expected wallet that never saved to report 0, got %d", got)
	}
}
