package notification

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// SMSSender delivers one-time codes to phones.
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LoggerSMSSender logs codes instead of sending them; for local development.
type LoggerSMSSender struct {
	logger *slog.Logger
}

// NewLoggerSMSSender constructs a logging SMS sender.
func NewLoggerSMSSender(logger *slog.Logger) *LoggerSMSSender {
	return &LoggerSMSSender{logger: logger}
}

// SendCode logs the code at debug level with the phone number masked.
func (s *LoggerSMSSender) SendCode(_ context.Context, phone, code string) error {
	s.logger.Debug("sms code", slog.String("phone", MaskPhone(phone)), slog.String("code", code))
	return nil
}

// ThrottledSMSSender bounds the rate at which codes reach the provider.
type ThrottledSMSSender struct {
	next    SMSSender
	limiter *rate.Limiter
}

// NewThrottledSMSSender allows perSecond sends with a burst of the same size.
func NewThrottledSMSSender(next SMSSender, perSecond float64) *ThrottledSMSSender {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSMSSender{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// SendCode waits for a token, giving up when ctx ends first.
func (s *ThrottledSMSSender) SendCode(ctx context.Context, phone, code string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms throttled: %w", err)
	}
	return s.next.SendCode(ctx, phone, code)
}

// MaskPhone keeps the last three digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-3 && phone[i] != '+' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
