package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindDailySaving reports a successful daily contribution.
	KindDailySaving = "daily_saving_succeeded"
	// KindInsufficientFunds asks the saver to top up their funding account.
	KindInsufficientFunds = "daily_saving_insufficient_funds"
	// KindBatchCompleted summarises one daily savings run.
	KindBatchCompleted = "daily_savings_batch_completed"
)

// Message describes a notification payload.
type Message struct {
	Kind       string            `json:"kind"`
	UserID     string            `json:"user_id,omitempty"`
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("user_id", message.UserID),
		slog.String("body", message.Body),
	}
	for k, v := range message.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	n.logger.Info("notification", attrs...)
	return nil
}
