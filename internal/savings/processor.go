package savings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/metrics"
	"github.com/kolo-save/kolo/internal/notification"
	"github.com/kolo-save/kolo/internal/wallet"
)

const (
	defaultWorkers  = 8
	defaultPageSize = 200
	defaultTimeout  = 10 * time.Second

	reasonInsufficientFunds = "insufficient_funds"
	reasonTimeout           = "timeout"
	reasonOutOfOrder        = "out_of_order"
	reasonWalletInactive    = "wallet_inactive"
	reasonInternal          = "internal_error"
)

// Ledger applies a single daily saving and records the days it was declined.
type Ledger interface {
	ApplyDailySaving(ctx context.Context, userID string, amount decimal.Decimal, date time.Time) (ledger.Result, error)
	RecordMissedSaving(ctx context.Context, userID string, date time.Time) (ledger.Result, error)
}

// Config tunes a batch run.
type Config struct {
	Workers  int
	PageSize int
	// Timeout bounds the work done for one wallet.
	Timeout       time.Duration
	DefaultAmount decimal.Decimal
}

// Failure records why one wallet was not credited.
type Failure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Report summarises one batch run.
type Report struct {
	Date             time.Time
	Processed        int
	Successful       int
	AlreadyProcessed int
	Failed           int
	TotalAmount      decimal.Decimal
	Failures         []Failure
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Processor runs the daily saving for every active wallet.
type Processor struct {
	wallets  wallet.Repository
	ledger   Ledger
	notifier notification.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewProcessor wires a batch processor. notifier may be nil.
func NewProcessor(wallets wallet.Repository, l Ledger, notifier notification.Notifier, logger *slog.Logger, cfg Config) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		wallets:  wallets,
		ledger:   l,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run applies the daily saving for date to all active wallets. One wallet failing
// never stops the batch; it is counted and listed in the report. Running the same
// date again only yields already-processed outcomes for wallets that succeeded.
func (p *Processor) Run(ctx context.Context, date time.Time) (Report, error) {
	day := wallet.Day(date)
	report := Report{Date: day, TotalAmount: decimal.Zero, StartedAt: p.now()}
	p.logger.Info("daily savings batch started", slog.String("date", wallet.FormatDate(day)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.cfg.Workers)

	record := func(userID string, amount decimal.Decimal, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Processed++
		switch {
		case err == nil:
			report.Successful++
			report.TotalAmount = report.TotalAmount.Add(amount)
		case errors.Is(err, ledger.ErrAlreadyProcessed):
			report.AlreadyProcessed++
		default:
			report.Failed++
			report.Failures = append(report.Failures, Failure{UserID: userID, Reason: failureReason(err)})
		}
	}

	var runErr error
	after := ""
paging:
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		page, err := p.wallets.ListActive(ctx, after, p.cfg.PageSize)
		if err != nil {
			runErr = fmt.Errorf("list active wallets after %q: %w", after, err)
			break
		}
		for _, w := range page {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break paging
			}
			g.Go(func() error {
				amount, err := p.saveOne(ctx, w, day)
				record(w.UserID, amount, err)
				return nil
			})
		}
		if len(page) < p.cfg.PageSize {
			break
		}
		after = page[len(page)-1].UserID
	}
	_ = g.Wait()

	report.FinishedAt = p.now()
	metrics.ObserveBatch(report.FinishedAt.Sub(report.StartedAt), report.FinishedAt)

	p.logger.Info("daily savings batch finished",
		slog.String("date", wallet.FormatDate(day)),
		slog.Int("processed", report.Processed),
		slog.Int("successful", report.Successful),
		slog.Int("already_processed", report.AlreadyProcessed),
		slog.Int("failed", report.Failed),
		slog.String("total_amount", report.TotalAmount.StringFixed(wallet.AmountPlaces)),
	)
	p.notify(ctx, notification.Message{
		Kind: notification.KindBatchCompleted,
		Body: fmt.Sprintf("daily savings for %s: %d saved, %d failed", wallet.FormatDate(day), report.Successful, report.Failed),
		Attributes: map[string]string{
			"date":         wallet.FormatDate(day),
			"processed":    fmt.Sprint(report.Processed),
			"successful":   fmt.Sprint(report.Successful),
			"failed":       fmt.Sprint(report.Failed),
			"total_amount": report.TotalAmount.StringFixed(wallet.AmountPlaces),
		},
		OccurredAt: report.FinishedAt,
	})

	return report, runErr
}

func (p *Processor) saveOne(ctx context.Context, w wallet.Wallet, day time.Time) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	amount := w.DailySavingAmount
	if !amount.IsPositive() {
		amount = p.cfg.DefaultAmount
	}
	date := wallet.FormatDate(day)

	res, err := p.ledger.ApplyDailySaving(ctx, w.UserID, amount, day)
	switch {
	case err == nil:
		metrics.RecordDailySaving(metrics.OutcomeSuccess, amount.InexactFloat64())
		p.notify(ctx, notification.Message{
			Kind:   notification.KindDailySaving,
			UserID: w.UserID,
			Body:   fmt.Sprintf("You saved %s %s today. Streak: %d days.", amount.StringFixed(wallet.AmountPlaces), res.Wallet.Currency, res.Wallet.CurrentStreak),
			Attributes: map[string]string{
				"date":          date,
				"amount":        amount.StringFixed(wallet.AmountPlaces),
				"total_balance": res.Wallet.TotalBalance.StringFixed(wallet.AmountPlaces),
			},
			OccurredAt: p.now(),
		})
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		metrics.RecordDailySaving(metrics.OutcomeAlreadyProcessed, 0)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		metrics.RecordDailySaving(metrics.OutcomeInsufficientFunds, 0)
		p.logger.Warn("daily saving declined", slog.String("user_id", w.UserID), slog.String("date", date))
		if _, missErr := p.ledger.RecordMissedSaving(ctx, w.UserID, day); missErr != nil && !errors.Is(missErr, ledger.ErrAlreadyProcessed) {
			p.logger.Error("recording missed saving failed", slog.String("user_id", w.UserID), slog.String("date", date), slog.Any("error", missErr))
		}
		p.notify(ctx, notification.Message{
			Kind:   notification.KindInsufficientFunds,
			UserID: w.UserID,
			Body:   fmt.Sprintf("We could not collect your %s %s daily saving. Please top up your account.", amount.StringFixed(wallet.AmountPlaces), w.Currency),
			Attributes: map[string]string{
				"date":   date,
				"amount": amount.StringFixed(wallet.AmountPlaces),
			},
			OccurredAt: p.now(),
		})
	default:
		metrics.RecordDailySaving(metrics.OutcomeError, 0)
		p.logger.Error("daily saving failed", slog.String("user_id", w.UserID), slog.String("date", date), slog.Any("error", err))
	}
	return amount, err
}

// failureReason maps err to a stable code for the report. Details stay in the logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return reasonInsufficientFunds
	case errors.Is(err, ledger.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, ledger.ErrOutOfOrder):
		return reasonOutOfOrder
	case errors.Is(err, ledger.ErrWalletInactive):
		return reasonWalletInactive
	default:
		return reasonInternal
	}
}

func (p *Processor) notify(ctx context.Context, message notification.Message) {
	if p.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()
	if err := p.notifier.Send(ctx, message); err != nil {
		p.logger.Warn("notification failed",
			slog.String("kind", message.Kind),
			slog.String("user_id", message.UserID),
			slog.Any("error", err),
		)
	}
}
