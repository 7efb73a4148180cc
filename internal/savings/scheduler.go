package savings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kolo-save/kolo/internal/wallet"
)

// Runner executes one batch for a calendar date.
type Runner interface {
	Run(ctx context.Context, date time.Time) (Report, error)
}

// Scheduler triggers the daily savings batch on a cron schedule in a fixed time zone.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	loc     *time.Location
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler parses schedule (standard five-field cron syntax or descriptors such as
// "@daily") and prepares a scheduler. Overlapping runs are skipped.
func NewScheduler(schedule string, loc *time.Location, runner Runner, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{
		cron:    c,
		runner:  runner,
		loc:     loc,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("parse daily savings schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("daily savings scheduled", slog.Time("next_run", e.Next))
	}
}

// Stop halts the scheduler and waits for a running batch until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.runner.Run(ctx, Today(time.Now(), s.loc)); err != nil {
		s.logger.Error("scheduled daily savings failed", slog.Any("error", err))
	}
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return wallet.Day(now.In(loc))
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
