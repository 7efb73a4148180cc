package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

var walletRowColumns = []string{
	"user_id", "currency", "status", "balance", "locked", "referral_earnings", "total_balance",
	"current_streak", "last_daily_saving_date", "daily_saving_amount", "created_at", "updated_at",
}

const (
	lockQuery   = `(?s)SELECT .+ FROM wallets WHERE user_id = \$1 FOR UPDATE`
	existsQuery = `SELECT EXISTS \(\s*SELECT 1 FROM wallet_entries WHERE user_id = \$1 AND kind = \$2 AND reference = \$3\)`
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock new: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func walletRow(id uuid.UUID, balance string, streak int, last *time.Time) *pgxmock.Rows {
	amount := decimal.RequireFromString(balance)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(walletRowColumns).AddRow(
		id, "USD", StatusActive, amount, decimal.Zero, decimal.Zero, amount,
		streak, last, decimal.RequireFromString("27.40"), created, created,
	)
}

func dailyEntry(reference string) Entry {
	return Entry{Kind: KindDailySaving, Reference: reference, Amount: decimal.RequireFromString("27.40")}
}

func creditDaily(day time.Time) MutateFunc {
	return func(w *Wallet) error {
		w.Balance = w.Balance.Add(decimal.RequireFromString("27.40"))
		w.CurrentStreak++
		w.LastDailySavingDate = day
		return nil
	}
}

func TestPostgresApplyCommitsWalletAndEntry(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day := last.AddDate(0, 0, 1)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(walletRow(id, "27.40", 1, &last))
	mock.ExpectQuery(existsQuery).
		WithArgs(id, KindDailySaving, "2024-01-02").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE wallets SET balance").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO wallet_entries").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w, e, err := repo.Apply(context.Background(), id.String(), dailyEntry("2024-01-02"), creditDaily(day))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if w.Balance.String() != "54.8" || w.TotalBalance.String() != "54.8" || w.CurrentStreak != 2 {
		t.Fatalf("unexpected wallet: balance=%s total=%s streak=%d", w.Balance, w.TotalBalance, w.CurrentStreak)
	}
	if !w.LastDailySavingDate.Equal(day) {
		t.Fatalf("expected last saving %s, got %s", FormatDate(day), FormatDate(w.LastDailySavingDate))
	}
	if e.ID == "" || e.UserID != id.String() || !e.TotalAfter.Equal(w.TotalBalance) {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresApplyRejectsRecordedEntry(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(walletRow(id, "27.40", 1, &day))
	mock.ExpectQuery(existsQuery).
		WithArgs(id, KindDailySaving, "2024-01-02").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	called := false
	w, _, err := repo.Apply(context.Background(), id.String(), dailyEntry("2024-01-02"), func(*Wallet) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if called {
		t.Fatal("mutate must not run for a recorded entry")
	}
	if w.UserID != id.String() || w.Balance.String() != "27.4" {
		t.Fatalf("expected the current wallet back, got %+v", w)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresApplyLosesInsertRace(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(walletRow(id, "0", 0, nil))
	mock.ExpectQuery(existsQuery).
		WithArgs(id, KindDailySaving, "2024-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE wallets SET balance").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO wallet_entries[\s\S]+ON CONFLICT \(user_id, kind, reference\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	if _, _, err := repo.Apply(context.Background(), id.String(), dailyEntry("2024-01-01"), creditDaily(day)); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresApplyMapsCommitUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(walletRow(id, "0", 0, nil))
	mock.ExpectQuery(existsQuery).
		WithArgs(id, KindDailySaving, "2024-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE wallets SET balance").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO wallet_entries").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	if _, _, err := repo.Apply(context.Background(), id.String(), dailyEntry("2024-01-01"), creditDaily(day)); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresApplyAbortsOnInvariantViolation(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(walletRow(id, "10", 0, nil))
	mock.ExpectQuery(existsQuery).
		WithArgs(id, KindLock, "lock-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, _, err := repo.Apply(context.Background(), id.String(), Entry{Kind: KindLock, Reference: "lock-1"}, func(w *Wallet) error {
		w.Balance = w.Balance.Sub(decimal.NewFromInt(20))
		return nil
	})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresApplyUnknownWallet(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(id).WillReturnRows(pgxmock.NewRows(walletRowColumns))
	mock.ExpectRollback()

	if _, _, err := repo.Apply(context.Background(), id.String(), dailyEntry("2024-01-01"), creditDaily(time.Now())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresListActivePagesByUserID(t *testing.T) {
	repo, mock := newMockRepository(t)
	first, second := uuid.New(), uuid.New()

	rows := pgxmock.NewRows(walletRowColumns)
	for _, id := range []uuid.UUID{first, second} {
		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		rows.AddRow(id, "USD", StatusActive, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero,
			0, nil, decimal.RequireFromString("27.40"), created, created)
	}
	mock.ExpectQuery(`FROM wallets\s+WHERE status = \$1 AND user_id > \$2\s+ORDER BY user_id\s+LIMIT \$3`).
		WithArgs(StatusActive, uuid.Nil, 2).
		WillReturnRows(rows)

	wallets, err := repo.ListActive(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(wallets) != 2 || wallets[0].UserID != first.String() || wallets[1].HasSaved() {
		t.Fatalf("unexpected page: %+v", wallets)
	}
	if _, err := repo.ListActive(context.Background(), "bad-cursor", 2); err == nil {
		t.Fatal("expected a malformed cursor to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStatsCountsOnlyLiveStreaks(t *testing.T) {
	repo, mock := newMockRepository(t)
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`MAX\(CASE WHEN last_daily_saving_date >= \$1::date - 1 THEN current_streak ELSE 0 END\)`).
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{
			"count", "active", "balance", "locked", "referral", "total", "savers", "avg", "max",
		}).AddRow(
			int64(3), int64(2), decimal.RequireFromString("100"), decimal.RequireFromString("20"),
			decimal.RequireFromString("5"), decimal.RequireFromString("125"), int64(1),
			decimal.RequireFromString("1.33"), 4,
		))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM wallet_entries WHERE kind = \$1 AND reference = \$2`).
		WithArgs(KindDailySaving, "2024-01-05").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("27.40")))

	st, err := repo.Stats(context.Background(), day)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Wallets != 3 || st.ActiveWallets != 2 || st.SaversOnDay != 1 || st.LongestStreak != 4 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.TotalHoldings.String() != "125" || st.SavedOnDay.String() != "27.4" || st.AverageStreak.String() != "1.33" {
		t.Fatalf("unexpected sums: %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
