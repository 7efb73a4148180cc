package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MutateFunc changes a locked wallet in place. Returning an error aborts the
// mutation and nothing is persisted.
type MutateFunc func(w *Wallet) error

// Repository persists wallets and their entry journal.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, userID string) (Wallet, error)
	// ListActive pages through active wallets ordered by user id, starting after afterUserID.
	ListActive(ctx context.Context, afterUserID string, limit int) ([]Wallet, error)
	// Apply locks the wallet, rejects a repeated (kind, reference) with ErrDuplicateEntry,
	// runs mutate, recomputes and validates the wallet, then stores it together with entry.
	Apply(ctx context.Context, userID string, entry Entry, mutate MutateFunc) (Wallet, Entry, error)
	UpdateDailyAmount(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, error)
	Entries(ctx context.Context, userID string, limit int) ([]Entry, error)
	Stats(ctx context.Context, day time.Time) (Stats, error)
}

const uniqueViolation = "23505"

const walletColumns = `user_id, currency, status, balance, locked, referral_earnings, total_balance,
        current_streak, last_daily_saving_date, daily_saving_amount, created_at, updated_at`

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	w.Recompute()
	if err := w.Validate(); err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		userID, w.Currency, w.Status, w.Balance, w.Locked, w.ReferralEarnings, w.TotalBalance,
		w.CurrentStreak, nullableDate(w.LastDailySavingDate), w.DailySavingAmount, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrExists
	}
	return err
}

// Get fetches the wallet owned by userID.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (Wallet, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	w, err := scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

// ListActive returns up to limit active wallets with user ids greater than afterUserID.
func (r *PostgresRepository) ListActive(ctx context.Context, afterUserID string, limit int) ([]Wallet, error) {
	after := uuid.Nil
	if afterUserID != "" {
		parsed, err := uuid.Parse(afterUserID)
		if err != nil {
			return nil, fmt.Errorf("parse cursor: %w", err)
		}
		after = parsed
	}
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE status = $1 AND user_id > $2
        ORDER BY user_id
        LIMIT $3`, StatusActive, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Apply runs mutate against the row-locked wallet and records entry in the same transaction.
func (r *PostgresRepository) Apply(ctx context.Context, userID string, entry Entry, mutate MutateFunc) (Wallet, Entry, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, Entry{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, Entry{}, ErrNotFound
		}
		return Wallet{}, Entry{}, err
	}

	var recorded bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (
            SELECT 1 FROM wallet_entries WHERE user_id = $1 AND kind = $2 AND reference = $3)`,
		id, entry.Kind, entry.Reference).Scan(&recorded); err != nil {
		return Wallet{}, Entry{}, err
	}
	if recorded {
		return w, Entry{}, ErrDuplicateEntry
	}

	if err := mutate(&w); err != nil {
		return Wallet{}, Entry{}, err
	}
	w.Recompute()
	if err := w.Validate(); err != nil {
		return Wallet{}, Entry{}, err
	}
	now := time.Now().UTC()
	w.UpdatedAt = now

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2, locked = $3, referral_earnings = $4,
        total_balance = $5, current_streak = $6, last_daily_saving_date = $7, updated_at = $8
        WHERE user_id = $1`,
		id, w.Balance, w.Locked, w.ReferralEarnings, w.TotalBalance, w.CurrentStreak,
		nullableDate(w.LastDailySavingDate), w.UpdatedAt); err != nil {
		return Wallet{}, Entry{}, err
	}

	entryID := uuid.New()
	entry.ID = entryID.String()
	entry.CreatedAt = now
	entry.snapshot(w)
	tag, err := tx.Exec(ctx, `INSERT INTO wallet_entries
        (id, user_id, kind, reference, amount, balance_after, locked_after, total_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id, kind, reference) DO NOTHING`,
		entryID, id, entry.Kind, entry.Reference, entry.Amount, entry.BalanceAfter, entry.LockedAfter, entry.TotalAfter, entry.CreatedAt)
	if err != nil {
		return Wallet{}, Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return Wallet{}, Entry{}, ErrDuplicateEntry
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Wallet{}, Entry{}, ErrDuplicateEntry
		}
		return Wallet{}, Entry{}, err
	}
	return w, entry, nil
}

// UpdateDailyAmount changes the amount charged by future daily savings.
func (r *PostgresRepository) UpdateDailyAmount(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	w, err := scanWallet(r.db.QueryRow(ctx, `UPDATE wallets SET daily_saving_amount = $2, updated_at = $3
        WHERE user_id = $1
        RETURNING `+walletColumns, id, amount, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

// Entries returns the most recent journal entries for a wallet, newest first.
func (r *PostgresRepository) Entries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, kind, reference, amount, balance_after, locked_after, total_after, created_at
        FROM wallet_entries
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var entryID, owner uuid.UUID
		if err := rows.Scan(&entryID, &owner, &e.Kind, &e.Reference, &e.Amount, &e.BalanceAfter, &e.LockedAfter, &e.TotalAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = entryID.String()
		e.UserID = owner.String()
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates balances and streaks across every wallet. Streaks of wallets
// that missed the day before are counted as 0.
func (r *PostgresRepository) Stats(ctx context.Context, day time.Time) (Stats, error) {
	day = Day(day)
	st := Stats{Day: day}
	const walletsQuery = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'active'),
               COALESCE(SUM(balance), 0),
               COALESCE(SUM(locked), 0),
               COALESCE(SUM(referral_earnings), 0),
               COALESCE(SUM(total_balance), 0),
               COUNT(*) FILTER (WHERE last_daily_saving_date = $1),
               COALESCE(ROUND(AVG(CASE WHEN last_daily_saving_date >= $1::date - 1 THEN current_streak ELSE 0 END), 2), 0),
               COALESCE(MAX(CASE WHEN last_daily_saving_date >= $1::date - 1 THEN current_streak ELSE 0 END), 0)
        FROM wallets`
	if err := r.db.QueryRow(ctx, walletsQuery, day).Scan(
		&st.Wallets, &st.ActiveWallets, &st.TotalBalance, &st.TotalLocked, &st.TotalReferral,
		&st.TotalHoldings, &st.SaversOnDay, &st.AverageStreak, &st.LongestStreak,
	); err != nil {
		return Stats{}, err
	}

	const savedQuery = `SELECT COALESCE(SUM(amount), 0) FROM wallet_entries WHERE kind = $1 AND reference = $2`
	if err := r.db.QueryRow(ctx, savedQuery, KindDailySaving, FormatDate(day)).Scan(&st.SavedOnDay); err != nil {
		return Stats{}, err
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var userID uuid.UUID
	var lastSaving *time.Time
	if err := row.Scan(&userID, &w.Currency, &w.Status, &w.Balance, &w.Locked, &w.ReferralEarnings, &w.TotalBalance,
		&w.CurrentStreak, &lastSaving, &w.DailySavingAmount, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.UserID = userID.String()
	if lastSaving != nil {
		w.LastDailySavingDate = Day(*lastSaving)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return Day(t)
}
