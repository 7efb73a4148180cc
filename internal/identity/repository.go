package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	UpdateDevice(ctx context.Context, id, deviceID string) error
	UpdateTier(ctx context.Context, id, tier string) error
}

// DB is the part of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, phone, tier, pin_hash, device_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, userID, user.Phone, user.Tier, user.PINHash, user.DeviceID, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// Delete removes a user; used to roll back a registration whose wallet could not be provisioned.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT id, phone, tier, pin_hash, device_id, created_at FROM users WHERE id = $1`, userID))
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT id, phone, tier, pin_hash, device_id, created_at FROM users WHERE phone = $1`, phone))
}

// UpdateDevice stores the users bound device identifier.
func (r *PostgresRepository) UpdateDevice(ctx context.Context, id, deviceID string) error {
	return r.update(ctx, `UPDATE users SET device_id = $1 WHERE id = $2`, id, deviceID)
}

// UpdateTier records a tier promotion.
func (r *PostgresRepository) UpdateTier(ctx context.Context, id, tier string) error {
	return r.update(ctx, `UPDATE users SET tier = $1 WHERE id = $2`, id, tier)
}

func (r *PostgresRepository) update(ctx context.Context, query, id, value string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		user      User
	)
	if err := row.Scan(&id, &user.Phone, &user.Tier, &user.PINHash, &user.DeviceID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
