package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "otp:v2:"
	maxWatchRetries = 5
)

// RedisStore keeps one JSON record per phone and serialises updates with WATCH/MULTI.
// Records outlive their expiry by retention so late guesses report ErrExpired
// instead of ErrNotFound.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore builds a store on client.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &RedisStore{client: client, retention: retention}
}

// Update applies fn inside an optimistic transaction, retrying when another writer touched the key.
func (s *RedisStore) Update(ctx context.Context, phone string, fn UpdateFunc) error {
	key := redisKeyPrefix + phone
	var fnErr error

	txf := func(tx *redis.Tx) error {
		var current *Record
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode verification record: %w", err)
			}
			current = &rec
		}

		change, err := fn(current)
		fnErr = err

		switch change.Op {
		case Put:
			payload, err := json.Marshal(change.Record)
			if err != nil {
				return fmt.Errorf("encode verification record: %w", err)
			}
			ttl := time.Until(change.Record.ExpiresAt) + s.retention
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return err
		case Delete:
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			return err
		}
	}
	return ErrConflict
}
