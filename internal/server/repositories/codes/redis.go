package codes

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const consumeRetries = 4

// RedisRepository keeps codes as plain keys expiring after the configured
// TTL. Consume runs under WATCH so a code is accepted at most once.
type RedisRepository struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRepository(rdb *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{rdb: rdb, ttl: ttl, prefix: "gophmaster:code"}
}

func (r *RedisRepository) key(kind Kind, email string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, normalizeEmail(email))
}

func (r *RedisRepository) Save(ctx context.Context, kind Kind, email, code string) error {
	if err := r.rdb.Set(ctx, r.key(kind, email), code, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Consume(ctx context.Context, kind Kind, email, code string) (bool, error) {
	key := r.key(kind, email)

	for i := 0; i < consumeRetries; i++ {
		matched := false

		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			matched = true
			return nil
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("redis error: %w", err)
		}
		return matched, nil
	}

	return false, nil
}
