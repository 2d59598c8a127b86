package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisHash       = "content_sync:local"
	redisMaxRetries = 3
)

// Redis keeps every value as a field of one hash so the quota can be
// measured and enforced atomically with WATCH.
type Redis struct {
	client   *redis.Client
	maxBytes int64
}

func OpenRedis(ctx context.Context, redisURL string, maxBytes int64) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, maxBytes), nil
}

func NewRedisWithClient(client *redis.Client, maxBytes int64) *Redis {
	return &Redis{client: client, maxBytes: maxBytes}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.HGet(ctx, redisHash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", notFound(key)
	}
	if err != nil {
		return "", fmt.Errorf("hget local value: %w", err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	txf := func(tx *redis.Tx) error {
		if r.maxBytes > 0 {
			values, err := tx.HGetAll(ctx, redisHash).Result()
			if err != nil {
				return fmt.Errorf("measure local usage: %w", err)
			}
			var used int64
			for k, v := range values {
				if k != key {
					used += entrySize(k, v)
				}
			}
			if used+entrySize(key, value) > r.maxBytes {
				return ErrQuotaExceeded
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisHash, key, value)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, redisHash)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("write local value: %w", err)
		}
		return err
	}

	return fmt.Errorf("write local value: %w", redis.TxFailedErr)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
