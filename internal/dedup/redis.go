// Package dedup отсекает повторно доставленные обновления Telegram.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL задаёт, сколько хранится отметка об обработанном обновлении.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "dealhunter:update:"

// NewClient подключается к Redis по URL и проверяет соединение.
func NewClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisStore хранит идентификаторы обработанных обновлений в Redis.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore создаёт хранилище; ttl <= 0 заменяется на DefaultTTL.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// FirstSeen атомарно отмечает обновление и сообщает, встречается ли оно впервые.
func (s *RedisStore) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key(updateID), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark update %d: %w", updateID, err)
	}
	return ok, nil
}

func key(updateID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, updateID)
}
