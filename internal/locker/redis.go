package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "dms:lock:"

// RedisLocker реализует распределённую блокировку поверх Redis SETNX с TTL.
// Используется планировщиком, чтобы sweep выполнялся одним инстансом за раз.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker создаёт locker поверх подключения к Redis.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// NewRedisLockerFromURL подключается к Redis по URL и проверяет соединение.
func NewRedisLockerFromURL(ctx context.Context, url string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisLocker{client: client}, nil
}

// Acquire пытается взять блокировку key на ttl. TTL страхует от зависшего
// владельца: блокировка истечёт сама, даже если Release не был вызван.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	return ok, nil
}

// Release снимает блокировку key.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, lockKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	return nil
}

// Close закрывает подключение к Redis.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
