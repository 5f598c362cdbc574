// Package redisstore keeps the operator session in Redis so several console
// processes on one workstation share a login.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/customs-console/sessions"
	"github.com/redis/go-redis/v9"
)

const defaultTimeout = 5 * time.Second

var _ sessions.Repo = (*Store)(nil)

type Store struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisClient connects and pings, failing fast if Redis is unreachable.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore NewRedisClient] ping %s: %w", addr, err)
	}
	return client, nil
}

// New wraps client. Every key is namespaced with prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix, timeout: defaultTimeout}
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[redisstore Get] %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("[redisstore Set] %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("[redisstore Delete]: %w", err)
	}
	return nil
}
