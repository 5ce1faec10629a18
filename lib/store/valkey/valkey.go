package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store implements store.Interface on top of Redis/Valkey. Expiry is handled
// by the server.
type Store struct {
	client redisClient
}

var _ store.Interface = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}
		return nil, err
	}
	return cmd.Bytes()
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return s.client.Set(ctx, key, value, ttl(expiry)).Err()
}

// Add maps onto SET NX, which the server applies atomically.
func (s *Store) Add(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	ok, err := s.client.SetNX(ctx, key, value, ttl(expiry)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrExists, key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res := s.client.Del(ctx, key)
	if err := res.Err(); err != nil {
		return err
	}
	if n, _ := res.Result(); n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	return nil
}

func (s *Store) IsPersistent() bool {
	return true
}

// ttl maps "never expires" onto go-redis' zero expiration.
func ttl(expiry time.Duration) time.Duration {
	if expiry <= 0 {
		return 0
	}
	return expiry
}
