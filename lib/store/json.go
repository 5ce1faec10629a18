package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JSON is a typed view over an Interface. Values are stored as JSON under
// Prefix + ":" + key.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(k string) string {
	if j.Prefix == "" {
		return k
	}
	return j.Prefix + ":" + k
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("store: can't unmarshal %s: %w", j.key(key), err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: can't marshal %s: %w", j.key(key), err)
	}

	return j.Underlying.Set(ctx, j.key(key), data, expiry)
}

func (j *JSON[T]) Add(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: can't marshal %s: %w", j.key(key), err)
	}

	return j.Underlying.Add(ctx, j.key(key), data, expiry)
}
