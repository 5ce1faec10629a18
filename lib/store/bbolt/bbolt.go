// Package bbolt stores values in a single-file bbolt database. Each value is
// prefixed with its expiry so reads can discard stale entries.
package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
	"go.etcd.io/bbolt"
)

// Store is a bbolt-backed store.Interface. It is safe to share between
// goroutines; writes serialize on bbolt's single writer.
type Store struct {
	bdb    *bbolt.DB
	bucket []byte
}

var _ store.Interface = (*Store)(nil)

// encode lays a value out as expiry (unix nanoseconds, big-endian, 0 for
// never) followed by the payload.
func encode(value []byte, expiry time.Duration) []byte {
	var deadline int64
	if expiry > 0 {
		deadline = time.Now().Add(expiry).UnixNano()
	}

	buf := make([]byte, 8, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(deadline))
	return append(buf, value...)
}

// decode splits a stored record. live is false once the record has expired.
func decode(raw []byte, now time.Time) (value []byte, live bool) {
	if len(raw) < 8 {
		return nil, false
	}

	deadline := int64(binary.BigEndian.Uint64(raw[:8]))
	if deadline != 0 && now.UnixNano() >= deadline {
		return nil, false
	}

	return raw[8:], true
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		_, live := decode(raw, time.Now())
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}

		if !live {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		value, live := decode(raw, time.Now())
		if !live {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		// Memory returned by Get is only valid inside the transaction.
		result = bytes.Clone(value)
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), encode(value, expiry))
	})
}

func (s *Store) Add(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if raw := b.Get([]byte(key)); raw != nil {
			if _, live := decode(raw, time.Now()); live {
				return fmt.Errorf("%w: %q", store.ErrExists, key)
			}
		}
		return b.Put([]byte(key), encode(value, expiry))
	})
}

func (s *Store) IsPersistent() bool { return true }

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte

		if err := b.ForEach(func(k, v []byte) error {
			if _, live := decode(v, now); !live {
				stale = append(stale, bytes.Clone(k))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.bdb.Close(); err != nil {
				slog.Error("can't close bbolt database", "err", err)
			}
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("can't clean up bbolt database", "err", err)
			}
		}
	}
}
