// Package sqlite stores values in a kv table of a SQLite database. By
// default chorum points it at the same file as the board content.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nozmo-king/chorum/internal/sqlitedb"
	"github.com/nozmo-king/chorum/lib/store"
	"github.com/nozmo-king/chorum/lib/store/sqlite/migrations"
)

var ErrMissingPath = errors.New("sqlite: path is missing from config")

func init() {
	store.Register("sqlite", Factory{})
}

// Config is the sqlite storage backend configuration.
type Config struct {
	Path string `json:"path"`
}

func (c Config) Valid() error {
	if c.Path == "" {
		return ErrMissingPath
	}
	return nil
}

type Factory struct{}

func (Factory) Valid(data json.RawMessage) error {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return nil
}

func (f Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	if err := f.Valid(data); err != nil {
		return nil, err
	}

	var config Config
	_ = json.Unmarshal(data, &config)

	db, err := sqlitedb.Open(ctx, config.Path, migrations.FS)
	if err != nil {
		return nil, err
	}

	result := &Store{db: db}
	go result.cleanupThread(ctx, true)

	return result, nil
}

// Store is a store.Interface over a kv table.
type Store struct {
	db *sql.DB
}

var _ store.Interface = (*Store)(nil)

// New wraps an already open database, creating the kv table when needed.
// The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := sqlitedb.Migrate(ctx, db, migrations.FS); err != nil {
		return nil, fmt.Errorf("run kv migrations: %w", err)
	}

	result := &Store{db: db}
	go result.cleanupThread(ctx, false)

	return result, nil
}

func deadline(expiry time.Duration) int64 {
	if expiry <= 0 {
		return 0
	}
	return time.Now().Add(expiry).UnixMilli()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, time.Now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: can't get %q: %w", key, err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, deadline(expiry),
	); err != nil {
		return fmt.Errorf("sqlite: can't set %q: %w", key, err)
	}

	return nil
}

// Add only overwrites a row whose expiry has passed. A conflicting live row
// leaves zero rows affected.
func (s *Store) Add(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		 WHERE kv.expires_at != 0 AND kv.expires_at <= ?`,
		key, value, deadline(expiry), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: can't add %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: can't add %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrExists, key)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: can't delete %q: %w", key, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) IsPersistent() bool { return true }

func (s *Store) cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at != 0 AND expires_at <= ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) cleanupThread(ctx context.Context, owned bool) {
	t := time.NewTicker(15 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if owned {
				if err := s.db.Close(); err != nil {
					slog.Error("can't close sqlite store", "err", err)
				}
			}
			return
		case <-t.C:
			n, err := s.cleanup(context.WithoutCancel(ctx))
			if err != nil {
				slog.Error("can't clean up sqlite store", "err", err)
				continue
			}
			if n != 0 {
				slog.Debug("removed expired keys", "count", n)
			}
		}
	}
}
